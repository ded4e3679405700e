package docker

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
)

// ContainerExists reports whether a container with exactly this name
// exists, running or not.
func (c *Client) ContainerExists(ctx context.Context, name string) (bool, error) {
	containers, err := c.api.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return false, fmt.Errorf("failed to list containers: %w", err)
	}

	for _, cont := range containers {
		for _, n := range cont.Names {
			if strings.TrimPrefix(n, "/") == name {
				return true, nil
			}
		}
	}

	return false, nil
}

// ContainerRunning reports whether a container with exactly this name
// is currently running.
func (c *Client) ContainerRunning(ctx context.Context, name string) (bool, error) {
	containers, err := c.api.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return false, fmt.Errorf("failed to list containers: %w", err)
	}

	for _, cont := range containers {
		for _, n := range cont.Names {
			if strings.TrimPrefix(n, "/") == name {
				return true, nil
			}
		}
	}

	return false, nil
}

// ProjectContainers returns all containers belonging to a project.
// Matching anchors on the project name followed by a compose separator
// so that one project being a prefix of another ("site", "site2")
// never causes cross-project hits.
func (c *Client) ProjectContainers(ctx context.Context, project string) ([]container.Summary, error) {
	containers, err := c.api.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var owned []container.Summary
	for _, cont := range containers {
		for _, n := range cont.Names {
			name := strings.TrimPrefix(n, "/")
			if strings.HasPrefix(name, project+"-") || strings.HasPrefix(name, project+"_") {
				owned = append(owned, cont)
				break
			}
		}
	}

	return owned, nil
}

// NetworkExists reports whether a network with exactly this name exists.
func (c *Client) NetworkExists(ctx context.Context, name string) (bool, error) {
	networks, err := c.api.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return false, fmt.Errorf("failed to list networks: %w", err)
	}

	for _, nw := range networks {
		if nw.Name == name {
			return true, nil
		}
	}

	return false, nil
}

// NetworkHasContainer reports whether the named container is attached
// to the named network.
func (c *Client) NetworkHasContainer(ctx context.Context, networkName, containerName string) (bool, error) {
	info, err := c.api.NetworkInspect(ctx, networkName, network.InspectOptions{})
	if err != nil {
		return false, fmt.Errorf("failed to inspect network %s: %w", networkName, err)
	}

	for _, endpoint := range info.Containers {
		if endpoint.Name == containerName {
			return true, nil
		}
	}

	return false, nil
}

// PublishedHostPort returns the host port a running container publishes
// for the given in-container TCP port, or 0 when the container is not
// running or does not publish it.
func (c *Client) PublishedHostPort(ctx context.Context, name string, containerPort int) (int, error) {
	running, err := c.ContainerRunning(ctx, name)
	if err != nil {
		return 0, err
	}
	if !running {
		return 0, nil
	}

	info, err := c.api.ContainerInspect(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}
	if info.NetworkSettings == nil {
		return 0, nil
	}

	port := nat.Port(fmt.Sprintf("%d/tcp", containerPort))
	bindings := info.NetworkSettings.Ports[port]
	if len(bindings) == 0 {
		return 0, nil
	}

	var hostPort int
	if _, err := fmt.Sscanf(bindings[0].HostPort, "%d", &hostPort); err != nil {
		return 0, fmt.Errorf("unparseable host port %q for container %s: %w", bindings[0].HostPort, name, err)
	}

	return hostPort, nil
}
