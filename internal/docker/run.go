package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
)

// ContainerSpec is the fixed runtime configuration of a singleton
// container. It is applied once at creation; restarts reuse whatever
// the container was created with.
type ContainerSpec struct {
	Name  string
	Image string
	Env   []string

	// Ports maps in-container TCP ports to published host ports.
	Ports map[int]int

	// PortsUDP maps in-container UDP ports to published host ports.
	PortsUDP map[int]int

	// Binds are host mounts in Docker bind syntax (src:dst[:ro]).
	Binds []string

	// VolumesFrom shares the volumes of another container.
	VolumesFrom []string

	// RestartPolicy is a Docker restart policy name, empty for none.
	RestartPolicy string

	// Cmd overrides the image command.
	Cmd []string

	// AutoRemove removes the container when it exits.
	AutoRemove bool
}

// StartContainer starts an existing, stopped container.
func (c *Client) StartContainer(ctx context.Context, name string) error {
	if err := c.api.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container %s: %w", name, err)
	}
	return nil
}

// CreateAndStart creates a container from spec and starts it.
func (c *Client) CreateAndStart(ctx context.Context, spec ContainerSpec) error {
	cfg := &container.Config{
		Image: spec.Image,
		Env:   spec.Env,
	}
	if len(spec.Cmd) > 0 {
		cfg.Cmd = spec.Cmd
	}

	hostCfg := &container.HostConfig{
		Binds:       spec.Binds,
		VolumesFrom: spec.VolumesFrom,
		AutoRemove:  spec.AutoRemove,
	}
	if spec.RestartPolicy != "" {
		hostCfg.RestartPolicy = container.RestartPolicy{
			Name: container.RestartPolicyMode(spec.RestartPolicy),
		}
	}

	if len(spec.Ports) > 0 || len(spec.PortsUDP) > 0 {
		cfg.ExposedPorts = make(nat.PortSet)
		hostCfg.PortBindings = make(nat.PortMap)
		bind := func(proto string, containerPort, hostPort int) {
			port := nat.Port(fmt.Sprintf("%d/%s", containerPort, proto))
			cfg.ExposedPorts[port] = struct{}{}
			hostCfg.PortBindings[port] = []nat.PortBinding{
				{HostPort: fmt.Sprintf("%d", hostPort)},
			}
		}
		for containerPort, hostPort := range spec.Ports {
			bind("tcp", containerPort, hostPort)
		}
		for containerPort, hostPort := range spec.PortsUDP {
			bind("udp", containerPort, hostPort)
		}
	}

	resp, err := c.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return fmt.Errorf("failed to create container %s: %w", spec.Name, err)
	}

	if err := c.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container %s: %w", spec.Name, err)
	}

	return nil
}
