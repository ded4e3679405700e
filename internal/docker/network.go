package docker

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/api/types/network"
)

// EnsureNetwork creates the named bridge network unless it already
// exists. Safe to call on every invocation.
func (c *Client) EnsureNetwork(ctx context.Context, name string) error {
	exists, err := c.NetworkExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if _, err := c.api.NetworkCreate(ctx, name, network.CreateOptions{Driver: "bridge"}); err != nil {
		return fmt.Errorf("failed to create network %s: %w", name, err)
	}

	log.Debug("network created", "network", name)
	return nil
}

// EnsureConnected attaches a container to a network unless it already
// is a member. Connecting an already-connected container is an error
// in the daemon, so membership is checked first instead of tolerating
// the failure.
func (c *Client) EnsureConnected(ctx context.Context, networkName, containerName string) error {
	attached, err := c.NetworkHasContainer(ctx, networkName, containerName)
	if err != nil {
		return err
	}
	if attached {
		return nil
	}

	if err := c.api.NetworkConnect(ctx, networkName, containerName, nil); err != nil {
		return fmt.Errorf("failed to connect %s to network %s: %w", containerName, networkName, err)
	}

	log.Debug("container attached to network", "container", containerName, "network", networkName)
	return nil
}

// DisconnectAndRemove detaches a container from a network and deletes
// the network, tolerating failure of either step. The disconnect has
// to happen first: a network with a foreign member cannot be deleted.
func (c *Client) DisconnectAndRemove(ctx context.Context, networkName, containerName string) {
	if err := c.api.NetworkDisconnect(ctx, networkName, containerName, true); err != nil {
		log.Debug("network disconnect skipped", "network", networkName, "container", containerName, "err", err)
	}
	if err := c.api.NetworkRemove(ctx, networkName); err != nil {
		log.Debug("network removal skipped", "network", networkName, "err", err)
	}
}
