// Package services manages the host-global singleton containers: the
// shared reverse proxy and the shared ssh-agent proxy.
//
// Both are addressed by fixed names so every project's invocation
// converges on the same container. Ensure semantics are identical for
// both: a stopped container is started as-is, a missing one is created
// with its fixed configuration, and either way the container must be
// running afterwards or the start sequence cannot continue.
package services

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"wharf/internal/config"
	"wharf/internal/docker"
)

// Proxy manages the shared reverse-proxy singleton. The proxy routes
// host traffic to the right project's web container by hostname; every
// project network it joins becomes routable.
type Proxy struct {
	cfg    *config.Config
	docker *docker.Client
}

// NewProxy creates a proxy manager.
func NewProxy(cfg *config.Config, dc *docker.Client) *Proxy {
	return &Proxy{cfg: cfg, docker: dc}
}

// Ensure converges the proxy container to running and verifies it got
// there. A proxy that cannot run is fatal for the caller: no project
// can route traffic without it.
func (p *Proxy) Ensure(ctx context.Context) error {
	name := p.cfg.Proxy.Name

	running, err := p.docker.ContainerRunning(ctx, name)
	if err != nil {
		return err
	}
	if !running {
		exists, err := p.docker.ContainerExists(ctx, name)
		if err != nil {
			return err
		}

		if exists {
			log.Debug("starting stopped reverse proxy", "container", name)
			if err := p.docker.StartContainer(ctx, name); err != nil {
				return err
			}
		} else {
			log.Info("creating reverse proxy", "container", name, "image", p.cfg.Proxy.Image)
			if err := p.docker.CreateAndStart(ctx, p.spec()); err != nil {
				return err
			}
		}
	}

	running, err = p.docker.ContainerRunning(ctx, name)
	if err != nil {
		return err
	}
	if !running {
		return fmt.Errorf("reverse proxy %s did not reach running state", name)
	}

	return nil
}

// Port returns the host port the running proxy publishes for HTTP, or
// the configured port when the proxy is not up yet.
func (p *Proxy) Port(ctx context.Context) int {
	port, err := p.docker.PublishedHostPort(ctx, p.cfg.Proxy.Name, 80)
	if err != nil || port == 0 {
		return p.cfg.Proxy.HTTPPort
	}
	return port
}

func (p *Proxy) spec() docker.ContainerSpec {
	return docker.ContainerSpec{
		Name:  p.cfg.Proxy.Name,
		Image: p.cfg.Proxy.Image,
		Ports: map[int]int{80: p.cfg.Proxy.HTTPPort},
		// nginx-proxy watches the daemon for containers to route to.
		Binds:         []string{"/var/run/docker.sock:/tmp/docker.sock:ro"},
		RestartPolicy: "always",
	}
}
