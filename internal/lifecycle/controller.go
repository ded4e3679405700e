// Package lifecycle implements the orchestrator's command handlers.
//
// Every command is a stateless transition: the controller probes the
// container runtime for current state and acts only on the delta to
// the desired state, so repeated invocations converge instead of
// duplicating resources. Nothing is persisted between invocations.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/charmbracelet/log"

	"wharf/internal/compose"
	"wharf/internal/config"
	"wharf/internal/docker"
	"wharf/internal/runner"
	"wharf/internal/services"
)

// Controller drives project and singleton resources through their
// lifecycle.
type Controller struct {
	cfg     *config.Config
	docker  *docker.Client
	runner  runner.Runner
	proxy   *services.Proxy
	agent   *services.SSHAgent
	project *compose.Project

	// hostAddr resolves the host address the in-container debugger
	// connects back to. Swapped out in tests.
	hostAddr func() (string, error)
}

// New wires a controller from its collaborators.
func New(cfg *config.Config, dc *docker.Client, r runner.Runner, tool *compose.Tool) *Controller {
	return &Controller{
		cfg:      cfg,
		docker:   dc,
		runner:   r,
		proxy:    services.NewProxy(cfg, dc),
		agent:    services.NewSSHAgent(cfg, dc, r),
		project:  compose.NewProject(cfg, r, tool),
		hostAddr: hostIP,
	}
}

// Start brings the full environment up: shared proxy, project network
// with proxy membership, ssh-agent proxy where the host needs one,
// then the project services. Idempotent; a second invocation only
// probes.
func (c *Controller) Start(ctx context.Context, args []string) error {
	if err := c.proxy.Ensure(ctx); err != nil {
		return fmt.Errorf("reverse proxy provisioning failed: %w", err)
	}

	netName := c.cfg.NetworkName()
	if err := c.docker.EnsureNetwork(ctx, netName); err != nil {
		return err
	}
	if err := c.docker.EnsureConnected(ctx, netName, c.cfg.Proxy.Name); err != nil {
		return err
	}

	if c.cfg.Host == config.HostMac {
		if err := c.agent.Ensure(ctx); err != nil {
			return fmt.Errorf("ssh-agent proxy provisioning failed: %w", err)
		}
	}

	if err := c.project.Up(ctx); err != nil {
		return err
	}

	// Pointing the in-container debugger at the host is best-effort;
	// the environment is usable without it.
	c.reconfigureDebugger(ctx)

	fmt.Printf("Project %s is up: %s\n", c.cfg.Project, c.cfg.SiteURL(c.proxy.Port(ctx)))
	return nil
}

// Stop halts the project containers only. Network, proxy and volumes
// stay in place so the next start is fast.
func (c *Controller) Stop(ctx context.Context, args []string) error {
	return c.project.Stop(ctx)
}

// Purge tears the project down completely: containers, named and
// anonymous volumes, and the project network. Each step is tolerant so
// a failure in one never keeps the rest from reclaiming resources.
// The shared singletons are left untouched.
func (c *Controller) Purge(ctx context.Context, args []string) error {
	if err := c.project.Stop(ctx); err != nil {
		log.Debug("stop during purge failed", "err", err)
	}

	c.docker.DisconnectAndRemove(ctx, c.cfg.NetworkName(), c.cfg.Proxy.Name)
	c.project.Down(ctx)

	fmt.Printf("Project %s purged.\n", c.cfg.Project)
	return nil
}

// Status reports whether any project container is currently listed.
func (c *Controller) Status(ctx context.Context, args []string) error {
	containers, err := c.docker.ProjectContainers(ctx, c.cfg.Project)
	if err != nil {
		return err
	}

	if len(containers) == 0 {
		fmt.Printf("Project %s is not running.\n", c.cfg.Project)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATE\tSTATUS")
	for _, cont := range containers {
		name := ""
		if len(cont.Names) > 0 {
			name = cont.Names[0]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, cont.State, cont.Status)
	}
	return w.Flush()
}

// Logs follows the web container's log starting from the most recent
// line. A notice is printed when the container is not running.
func (c *Controller) Logs(ctx context.Context, args []string) error {
	running, err := c.docker.ContainerRunning(ctx, c.cfg.WebContainer())
	if err != nil {
		return err
	}
	if !running {
		fmt.Printf("Project %s is not running.\n", c.cfg.Project)
		return nil
	}

	return c.project.Logs(ctx, c.cfg.Compose.WebService)
}

// Pull pre-fetches every image the environment references: the project
// services from the compose file plus the singleton images.
func (c *Controller) Pull(ctx context.Context, args []string) error {
	file, err := compose.ParseFile(filepath.Join(c.cfg.Dir, c.cfg.Compose.File))
	if err != nil {
		return err
	}

	log.Info("pulling project images", "images", file.Images())
	if err := c.project.Pull(ctx); err != nil {
		return err
	}

	for _, img := range []string{c.cfg.Proxy.Image, c.cfg.SSHAgent.Image, c.cfg.DNS.Image} {
		log.Info("pulling image", "image", img)
		if err := c.docker.Pull(ctx, img); err != nil {
			return err
		}
	}

	return nil
}
