package lifecycle

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"wharf/internal/config"
	"wharf/internal/docker"
	"wharf/internal/runner"
)

// Install verifies the host tool dependencies. Only mac hosts are
// supported; linux setups vary too much to check mechanically.
func (c *Controller) Install(ctx context.Context, args []string) error {
	if c.cfg.Host != config.HostMac {
		return fmt.Errorf("install is only supported on mac hosts; install docker and docker compose with your distribution's package manager")
	}

	checks := []struct {
		argv []string
		hint string
	}{
		{[]string{"brew", "--version"}, "install Homebrew from https://brew.sh"},
		{[]string{"docker", "--version"}, "brew install --cask docker"},
		{[]string{"docker", "compose", "version"}, "update Docker Desktop or brew install docker-compose"},
	}

	for _, check := range checks {
		res, err := c.runner.Try(ctx, runner.Cmd{Name: check.argv[0], Args: check.argv[1:]})
		if err != nil || res.ExitCode != 0 {
			return fmt.Errorf("required tool %q not found: %s", check.argv[0], check.hint)
		}
	}

	fmt.Println("All required host tools are installed.")
	return nil
}

// SetupDNS configures wildcard DNS resolution for the project domain
// so every *.<domain> name resolves to the local host. Mac hosts get
// the dnsmasq helper container plus a resolver entry; linux hosts
// delegate to NetworkManager's own dnsmasq via a config snippet.
func (c *Controller) SetupDNS(ctx context.Context, args []string) error {
	switch c.cfg.Host {
	case config.HostMac:
		if err := c.ensureDNSContainer(ctx); err != nil {
			return err
		}
		return c.setupResolverMac(ctx)
	default:
		return c.setupResolverLinux(ctx)
	}
}

// ensureDNSContainer converges the dnsmasq helper to running, with the
// same discipline as the other singletons.
func (c *Controller) ensureDNSContainer(ctx context.Context) error {
	name := c.cfg.DNS.Name

	running, err := c.docker.ContainerRunning(ctx, name)
	if err != nil {
		return err
	}
	if running {
		return nil
	}

	exists, err := c.docker.ContainerExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return c.docker.StartContainer(ctx, name)
	}

	log.Info("creating dnsmasq helper", "container", name, "image", c.cfg.DNS.Image)
	return c.docker.CreateAndStart(ctx, docker.ContainerSpec{
		Name:          name,
		Image:         c.cfg.DNS.Image,
		Ports:         map[int]int{53: 53},
		PortsUDP:      map[int]int{53: 53},
		Cmd:           []string{"--address=/" + c.cfg.Domain + "/127.0.0.1"},
		RestartPolicy: "always",
	})
}

func (c *Controller) setupResolverMac(ctx context.Context) error {
	if _, err := c.runner.Run(ctx, runner.Cmd{
		Name: "sudo",
		Args: []string{"mkdir", "-p", "/etc/resolver"},
	}); err != nil {
		return err
	}

	resolver := fmt.Sprintf("/etc/resolver/%s", c.cfg.Domain)
	if _, err := c.runner.Run(ctx, runner.Cmd{
		Name: "sudo",
		Args: []string{"sh", "-c",
			fmt.Sprintf("echo 'nameserver 127.0.0.1' > %s", resolver)},
	}); err != nil {
		return err
	}

	fmt.Printf("Wildcard DNS for *.%s configured via %s\n", c.cfg.Domain, resolver)
	return nil
}

func (c *Controller) setupResolverLinux(ctx context.Context) error {
	snippet := fmt.Sprintf("/etc/NetworkManager/dnsmasq.d/wharf-%s.conf", c.cfg.Domain)
	if _, err := c.runner.Run(ctx, runner.Cmd{
		Name: "sudo",
		Args: []string{"sh", "-c",
			fmt.Sprintf("echo 'server=/%s/127.0.0.1' > %s", c.cfg.Domain, snippet)},
	}); err != nil {
		return err
	}

	// NetworkManager picks the snippet up on reload; not fatal if it
	// is not managing DNS here.
	_, _ = c.runner.Try(ctx, runner.Cmd{
		Name: "sudo",
		Args: []string{"systemctl", "reload", "NetworkManager"},
	})

	fmt.Printf("Wildcard DNS for *.%s configured via %s\n", c.cfg.Domain, snippet)
	return nil
}
