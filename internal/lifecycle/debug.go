package lifecycle

import (
	"context"
	"fmt"
	"net"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"wharf/internal/runner"
)

// reconfigureDebugger points the in-container debugger back at the
// host and reloads the web server. The debugger config lives in a
// path that embeds the PHP minor version, so that is probed first.
// Every step is tolerant: a debugger that stays misconfigured does not
// block the environment.
func (c *Controller) reconfigureDebugger(ctx context.Context) {
	web := c.cfg.WebContainer()

	ip, err := c.hostAddr()
	if err != nil {
		log.Debug("debugger reconfiguration skipped", "err", err)
		return
	}

	res, err := c.runner.Try(ctx, runner.Cmd{
		Name: "docker",
		Args: []string{"exec", web, "php", "-r", "echo PHP_VERSION;"},
	})
	if err != nil || res.ExitCode != 0 {
		log.Debug("debugger reconfiguration skipped: cannot probe PHP version")
		return
	}

	ver, err := semver.NewVersion(res.Output())
	if err != nil {
		log.Debug("debugger reconfiguration skipped", "version", res.Output(), "err", err)
		return
	}

	iniPath := fmt.Sprintf("/etc/php/%d.%d/apache2/conf.d/20-xdebug.ini", ver.Major(), ver.Minor())
	sed := fmt.Sprintf("s/^xdebug.remote_host=.*/xdebug.remote_host=%s/", ip)
	if _, err := c.runner.Try(ctx, runner.Cmd{
		Name: "docker",
		Args: []string{"exec", web, "sed", "-i", sed, iniPath},
	}); err != nil {
		log.Debug("debugger reconfiguration failed", "err", err)
		return
	}

	// Graceful reload; a failure leaves the old config active.
	if _, err := c.runner.Try(ctx, runner.Cmd{
		Name: "docker",
		Args: []string{"exec", web, "service", "apache2", "reload"},
	}); err != nil {
		log.Debug("web server reload failed", "err", err)
	}
}

// hostIP returns the host's first non-loopback IPv4 address, the
// address the in-container debugger connects back to.
func hostIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("failed to list host addresses: %w", err)
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}

	return "", fmt.Errorf("no non-loopback IPv4 address on host")
}
