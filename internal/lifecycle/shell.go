package lifecycle

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"wharf/internal/runner"
)

// ExitError carries the exit code of an attached session so the
// orchestrator process can pass it through.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("session exited with code %d", e.Code)
}

// Shell attaches an interactive session to the web container, starting
// the environment first when it is not running. The in-container user
// mirrors the host user and is provisioned on first connect only.
func (c *Controller) Shell(ctx context.Context, args []string) error {
	web := c.cfg.WebContainer()

	running, err := c.docker.ContainerRunning(ctx, web)
	if err != nil {
		return err
	}
	if !running {
		if err := c.Start(ctx, nil); err != nil {
			return err
		}
	}

	if err := c.ensureShellUser(ctx, web); err != nil {
		return err
	}

	command := args
	if len(command) == 0 {
		command = []string{"bash"}
	}

	execArgs := []string{"exec", "-it", "-u", c.cfg.User}
	if cols, lines, ok := c.terminalSize(ctx); ok {
		execArgs = append(execArgs,
			"-e", "COLUMNS="+cols,
			"-e", "LINES="+lines,
		)
	}
	execArgs = append(execArgs, "-e", "SSH_AUTH_SOCK="+c.cfg.SSHAgent.ContainerSock)
	execArgs = append(execArgs, web)
	execArgs = append(execArgs, command...)

	res, err := c.runner.Try(ctx, runner.Cmd{
		Name:        "docker",
		Args:        execArgs,
		Interactive: true,
	})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return &ExitError{Code: res.ExitCode}
	}

	return nil
}

// ensureShellUser creates the host-matching user inside the container
// when it does not exist yet: same name and uid, the host git identity
// copied over, and passwordless sudo. An existing user is left alone
// so repeated connects keep in-container state.
func (c *Controller) ensureShellUser(ctx context.Context, web string) error {
	probe, err := c.runner.Try(ctx, runner.Cmd{
		Name: "docker",
		Args: []string{"exec", web, "id", "-u", c.cfg.User},
	})
	if err != nil {
		return err
	}
	if probe.ExitCode == 0 {
		return nil
	}

	log.Info("provisioning shell user", "user", c.cfg.User, "container", web)

	if _, err := c.runner.Run(ctx, runner.Cmd{
		Name: "docker",
		Args: []string{"exec", web, "useradd", "--create-home",
			"--uid", c.cfg.UID, "--shell", "/bin/bash", c.cfg.User},
	}); err != nil {
		return err
	}

	if _, err := os.Stat(c.cfg.GitConfig); err == nil {
		_, _ = c.runner.Try(ctx, runner.Cmd{
			Name: "docker",
			Args: []string{"cp", c.cfg.GitConfig,
				fmt.Sprintf("%s:/home/%s/.gitconfig", web, c.cfg.User)},
		})
	}

	sudoers := fmt.Sprintf("%s ALL=(ALL) NOPASSWD:ALL", c.cfg.User)
	if _, err := c.runner.Run(ctx, runner.Cmd{
		Name: "docker",
		Args: []string{"exec", web, "sh", "-c",
			fmt.Sprintf("echo '%s' > /etc/sudoers.d/%s", sudoers, c.cfg.User)},
	}); err != nil {
		return err
	}

	return nil
}

// terminalSize reads the host terminal dimensions via stty. Reported
// as "rows cols"; returns ok=false when there is no terminal.
func (c *Controller) terminalSize(ctx context.Context) (cols, lines string, ok bool) {
	res, err := c.runner.Try(ctx, runner.Cmd{Name: "stty", Args: []string{"size"}})
	if err != nil || res.ExitCode != 0 {
		return "", "", false
	}

	fields := strings.Fields(res.Output())
	if len(fields) != 2 {
		return "", "", false
	}

	return fields[1], fields[0], true
}
