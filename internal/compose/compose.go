// Package compose drives the project's docker compose services and
// reads the project compose file.
//
// The compose file itself is scaffolding owned by the project, not by
// the orchestrator; it is only parsed here to discover service names
// and images. All mutations go through the compose CLI.
package compose

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"wharf/internal/config"
	"wharf/internal/runner"
)

// Service is the subset of a compose service definition the
// orchestrator cares about.
type Service struct {
	Image string `yaml:"image"`
}

// File is a parsed compose file.
type File struct {
	Services map[string]Service `yaml:"services"`
}

// ParseFile reads a compose file from disk.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read compose file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse compose file %s: %w", path, err)
	}

	return &f, nil
}

// Images returns the distinct images referenced by the file, sorted.
func (f *File) Images() []string {
	seen := make(map[string]struct{})
	for _, svc := range f.Services {
		if svc.Image != "" {
			seen[svc.Image] = struct{}{}
		}
	}

	images := make([]string, 0, len(seen))
	for img := range seen {
		images = append(images, img)
	}
	sort.Strings(images)

	return images
}

// Project runs compose commands for one project directory.
type Project struct {
	cfg    *config.Config
	runner runner.Runner
	tool   *Tool
}

// NewProject creates a compose driver for the configured project.
func NewProject(cfg *config.Config, r runner.Runner, tool *Tool) *Project {
	return &Project{cfg: cfg, runner: r, tool: tool}
}

func (p *Project) cmd(interactive bool, args ...string) runner.Cmd {
	argv := append([]string{}, p.tool.Argv[1:]...)
	argv = append(argv, "-p", p.cfg.Project, "-f", p.cfg.Compose.File)
	argv = append(argv, args...)

	return runner.Cmd{
		Name: p.tool.Argv[0],
		Args: argv,
		Dir:  p.cfg.Dir,
		Env: []string{
			"VIRTUAL_HOST=" + p.cfg.SiteHost(),
			"SSH_AUTH_SOCK=" + p.cfg.SSHAgent.ContainerSock,
		},
		Interactive: interactive,
	}
}

// Up brings the project services up detached. Provisioning step:
// failure aborts the invocation.
func (p *Project) Up(ctx context.Context) error {
	_, err := p.runner.Run(ctx, p.cmd(false, "up", "-d"))
	return err
}

// Stop halts the project services, leaving containers, volumes and
// networks in place for a fast restart.
func (p *Project) Stop(ctx context.Context) error {
	_, err := p.runner.Run(ctx, p.cmd(false, "stop"))
	return err
}

// Down removes project containers and volumes. Teardown is tolerant:
// whatever can be reclaimed is reclaimed.
func (p *Project) Down(ctx context.Context) {
	_, _ = p.runner.Try(ctx, p.cmd(false, "down", "--volumes", "--remove-orphans"))
}

// Pull pre-fetches the images of all project services.
func (p *Project) Pull(ctx context.Context) error {
	_, err := p.runner.Run(ctx, p.cmd(false, "pull"))
	return err
}

// Logs follows a service's log, starting from the most recent line.
// Blocks until interrupted.
func (p *Project) Logs(ctx context.Context, service string) error {
	_, err := p.runner.Run(ctx, p.cmd(true, "logs", "--tail", "1", "--follow", service))
	return err
}
