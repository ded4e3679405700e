package services

import (
	"context"
	"fmt"
	"net"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/crypto/ssh/agent"

	"wharf/internal/config"
	"wharf/internal/docker"
	"wharf/internal/runner"
)

// SSHAgent manages the shared ssh-agent proxy singleton. On hosts
// where the real agent socket cannot be bind-mounted into containers
// (Docker Desktop on mac), project containers talk to this container's
// agent instead.
type SSHAgent struct {
	cfg    *config.Config
	docker *docker.Client
	runner runner.Runner

	// listKeys enumerates the host agent's key files. Swapped out in
	// tests.
	listKeys func() ([]string, error)
}

// NewSSHAgent creates an ssh-agent manager.
func NewSSHAgent(cfg *config.Config, dc *docker.Client, r runner.Runner) *SSHAgent {
	a := &SSHAgent{cfg: cfg, docker: dc, runner: r}
	a.listKeys = a.hostAgentKeys
	return a
}

// Ensure converges the agent container to running. Key seeding happens
// only on first creation: a restarted container keeps the keys already
// loaded into its agent.
func (s *SSHAgent) Ensure(ctx context.Context) error {
	name := s.cfg.SSHAgent.Name

	running, err := s.docker.ContainerRunning(ctx, name)
	if err != nil {
		return err
	}
	if !running {
		exists, err := s.docker.ContainerExists(ctx, name)
		if err != nil {
			return err
		}

		if exists {
			log.Debug("starting stopped ssh-agent proxy", "container", name)
			if err := s.docker.StartContainer(ctx, name); err != nil {
				return err
			}
		} else {
			log.Info("creating ssh-agent proxy", "container", name, "image", s.cfg.SSHAgent.Image)
			if err := s.docker.CreateAndStart(ctx, s.spec()); err != nil {
				return err
			}
			s.seedKeys(ctx)
		}
	}

	running, err = s.docker.ContainerRunning(ctx, name)
	if err != nil {
		return err
	}
	if !running {
		return fmt.Errorf("ssh-agent proxy %s did not reach running state", name)
	}

	return nil
}

func (s *SSHAgent) spec() docker.ContainerSpec {
	return docker.ContainerSpec{
		Name:          s.cfg.SSHAgent.Name,
		Image:         s.cfg.SSHAgent.Image,
		RestartPolicy: "always",
	}
}

// seedKeys loads every key currently held by the host's ssh-agent into
// the container's agent. A key that cannot be added (passphrase
// prompt, missing file) is skipped; the remaining keys still load.
func (s *SSHAgent) seedKeys(ctx context.Context) {
	keys, err := s.listKeys()
	if err != nil {
		log.Warn("cannot enumerate host ssh-agent keys", "err", err)
		return
	}

	for _, keyFile := range keys {
		helper := fmt.Sprintf("wharf-agent-seed-%s", uuid.NewString()[:8])
		res, err := s.runner.Try(ctx, runner.Cmd{
			Name: "docker",
			Args: []string{
				"run", "--rm",
				"--name", helper,
				"--volumes-from", s.cfg.SSHAgent.Name,
				"-v", s.cfg.SSHAgent.HostKeyDir + ":/keys:ro",
				s.cfg.SSHAgent.Image,
				"ssh-add", filepath.Join("/keys", keyFile),
			},
		})
		if err != nil || res.ExitCode != 0 {
			log.Warn("failed to seed ssh key", "key", keyFile, "err", err)
			continue
		}
		log.Debug("seeded ssh key", "key", keyFile)
	}
}

// hostAgentKeys lists the file names of the keys loaded in the host
// agent, taken from each key's comment (ssh-add records the file path
// there).
func (s *SSHAgent) hostAgentKeys() ([]string, error) {
	sock := s.cfg.SSHAgent.HostSock
	if sock == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK is not set")
	}

	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to host ssh-agent: %w", err)
	}
	defer conn.Close()

	listed, err := agent.NewClient(conn).List()
	if err != nil {
		return nil, fmt.Errorf("failed to list host ssh-agent keys: %w", err)
	}

	var keys []string
	for _, key := range listed {
		if key.Comment == "" {
			continue
		}
		keys = append(keys, filepath.Base(key.Comment))
	}

	return keys, nil
}
