package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wharf/internal/compose"
	"wharf/internal/config"
	"wharf/internal/docker"
	"wharf/internal/docker/dockertest"
	"wharf/internal/runner"
)

// scriptedRunner records every command and answers through an optional
// script function.
type scriptedRunner struct {
	cmds   []runner.Cmd
	script func(cmd runner.Cmd) runner.Result
}

func (r *scriptedRunner) result(cmd runner.Cmd) runner.Result {
	if r.script != nil {
		return r.script(cmd)
	}
	return runner.Result{}
}

func (r *scriptedRunner) Run(ctx context.Context, cmd runner.Cmd) (runner.Result, error) {
	r.cmds = append(r.cmds, cmd)
	res := r.result(cmd)
	if res.ExitCode != 0 {
		return res, fmt.Errorf("%s exited with code %d", cmd.Name, res.ExitCode)
	}
	return res, nil
}

func (r *scriptedRunner) Try(ctx context.Context, cmd runner.Cmd) (runner.Result, error) {
	r.cmds = append(r.cmds, cmd)
	return r.result(cmd), nil
}

func (r *scriptedRunner) commandLines() []string {
	var out []string
	for _, cmd := range r.cmds {
		out = append(out, cmd.String())
	}
	return out
}

func (r *scriptedRunner) hasCommand(substr string) bool {
	for _, line := range r.commandLines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Project: "demo",
		Dir:     t.TempDir(),
		Domain:  "docker.test",
		Host:    config.HostLinux,
		User:    "dev",
		UID:     "1000",
		Proxy: config.ProxyConfig{
			Name:     "wharf-proxy",
			Image:    "nginxproxy/nginx-proxy:alpine",
			HTTPPort: 80,
		},
		SSHAgent: config.SSHAgentConfig{
			Name:          "wharf-ssh-agent",
			Image:         "nardeas/ssh-agent:latest",
			ContainerSock: "/.ssh-agent/socket",
		},
		DNS: config.DNSConfig{
			Name:  "wharf-dnsmasq",
			Image: "andyshinn/dnsmasq:2.78",
		},
		Compose: config.ComposeConfig{
			File:       "docker-compose.yml",
			WebService: "web",
			WebPort:    80,
		},
	}
}

func newTestController(t *testing.T, fake *dockertest.Fake, run *scriptedRunner) *Controller {
	t.Helper()
	return New(testConfig(t), docker.NewWithAPI(fake), run, &compose.Tool{Argv: []string{"docker", "compose"}})
}

func TestStartFreshHost(t *testing.T) {
	fake := dockertest.NewFake()
	run := &scriptedRunner{}
	ctrl := newTestController(t, fake, run)

	require.NoError(t, ctrl.Start(context.Background(), nil))

	assert.Equal(t, 1, fake.ContainerCreateCalls, "proxy created")
	assert.True(t, fake.ContainersByName["wharf-proxy"].Running)
	assert.Contains(t, fake.NetworkMembers, "demo_default")
	assert.True(t, fake.NetworkMembers["demo_default"]["wharf-proxy"], "proxy attached to project network")
	assert.True(t, run.hasCommand("compose -p demo -f docker-compose.yml up -d"))
}

func TestStartIsIdempotent(t *testing.T) {
	fake := dockertest.NewFake()
	run := &scriptedRunner{}
	ctrl := newTestController(t, fake, run)
	ctx := context.Background()

	require.NoError(t, ctrl.Start(ctx, nil))
	require.NoError(t, ctrl.Start(ctx, nil))

	assert.Equal(t, 1, fake.ContainerCreateCalls, "second start performs zero creation calls")
	assert.Equal(t, 1, fake.NetworkCreateCalls)
	assert.Equal(t, 1, fake.ConnectCalls)
}

func TestStartSkipsAgentOnLinux(t *testing.T) {
	fake := dockertest.NewFake()
	run := &scriptedRunner{}
	ctrl := newTestController(t, fake, run)

	require.NoError(t, ctrl.Start(context.Background(), nil))

	_, exists := fake.ContainersByName["wharf-ssh-agent"]
	assert.False(t, exists)
}

func TestStartEnsuresAgentOnMac(t *testing.T) {
	fake := dockertest.NewFake()
	run := &scriptedRunner{}
	cfg := testConfig(t)
	cfg.Host = config.HostMac
	ctrl := New(cfg, docker.NewWithAPI(fake), run, &compose.Tool{Argv: []string{"docker", "compose"}})

	require.NoError(t, ctrl.Start(context.Background(), nil))

	require.Contains(t, fake.ContainersByName, "wharf-ssh-agent")
	assert.True(t, fake.ContainersByName["wharf-ssh-agent"].Running)
}

func TestStartReconfiguresDebugger(t *testing.T) {
	fake := dockertest.NewFake()
	run := &scriptedRunner{script: func(cmd runner.Cmd) runner.Result {
		if len(cmd.Args) > 2 && cmd.Args[2] == "php" {
			return runner.Result{Stdout: "8.1.12\n"}
		}
		return runner.Result{}
	}}
	ctrl := newTestController(t, fake, run)
	ctrl.hostAddr = func() (string, error) { return "10.0.0.5", nil }

	require.NoError(t, ctrl.Start(context.Background(), nil))

	assert.True(t, run.hasCommand("exec demo-web-1 php -r"), "PHP version probed in the web container")
	assert.True(t, run.hasCommand("sed -i s/^xdebug.remote_host=.*/xdebug.remote_host=10.0.0.5/ /etc/php/8.1/apache2/conf.d/20-xdebug.ini"),
		"debugger points at the host, in the ini path of the probed PHP minor")
	assert.True(t, run.hasCommand("service apache2 reload"))
}

func TestStartToleratesContainerWithoutPHP(t *testing.T) {
	fake := dockertest.NewFake()
	run := &scriptedRunner{script: func(cmd runner.Cmd) runner.Result {
		if len(cmd.Args) > 2 && cmd.Args[2] == "php" {
			return runner.Result{ExitCode: 127}
		}
		return runner.Result{}
	}}
	ctrl := newTestController(t, fake, run)
	ctrl.hostAddr = func() (string, error) { return "10.0.0.5", nil }

	require.NoError(t, ctrl.Start(context.Background(), nil), "a project without PHP still starts")
	assert.False(t, run.hasCommand("sed -i"))
	assert.False(t, run.hasCommand("apache2 reload"))
}

func TestStopOnlyTouchesProjectContainers(t *testing.T) {
	fake := dockertest.NewFake()
	fake.AddNetwork("demo_default", "wharf-proxy")
	run := &scriptedRunner{}
	ctrl := newTestController(t, fake, run)

	require.NoError(t, ctrl.Stop(context.Background(), nil))

	require.Len(t, run.cmds, 1)
	assert.Equal(t, []string{"compose", "-p", "demo", "-f", "docker-compose.yml", "stop"}, run.cmds[0].Args)
	assert.Contains(t, fake.NetworkMembers, "demo_default", "stop leaves the network in place")
}

func TestPurgeRemovesNetworkAndVolumesButNotSingletons(t *testing.T) {
	fake := dockertest.NewFake()
	fake.AddContainer(&dockertest.FakeContainer{Name: "wharf-proxy", Running: true})
	fake.AddContainer(&dockertest.FakeContainer{Name: "wharf-ssh-agent", Running: true})
	fake.AddNetwork("demo_default", "wharf-proxy")
	run := &scriptedRunner{}
	ctrl := newTestController(t, fake, run)

	require.NoError(t, ctrl.Purge(context.Background(), nil))

	_, exists := fake.NetworkMembers["demo_default"]
	assert.False(t, exists, "project network removed")
	assert.Contains(t, fake.ContainersByName, "wharf-proxy", "purge never touches the shared proxy")
	assert.Contains(t, fake.ContainersByName, "wharf-ssh-agent", "purge never touches the shared agent")
	assert.True(t, run.hasCommand("down --volumes --remove-orphans"))
}

func TestPurgeProceedsWhenNothingExists(t *testing.T) {
	fake := dockertest.NewFake()
	run := &scriptedRunner{script: func(cmd runner.Cmd) runner.Result {
		return runner.Result{ExitCode: 1}
	}}
	ctrl := newTestController(t, fake, run)

	require.NoError(t, ctrl.Purge(context.Background(), nil), "teardown is best-effort")
}

func TestStatusWithoutContainers(t *testing.T) {
	fake := dockertest.NewFake()
	fake.AddContainer(&dockertest.FakeContainer{Name: "site2-web-1", Running: true})
	ctrl := newTestController(t, fake, &scriptedRunner{})

	// Foreign project containers must not count as ours.
	require.NoError(t, ctrl.Status(context.Background(), nil))
}

func TestStatusListsProjectContainers(t *testing.T) {
	fake := dockertest.NewFake()
	fake.AddContainer(&dockertest.FakeContainer{Name: "demo-web-1", Running: true})
	fake.AddContainer(&dockertest.FakeContainer{Name: "demo-db-1", Running: false})
	ctrl := newTestController(t, fake, &scriptedRunner{})

	require.NoError(t, ctrl.Status(context.Background(), nil))
}

func TestLogsRequiresRunningWebContainer(t *testing.T) {
	fake := dockertest.NewFake()
	run := &scriptedRunner{}
	ctrl := newTestController(t, fake, run)

	require.NoError(t, ctrl.Logs(context.Background(), nil))
	assert.Empty(t, run.cmds, "no log streaming when the web container is down")
}

func TestLogsFollowsFromLastLine(t *testing.T) {
	fake := dockertest.NewFake()
	fake.AddContainer(&dockertest.FakeContainer{Name: "demo-web-1", Running: true})
	run := &scriptedRunner{}
	ctrl := newTestController(t, fake, run)

	require.NoError(t, ctrl.Logs(context.Background(), nil))

	require.Len(t, run.cmds, 1)
	assert.Contains(t, run.cmds[0].Args, "--tail")
	assert.Contains(t, run.cmds[0].Args, "--follow")
	assert.True(t, run.cmds[0].Interactive)
}

func TestShellAttachesWithExistingUser(t *testing.T) {
	fake := dockertest.NewFake()
	fake.AddContainer(&dockertest.FakeContainer{Name: "demo-web-1", Running: true})
	run := &scriptedRunner{}
	ctrl := newTestController(t, fake, run)

	require.NoError(t, ctrl.Shell(context.Background(), nil))

	lines := run.commandLines()
	require.NotEmpty(t, lines)
	attach := lines[len(lines)-1]
	assert.Contains(t, attach, "exec -it")
	assert.Contains(t, attach, "-u dev")
	assert.Contains(t, attach, "demo-web-1 bash")
	assert.False(t, run.hasCommand("useradd"), "existing user is not re-provisioned")
}

func TestShellProvisionsUserOnFirstConnect(t *testing.T) {
	fake := dockertest.NewFake()
	fake.AddContainer(&dockertest.FakeContainer{Name: "demo-web-1", Running: true})
	run := &scriptedRunner{script: func(cmd runner.Cmd) runner.Result {
		// The user probe fails once; everything else succeeds.
		if len(cmd.Args) > 2 && cmd.Args[2] == "id" {
			return runner.Result{ExitCode: 1}
		}
		return runner.Result{}
	}}
	ctrl := newTestController(t, fake, run)

	require.NoError(t, ctrl.Shell(context.Background(), nil))

	assert.True(t, run.hasCommand("useradd --create-home --uid 1000"))
	assert.True(t, run.hasCommand("sudoers.d"))
}

func TestShellForwardsCommandArguments(t *testing.T) {
	fake := dockertest.NewFake()
	fake.AddContainer(&dockertest.FakeContainer{Name: "demo-web-1", Running: true})
	run := &scriptedRunner{}
	ctrl := newTestController(t, fake, run)

	require.NoError(t, ctrl.Shell(context.Background(), []string{"ls", "-la"}))

	lines := run.commandLines()
	assert.Contains(t, lines[len(lines)-1], "demo-web-1 ls -la")
}

func TestShellPassesThroughExitCode(t *testing.T) {
	fake := dockertest.NewFake()
	fake.AddContainer(&dockertest.FakeContainer{Name: "demo-web-1", Running: true})
	run := &scriptedRunner{script: func(cmd runner.Cmd) runner.Result {
		if cmd.Interactive {
			return runner.Result{ExitCode: 42}
		}
		return runner.Result{}
	}}
	ctrl := newTestController(t, fake, run)

	err := ctrl.Shell(context.Background(), nil)
	var exit *ExitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 42, exit.Code)
}

func TestShellStartsEnvironmentWhenDown(t *testing.T) {
	fake := dockertest.NewFake()
	run := &scriptedRunner{}
	ctrl := newTestController(t, fake, run)

	require.NoError(t, ctrl.Shell(context.Background(), nil))

	assert.True(t, run.hasCommand("up -d"), "shell triggers start when the web container is down")
	assert.True(t, fake.ContainersByName["wharf-proxy"].Running)
}

func TestPullFetchesProjectAndSingletonImages(t *testing.T) {
	fake := dockertest.NewFake()
	run := &scriptedRunner{}
	cfg := testConfig(t)
	composeYAML := "services:\n  web:\n    image: example/web:latest\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Dir, cfg.Compose.File), []byte(composeYAML), 0o644))
	ctrl := New(cfg, docker.NewWithAPI(fake), run, &compose.Tool{Argv: []string{"docker", "compose"}})

	require.NoError(t, ctrl.Pull(context.Background(), nil))

	assert.True(t, run.hasCommand("pull"))
	assert.Contains(t, fake.PulledImages, "nginxproxy/nginx-proxy:alpine")
	assert.Contains(t, fake.PulledImages, "nardeas/ssh-agent:latest")
	assert.Contains(t, fake.PulledImages, "andyshinn/dnsmasq:2.78")
}

func TestInstallRejectsLinuxHosts(t *testing.T) {
	ctrl := newTestController(t, dockertest.NewFake(), &scriptedRunner{})

	err := ctrl.Install(context.Background(), nil)
	require.Error(t, err)
}

func TestInstallChecksHostTools(t *testing.T) {
	fake := dockertest.NewFake()
	run := &scriptedRunner{}
	cfg := testConfig(t)
	cfg.Host = config.HostMac
	ctrl := New(cfg, docker.NewWithAPI(fake), run, &compose.Tool{Argv: []string{"docker", "compose"}})

	require.NoError(t, ctrl.Install(context.Background(), nil))
	assert.True(t, run.hasCommand("brew --version"))
}

func TestInstallReportsMissingTool(t *testing.T) {
	fake := dockertest.NewFake()
	run := &scriptedRunner{script: func(cmd runner.Cmd) runner.Result {
		if cmd.Name == "brew" {
			return runner.Result{ExitCode: 127}
		}
		return runner.Result{}
	}}
	cfg := testConfig(t)
	cfg.Host = config.HostMac
	ctrl := New(cfg, docker.NewWithAPI(fake), run, &compose.Tool{Argv: []string{"docker", "compose"}})

	err := ctrl.Install(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brew")
}

func TestSetupDNSMacCreatesHelperOnce(t *testing.T) {
	fake := dockertest.NewFake()
	run := &scriptedRunner{}
	cfg := testConfig(t)
	cfg.Host = config.HostMac
	ctrl := New(cfg, docker.NewWithAPI(fake), run, &compose.Tool{Argv: []string{"docker", "compose"}})
	ctx := context.Background()

	require.NoError(t, ctrl.SetupDNS(ctx, nil))
	require.NoError(t, ctrl.SetupDNS(ctx, nil))

	assert.Equal(t, 1, fake.ContainerCreateCalls)
	assert.True(t, fake.ContainersByName["wharf-dnsmasq"].Running)
	assert.True(t, run.hasCommand("/etc/resolver/docker.test"))
}

func TestSetupDNSLinuxWritesSnippetOnly(t *testing.T) {
	fake := dockertest.NewFake()
	run := &scriptedRunner{}
	ctrl := newTestController(t, fake, run)

	require.NoError(t, ctrl.SetupDNS(context.Background(), nil))

	assert.Equal(t, 0, fake.ContainerCreateCalls, "name resolution is NetworkManager's dnsmasq, not the helper container")
	assert.True(t, run.hasCommand("NetworkManager"))
}
