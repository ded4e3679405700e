// Package config resolves all run-time parameters for the orchestrator.
//
// Configuration is assembled once per invocation from the working
// directory, host environment and defaults, and handed to every other
// component as an explicit struct. No other package reads ambient
// environment variables.
//
// Sources, later overriding earlier:
//  1. Default values (hardcoded)
//  2. .env file in the project directory
//  3. Environment variables (WHARF_ prefix; SSH_AUTH_SOCK verbatim)
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// HostOS classifies the host operating system. The classification is
// total: anything that is not darwin is treated as linux, so every
// invocation takes exactly one setup branch.
type HostOS string

const (
	HostMac   HostOS = "mac"
	HostLinux HostOS = "linux"
)

// Compose releases before 1.21.0 stripped hyphens and underscores from
// project names. Directory-derived identities have to match whatever
// the installed compose binary will use, so the same rule is applied
// when an older compose is detected.
var composeNamingThreshold = semver.MustParse("1.21.0")

var projectNameInvalid = regexp.MustCompile(`[^a-z0-9_-]`)

// ProxyConfig describes the shared reverse-proxy singleton.
type ProxyConfig struct {
	// Name is the fixed container name, identical for every project
	// on the host.
	Name string `mapstructure:"name" validate:"required"`

	// Image is the proxy container image.
	Image string `mapstructure:"image" validate:"required"`

	// HTTPPort is the host port published at creation time. The
	// effective port of an already-running proxy is discovered from
	// the runtime, not from this value.
	HTTPPort int `mapstructure:"http_port" validate:"min=1,max=65535"`
}

// SSHAgentConfig describes the shared ssh-agent proxy singleton.
type SSHAgentConfig struct {
	Name  string `mapstructure:"name" validate:"required"`
	Image string `mapstructure:"image" validate:"required"`

	// HostSock is the host-side agent socket (SSH_AUTH_SOCK).
	HostSock string `mapstructure:"host_sock"`

	// HostKeyDir is the host directory with key files, mounted
	// read-only into the agent container for seeding.
	HostKeyDir string `mapstructure:"host_key_dir"`

	// ContainerSock is the agent socket path as seen from project
	// containers.
	ContainerSock string `mapstructure:"container_sock" validate:"required"`
}

// DNSConfig describes the wildcard-DNS helper used by setup_dns.
type DNSConfig struct {
	Name  string `mapstructure:"name" validate:"required"`
	Image string `mapstructure:"image" validate:"required"`
}

// ComposeConfig describes the project compose collaborator.
type ComposeConfig struct {
	// File is the compose file name inside the project directory.
	File string `mapstructure:"file" validate:"required"`

	// WebService is the compose service that receives proxied HTTP
	// traffic and interactive sessions.
	WebService string `mapstructure:"web_service" validate:"required"`

	// WebPort is the in-container HTTP port of the web service.
	WebPort int `mapstructure:"web_port" validate:"min=1,max=65535"`
}

// Config carries every parameter the orchestrator derives per
// invocation. It is ephemeral; nothing here is persisted.
type Config struct {
	// Project is the normalized project identity, derived from the
	// working directory basename. Prefixes every project-scoped
	// resource name.
	Project string `validate:"required"`

	// Dir is the absolute project directory.
	Dir string `validate:"required"`

	// Domain is the DNS domain projects are reachable under
	// (http://<project>.<domain>).
	Domain string `mapstructure:"domain" validate:"required,hostname_rfc1123"`

	// Host is the detected host OS class.
	Host HostOS `validate:"required,oneof=mac linux"`

	// User and UID identify the host user; shell sessions mirror
	// this user inside the web container.
	User string `validate:"required"`
	UID  string `validate:"required"`

	// GitConfig is the host git identity file, copied into the web
	// container on first shell connect. May not exist.
	GitConfig string

	// ComposeVersion is the detected compose binary version, "" when
	// detection failed. Drives project-name normalization and the
	// container-name separator.
	ComposeVersion string

	Proxy    ProxyConfig    `mapstructure:"proxy"`
	SSHAgent SSHAgentConfig `mapstructure:"ssh_agent"`
	DNS      DNSConfig      `mapstructure:"dns"`
	Compose  ComposeConfig  `mapstructure:"compose"`
}

// Load resolves the configuration for the project in dir.
//
// composeVersion is the detected compose binary version ("" when
// detection failed); it influences project-name normalization and
// container naming.
func Load(dir, composeVersion string) (*Config, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(filepath.Join(abs, ".env"))
	v.SetConfigType("env")
	_ = v.MergeInConfig() // .env is optional

	v.SetEnvPrefix("WHARF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.Dir = abs
	cfg.Project = NormalizeProjectName(filepath.Base(abs), composeVersion)
	cfg.ComposeVersion = composeVersion
	cfg.Host = DetectHostOS()

	if cfg.SSHAgent.HostSock == "" {
		cfg.SSHAgent.HostSock = os.Getenv("SSH_AUTH_SOCK")
	}
	if cfg.SSHAgent.HostKeyDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.SSHAgent.HostKeyDir = filepath.Join(home, ".ssh")
		}
	}

	current, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve host user: %w", err)
	}
	cfg.User = current.Username
	cfg.UID = current.Uid
	cfg.GitConfig = filepath.Join(current.HomeDir, ".gitconfig")

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("domain", "docker.test")

	v.SetDefault("proxy.name", "wharf-proxy")
	v.SetDefault("proxy.image", "nginxproxy/nginx-proxy:alpine")
	v.SetDefault("proxy.http_port", 80)

	v.SetDefault("ssh_agent.name", "wharf-ssh-agent")
	v.SetDefault("ssh_agent.image", "nardeas/ssh-agent:latest")
	v.SetDefault("ssh_agent.container_sock", "/.ssh-agent/socket")
	// Registered empty so environment overrides decode.
	v.SetDefault("ssh_agent.host_sock", "")
	v.SetDefault("ssh_agent.host_key_dir", "")

	v.SetDefault("dns.name", "wharf-dnsmasq")
	v.SetDefault("dns.image", "andyshinn/dnsmasq:2.78")

	v.SetDefault("compose.file", "docker-compose.yml")
	v.SetDefault("compose.web_service", "web")
	v.SetDefault("compose.web_port", 80)
}

func validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// DetectHostOS classifies the running host. Darwin is mac, everything
// else is treated as linux so the result is never undefined.
func DetectHostOS() HostOS {
	if runtime.GOOS == "darwin" {
		return HostMac
	}
	return HostLinux
}

// NormalizeProjectName derives the project identity from a directory
// basename the same way the installed compose binary does: lowercase,
// restricted to [a-z0-9_-], and with hyphens/underscores removed when
// the compose version predates the 1.21.0 naming change.
func NormalizeProjectName(base, composeVersion string) string {
	name := strings.ToLower(base)
	name = projectNameInvalid.ReplaceAllString(name, "")

	if composeVersion != "" {
		if ver, err := semver.NewVersion(composeVersion); err == nil {
			if ver.LessThan(composeNamingThreshold) {
				name = strings.NewReplacer("-", "", "_", "").Replace(name)
			}
		}
	}

	return name
}

// ContainerSeparator returns the separator the installed compose
// binary uses in container names: the v1 standalone binary names
// containers <project>_<service>_1, v2 switched to hyphens. An
// unknown version is treated as current.
func (c *Config) ContainerSeparator() string {
	if c.ComposeVersion != "" {
		if ver, err := semver.NewVersion(c.ComposeVersion); err == nil {
			if ver.Major() < 2 {
				return "_"
			}
		}
	}
	return "-"
}

// WebContainer returns the name of the project's web container as
// created by compose.
func (c *Config) WebContainer() string {
	sep := c.ContainerSeparator()
	return fmt.Sprintf("%s%s%s%s1", c.Project, sep, c.Compose.WebService, sep)
}

// NetworkName returns the project network name.
func (c *Config) NetworkName() string {
	return c.Project + "_default"
}

// SiteHost returns the project's hostname under the configured domain.
func (c *Config) SiteHost() string {
	return fmt.Sprintf("%s.%s", c.Project, c.Domain)
}

// SiteURL renders the access URL for the project. The port suffix is
// omitted when the proxy publishes the default HTTP port.
func (c *Config) SiteURL(proxyPort int) string {
	if proxyPort == 0 {
		proxyPort = c.Proxy.HTTPPort
	}
	if proxyPort == 80 {
		return "http://" + c.SiteHost()
	}
	return fmt.Sprintf("http://%s:%d", c.SiteHost(), proxyPort)
}
