package compose

import (
	"context"

	"wharf/internal/runner"
)

// Tool identifies the compose binary available on the host.
type Tool struct {
	// Argv is the command prefix, either {"docker", "compose"} for
	// the plugin or {"docker-compose"} for the standalone binary.
	Argv []string

	// Version is the reported compose version, "" when detection
	// failed. Only used for the project-name normalization shim.
	Version string
}

// Detect probes which compose flavor is installed. The plugin is
// preferred; the standalone v1 binary is the fallback. When neither
// answers, the plugin invocation is still returned so later calls
// produce a useful error.
func Detect(ctx context.Context, r runner.Runner) *Tool {
	candidates := [][]string{
		{"docker", "compose"},
		{"docker-compose"},
	}

	for _, argv := range candidates {
		res, err := r.Try(ctx, runner.Cmd{
			Name: argv[0],
			Args: append(append([]string{}, argv[1:]...), "version", "--short"),
		})
		if err == nil && res.ExitCode == 0 {
			return &Tool{Argv: argv, Version: res.Output()}
		}
	}

	return &Tool{Argv: candidates[0]}
}
