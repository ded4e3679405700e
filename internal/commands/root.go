// Package commands wires the CLI surface to the lifecycle controller.
package commands

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"wharf/internal/compose"
	"wharf/internal/config"
	"wharf/internal/docker"
	"wharf/internal/lifecycle"
	"wharf/internal/runner"
	"wharf/internal/version"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "wharf [command] [args...]",
	Short: "Local container development environments behind a shared proxy",
	Long: `wharf brings up a project's web, database and mail containers, wires
them into a private network and makes the web container reachable as
http://<project>.<domain> through a shared reverse proxy.

Commands may be shortened to any unambiguous prefix ("sta" for start,
"p" for purge). Anything that is not a command opens a shell in the
project's web container, which is also what running wharf without
arguments does.

Commands:
  start      bring the environment up (idempotent)
  stop       halt the project containers
  purge      remove project containers, volumes and network
  status     show project container state
  logs       follow the web container log
  shell      open a shell in the web container (default)
  pull       pre-fetch all referenced images
  install    check required host tools (mac)
  setup_dns  configure wildcard DNS for the project domain`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dispatch(cmd, args)
	},
}

// Execute runs the CLI. The returned error is already user-facing.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	// Everything after the command token belongs to the handler
	// (shell forwards it verbatim), not to flag parsing.
	rootCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(versionCmd)
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "%s" .Version}}
`)
}

func dispatch(cmd *cobra.Command, args []string) error {
	if lvl, err := log.ParseLevel(logLevel); err == nil {
		log.SetLevel(lvl)
	}

	ctx := cmd.Context()
	run := runner.NewExecRunner()
	tool := compose.Detect(ctx, run)

	cfg, err := config.Load(".", tool.Version)
	if err != nil {
		return err
	}

	dc, err := docker.New(ctx)
	if err != nil {
		return err
	}

	ctrl := lifecycle.New(cfg, dc, run, tool)

	// Registration order is prefix-match precedence.
	d := lifecycle.NewDispatcher(ctrl.Shell)
	d.Register("status", ctrl.Status)
	d.Register("stop", ctrl.Stop)
	d.Register("start", ctrl.Start)
	d.Register("shell", ctrl.Shell)
	d.Register("setup_dns", ctrl.SetupDNS)
	d.Register("logs", ctrl.Logs)
	d.Register("purge", ctrl.Purge)
	d.Register("pull", ctrl.Pull)
	d.Register("install", ctrl.Install)
	d.Register("help", func(_ context.Context, _ []string) error {
		return cmd.Help()
	})

	token := ""
	rest := args
	if len(args) > 0 {
		token = args[0]
		rest = args[1:]
	}

	name, handler := d.Resolve(token)
	if name == "" && token != "" {
		// Unrecognized tokens open a shell with the full argument
		// list forwarded as the command to run.
		rest = args
	}

	return handler(ctx, rest)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Short())

		if cmd.Flag("verbose").Changed {
			fmt.Printf("\n%s\n", version.Detail())
		}
	},
}

func init() {
	versionCmd.Flags().BoolP("verbose", "v", false, "verbose version output")
}
