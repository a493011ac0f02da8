package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/restrict/internal/config"
)

var (
	version = "dev"

	cfgFile string
	v       = viper.New()

	// set by a run that got as far as waiting for the child
	status exitStatus
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "restrict [flags] [--] <command...>",
	Short: "Run a command under a memory ceiling and a CPU weight",
	Long: `restrict runs a shell command inside a fresh cgroup v2 scope. The scope gets
its limits before the command starts, the command joins it before any of its
own code runs, and the scope is removed once the command is gone.

The remaining arguments are joined with spaces and handed to the shell with -c.
The exit status is the command's own; a command killed by a signal kills
restrict with the same signal. Errors of restrict itself exit 125.

Example:
  restrict -m 512M -- make -j8
  restrict -m 2Gi -c 50 --group batch/nightly ./backup.sh
  restrict -d -s /bin/bash 'for i in 1 2 3; do echo $i; done'`,
	Version:       version,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return config.ReadFile(v, cfgFile)
	},
	RunE: runRestricted,
}

func init() {
	flags := rootCmd.Flags()
	// everything after the command belongs to the command
	flags.SetInterspersed(false)
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/restrict/config.yaml)")
	config.AddFlags(flags)

	if err := config.Bind(v, flags); err != nil {
		panic(err)
	}
}

// Execute runs the root command and returns the process exit code. When the
// child was killed by a signal it raises that signal instead of returning.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		return exitFailure
	}
	return status.surface()
}
