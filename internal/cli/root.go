package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sshscre/sshscre/internal/errors"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	debug      bool
	noColor    bool
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "sshscre",
	Short: "Interactive SSH console for your servers",
	Long: `sshscre keeps a list of servers, opens a console on any of them with a
working directory that survives between commands, and copies files and
directory trees in either direction over SFTP.

Run it without arguments for the interactive menu.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.runMenu()
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default ~/.config/sshscre/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "record every printed and typed line to the debug log")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if isUnknownCommandError(err) {
			err = unknownCommandError(err)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// isUnknownCommandError reports whether cobra rejected the command line itself.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag")
}

// extractUnknownCommand pulls the command name out of cobra's
// `unknown command "foo" for "sshscre"` message.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}

func unknownCommandError(err error) error {
	name := extractUnknownCommand(err)
	if name == "" || !strings.HasPrefix(err.Error(), "unknown command") {
		return errors.WrapWithCode(err, errors.ErrUsage,
			"Couldn't parse the command line",
			"Run 'sshscre --help' to see the flags")
	}
	return errors.New(errors.ErrUsage,
		fmt.Sprintf("Unknown command '%s'", name),
		"Run 'sshscre --help' to see the commands")
}
