package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sshscre/sshscre/internal/transfer"
	"github.com/sshscre/sshscre/internal/ui"
)

var transferQuiet bool

var pushCmd = &cobra.Command{
	Use:   "push <server> <local> <remote>",
	Short: "Upload a file or directory tree",
	Long: `Upload a local file or directory to the server over SFTP. Directories are
copied recursively; a failing item is reported and the rest still copy.
Relative remote paths start in the login directory.

Examples:
  sshscre push web ./dist /var/www/app
  sshscre push db backup.sql`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.runTransfer(args[0], transfer.Upload, args[1], args[2])
		})
	},
	ValidArgsFunction: completeServers,
}

var pullCmd = &cobra.Command{
	Use:   "pull <server> <remote> <local>",
	Short: "Download a file or directory tree",
	Long: `Download a remote file or directory from the server over SFTP. Nothing is
written locally when the remote path does not exist.

Examples:
  sshscre pull web /var/log/nginx ./logs
  sshscre pull db backups/latest.sql .`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.runTransfer(args[0], transfer.Download, args[1], args[2])
		})
	},
	ValidArgsFunction: completeServers,
}

func init() {
	pushCmd.Flags().BoolVarP(&transferQuiet, "quiet", "q", false, "only print failures and the summary")
	pullCmd.Flags().BoolVarP(&transferQuiet, "quiet", "q", false, "only print failures and the summary")
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
}

// runTransfer copies src to dst in an explicit direction. Item failures are
// listed as they happen and returned as one aggregate error.
func (a *app) runTransfer(ref string, dir transfer.Direction, src, dst string) error {
	srv, err := a.store.Server(ref)
	if err != nil {
		return err
	}

	conn, err := a.dialer()(*srv)
	if err != nil {
		return err
	}
	defer conn.Close()

	ft, err := conn.Transfer()
	if err != nil {
		return err
	}

	eng := transfer.New(ft,
		transfer.WithLogger(a.log),
		transfer.WithObserver(func(ev transfer.Event) { a.showTransferEvent(ev) }),
	)

	var r *transfer.Report
	if dir == transfer.Upload {
		r, err = eng.Upload(src, dst)
	} else {
		r, err = eng.Download(src, dst)
	}
	if err != nil {
		return err
	}
	if aggErr := r.Err(); aggErr != nil {
		a.println(ui.StyleMuted.Render(r.Summary()))
		return aggErr
	}

	a.println(ui.Success(fmt.Sprintf("%s complete: %s", r.Direction.Label(), r.Summary())))
	return nil
}

func (a *app) showTransferEvent(ev transfer.Event) {
	switch ev.Kind {
	case transfer.EventStart:
	case transfer.EventFail:
		a.println(ui.Fail(ev.String()))
	case transfer.EventSkip:
		a.println(ui.Warn(ev.String()))
	default:
		if !transferQuiet {
			a.println(ui.StyleMuted.Render("  " + ev.String()))
		}
	}
}
