package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sshscre/sshscre/internal/registry"
	"github.com/sshscre/sshscre/internal/ui"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage saved sessions",
}

var sessionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved sessions, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.sessionList()
		})
	},
}

var sessionRemoveCmd = &cobra.Command{
	Use:     "remove [session]",
	Aliases: []string{"rm"},
	Short:   "Remove a saved session",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.sessionRemove(firstArg(args))
		})
	},
	ValidArgsFunction: completeSessions,
}

func init() {
	sessionCmd.AddCommand(sessionListCmd, sessionRemoveCmd)
	rootCmd.AddCommand(sessionCmd)
}

func (a *app) sessionList() error {
	snaps, err := a.store.Snapshots()
	if err != nil {
		return err
	}
	a.println(ui.RenderSessionTable(sessionRows(snaps)))
	return nil
}

func sessionRows(snaps []registry.Snapshot) []ui.SessionRow {
	rows := make([]ui.SessionRow, len(snaps))
	for i, s := range snaps {
		rows[i] = ui.SessionRow{
			Name:    s.Name,
			Login:   s.User + "@" + s.Host,
			Dir:     s.Cwd,
			SavedAt: s.SavedAt.Local().Format("2006-01-02 15:04"),
		}
	}
	return rows
}

func (a *app) sessionRemove(ref string) error {
	snap, err := a.pickSnapshot(ref, "Remove session")
	if err != nil || snap == nil {
		return err
	}
	removed, err := a.store.RemoveSnapshot(snap.Name)
	if err != nil {
		return err
	}
	a.println(ui.Success(fmt.Sprintf("Removed session '%s'", removed.Name)))
	return nil
}
