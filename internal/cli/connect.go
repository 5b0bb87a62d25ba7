package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sshscre/sshscre/internal/errors"
	"github.com/sshscre/sshscre/internal/registry"
	"github.com/sshscre/sshscre/internal/session"
	"github.com/sshscre/sshscre/internal/ui"
)

var connectCmd = &cobra.Command{
	Use:   "connect [server]",
	Short: "Open a console on a saved server",
	Long: `Connect to a saved server and open the interactive console.

The server can be given by name, id, user@host, or its number in
'sshscre server list'. Without an argument a picker is shown.

Examples:
  sshscre connect web
  sshscre connect 2
  sshscre connect deploy@10.0.0.5`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			srv, err := a.pickServer(firstArg(args), "Connect to")
			if err != nil || srv == nil {
				return err
			}
			return a.connect(*srv, "")
		})
	},
	ValidArgsFunction: completeServers,
}

var restoreCmd = &cobra.Command{
	Use:   "restore [session]",
	Short: "Reconnect in a saved session's directory",
	Long: `Reconnect to the server of a saved session and start the console in the
directory the session was saved in. If that directory is gone, the console
starts in the home directory.

Examples:
  sshscre restore deploy-logs
  sshscre restore 1`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.restore(firstArg(args))
		})
	},
	ValidArgsFunction: completeSessions,
}

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(restoreCmd)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// connect runs one console session and saves the snapshot the user asked for.
func (a *app) connect(srv registry.Server, startDir string) error {
	req, err := session.Connect(srv, startDir, a.sessionDeps())
	if err != nil {
		if errors.IsCode(err, errors.ErrExec) {
			// The console already reported the lost connection.
			a.log.Warn("session with %s ended: %v", srv.Name, err)
			return nil
		}
		return err
	}
	if req == nil {
		return nil
	}

	snap := snapshotFor(req)
	if err := a.store.SaveSnapshot(snap); err != nil {
		return err
	}
	a.println(ui.Success(fmt.Sprintf("Saved session '%s' (%s:%s)", snap.Name, req.Server.Name, snap.Cwd)))
	return nil
}

// snapshotFor turns the engine's save request into a registry record.
func snapshotFor(req *session.SnapshotRequest) registry.Snapshot {
	return registry.Snapshot{
		Name:     req.Name,
		ServerID: req.Server.ID,
		Host:     req.Server.Host,
		User:     req.Server.User,
		Cwd:      req.Dir,
	}
}

// restore reconnects to a snapshot's server in the snapshot's directory.
func (a *app) restore(ref string) error {
	snap, err := a.pickSnapshot(ref, "Restore session")
	if err != nil || snap == nil {
		return err
	}
	srv, err := a.store.ServerForSnapshot(*snap)
	if err != nil {
		return err
	}
	a.println(ui.Note(fmt.Sprintf("Restoring '%s' on %s in %s", snap.Name, srv.Name, snap.Cwd)))
	return a.connect(*srv, snap.Cwd)
}

// pickServer resolves ref, or shows a picker when ref is empty.
// A nil server with a nil error means the user cancelled.
func (a *app) pickServer(ref, title string) (*registry.Server, error) {
	if ref != "" {
		return a.store.Server(ref)
	}
	servers, err := a.store.Servers()
	if err != nil {
		return nil, err
	}
	item, err := ui.PickWithIO(title, serverItems(servers), a.out, a.in)
	if err != nil || item == nil {
		return nil, err
	}
	return a.store.Server(item.Key)
}

// pickSnapshot resolves ref, or shows a picker when ref is empty.
func (a *app) pickSnapshot(ref, title string) (*registry.Snapshot, error) {
	if ref != "" {
		return a.store.Snapshot(ref)
	}
	snaps, err := a.store.Snapshots()
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, errors.New(errors.ErrConfig,
			"No sessions saved",
			"Answer 'y' to 'Save this session?' when you leave a console")
	}
	item, err := ui.PickWithIO(title, snapshotItems(snaps), a.out, a.in)
	if err != nil || item == nil {
		return nil, err
	}
	return a.store.Snapshot(item.Key)
}

func serverItems(servers []registry.Server) []ui.PickItem {
	items := make([]ui.PickItem, len(servers))
	for i, s := range servers {
		detail := []string{s.Login()}
		if s.Port != 0 && s.Port != registry.DefaultPort {
			detail[0] += ":" + strconv.Itoa(s.Port)
		}
		if s.OS != "" {
			detail = append(detail, s.OS)
		}
		if !s.SetupDone {
			detail = append(detail, "not set up")
		}
		items[i] = ui.PickItem{
			Key:    s.ID,
			Name:   s.Name,
			Detail: strings.Join(detail, " · "),
			Tags:   []string{s.Host, s.User, s.OS},
		}
	}
	return items
}

func snapshotItems(snaps []registry.Snapshot) []ui.PickItem {
	items := make([]ui.PickItem, len(snaps))
	for i, s := range snaps {
		items[i] = ui.PickItem{
			Key:    s.Name,
			Name:   s.Name,
			Detail: fmt.Sprintf("%s@%s:%s · %s", s.User, s.Host, s.Cwd, s.SavedAt.Format("2006-01-02 15:04")),
			Tags:   []string{s.Host, s.User},
		}
	}
	return items
}

// completeServers offers saved server names for shell completion.
func completeServers(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	_ = withApp(func(a *app) error {
		servers, err := a.store.Servers()
		for _, s := range servers {
			names = append(names, s.Name)
		}
		return err
	})
	return names, cobra.ShellCompDirectiveNoFileComp
}

// completeSessions offers saved session names for shell completion.
func completeSessions(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	_ = withApp(func(a *app) error {
		snaps, err := a.store.Snapshots()
		for _, s := range snaps {
			names = append(names, s.Name)
		}
		return err
	})
	return names, cobra.ShellCompDirectiveNoFileComp
}
