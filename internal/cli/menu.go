package cli

import (
	stderrors "errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/sshscre/sshscre/internal/errors"
	"github.com/sshscre/sshscre/internal/registry"
	"github.com/sshscre/sshscre/internal/ui"
)

// menuAction is one entry of the main menu.
type menuAction string

const (
	actionConnect menuAction = "connect"
	actionRestore menuAction = "restore"
	actionAdd     menuAction = "add"
	actionList    menuAction = "list"
	actionRemove  menuAction = "remove"
	actionQuit    menuAction = "quit"
)

// menuOptions lists the entries that make sense for the current registry:
// connecting and removing need a server, restoring needs a saved session.
func menuOptions(servers, sessions int) []huh.Option[menuAction] {
	var opts []huh.Option[menuAction]
	if servers > 0 {
		opts = append(opts, huh.NewOption(fmt.Sprintf("Connect to a server (%d saved)", servers), actionConnect))
	}
	if sessions > 0 {
		opts = append(opts, huh.NewOption(fmt.Sprintf("Restore a session (%d saved)", sessions), actionRestore))
	}
	opts = append(opts, huh.NewOption("Add a server", actionAdd))
	if servers > 0 {
		opts = append(opts,
			huh.NewOption("List servers", actionList),
			huh.NewOption("Remove a server", actionRemove),
		)
	}
	return append(opts, huh.NewOption("Quit", actionQuit))
}

// runMenu shows the main menu until the user quits. Errors from an action
// are printed and the menu comes back.
func (a *app) runMenu() error {
	ui.PrintHeader(a.out, ui.HeaderInfo{
		Version: formatVersion(version),
		Tagline: "SSH console for your servers",
		Detail:  a.store.Dir(),
	})

	for {
		servers, err := a.store.Servers()
		if err != nil {
			return err
		}
		snaps, err := a.store.Snapshots()
		if err != nil {
			return err
		}

		var choice menuAction
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[menuAction]().
					Title("What do you want to do?").
					Options(menuOptions(len(servers), len(snaps))...).
					Value(&choice),
			),
		)
		if err := form.Run(); err != nil {
			if stderrors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't show the menu",
				"Use the subcommands instead, see 'sshscre --help'")
		}

		a.sink.Record("MENU", string(choice))
		if choice == actionQuit {
			return nil
		}
		if err := a.runAction(choice); err != nil {
			a.showError(err)
		}
		fmt.Fprintln(a.out)
	}
}

func (a *app) runAction(choice menuAction) error {
	switch choice {
	case actionConnect:
		srv, err := a.pickServer("", "Connect to")
		if err != nil || srv == nil {
			return err
		}
		return a.connect(*srv, "")
	case actionRestore:
		return a.restore("")
	case actionAdd:
		return a.serverAdd(ServerAddOptions{Auth: string(registry.AuthPassword), Port: registry.DefaultPort})
	case actionList:
		return a.serverList()
	case actionRemove:
		return a.serverRemove("", false)
	}
	return nil
}
