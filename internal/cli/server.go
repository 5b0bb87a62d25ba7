package cli

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/sshscre/sshscre/internal/errors"
	"github.com/sshscre/sshscre/internal/registry"
	"github.com/sshscre/sshscre/internal/ui"
	"github.com/sshscre/sshscre/pkg/sshutil"
)

// ServerAddOptions holds options for the server add command.
type ServerAddOptions struct {
	Name    string
	Host    string
	Port    int
	User    string
	Auth    string
	KeyPath string
	OS      string
}

// osChoices are the OS hints offered in the add form. Provisioning lists
// are looked up by this value.
var osChoices = []string{"ubuntu", "debian", "other"}

var (
	serverAddOpts    ServerAddOptions
	serverRemoveYes  bool
	serverImportFile string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage saved servers",
}

var serverAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Save a new server",
	Long: `Save a new server. Without --host an interactive form asks for every field.

Password servers keep their password in the OS keyring when it is enabled,
otherwise in servers.yaml. Leave the password empty to be asked on connect.

Examples:
  sshscre server add
  sshscre server add --name web --host 10.0.0.5 --user deploy --auth key --key ~/.ssh/id_ed25519`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.serverAdd(serverAddOpts)
		})
	},
}

var serverListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved servers",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.serverList()
		})
	},
}

var serverRemoveCmd = &cobra.Command{
	Use:     "remove [server]",
	Aliases: []string{"rm"},
	Short:   "Remove a saved server",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.serverRemove(firstArg(args), serverRemoveYes)
		})
	},
	ValidArgsFunction: completeServers,
}

var serverImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import hosts from ~/.ssh/config",
	Long: `Save every concrete Host entry of an ssh config file as a key-auth server.
Wildcard patterns and hosts whose name is already saved are skipped.

Examples:
  sshscre server import
  sshscre server import --file ./ssh_config`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.serverImport(serverImportFile)
		})
	},
}

func init() {
	f := serverAddCmd.Flags()
	f.StringVar(&serverAddOpts.Name, "name", "", "short name for the server")
	f.StringVar(&serverAddOpts.Host, "host", "", "host name, IP address, or ~/.ssh/config alias")
	f.IntVar(&serverAddOpts.Port, "port", registry.DefaultPort, "SSH port")
	f.StringVar(&serverAddOpts.User, "user", "", "login user")
	f.StringVar(&serverAddOpts.Auth, "auth", string(registry.AuthPassword), "auth method: password or key")
	f.StringVar(&serverAddOpts.KeyPath, "key", "", "private key for key auth")
	f.StringVar(&serverAddOpts.OS, "os", "", "OS hint for first-run setup (ubuntu, debian, other)")

	serverRemoveCmd.Flags().BoolVarP(&serverRemoveYes, "yes", "y", false, "don't ask for confirmation")
	serverImportCmd.Flags().StringVar(&serverImportFile, "file", "", "ssh config file (default ~/.ssh/config)")

	serverCmd.AddCommand(serverAddCmd, serverListCmd, serverRemoveCmd, serverImportCmd)
	rootCmd.AddCommand(serverCmd)
}

// serverAdd saves a server from flags, or from a form when no host was given.
func (a *app) serverAdd(opts ServerAddOptions) error {
	var password string
	if opts.Host == "" {
		var cancelled bool
		var err error
		opts, password, cancelled, err = serverForm(opts)
		if err != nil {
			return err
		}
		if cancelled {
			a.println("Cancelled.")
			return nil
		}
	}

	srv, err := a.store.AddServer(serverFromOptions(opts), password)
	if err != nil {
		return err
	}

	a.println(ui.Success(fmt.Sprintf("Added server '%s' (%s)", srv.Name, srv.Login())))
	if srv.Auth == registry.AuthPassword && password == "" {
		a.println(ui.Note("No password stored, you'll be asked when connecting"))
	}
	return nil
}

func serverFromOptions(opts ServerAddOptions) registry.Server {
	srv := registry.Server{
		Name: strings.TrimSpace(opts.Name),
		Host: strings.TrimSpace(opts.Host),
		Port: opts.Port,
		User: strings.TrimSpace(opts.User),
		Auth: registry.AuthMethod(opts.Auth),
		OS:   strings.TrimSpace(opts.OS),
	}
	if srv.Auth == registry.AuthKey {
		srv.KeyPath = strings.TrimSpace(opts.KeyPath)
	}
	if srv.OS == "other" {
		srv.OS = ""
	}
	if srv.Name == "" {
		srv.Name = srv.Host
	}
	return srv
}

// serverForm collects a server interactively.
func serverForm(opts ServerAddOptions) (ServerAddOptions, string, bool, error) {
	var password string
	port := strconv.Itoa(opts.Port)
	if opts.Port == 0 {
		port = strconv.Itoa(registry.DefaultPort)
	}
	if opts.OS == "" {
		opts.OS = osChoices[0]
	}
	confirm := true

	osOptions := make([]huh.Option[string], len(osChoices))
	for i, o := range osChoices {
		osOptions[i] = huh.NewOption(o, o)
	}

	required := func(field string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", field)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Description("A short name for this server").
				Placeholder("web").
				Value(&opts.Name).
				Validate(func(s string) error {
					if strings.ContainsAny(s, " \t\n") {
						return fmt.Errorf("name cannot contain whitespace")
					}
					return required("name")(s)
				}),
			huh.NewInput().
				Title("Host").
				Description("IP address, hostname, or ~/.ssh/config alias").
				Placeholder("203.0.113.10").
				Value(&opts.Host).
				Validate(required("host")),
			huh.NewInput().
				Title("Port").
				Value(&port).
				Validate(func(s string) error {
					p, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || p < 1 || p > 65535 {
						return fmt.Errorf("port must be a number from 1 to 65535")
					}
					return nil
				}),
			huh.NewInput().
				Title("User").
				Placeholder("root").
				Value(&opts.User).
				Validate(required("user")),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Operating system").
				Description("Picks the first-run setup commands").
				Options(osOptions...).
				Value(&opts.OS),
			huh.NewSelect[string]().
				Title("Authentication").
				Options(
					huh.NewOption("Password", string(registry.AuthPassword)),
					huh.NewOption("Private key", string(registry.AuthKey)),
				).
				Value(&opts.Auth),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Password").
				Description("Leave empty to be asked on every connect").
				EchoMode(huh.EchoModePassword).
				Value(&password),
		).WithHideFunc(func() bool { return opts.Auth != string(registry.AuthPassword) }),
		huh.NewGroup(
			huh.NewInput().
				Title("Private key").
				Description("Leave empty to use ssh-agent and the default keys").
				Placeholder("~/.ssh/id_ed25519").
				Value(&opts.KeyPath),
		).WithHideFunc(func() bool { return opts.Auth != string(registry.AuthKey) }),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this server?").
				Value(&confirm),
		),
	)

	if err := form.Run(); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return opts, "", true, nil
		}
		return opts, "", false, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Pass the fields as flags instead, see 'sshscre server add --help'")
	}
	if !confirm {
		return opts, "", true, nil
	}

	opts.Port, _ = strconv.Atoi(strings.TrimSpace(port))
	return opts, password, false, nil
}

func (a *app) serverList() error {
	servers, err := a.store.Servers()
	if err != nil {
		return err
	}
	a.println(ui.RenderServerTable(serverRows(servers)))
	return nil
}

func serverRows(servers []registry.Server) []ui.ServerRow {
	rows := make([]ui.ServerRow, len(servers))
	for i, s := range servers {
		host := s.Host
		if s.Port != 0 && s.Port != registry.DefaultPort {
			host += ":" + strconv.Itoa(s.Port)
		}
		rows[i] = ui.ServerRow{
			Name:       s.Name,
			Host:       host,
			User:       s.User,
			OS:         s.OS,
			Configured: s.SetupDone,
		}
	}
	return rows
}

// serverRemove deletes a server after confirmation.
func (a *app) serverRemove(ref string, yes bool) error {
	srv, err := a.pickServer(ref, "Remove server")
	if err != nil || srv == nil {
		return err
	}

	if !yes {
		confirm := false
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Remove server '%s'?", srv.Name)).
					Description(srv.Login() + " and its stored password. Saved sessions stay.").
					Value(&confirm),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't get your input",
				"Use --yes to skip the confirmation")
		}
		if !confirm {
			a.println("Cancelled.")
			return nil
		}
	}

	removed, err := a.store.RemoveServer(srv.ID)
	if err != nil {
		return err
	}
	a.println(ui.Success(fmt.Sprintf("Removed server '%s'", removed.Name)))
	return nil
}

// serverImport saves the hosts of an ssh config file.
func (a *app) serverImport(path string) error {
	var entries []sshutil.SSHHostEntry
	var err error
	if path == "" {
		entries, err = sshutil.ParseSSHConfig()
	} else {
		entries, err = sshutil.ParseSSHConfigFile(path)
	}
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't read the ssh config",
			"Check the file with 'ssh -G <host>'")
	}

	existing, err := a.store.Servers()
	if err != nil {
		return err
	}

	candidates := importCandidates(entries, existing)
	if len(candidates) == 0 {
		a.println(ui.Note("Nothing new to import"))
		return nil
	}

	added := 0
	for _, c := range candidates {
		srv, err := a.store.AddServer(c, "")
		if err != nil {
			a.showError(err)
			continue
		}
		added++
		a.println(ui.Success(fmt.Sprintf("Imported %s (%s)", srv.Name, srv.Login())))
	}
	a.println(fmt.Sprintf("%d of %d hosts imported", added, len(candidates)))
	return nil
}

// importCandidates converts ssh config entries into key-auth servers,
// skipping names that are already saved.
func importCandidates(entries []sshutil.SSHHostEntry, existing []registry.Server) []registry.Server {
	taken := make(map[string]bool, len(existing))
	for _, s := range existing {
		taken[s.Name] = true
	}

	var out []registry.Server
	for _, e := range entries {
		if taken[e.Alias] {
			continue
		}
		taken[e.Alias] = true
		out = append(out, registry.Server{
			Name:    e.Alias,
			Host:    e.Address(),
			Port:    e.PortNumber(),
			User:    e.User,
			Auth:    registry.AuthKey,
			KeyPath: e.IdentityFile,
		})
	}
	return out
}
