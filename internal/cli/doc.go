// Package cli implements the sshscre command-line interface.
//
// Every command builds an app from the global flags: the config is loaded
// (with .env and SSHSCRE_* overrides), the registry is opened in the data
// directory, and --debug attaches a file sink that records every printed and
// typed line. Commands then delegate to the session, registry and transfer
// packages.
//
// # Command Structure
//
//	sshscre                       - interactive main menu
//	sshscre connect [name]        - open a console on a saved server
//	sshscre restore [session]     - reconnect in a saved session's directory
//	sshscre server add|list|remove|import
//	sshscre session list|remove
//	sshscre push <server> <local> <remote>
//	sshscre pull <server> <remote> <local>
//	sshscre version | completion <shell>
//
// When a server or session argument is omitted on a terminal, a picker is
// shown instead.
package cli
