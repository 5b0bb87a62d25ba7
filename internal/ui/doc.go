// Package ui provides the terminal styling for sshscre: colors, status
// symbols, the menu header, tables, the info panel, the spinner and the
// interactive picker, all built on Lip Gloss and Bubble Tea.
//
// # Color Scheme
//
//	ColorSuccess   (neon green) - Successful operations, panel values
//	ColorError     (red-pink)   - Failures and remote stderr
//	ColorWarning   (amber)      - Warnings and skipped items
//	ColorInfo      (cyan)       - Panel labels
//	ColorMuted     (gray)       - Notes, timing info
//
// Use DisableColors() to switch to monochrome output (for --no-color).
//
// # Spinner Usage
//
//	s := ui.NewSpinner("Connecting to web", os.Stdout)
//	s.Start()
//	// ... dial ...
//	s.Success() // or s.Fail()
package ui
