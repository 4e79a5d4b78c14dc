package main

import (
	"os"

	"golang.org/x/term"
)

// WantTUI reports whether play should take over the screen: both stdin and
// stdout are terminals, -no-tui was not given and ROULETTE_NO_TUI is unset.
func WantTUI(noTUIFlag bool) bool {
	if noTUIFlag || os.Getenv("ROULETTE_NO_TUI") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}
