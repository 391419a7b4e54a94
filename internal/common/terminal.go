package common

import (
	"io"
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether r is attached to an interactive terminal.
func IsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
