package sink

import (
	"os"

	"github.com/mattn/go-isatty"
)

// checkIsTerminal reports whether f is a terminal, including Cygwin ptys.
func checkIsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
