package sink

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ConsoleConfig contains configuration for a Console sink.
type ConsoleConfig struct {
	Writer      io.Writer
	NoColor     bool
	ForceColors bool
}

// Console writes report blocks to a terminal, highlighting headings and
// failures when the writer is a color-capable TTY.
type Console struct {
	mu     sync.Mutex
	writer io.Writer

	heading *color.Color
	errors  *color.Color
	cause   *color.Color
}

// NewConsole creates a console sink. The writer defaults to os.Stdout.
func NewConsole(config ConsoleConfig) *Console {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	useColors := config.ForceColors || (!config.NoColor && isTerminal(config.Writer))

	c := &Console{
		writer:  config.Writer,
		heading: color.New(color.FgCyan, color.Bold),
		errors:  color.New(color.FgRed, color.Bold),
		cause:   color.New(color.FgYellow),
	}
	if useColors {
		c.heading.EnableColor()
		c.errors.EnableColor()
		c.cause.EnableColor()
	} else {
		c.heading.DisableColor()
		c.errors.DisableColor()
		c.cause.DisableColor()
	}
	return c
}

// Report writes text line by line, then the cause if present.
func (c *Console) Report(text string, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "ERRORS "):
			c.errors.Fprintln(c.writer, line)
		case strings.HasSuffix(line, ":") && !strings.HasPrefix(line, " "):
			c.heading.Fprintln(c.writer, line)
		case strings.HasPrefix(line, "REQUESTS:"):
			c.heading.Fprintln(c.writer, line)
		default:
			io.WriteString(c.writer, line+"\n")
		}
	}

	if cause != nil {
		c.cause.Fprintf(c.writer, "  >> %v\n", cause)
	}
}

// isTerminal checks if the writer is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if f != os.Stdout && f != os.Stderr {
		return false
	}
	return checkIsTerminal(f)
}
