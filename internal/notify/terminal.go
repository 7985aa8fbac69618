package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Console prints messages instead of posting them, for dry runs.
type Console struct {
	out          io.Writer
	colorEnabled bool
	mu           sync.Mutex
}

// NewConsole creates a console channel writing to out, or stdout when nil.
func NewConsole(out io.Writer, colorEnabled bool) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out, colorEnabled: colorEnabled}
}

// Name returns the name of the channel.
func (c *Console) Name() string { return "console" }

// IsEnabled always reports true.
func (c *Console) IsEnabled() bool { return true }

// Send writes a header line followed by the body.
func (c *Console) Send(_ context.Context, m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	title := m.Title
	if title == "" {
		title = "Daily Brief"
	}
	if m.Date != "" {
		title += " - " + m.Date
	}
	header := fmt.Sprintf("=== %s ===", title)
	if c.colorEnabled {
		header = color.New(color.FgCyan, color.Bold).Sprint(header)
	}

	body := m.Body
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	_, err := fmt.Fprintf(c.out, "%s\n%s", header, body)
	return err
}
