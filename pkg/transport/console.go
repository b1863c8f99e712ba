package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/hyp3rd/logship"
)

const (
	ansiCyan   = "\x1b[36m"
	ansiYellow = "\x1b[33m"
	ansiFaint  = "\x1b[2m"
	ansiReset  = "\x1b[0m"
)

// ConsoleConfig configures the console transport.
type ConsoleConfig struct {
	// Output is where batches are printed. Defaults to os.Stdout.
	Output io.Writer
	// ForceColors enables ANSI colors even when Output is not a terminal.
	ForceColors bool
	// NoColors disables ANSI colors unconditionally.
	NoColors bool
}

// Console is a development transport that pretty-prints record batches
// instead of shipping them. Every record is accepted, so the pipeline behaves
// as if the backend always succeeds. Streaming is not supported.
type Console struct {
	mu       sync.Mutex
	output   io.Writer
	colorize bool
}

// NewConsole creates a console transport. Colors are enabled when the output
// is a terminal, unless overridden by the config.
func NewConsole(config ConsoleConfig) *Console {
	output := config.Output
	if output == nil {
		output = os.Stdout
	}

	colorize := config.ForceColors
	if !colorize && !config.NoColors {
		if file, ok := output.(*os.File); ok {
			colorize = isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
		}
	}

	if config.NoColors {
		colorize = false
	}

	return &Console{output: output, colorize: colorize}
}

// Send prints the batch and accepts every record.
func (c *Console) Send(_ context.Context, batch []logship.Record) (*logship.SendResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, record := range batch {
		fmt.Fprintln(c.output, c.format(record))
	}

	return &logship.SendResult{Accepted: len(batch)}, nil
}

// OpenStream is not supported on the console transport.
func (c *Console) OpenStream(context.Context, logship.TailRequest) (logship.StreamHandle, error) {
	return nil, logship.Permanent(ErrStreamingUnsupported)
}

func (c *Console) format(record logship.Record) string {
	timestamp := record.Timestamp.Format(time.RFC3339)

	group := record.GroupKey
	if group == "" {
		group = "-"
	}

	line := fmt.Sprintf("%s %s %s", timestamp, group, record.Body)
	if c.colorize {
		line = fmt.Sprintf("%s%s%s %s%s%s %s", ansiFaint, timestamp, ansiReset, ansiCyan, group, ansiReset, record.Body)
	}

	for _, field := range record.Fields {
		if c.colorize {
			line += fmt.Sprintf(" %s%s%s=%v", ansiYellow, field.Key, ansiReset, field.Value)
		} else {
			line += fmt.Sprintf(" %s=%v", field.Key, field.Value)
		}
	}

	return line
}

var (
	_ logship.Transport       = (*Console)(nil)
	_ logship.StreamTransport = (*Console)(nil)
)
