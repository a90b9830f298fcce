package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Banner is printed by the run command on startup
const Banner = `
  ╔═══════════════════════════════════════════╗
  ║   igrelay :: instagram → telegram relay   ║
  ╚═══════════════════════════════════════════╝
`

const (
	ansiCyan    = "\033[36m%s\033[0m"
	ansiYellow  = "\033[33m%s\033[0m"
	ansiRed     = "\033[31m%s\033[0m"
	ansiGreen   = "\033[32m%s\033[0m"
	ansiMagenta = "\033[35m%s\033[0m"
	ansiDim     = "\033[2m%s\033[0m"
)

// Console writes colored status lines for the CLI and reads prompts.
// Colors are dropped when the output is not a terminal.
type Console struct {
	out    io.Writer
	in     *bufio.Reader
	inFd   int
	color  bool
	quiet  bool
	isTerm bool
}

// NewConsole returns a Console on stdin/stdout
func NewConsole() *Console {
	c := NewConsoleWith(os.Stdin, os.Stdout)
	c.inFd = int(os.Stdin.Fd())
	c.isTerm = term.IsTerminal(c.inFd)
	c.color = term.IsTerminal(int(os.Stdout.Fd()))
	return c
}

// NewConsoleWith returns a colorless Console over the given streams
func NewConsoleWith(in io.Reader, out io.Writer) *Console {
	return &Console{out: out, in: bufio.NewReader(in), inFd: -1}
}

// SetColor toggles ANSI colors
func (c *Console) SetColor(on bool) { c.color = on }

// SetQuiet suppresses everything except errors
func (c *Console) SetQuiet(on bool) { c.quiet = on }

// Out returns the underlying writer
func (c *Console) Out() io.Writer { return c.out }

func (c *Console) paint(format, text string) string {
	if !c.color {
		return text
	}
	return fmt.Sprintf(format, text)
}

// Banner prints the startup banner
func (c *Console) Banner() {
	if c.quiet {
		return
	}
	fmt.Fprint(c.out, c.paint(ansiCyan, Banner))
}

// Println prints a plain line
func (c *Console) Println(args ...interface{}) {
	if c.quiet {
		return
	}
	fmt.Fprintln(c.out, args...)
}

// Printf prints plain formatted text
func (c *Console) Printf(format string, args ...interface{}) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.out, format, args...)
}

// Error prints an error line in red, with an optional cause
func (c *Console) Error(msg string, cause ...interface{}) {
	if len(cause) > 0 && fmt.Sprint(cause[0]) != "" {
		msg = msg + ": " + fmt.Sprint(cause[0])
	}
	fmt.Fprintln(c.out, c.paint(ansiRed, msg))
}

// Success prints a line in green
func (c *Console) Success(msg string) {
	if c.quiet {
		return
	}
	fmt.Fprintln(c.out, c.paint(ansiGreen, msg))
}

// Info prints a label/value pair
func (c *Console) Info(label, value string) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.out, "%s: %s\n", c.paint(ansiCyan, label), c.paint(ansiYellow, value))
}

// Warning prints a line in yellow
func (c *Console) Warning(msg string) {
	if c.quiet {
		return
	}
	fmt.Fprintln(c.out, c.paint(ansiYellow, msg))
}

// Highlight prints a line in magenta
func (c *Console) Highlight(msg string) {
	if c.quiet {
		return
	}
	fmt.Fprintln(c.out, c.paint(ansiMagenta, msg))
}

// Dim prints a de-emphasized line
func (c *Console) Dim(msg string) {
	if c.quiet {
		return
	}
	fmt.Fprintln(c.out, c.paint(ansiDim, msg))
}

// Prompt prints label and reads one trimmed line
func (c *Console) Prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	line, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question; def is returned on an empty answer
func (c *Console) Confirm(question string, def bool) bool {
	hint := " (y/N): "
	if def {
		hint = " (Y/n): "
	}
	answer, err := c.Prompt(question + hint)
	if err != nil || answer == "" {
		return def
	}
	return strings.HasPrefix(strings.ToLower(answer), "y")
}

// Secret reads a value without echo when stdin is a terminal
func (c *Console) Secret(label string) (string, error) {
	if !c.isTerm {
		return c.Prompt(label)
	}
	fmt.Fprint(c.out, label)
	b, err := term.ReadPassword(c.inFd)
	fmt.Fprintln(c.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
