// Package printer writes human-facing CLI output: colored status lines, message lines
// for interactive listeners, and boxed fatal errors.
package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hay-kot/criterio"
)

// ANSI color codes (Tokyo Night palette)
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[38;2;215;95;107m"  // #d75f6b
	ColorGreen  = "\033[38;2;158;206;106m" // #9ece6a
	ColorYellow = "\033[38;2;224;175;104m" // #e0af68
	ColorBlue   = "\033[38;2;122;162;247m" // #7aa2f7
	ColorGray   = "\033[38;2;86;95;137m"   // #565f89
	ColorBold   = "\033[1m"
)

// Symbols
const (
	Check = "✔"
	Cross = "✘"
	Dot   = "•"
	Arrow = "→"
)

type ctxKey struct{}

// Printer handles formatted output with colors and styles
type Printer struct {
	writer io.Writer
}

// New creates a new Printer that writes to the given writer
func New(w io.Writer) *Printer {
	return &Printer{writer: w}
}

// NewContext returns a context with the printer attached
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx retrieves the printer from context, or creates a default one
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stderr)
}

// FatalError prints a formatted error box and does NOT exit.
// Caller should handle exit code.
func (p *Printer) FatalError(err error) {
	if err == nil {
		return
	}

	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		p.printValidationErrors(err, fieldErrs)
		return
	}

	p.box("Error", []string{p.colorize(ColorGray, err.Error())})
}

// printValidationErrors renders each field error on its own line, preceded by the
// context the error was wrapped in (e.g. "load config: invalid config").
func (p *Printer) printValidationErrors(wrappedErr error, fieldErrs criterio.FieldErrors) {
	var lines []string

	errStr, fieldErrStr := wrappedErr.Error(), fieldErrs.Error()
	if idx := strings.Index(errStr, fieldErrStr); idx > 0 {
		lines = append(lines, p.colorize(ColorGray, strings.TrimSuffix(errStr[:idx], ": ")), "")
	}

	for _, fe := range fieldErrs {
		line := p.colorize(ColorRed, Cross) + " "
		if fe.Field != "" {
			line += p.colorize(ColorGray, fe.Field+": ")
		}
		lines = append(lines, line+fe.Err.Error())
	}

	p.box("Validation Error", lines)
}

func (p *Printer) box(title string, lines []string) {
	var b strings.Builder
	b.WriteString(p.colorize(ColorRed, "╭ "+title) + "\n")
	for _, line := range lines {
		b.WriteString(p.colorize(ColorRed, "│"))
		if line != "" {
			b.WriteString(" " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString(p.colorize(ColorRed, "╵") + "\n")
	_, _ = io.WriteString(p.writer, b.String())
}

// Errorf prints an error message in red
func (p *Printer) Errorf(format string, args ...any) {
	p.line(ColorRed, Cross, fmt.Sprintf(format, args...))
}

// Successf prints a success message in green
func (p *Printer) Successf(format string, args ...any) {
	p.line(ColorGreen, Check, fmt.Sprintf(format, args...))
}

// Infof prints an info message in gray
func (p *Printer) Infof(format string, args ...any) {
	p.line(ColorGray, Dot, fmt.Sprintf(format, args...))
}

// Warnf prints a warning message in yellow
func (p *Printer) Warnf(format string, args ...any) {
	p.line(ColorYellow, Dot, fmt.Sprintf(format, args...))
}

// Printf prints a plain message without colors
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.writer, format+"\n", args...)
}

// MessageLine prints one received message: time, kind, type, optional sender and the
// payload body.
func (p *Printer) MessageLine(at time.Time, kind, messageType, sender, body string) {
	head := p.colorize(ColorGray, at.Format("15:04:05")) + " " +
		p.colorize(ColorBlue, fmt.Sprintf("%-8s", kind)) + " " +
		ColorBold + messageType + ColorReset
	if sender != "" {
		head += " " + p.colorize(ColorGray, "from "+sender)
	}
	_, _ = fmt.Fprintf(p.writer, "%s %s %s\n", head, p.colorize(ColorGray, Arrow), body)
}

// Section prints a bold section title.
func (p *Printer) Section(title string) {
	_, _ = fmt.Fprintln(p.writer, ColorBold+title+ColorReset)
}

// Item prints an indented check line. Status is one of "pass", "warn", "fail" or
// "fixed".
func (p *Printer) Item(status, label, detail string) {
	color, symbol := ColorGreen, Check
	switch status {
	case "warn":
		color, symbol = ColorYellow, Dot
	case "fail":
		color, symbol = ColorRed, Cross
	}

	line := "  " + p.colorize(color, symbol) + " " + label
	if detail != "" {
		line += " " + p.colorize(ColorGray, detail)
	}
	_, _ = fmt.Fprintln(p.writer, line)
}

func (p *Printer) line(color, symbol, msg string) {
	_, _ = io.WriteString(p.writer, p.colorize(color, symbol+" "+msg)+"\n")
}

// colorize applies ANSI color codes to text
func (p *Printer) colorize(color, text string) string {
	return color + text + ColorReset
}
