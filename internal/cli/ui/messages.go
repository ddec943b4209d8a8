package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a console message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
	LevelSuccess
)

// Message is a console notice with optional follow-up hints
type Message struct {
	Level   Level
	Title   string
	Detail  string
	Hints   []string
	NoColor bool
}

// Format renders the message.
//
//	✗ MIGRATION FAILED: 3_add_rfps
//	   relation "profiles" does not exist
//
//	   → Check the database url: citymind migrate status
func (m Message) Format() string {
	var b strings.Builder

	var attrs []color.Attribute
	var symbol string
	switch m.Level {
	case LevelWarning:
		attrs, symbol = []color.Attribute{color.FgYellow}, "!"
	case LevelInfo:
		attrs, symbol = []color.Attribute{color.FgCyan}, "i"
	case LevelSuccess:
		attrs, symbol = []color.Attribute{color.FgGreen}, "✓"
	default:
		attrs, symbol = []color.Attribute{color.FgRed}, "✗"
	}
	head := paint(m.NoColor, append(attrs, color.Bold)...)
	body := paint(m.NoColor, attrs...)

	head.Fprintf(&b, "%s %s\n", symbol, m.Title)
	if m.Detail != "" {
		body.Fprintf(&b, "   %s\n", m.Detail)
	}
	if len(m.Hints) > 0 {
		b.WriteString("\n")
		arrow := paint(m.NoColor, color.FgHiBlack)
		for _, h := range m.Hints {
			arrow.Fprint(&b, "   → ")
			b.WriteString(h)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Write prints the message to w
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.Format())
}

// Success prints a one-line confirmation
func Success(w io.Writer, noColor bool, format string, args ...interface{}) {
	Message{Level: LevelSuccess, Title: fmt.Sprintf(format, args...), NoColor: noColor}.Write(w)
}

// Warn prints a one-line warning
func Warn(w io.Writer, noColor bool, format string, args ...interface{}) {
	Message{Level: LevelWarning, Title: fmt.Sprintf(format, args...), NoColor: noColor}.Write(w)
}

// Fail prints err under title with hints
func Fail(w io.Writer, noColor bool, title string, err error, hints ...string) {
	m := Message{Level: LevelError, Title: strings.ToUpper(title), Hints: hints, NoColor: noColor}
	if err != nil {
		m.Detail = err.Error()
	}
	m.Write(w)
}
