// Package terminal turns the raw keystroke stream of an SSH channel
// into command lines, the way a minimal cooked-mode tty would.
package terminal

import (
	"errors"
	"io"
	"unicode/utf8"
)

const (
	keyBackspace = 0x08
	keyDelete    = 0x7f
	keyEscape    = 0x1b
)

// escapeLen is how many bytes after ESC are swallowed.  It covers the
// CSI arrow keys (ESC [ A..D), which is all a shell prompt sees in
// practice.
const escapeLen = 2

// LineEditor reads one line at a time from raw keystrokes, echoing
// what was typed when echo is on.  It keeps no history between lines.
// A LineEditor is not safe for concurrent use.
type LineEditor struct {
	r    io.Reader
	w    io.Writer
	echo bool

	one [1]byte
}

// NewLineEditor returns an editor reading keystrokes from r and echoing
// to w.
func NewLineEditor(r io.Reader, w io.Writer, echo bool) *LineEditor {
	return &LineEditor{r: r, w: w, echo: echo}
}

// ReadLine blocks until CR or LF and returns the line without its
// terminator.  An empty line is ("", nil).  If the stream ends or fails
// before a terminator arrives the partial line is discarded and the
// read error is returned; a clean end of stream is io.EOF.
func (e *LineEditor) ReadLine() (string, error) {
	var (
		line    []rune
		pending []byte // bytes of an incomplete UTF-8 sequence
	)
	for {
		b, err := e.readByte()
		if err != nil {
			return "", err
		}

		switch {
		case b == '\r' || b == '\n':
			e.write("\r\n")
			return string(line), nil

		case b == keyBackspace || b == keyDelete:
			pending = pending[:0]
			if len(line) > 0 {
				line = line[:len(line)-1]
				e.write("\b \b")
			}

		case b == keyEscape:
			pending = pending[:0]
			for i := 0; i < escapeLen; i++ {
				if _, err := e.readByte(); err != nil {
					return "", err
				}
			}

		default:
			pending = append(pending, b)
			for len(pending) > 0 && utf8.FullRune(pending) {
				r, size := utf8.DecodeRune(pending)
				if r == utf8.RuneError && size == 1 {
					pending = pending[1:] // malformed, dropped
					continue
				}
				line = append(line, r)
				e.write(string(pending[:size]))
				pending = pending[size:]
			}
		}
	}
}

func (e *LineEditor) readByte() (byte, error) {
	n, err := e.r.Read(e.one[:])
	if n == 1 {
		return e.one[0], nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return 0, io.EOF
	}
	return 0, err
}

// write echoes s.  Echo failures are ignored; a dead peer shows up as
// a read error on the next keystroke.
func (e *LineEditor) write(s string) {
	if !e.echo || e.w == nil {
		return
	}
	io.WriteString(e.w, s) //nolint:errcheck
}
