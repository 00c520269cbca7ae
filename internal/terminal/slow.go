package terminal

import (
	"bufio"
	"io"
	"strings"
	"time"
)

// SlowSend writes text line by line, each terminated by CRLF, pausing
// delay after every line so a banner scrolls in like a real login.
func SlowSend(w io.Writer, text string, delay time.Duration) error {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 4096), len(text)+1)
	for sc.Scan() {
		if _, err := io.WriteString(w, strings.TrimSuffix(sc.Text(), "\r")+"\r\n"); err != nil {
			return err
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	return sc.Err()
}

// ToCRLF rewrites bare LF line endings as CRLF for a raw-mode terminal.
func ToCRLF(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "\r\n")
}
