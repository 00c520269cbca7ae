package session

import "sync"

// Exchange is one command and the output that was shown for it.
type Exchange struct {
	Command  string
	Response string
}

// History is the append-only list of exchanges of one session.  It is
// what lets the completion backend keep its story consistent.
type History struct {
	mu      sync.Mutex
	entries []Exchange
}

// Append adds an exchange at the end.
func (h *History) Append(command, response string) {
	h.mu.Lock()
	h.entries = append(h.entries, Exchange{Command: command, Response: response})
	h.mu.Unlock()
}

// Entries returns a copy of the exchanges, oldest first.
func (h *History) Entries() []Exchange {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Exchange, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of exchanges.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
