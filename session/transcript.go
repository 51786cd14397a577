package session

import (
	"sync"
	"time"
)

// TranscriptFragment is one piece of recognized speech.
type TranscriptFragment struct {
	Text         string
	SourceIsUser bool
	Timestamp    time.Time
}

// Transcript coalesces consecutive fragments from the same side: a
// fragment replaces the last entry when the source matches, otherwise it
// starts a new entry. Partial results therefore update in place.
type Transcript struct {
	mu      sync.Mutex
	entries []TranscriptFragment
}

// Add applies f and reports whether it replaced the previous entry.
func (t *Transcript) Add(f TranscriptFragment) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.entries); n > 0 && t.entries[n-1].SourceIsUser == f.SourceIsUser {
		t.entries[n-1] = f
		return true
	}
	t.entries = append(t.entries, f)
	return false
}

// Entries returns a copy of the coalesced transcript.
func (t *Transcript) Entries() []TranscriptFragment {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TranscriptFragment, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Transcript) Latest() (TranscriptFragment, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) == 0 {
		return TranscriptFragment{}, false
	}
	return t.entries[len(t.entries)-1], true
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}
