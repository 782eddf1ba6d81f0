package transcript

import (
	"sync"

	"feedback-server/internal/session"
)

// Accumulator is an append-only, ordered log of finalized utterances. Entries
// get a monotonically increasing sequence index assigned on append and are
// never reordered, merged or deduplicated; any such policy belongs to a
// consumer of the snapshot, not here.
type Accumulator struct {
	mu      sync.Mutex
	entries []session.TranscriptEntry
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Append stores one utterance and returns the entry with its assigned
// sequence index (starting at 1).
func (a *Accumulator) Append(role session.Role, content string) session.TranscriptEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry := session.TranscriptEntry{
		Role:     role,
		Content:  content,
		Sequence: len(a.entries) + 1,
	}
	a.entries = append(a.entries, entry)
	return entry
}

// Snapshot returns a copy of the full ordered log.
func (a *Accumulator) Snapshot() []session.TranscriptEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]session.TranscriptEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len reports how many utterances have been appended.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
