package report

import (
	"context"
	"sync"
	"time"

	"github.com/chainsleuth/sleuth/internal/detect"
	"github.com/chainsleuth/sleuth/internal/engine"
	"github.com/rs/zerolog/log"
)

// Entry records one completed analysis run.
type Entry struct {
	RunID             string         `json:"runId"`
	Timestamp         time.Time      `json:"ts"`
	Transactions      int            `json:"transactions"`
	Wallets           int            `json:"wallets"`
	Findings          int            `json:"findings"`
	SuspiciousWallets int            `json:"suspiciousWallets"`
	Patterns          map[string]int `json:"patterns"`
	DurationMs        float64        `json:"durationMs"`
}

// Publisher receives every recorded entry, e.g. a live stream to the
// rendering layer.
type Publisher interface {
	Publish(ctx context.Context, e Entry) error
}

// Trail keeps the most recent runs in memory and forwards each one to an
// optional publisher. Once full, the oldest entry is discarded.
type Trail struct {
	mu        sync.Mutex
	publisher Publisher
	entries   []Entry
	maxBuf    int
}

// NewTrail creates a trail holding at most maxBuf entries. A maxBuf of 0
// keeps nothing in memory; entries are only published.
func NewTrail(publisher Publisher, maxBuf int) *Trail {
	if maxBuf < 0 {
		maxBuf = 0
	}
	return &Trail{
		publisher: publisher,
		entries:   make([]Entry, 0, maxBuf),
		maxBuf:    maxBuf,
	}
}

// RecordRun derives an entry from res, stores it and publishes it.
func (t *Trail) RecordRun(ctx context.Context, res *engine.Result) Entry {
	patterns := make(map[string]int)
	for pt, n := range detect.Summary(res.Findings) {
		patterns[string(pt)] = n
	}
	entry := Entry{
		RunID:             res.RunID,
		Timestamp:         time.Now().UTC(),
		Transactions:      res.Statistics.TotalTransactions,
		Wallets:           res.Statistics.UniqueWallets,
		Findings:          len(res.Findings),
		SuspiciousWallets: res.Statistics.SuspiciousWallets,
		Patterns:          patterns,
		DurationMs:        res.DurationMs,
	}
	t.record(ctx, entry)
	return entry
}

// Query returns the entry for runID.
func (t *Trail) Query(runID string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.RunID == runID {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns a copy of the buffer, oldest first.
func (t *Trail) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of buffered entries.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Trail) record(ctx context.Context, entry Entry) {
	t.mu.Lock()
	if t.maxBuf > 0 {
		if len(t.entries) >= t.maxBuf {
			copy(t.entries, t.entries[1:])
			t.entries[len(t.entries)-1] = entry
		} else {
			t.entries = append(t.entries, entry)
		}
	}
	t.mu.Unlock()

	// Publish outside the lock.
	if t.publisher != nil {
		if err := t.publisher.Publish(ctx, entry); err != nil {
			log.Error().Err(err).Str("run_id", entry.RunID).Msg("report: failed to publish run entry")
		}
	}
}
