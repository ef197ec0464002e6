package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/chainsleuth/sleuth/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, e Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, e)
	return p.err
}

func result(id string, findings int) *engine.Result {
	res := &engine.Result{RunID: id}
	res.Statistics.TotalTransactions = findings * 2
	return res
}

func TestTrail_RecordRun(t *testing.T) {
	pub := &recordingPublisher{}
	trail := NewTrail(pub, 10)

	res := analyze(t)
	entry := trail.RecordRun(context.Background(), res)

	assert.Equal(t, res.RunID, entry.RunID)
	assert.Equal(t, 30, entry.Transactions)
	assert.Equal(t, 31, entry.Wallets)
	assert.Equal(t, len(res.Findings), entry.Findings)
	assert.Equal(t, 1, entry.Patterns["fan-out"])
	assert.Equal(t, 1, entry.Patterns["high-volume"])
	assert.False(t, entry.Timestamp.IsZero())

	got, ok := trail.Query(res.RunID)
	require.True(t, ok)
	assert.Equal(t, entry, got)
	require.Len(t, pub.entries, 1)
	assert.Equal(t, entry, pub.entries[0])
}

func TestTrail_FIFOEviction(t *testing.T) {
	trail := NewTrail(nil, 3)
	for i := 0; i < 5; i++ {
		trail.RecordRun(context.Background(), result(fmt.Sprintf("run-%d", i), i))
	}

	assert.Equal(t, 3, trail.Len())
	entries := trail.Entries()
	assert.Equal(t, "run-2", entries[0].RunID)
	assert.Equal(t, "run-4", entries[2].RunID)

	_, ok := trail.Query("run-0")
	assert.False(t, ok)
}

func TestTrail_ZeroBufferOnlyPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	trail := NewTrail(pub, -1)
	trail.RecordRun(context.Background(), result("r", 1))

	assert.Zero(t, trail.Len())
	assert.Len(t, pub.entries, 1)
}

func TestTrail_PublishErrorKeepsEntry(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("stream closed")}
	trail := NewTrail(pub, 2)
	trail.RecordRun(context.Background(), result("r", 1))

	_, ok := trail.Query("r")
	assert.True(t, ok)
}

func TestTrail_ConcurrentRecord(t *testing.T) {
	trail := NewTrail(nil, 100)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			trail.RecordRun(context.Background(), result(fmt.Sprintf("r%d", i), i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, trail.Len())
}
