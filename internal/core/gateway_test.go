package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func records(n int) []ProcessRecord {
	out := make([]ProcessRecord, n)
	for i := range out {
		out[i] = ProcessRecord{Name: fmt.Sprintf("p%d", i+1), Department: "Finance"}
	}
	return out
}

func TestGateway_ResultsFollowRowOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &fakeStore{delay: time.Millisecond}
	gw := NewGateway(store, GatewayConfig{Concurrency: 8})

	outcome := gw.ImportRows(context.Background(), ImportContext{SessionID: "s1"}, records(25), nil)

	require.NoError(t, outcome.TransportErr)
	assert.False(t, outcome.Cancelled)
	require.Len(t, outcome.Results, 25)
	for i, r := range outcome.Results {
		assert.Equal(t, i+1, r.RowIndex)
		assert.Equal(t, fmt.Sprintf("id-p%d", i+1), r.ID)
	}
	assert.Len(t, outcome.Result().Succeeded, 25)
}

func TestGateway_RowFailuresDoNotStopDispatch(t *testing.T) {
	store := &fakeStore{failNames: map[string]error{
		"p2": errors.New("duplicate key value violates unique constraint"),
	}}
	recs := records(4)
	recs[3].Name = ""
	gw := NewGateway(store, GatewayConfig{Concurrency: 1})

	outcome := gw.ImportRows(context.Background(), ImportContext{}, recs, nil)
	res := outcome.Result()

	require.NoError(t, outcome.TransportErr)
	assert.Equal(t, []string{"id-p1", "id-p3"}, res.Succeeded)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, 2, res.Failed[0].RowIndex)
	assert.Equal(t, 4, res.Failed[1].RowIndex)
	assert.ErrorIs(t, outcome.Results[3].Err, ErrNameRequired)
	assert.Equal(t, 2, store.count())
}

func TestGateway_TransportFailureStopsDispatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &fakeStore{failAfter: 2, failErr: fmt.Errorf("%w: connection refused", ErrNetwork)}
	gw := NewGateway(store, GatewayConfig{Concurrency: 1})

	outcome := gw.ImportRows(context.Background(), ImportContext{}, records(10), nil)
	res := outcome.Result()

	require.Error(t, outcome.TransportErr)
	assert.True(t, IsTransportError(outcome.TransportErr))
	assert.False(t, outcome.Cancelled)
	assert.Len(t, res.Succeeded, 2)
	assert.Len(t, res.Failed, 8)
	assert.Equal(t, 10, res.Total())
	for _, r := range outcome.Results[3:] {
		assert.ErrorIs(t, r.Err, ErrNetwork)
	}
}

func TestGateway_CancelledContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &fakeStore{block: make(chan struct{})}
	gw := NewGateway(store, GatewayConfig{Concurrency: 2})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan ImportOutcome, 1)
	go func() { done <- gw.ImportRows(ctx, ImportContext{}, records(6), nil) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	var outcome ImportOutcome
	select {
	case outcome = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ImportRows did not return after cancellation")
	}

	assert.True(t, outcome.Cancelled)
	assert.NoError(t, outcome.TransportErr)
	assert.Empty(t, outcome.Result().Succeeded)
	for _, r := range outcome.Results {
		assert.ErrorIs(t, r.Err, ErrImportCancelled)
	}
	assert.Equal(t, 0, store.count())
}

// cancelAfter cancels the import context once n creates have succeeded.
type cancelAfter struct {
	RecordStore
	mu     sync.Mutex
	n      int
	cancel context.CancelFunc
}

func (s *cancelAfter) Create(ctx context.Context, rec ProcessRecord) (string, error) {
	id, err := s.RecordStore.Create(ctx, rec)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.n--; s.n == 0 {
		s.cancel()
	}
	return id, err
}

func TestGateway_DeadlineAfterLastRowIsNotCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inner := &fakeStore{}
	gw := NewGateway(&cancelAfter{RecordStore: inner, n: 4, cancel: cancel}, GatewayConfig{Concurrency: 1})

	outcome := gw.ImportRows(ctx, ImportContext{}, records(4), nil)

	require.Error(t, ctx.Err())
	assert.False(t, outcome.Cancelled)
	assert.NoError(t, outcome.TransportErr)
	assert.Len(t, outcome.Result().Succeeded, 4)
}

func TestGateway_DeadlineBeforeLastRowIsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inner := &fakeStore{}
	gw := NewGateway(&cancelAfter{RecordStore: inner, n: 2, cancel: cancel}, GatewayConfig{Concurrency: 1})

	outcome := gw.ImportRows(ctx, ImportContext{}, records(4), nil)

	assert.True(t, outcome.Cancelled)
	assert.Len(t, outcome.Result().Succeeded, 2)
	assert.ErrorIs(t, outcome.Results[3].Err, ErrImportCancelled)
}

func TestGateway_CreateTimeoutIsTransportFailure(t *testing.T) {
	store := &fakeStore{block: make(chan struct{})}
	gw := NewGateway(store, GatewayConfig{Concurrency: 1, CreateTimeout: 10 * time.Millisecond})

	outcome := gw.ImportRows(context.Background(), ImportContext{}, records(3), nil)

	require.Error(t, outcome.TransportErr)
	assert.Contains(t, outcome.TransportErr.Error(), "create timed out")
	assert.Equal(t, "NET001", MapError(outcome.TransportErr).Code)
}

func TestGateway_ProgressReportsEveryRow(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []ImportProgress
	)
	store := &fakeStore{failNames: map[string]error{"p3": errors.New("rejected")}}
	gw := NewGateway(store, GatewayConfig{Concurrency: 3})

	gw.ImportRows(context.Background(), ImportContext{}, records(5), func(p ImportProgress) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, p)
	})

	require.Len(t, seen, 5)
	last := seen[len(seen)-1]
	assert.Equal(t, ImportProgress{Total: 5, Done: 5, Succeeded: 4, Failed: 1, Step: StepImporting}, last)
	assert.Equal(t, 100, last.Percent())
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network sentinel", fmt.Errorf("wrap: %w", ErrNetwork), true},
		{"net.Error", &net.OpError{Op: "dial", Err: timeoutErr{}}, true},
		{"row rejection", errors.New("duplicate key"), false},
		{"name required", ErrNameRequired, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransportError(tt.err))
		})
	}
}
