package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/arsview/internal/domain"
	"github.com/mmcdole/arsview/internal/poller"
	"github.com/mmcdole/arsview/internal/store"
)

type stubAggregator struct {
	mu        sync.Mutex
	submitErr error
	submitted []string
	statuses  []domain.QueryStatus
	calls     int
	results   map[string][]domain.Result
}

func (a *stubAggregator) Submit(_ context.Context, text string) (domain.Query, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.submitErr != nil {
		return domain.Query{}, a.submitErr
	}
	a.submitted = append(a.submitted, text)
	return domain.Query{ID: "pk-1", Status: domain.StatusRunning}, nil
}

func (a *stubAggregator) Status(context.Context, string) (domain.QueryStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := min(a.calls, len(a.statuses)-1)
	a.calls++
	return a.statuses[i], nil
}

func (a *stubAggregator) AgentResults(_ context.Context, messageID string) ([]domain.Result, error) {
	return a.results[messageID], nil
}

func newTestService(t *testing.T, src *stubAggregator) (*QueryService, *store.QueryStore) {
	t.Helper()
	st, err := store.NewQueryStore("", "")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewQueryService(src, st, poller.New(src, time.Millisecond, logger), logger)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, st
}

func TestQueryService_Submit(t *testing.T) {
	src := &stubAggregator{}
	svc, st := newTestService(t, src)

	q, err := svc.Submit(t.Context(), "  what treats CML  ")
	require.NoError(t, err)
	assert.Equal(t, "pk-1", q.ID)
	assert.Equal(t, "what treats CML", q.Text)
	assert.False(t, q.SubmittedAt.IsZero())
	assert.Equal(t, []string{"what treats CML"}, src.submitted)

	stored, ok := st.GetQuery("pk-1")
	require.True(t, ok)
	assert.Equal(t, "what treats CML", stored.Text)
}

func TestQueryService_SubmitRejectsEmptyText(t *testing.T) {
	src := &stubAggregator{}
	svc, _ := newTestService(t, src)

	_, err := svc.Submit(t.Context(), "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
	assert.Empty(t, src.submitted)
}

func TestQueryService_SubmitPropagatesAggregatorError(t *testing.T) {
	src := &stubAggregator{submitErr: domain.ErrAggregatorOffline}
	svc, st := newTestService(t, src)

	_, err := svc.Submit(t.Context(), "what treats CML")
	assert.ErrorIs(t, err, domain.ErrAggregatorOffline)
	assert.Empty(t, st.RecentQueries(0))
}

func TestQueryService_Open(t *testing.T) {
	svc, st := newTestService(t, &stubAggregator{})

	q, results, err := svc.Open(t.Context(), "pk-9")
	require.NoError(t, err)
	assert.Equal(t, "pk-9", q.ID)
	assert.Nil(t, results)

	require.NoError(t, st.SaveQuery(domain.Query{ID: "pk-9", Text: "asthma genes"}))
	require.NoError(t, svc.Remember("pk-9", []domain.Result{{ID: "NCBIGene:3570", Name: "IL6R"}}))

	q, results, err = svc.Open(t.Context(), "pk-9")
	require.NoError(t, err)
	assert.Equal(t, "asthma genes", q.Text)
	require.Len(t, results, 1)
	assert.Equal(t, "IL6R", results[0].Name)

	_, _, err = svc.Open(t.Context(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
}

func TestQueryService_WatchRecordsCompletion(t *testing.T) {
	src := &stubAggregator{
		statuses: []domain.QueryStatus{
			{Status: domain.StatusRunning, Agents: []domain.AgentStatus{
				{Agent: "ara-arax", MessageID: "m1", Status: domain.StatusRunning},
			}},
			{Status: domain.StatusSuccess, Agents: []domain.AgentStatus{
				{Agent: "ara-arax", MessageID: "m1", Status: domain.StatusSuccess},
			}},
		},
		results: map[string][]domain.Result{"m1": {{ID: "a", Name: "A"}}},
	}
	svc, st := newTestService(t, src)
	require.NoError(t, st.SaveQuery(domain.Query{ID: "pk-1", Text: "q"}))

	var updates []poller.Update
	for u := range svc.Watch(t.Context(), "s1", "pk-1") {
		updates = append(updates, u)
	}

	require.Len(t, updates, 2)
	assert.Equal(t, "s1", updates[0].Snapshot.SessionID)
	assert.Equal(t, domain.StatusSuccess, updates[1].Snapshot.Status)
	require.NotNil(t, updates[1].Candidate)

	q, ok := st.GetQuery("pk-1")
	require.True(t, ok)
	assert.Equal(t, "q", q.Text)
	assert.True(t, q.IsComplete())
	assert.False(t, q.CompletedAt.IsZero())
}

func TestQueryService_WatchStopsOnCancel(t *testing.T) {
	src := &stubAggregator{statuses: []domain.QueryStatus{{Status: domain.StatusRunning}}}
	svc, _ := newTestService(t, src)

	ctx, cancel := context.WithCancel(t.Context())
	ch := svc.Watch(ctx, "s1", "pk-1")
	<-ch
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel not closed after cancel")
		}
	}
}

func TestQueryService_RecentAndForget(t *testing.T) {
	svc, st := newTestService(t, &stubAggregator{})
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveQuery(domain.Query{ID: "old", SubmittedAt: base}))
	require.NoError(t, st.SaveQuery(domain.Query{ID: "new", SubmittedAt: base.Add(time.Hour)}))

	recent := svc.Recent(10)
	require.Len(t, recent, 2)
	assert.Equal(t, "new", recent[0].ID)

	svc.Forget("new")
	assert.Len(t, svc.Recent(10), 1)

	svc.ClearCache()
	assert.Empty(t, svc.Recent(10))
}
