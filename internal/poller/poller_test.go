package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/arsview/internal/domain"
)

// fakeAggregator replays a scripted sequence of statuses; the last one
// repeats once the script runs out.
type fakeAggregator struct {
	mu          sync.Mutex
	statuses    []domain.QueryStatus
	statusErrs  []error
	results     map[string][]domain.Result
	resultErrs  map[string]int // failures to return before succeeding
	resultCalls map[string]int
	calls       int
}

func (f *fakeAggregator) Submit(context.Context, string) (domain.Query, error) {
	return domain.Query{}, errors.New("not implemented")
}

func (f *fakeAggregator) Status(_ context.Context, queryID string) (domain.QueryStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	if i < len(f.statusErrs) && f.statusErrs[i] != nil {
		return domain.QueryStatus{}, f.statusErrs[i]
	}
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	st := f.statuses[i]
	st.QueryID = queryID
	return st, nil
}

func (f *fakeAggregator) AgentResults(_ context.Context, messageID string) ([]domain.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.resultCalls == nil {
		f.resultCalls = make(map[string]int)
	}
	f.resultCalls[messageID]++
	if f.resultErrs[messageID] > 0 {
		f.resultErrs[messageID]--
		return nil, domain.ErrAggregatorOffline
	}
	return f.results[messageID], nil
}

func agent(name string, status domain.RunStatus) domain.AgentStatus {
	return domain.AgentStatus{Agent: name, MessageID: "msg-" + name, Status: status}
}

func collect(t *testing.T, p *Poller, sessionID string) ([]Update, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := make(chan Update, 64)
	err := p.Run(ctx, sessionID, "pk-1", out)
	close(out)

	var updates []Update
	for u := range out {
		updates = append(updates, u)
	}
	return updates, err
}

func newTestPoller(src domain.Aggregator) *Poller {
	return New(src, time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPoller_RunToCompletion(t *testing.T) {
	src := &fakeAggregator{
		statuses: []domain.QueryStatus{
			{Status: domain.StatusRunning, Agents: []domain.AgentStatus{
				agent("ara-arax", domain.StatusSuccess), agent("ara-bte", domain.StatusRunning),
			}},
			{Status: domain.StatusRunning, Agents: []domain.AgentStatus{
				agent("ara-arax", domain.StatusSuccess), agent("ara-bte", domain.StatusRunning),
			}},
			{Status: domain.StatusSuccess, Agents: []domain.AgentStatus{
				agent("ara-arax", domain.StatusSuccess), agent("ara-bte", domain.StatusSuccess),
			}},
		},
		results: map[string][]domain.Result{
			"msg-ara-arax": {{ID: "CHEBI:45783", Name: "Imatinib", Score: 0.8, Evidence: 2}},
			"msg-ara-bte": {
				{ID: "CHEBI:45783", Name: "Imatinib", Score: 0.9, Evidence: 3},
				{ID: "NCBIGene:25", Name: "ABL1", Score: 0.4},
			},
		},
	}

	updates, err := collect(t, newTestPoller(src), "s1")
	require.NoError(t, err)
	require.Len(t, updates, 3)

	first := updates[0]
	assert.Equal(t, "s1", first.Snapshot.SessionID)
	assert.Equal(t, 1, first.Snapshot.ReturnedAgentCount)
	assert.Equal(t, 2, first.Snapshot.TotalAgentCount)
	assert.True(t, first.Snapshot.IsFetchingStatus)
	assert.True(t, first.Snapshot.HasFreshResults)
	require.NotNil(t, first.Candidate)
	assert.Equal(t, 1, first.Candidate.Len())

	second := updates[1]
	assert.False(t, second.Snapshot.HasFreshResults, "unchanged union is not fresh")
	assert.Nil(t, second.Candidate)

	last := updates[2]
	assert.Equal(t, domain.StatusSuccess, last.Snapshot.Status)
	assert.Equal(t, 2, last.Snapshot.ReturnedAgentCount)
	assert.False(t, last.Snapshot.IsFetchingStatus)
	assert.False(t, last.Snapshot.IsFetchingResults)
	assert.True(t, last.Snapshot.HasFreshResults)
	require.NotNil(t, last.Candidate)
	require.Equal(t, 2, last.Candidate.Len())

	imatinib, ok := last.Candidate.Get("CHEBI:45783")
	require.True(t, ok)
	assert.Equal(t, 0.9, imatinib.Score)
	assert.Equal(t, 5, imatinib.Evidence)
	assert.Equal(t, []string{"ara-arax", "ara-bte"}, imatinib.Agents)

	// Each agent is fetched once.
	assert.Equal(t, 1, src.resultCalls["msg-ara-arax"])
	assert.Equal(t, 1, src.resultCalls["msg-ara-bte"])
}

func TestPoller_StatusFailureIsIndeterminate(t *testing.T) {
	src := &fakeAggregator{
		statusErrs: []error{nil, domain.ErrAggregatorOffline, nil},
		statuses: []domain.QueryStatus{
			{Status: domain.StatusRunning, Agents: []domain.AgentStatus{
				agent("ara-arax", domain.StatusSuccess), agent("ara-bte", domain.StatusRunning),
			}},
			{},
			{Status: domain.StatusSuccess, Agents: []domain.AgentStatus{
				agent("ara-arax", domain.StatusSuccess), agent("ara-bte", domain.StatusError),
			}},
		},
		results: map[string][]domain.Result{"msg-ara-arax": {{ID: "a", Name: "a"}}},
	}

	updates, err := collect(t, newTestPoller(src), "s1")
	require.NoError(t, err)
	require.Len(t, updates, 3)

	mid := updates[1].Snapshot
	assert.True(t, mid.StatusIndeterminate)
	assert.True(t, mid.IsFetchingStatus)
	assert.Equal(t, 1, mid.ReturnedAgentCount, "counts carry over")
	assert.Equal(t, 2, mid.TotalAgentCount)
	assert.Nil(t, updates[1].Candidate)

	last := updates[2].Snapshot
	assert.False(t, last.StatusIndeterminate)
	assert.Equal(t, 2, last.ReturnedAgentCount)
	assert.Nil(t, updates[2].Err)
}

func TestPoller_QueryNotFoundEndsWithError(t *testing.T) {
	src := &fakeAggregator{
		statusErrs: []error{domain.ErrQueryNotFound},
		statuses:   []domain.QueryStatus{{}},
	}

	updates, err := collect(t, newTestPoller(src), "s1")
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, domain.StatusError, updates[0].Snapshot.Status)
	assert.ErrorIs(t, updates[0].Err, domain.ErrQueryNotFound)
}

func TestPoller_GivesUpAfterRepeatedStatusFailures(t *testing.T) {
	errs := make([]error, maxStatusFailures)
	for i := range errs {
		errs[i] = domain.ErrAggregatorOffline
	}
	src := &fakeAggregator{statusErrs: errs, statuses: []domain.QueryStatus{{}}}

	updates, err := collect(t, newTestPoller(src), "s1")
	require.NoError(t, err)
	require.Len(t, updates, maxStatusFailures)
	assert.Equal(t, domain.StatusError, updates[len(updates)-1].Snapshot.Status)
}

func TestPoller_RetriesAgentResults(t *testing.T) {
	src := &fakeAggregator{
		statuses: []domain.QueryStatus{
			{Status: domain.StatusSuccess, Agents: []domain.AgentStatus{agent("ara-arax", domain.StatusSuccess)}},
		},
		results:    map[string][]domain.Result{"msg-ara-arax": {{ID: "a", Name: "a"}}},
		resultErrs: map[string]int{"msg-ara-arax": 1},
	}

	updates, err := collect(t, newTestPoller(src), "s1")
	require.NoError(t, err)
	require.Len(t, updates, 2)

	assert.True(t, updates[0].Snapshot.IsFetchingResults)
	assert.Nil(t, updates[0].Candidate)

	assert.False(t, updates[1].Snapshot.IsFetchingResults)
	require.NotNil(t, updates[1].Candidate)
	assert.Equal(t, 1, updates[1].Candidate.Len())
}

func TestPoller_AbandonsUnreachableAgent(t *testing.T) {
	src := &fakeAggregator{
		statuses: []domain.QueryStatus{
			{Status: domain.StatusSuccess, Agents: []domain.AgentStatus{agent("ara-arax", domain.StatusSuccess)}},
		},
		resultErrs: map[string]int{"msg-ara-arax": 100},
	}

	updates, err := collect(t, newTestPoller(src), "s1")
	require.NoError(t, err)
	assert.Len(t, updates, maxAgentAttempts)
	assert.Equal(t, maxAgentAttempts, src.resultCalls["msg-ara-arax"])
}

func TestPoller_Cancelled(t *testing.T) {
	src := &fakeAggregator{
		statuses: []domain.QueryStatus{{Status: domain.StatusRunning}},
	}
	p := New(src, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Update, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx, "s1", "pk-1", out) }()

	<-out
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestUnionResults(t *testing.T) {
	agents := map[string]*agentResults{
		"m2": {results: []domain.Result{{ID: "x", Name: "x", Score: 0.2, Evidence: 1, Agents: []string{"b"}}}},
		"m1": {results: []domain.Result{{ID: "x", Name: "Xylitol", Category: "ChemicalEntity", Score: 0.5, Evidence: 2, Agents: []string{"a"}}}},
	}

	set := unionResults(agents)
	require.Equal(t, 1, set.Len())
	x, _ := set.Get("x")
	assert.Equal(t, "Xylitol", x.Name)
	assert.Equal(t, "ChemicalEntity", x.Category)
	assert.Equal(t, 0.5, x.Score)
	assert.Equal(t, 3, x.Evidence)
	assert.Equal(t, []string{"a", "b"}, x.Agents)

	// Input slices are not aliased.
	assert.Equal(t, []string{"a"}, agents["m1"].results[0].Agents)
}
