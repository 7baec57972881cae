package poller

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mmcdole/arsview/internal/domain"
)

const (
	defaultInterval = 5 * time.Second

	// maxStatusFailures is how many consecutive status failures end polling.
	maxStatusFailures = 5

	// maxAgentAttempts is how many times one agent's results are requested
	// before that agent is given up on.
	maxAgentAttempts = 3

	// fetchConcurrency caps simultaneous per-agent result requests.
	fetchConcurrency = 4
)

// Update is what one poll cycle produced.
type Update struct {
	Snapshot  domain.PollSnapshot
	Candidate *domain.ResultSet // nil when the union did not change
	Err       error             // set on the final update when polling failed
}

// Poller turns the aggregator's status into a stream of snapshots.
type Poller struct {
	source   domain.Aggregator
	interval time.Duration
	logger   *slog.Logger
}

// New creates a poller that asks source for status every interval.
func New(source domain.Aggregator, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{source: source, interval: interval, logger: logger}
}

// agentResults tracks what has been fetched for one agent.
type agentResults struct {
	results  []domain.Result
	fetched  bool
	attempts int
}

// state is carried between cycles of one Run.
type state struct {
	agents    map[string]*agentResults // keyed by agent message ID
	last      domain.PollSnapshot
	candidate domain.ResultSet
	failures  int
}

// Run polls queryID until the aggregator reports a terminal status and
// every returned agent's results are in, sending one Update per cycle.
// It returns nil when polling completed and ctx.Err() when cancelled.
func (p *Poller) Run(ctx context.Context, sessionID, queryID string, out chan<- Update) error {
	limiter := rate.NewLimiter(rate.Every(p.interval), 1)
	st := &state{
		agents: make(map[string]*agentResults),
		last:   domain.PollSnapshot{SessionID: sessionID, TotalAgentCount: 1, IsFetchingStatus: true},
	}

	p.logger.Debug("polling started", "query", queryID, "interval", p.interval)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}

		upd, done := p.cycle(ctx, queryID, st)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case out <- upd:
		case <-ctx.Done():
			return ctx.Err()
		}

		if done {
			p.logger.Debug("polling finished", "query", queryID, "status", upd.Snapshot.Status.String())
			return nil
		}
	}
}

// cycle performs one status request plus any outstanding result fetches.
func (p *Poller) cycle(ctx context.Context, queryID string, st *state) (Update, bool) {
	status, err := p.source.Status(ctx, queryID)
	if err != nil {
		return p.statusFailed(queryID, st, err)
	}
	st.failures = 0

	outstanding := p.fetchReturned(ctx, status, st)

	union := unionResults(st.agents)
	fresh := !union.Equal(st.candidate)

	snap := domain.PollSnapshot{
		SessionID:          st.last.SessionID,
		ReturnedAgentCount: status.ReturnedCount(),
		TotalAgentCount:    max(1, len(status.Agents)),
		Status:             status.Status,
		IsFetchingStatus:   status.Status == domain.StatusRunning,
		IsFetchingResults:  outstanding > 0,
		HasFreshResults:    fresh,
	}
	st.last = snap

	upd := Update{Snapshot: snap}
	if fresh {
		st.candidate = union
		upd.Candidate = &union
	}

	done := status.Status == domain.StatusError ||
		(status.Status == domain.StatusSuccess && outstanding == 0)
	return upd, done
}

// statusFailed reports a cycle whose status request failed. The previous
// counts are repeated with the status marked indeterminate, unless the
// failure is permanent.
func (p *Poller) statusFailed(queryID string, st *state, err error) (Update, bool) {
	st.failures++
	p.logger.Warn("status request failed", "query", queryID, "error", err, "failures", st.failures)

	if errors.Is(err, domain.ErrQueryNotFound) || st.failures >= maxStatusFailures {
		snap := st.last
		snap.Status = domain.StatusError
		snap.IsFetchingStatus = false
		snap.IsFetchingResults = false
		snap.HasFreshResults = false
		return Update{Snapshot: snap, Err: err}, true
	}

	snap := st.last
	snap.StatusIndeterminate = true
	snap.IsFetchingStatus = true
	snap.HasFreshResults = false
	return Update{Snapshot: snap}, false
}

// fetchReturned requests results from every agent that has returned
// successfully and not been fetched yet. It returns how many such agents
// are still outstanding afterwards.
func (p *Poller) fetchReturned(ctx context.Context, status domain.QueryStatus, st *state) int {
	var todo []domain.AgentStatus
	for _, a := range status.Agents {
		if a.Status != domain.StatusSuccess || a.MessageID == "" {
			continue
		}
		ar, ok := st.agents[a.MessageID]
		if !ok {
			ar = &agentResults{}
			st.agents[a.MessageID] = ar
		}
		if !ar.fetched {
			todo = append(todo, a)
		}
	}
	if len(todo) == 0 {
		return 0
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	for _, a := range todo {
		a := a
		g.Go(func() error {
			results, err := p.source.AgentResults(gctx, a.MessageID)

			mu.Lock()
			defer mu.Unlock()
			ar := st.agents[a.MessageID]
			ar.attempts++
			if err != nil {
				p.logger.Warn("agent results unavailable", "agent", a.Agent, "error", err, "attempt", ar.attempts)
				if ar.attempts >= maxAgentAttempts {
					ar.fetched = true
				}
				return nil
			}
			for i := range results {
				if len(results[i].Agents) == 0 {
					results[i].Agents = []string{a.Agent}
				}
			}
			ar.results = results
			ar.fetched = true
			p.logger.Debug("agent results fetched", "agent", a.Agent, "count", len(results))
			return nil
		})
	}
	_ = g.Wait()

	outstanding := 0
	for _, a := range todo {
		if !st.agents[a.MessageID].fetched {
			outstanding++
		}
	}
	return outstanding
}

// unionResults merges every agent's results by ID: agents are combined,
// the best score wins and evidence is summed.
func unionResults(agents map[string]*agentResults) domain.ResultSet {
	byID := make(map[string]domain.Result)

	keys := make([]string, 0, len(agents))
	for k := range agents {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		for _, r := range agents[k].results {
			cur, ok := byID[r.ID]
			if !ok {
				r.Agents = slices.Clone(r.Agents)
				byID[r.ID] = r
				continue
			}
			cur.Score = max(cur.Score, r.Score)
			cur.Evidence += r.Evidence
			if cur.Name == "" || cur.Name == cur.ID {
				cur.Name = r.Name
			}
			if cur.Category == "" {
				cur.Category = r.Category
			}
			if cur.Description == "" {
				cur.Description = r.Description
			}
			for _, agent := range r.Agents {
				if !slices.Contains(cur.Agents, agent) {
					cur.Agents = append(cur.Agents, agent)
				}
			}
			byID[r.ID] = cur
		}
	}

	results := make([]domain.Result, 0, len(byID))
	for _, r := range byID {
		slices.Sort(r.Agents)
		results = append(results, r)
	}
	return domain.NewResultSet(results...)
}
