package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/arsview/internal/domain"
)

// View is a read-only projection of the engine for the rendering layer.
type View struct {
	SessionID       string
	QueryID         string
	Live            bool
	Progress        DisplayProgress
	Freshness       FreshnessState
	Results         []domain.Result // Visible list, already sorted and filtered
	Total           int             // Results behind the visible list before filtering
	Pending         int             // Results in the queued candidate set
	HasFreshResults bool            // Queued results are waiting for a refresh
	Phase           bool            // Pulse phase, meaningful while Progress.Pulsing
}

// Engine owns one query's session, its visible results and the pulse clock.
// Apply, RequestRefresh, SetRanker and View are safe to call from any
// goroutine; they serialize on one lock, so a merge is never interleaved
// with a snapshot.
type Engine struct {
	mu     sync.Mutex
	logger *slog.Logger
	period time.Duration
	ranker Ranker

	session  Session
	live     bool
	progress DisplayProgress

	source    domain.ResultSet // Set behind the visible list
	displayed []domain.Result
	pending   domain.ResultSet // Latest candidate from the poller
	fresh     bool             // pending holds results not merged yet

	clock  *Clock
	pulses chan bool
}

// New creates an idle engine. A zero pulsePeriod selects DefaultPulsePeriod
// and a nil ranker orders by score.
func New(ranker Ranker, pulsePeriod time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if ranker == nil {
		ranker = byScore{}
	}
	if pulsePeriod <= 0 {
		pulsePeriod = DefaultPulsePeriod
	}
	return &Engine{
		logger: logger,
		period: pulsePeriod,
		ranker: ranker,
		pulses: make(chan bool, 1),
	}
}

// Pulses delivers pulse phase changes for whichever session is live.
func (e *Engine) Pulses() <-chan bool {
	return e.pulses
}

// Begin ends any live session and starts a new one for queryID.
// It returns the new session ID; snapshots must carry it to be applied.
func (e *Engine) Begin(queryID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopClockLocked()

	e.session = NewSession(queryID)
	e.live = true
	e.progress = newDisplayProgress(0)
	e.source = domain.ResultSet{}
	e.displayed = nil
	e.pending = domain.ResultSet{}
	e.fresh = false

	e.syncClockLocked()
	e.logger.Info("session started", "session", e.session.ID, "query", queryID)
	return e.session.ID
}

// End invalidates the live session and stops the pulse clock. Snapshots
// arriving afterwards are discarded.
func (e *Engine) End() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopClockLocked()
	if e.live {
		e.logger.Info("session ended", "session", e.session.ID)
	}
	e.live = false
}

// Apply folds one poll cycle into the session. candidate is the poller's
// current result set and may be nil when the cycle brought none.
//
// Before the session's first settlement candidates are shown as they
// arrive. After it they are queued until RequestRefresh.
func (e *Engine) Apply(snap domain.PollSnapshot, candidate *domain.ResultSet) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.live || snap.SessionID != e.session.ID {
		e.logger.Debug("discarding snapshot for inactive session", "session", snap.SessionID)
		return
	}
	if e.session.Freshness == FreshnessError {
		e.logger.Debug("discarding snapshot after error", "session", snap.SessionID)
		return
	}

	snap = snap.Normalize()
	if candidate != nil {
		e.pending = *candidate
	}
	// A repeated or out-of-order candidate equal to what is visible is not fresh.
	switch {
	case e.pending.Equal(e.source):
		e.fresh = false
	case snap.HasFreshResults, candidate != nil:
		e.fresh = true
	}
	snap.HasFreshResults = e.fresh

	firstBefore := e.session.FirstCompletionObserved
	prevState := e.session.Freshness

	progress, sess := ComputeDisplayProgress(e.progress, e.session, snap)
	sess.Freshness = NextFreshness(e.session.Freshness, firstBefore, snap)
	if sess.Freshness == FreshnessAwaitingRefresh {
		// Held short of complete until the user merges.
		progress = newDisplayProgress(holdBackPercent)
	}
	e.session = sess
	e.progress = progress

	if !firstBefore && e.fresh && sess.Freshness != FreshnessError {
		e.mergeLocked()
	}

	if prevState != sess.Freshness {
		e.logger.Debug("freshness changed",
			"session", sess.ID,
			"from", prevState.String(),
			"to", sess.Freshness.String(),
			"percent", progress.Percentage,
		)
	}
	if sess.Freshness == FreshnessError {
		e.logger.Warn("aggregator reported an error", "session", sess.ID, "query", sess.QueryID)
	}

	e.syncClockLocked()
}

// RequestRefresh merges the queued candidate into the visible list and
// returns the new list. Outside Polling and AwaitingRefresh it does nothing
// and returns the current list, so callers may invoke it at any time.
func (e *Engine) RequestRefresh() []domain.Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.live || !e.session.Freshness.CanRefresh() {
		e.logger.Debug("refresh ignored", "freshness", e.session.Freshness.String())
		return cloneResults(e.displayed)
	}

	e.mergeLocked()
	e.session.Freshness = FreshnessSynced
	e.progress = newDisplayProgress(e.session.LastDisplayedPercentage)
	e.syncClockLocked()

	e.logger.Info("results refreshed", "session", e.session.ID, "count", len(e.displayed))
	return cloneResults(e.displayed)
}

// SetRanker changes the sort order and filter. It reorders what is already
// visible; queued results stay queued.
func (e *Engine) SetRanker(r Ranker) {
	if r == nil {
		r = byScore{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.ranker = r
	e.displayed = Merge(e.source, r)
}

// View returns a snapshot of the engine's state for rendering.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := View{
		SessionID:       e.session.ID,
		QueryID:         e.session.QueryID,
		Live:            e.live,
		Progress:        e.progress,
		Freshness:       e.session.Freshness,
		Results:         cloneResults(e.displayed),
		Total:           e.source.Len(),
		HasFreshResults: e.fresh,
	}
	if e.fresh {
		v.Pending = e.pending.Len()
	}
	if e.clock != nil {
		v.Phase = e.clock.Phase()
	}
	return v
}

// Merged returns every result behind the visible list, ignoring the
// ranker's filter, ordered by ID.
func (e *Engine) Merged() []domain.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source.Items()
}

// Session returns a copy of the live session.
func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// mergeLocked replaces the visible list with the queued candidate.
func (e *Engine) mergeLocked() {
	e.source = e.pending
	e.displayed = Merge(e.pending, e.ranker)
	e.fresh = false
}

// syncClockLocked runs the clock exactly while progress is pulsing.
func (e *Engine) syncClockLocked() {
	switch {
	case e.live && e.progress.Pulsing && e.clock == nil:
		e.clock = NewClock(e.period, e.pulses)
		e.clock.Start()
	case (!e.live || !e.progress.Pulsing) && e.clock != nil:
		e.stopClockLocked()
	}
}

func (e *Engine) stopClockLocked() {
	if e.clock != nil {
		e.clock.Stop()
		e.clock = nil
	}
}

func cloneResults(results []domain.Result) []domain.Result {
	if results == nil {
		return nil
	}
	out := make([]domain.Result, len(results))
	copy(out, results)
	return out
}
