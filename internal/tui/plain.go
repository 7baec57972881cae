package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mmcdole/arsview/internal/domain"
	"github.com/mmcdole/arsview/internal/engine"
	"github.com/mmcdole/arsview/internal/service"
	"github.com/mmcdole/arsview/internal/tui/styles"
)

// ErrQueryFailed is returned by Printer.Run when the aggregator reports
// the query as failed
var ErrQueryFailed = errors.New("query failed")

// Printer follows a query without a terminal UI, writing one line each
// time the displayed progress or freshness changes, then the results.
type Printer struct {
	Out        io.Writer
	QuerySvc   *service.QueryService
	Engine     *engine.Engine
	ShowScores bool
}

// Run watches q until polling ends or ctx is cancelled. Anything still
// queued at the end is merged, since there is no one to press refresh.
func (p *Printer) Run(ctx context.Context, q domain.Query, cached []domain.Result) error {
	sessionID := p.Engine.Begin(q.ID)
	defer p.Engine.End()

	if q.Text != "" {
		fmt.Fprintf(p.Out, "query %s: %s\n", q.ID, q.Text)
	} else {
		fmt.Fprintf(p.Out, "query %s\n", q.ID)
	}

	if len(cached) > 0 {
		set := domain.NewResultSet(cached...)
		p.Engine.Apply(domain.PollSnapshot{
			SessionID:        sessionID,
			TotalAgentCount:  1,
			Status:           domain.StatusRunning,
			IsFetchingStatus: true,
		}, &set)
	}

	var (
		last    domain.PollSnapshot
		lastPct = -1
		lastSt  engine.FreshnessState
		pollErr error
	)
	report := func() {
		v := p.Engine.View()
		if v.Progress.Percentage == lastPct && v.Freshness == lastSt {
			return
		}
		lastPct, lastSt = v.Progress.Percentage, v.Freshness
		fmt.Fprintf(p.Out, "[%3d%%] %s\n", v.Progress.Percentage, DescribeProgress(v, last))
	}

	for u := range p.QuerySvc.Watch(ctx, sessionID, q.ID) {
		p.Engine.Apply(u.Snapshot, u.Candidate)
		last = u.Snapshot
		if u.Err != nil {
			pollErr = u.Err
		}
		report()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	results := p.Engine.RequestRefresh()
	report()
	p.printResults(results)

	if p.Engine.View().Freshness == engine.FreshnessError {
		if pollErr != nil {
			return fmt.Errorf("%w: %w", ErrQueryFailed, pollErr)
		}
		return ErrQueryFailed
	}

	if err := p.QuerySvc.Remember(q.ID, p.Engine.Merged()); err != nil {
		return fmt.Errorf("caching results: %w", err)
	}
	return nil
}

func (p *Printer) printResults(results []domain.Result) {
	if len(results) == 0 {
		fmt.Fprintln(p.Out, "no results")
		return
	}

	for i, r := range results {
		line := fmt.Sprintf("%s%s %s",
			styles.Pad(fmt.Sprintf("%d.", i+1), rankWidth),
			styles.Pad(styles.Truncate(r.Name, 40), 40),
			styles.Pad(styles.Truncate(r.Category, categoryWidth-1), categoryWidth),
		)
		if p.ShowScores {
			line += styles.Pad(r.FormattedScore(), scoreWidth)
		}
		line += fmt.Sprintf("%d agents, %d evidence", r.AgentCount(), r.Evidence)
		fmt.Fprintln(p.Out, line)
	}
}
