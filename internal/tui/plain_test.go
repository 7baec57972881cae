package tui

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/arsview/internal/domain"
	"github.com/mmcdole/arsview/internal/engine"
)

func TestPrinter_Run(t *testing.T) {
	src := &scriptedAggregator{
		statuses: []domain.QueryStatus{
			{Status: domain.StatusRunning, Agents: []domain.AgentStatus{
				{Agent: "ara-arax", MessageID: "m1", Status: domain.StatusRunning},
			}},
			{Status: domain.StatusSuccess, Agents: []domain.AgentStatus{
				{Agent: "ara-arax", MessageID: "m1", Status: domain.StatusSuccess},
			}},
		},
		results: map[string][]domain.Result{"m1": {imatinib, abl1}},
	}
	svc := newTestQueryService(t, src)

	var out bytes.Buffer
	p := &Printer{
		Out:        &out,
		QuerySvc:   svc,
		Engine:     engine.New(nil, time.Hour, testLogger()),
		ShowScores: true,
	}

	err := p.Run(t.Context(), domain.Query{ID: "pk-1", Text: "what treats CML"}, nil)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "query pk-1: what treats CML")
	assert.Contains(t, text, "[  0%] polling 0/1 agents")
	assert.Contains(t, text, "[100%] complete")
	assert.Contains(t, text, "1.   Imatinib")
	assert.Contains(t, text, "90%")
	assert.Contains(t, text, "2.   ABL1")

	_, cached, err := svc.Open(t.Context(), "pk-1")
	require.NoError(t, err)
	assert.Len(t, cached, 2, "results are remembered")
	assert.False(t, p.Engine.View().Live)
}

func TestPrinter_RunFailedQuery(t *testing.T) {
	src := &scriptedAggregator{
		statuses: []domain.QueryStatus{{Status: domain.StatusError}},
	}

	var out bytes.Buffer
	p := &Printer{
		Out:      &out,
		QuerySvc: newTestQueryService(t, src),
		Engine:   engine.New(nil, time.Hour, testLogger()),
	}

	err := p.Run(t.Context(), domain.Query{ID: "pk-1"}, nil)
	assert.ErrorIs(t, err, ErrQueryFailed)
	assert.Contains(t, out.String(), "query failed")
	assert.Contains(t, out.String(), "no results")
}

func TestPrinter_RunCancelled(t *testing.T) {
	src := &scriptedAggregator{statuses: []domain.QueryStatus{{Status: domain.StatusRunning}}}

	var out bytes.Buffer
	p := &Printer{
		Out:      &out,
		QuerySvc: newTestQueryService(t, src),
		Engine:   engine.New(nil, time.Hour, testLogger()),
	}

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	err := p.Run(ctx, domain.Query{ID: "pk-1"}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
