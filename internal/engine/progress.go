package engine

import (
	"math"

	"github.com/mmcdole/arsview/internal/domain"
)

const (
	fullPercent = 100

	// holdBackPercent is shown when a later settlement brought results the
	// user has not merged yet.
	holdBackPercent = 95

	// intervalOffset keeps the bar short of each agent boundary until the
	// round is confirmed complete.
	intervalOffset = 5
)

// DisplayProgress is the progress indicator derived from one snapshot.
type DisplayProgress struct {
	Percentage int  // 0-100
	Pulsing    bool // true while Percentage < 100
}

// Done reports whether the indicator reads complete
func (p DisplayProgress) Done() bool {
	return p.Percentage >= fullPercent
}

func newDisplayProgress(pct int) DisplayProgress {
	pct = max(0, min(pct, fullPercent))
	return DisplayProgress{Percentage: pct, Pulsing: pct < fullPercent}
}

// ComputeDisplayProgress maps a snapshot onto the progress indicator and
// returns the session with its completion mark and high-water mark updated.
//
// Rules, first match wins:
//  1. An error status reads 100.
//  2. A settled round reads 100, except that a settlement after the first
//     one with unmerged results reads 95 until the user refreshes.
//  3. An unsettled round reads the returned-agent fraction less 5 points.
//
// The result never drops below sess.LastDisplayedPercentage, other than the
// 95 hold-back, which leaves the high-water mark untouched.
func ComputeDisplayProgress(prev DisplayProgress, sess Session, snap domain.PollSnapshot) (DisplayProgress, Session) {
	snap = snap.Normalize()

	if snap.Status == domain.StatusError {
		sess.LastDisplayedPercentage = fullPercent
		return newDisplayProgress(fullPercent), sess
	}

	if snap.Settled() {
		switch {
		case !sess.FirstCompletionObserved:
			sess.FirstCompletionObserved = true
			return raise(sess, fullPercent)
		case snap.StatusIndeterminate && prev.Percentage != fullPercent:
			return raise(sess, fullPercent)
		case snap.HasFreshResults:
			return newDisplayProgress(holdBackPercent), sess
		default:
			return raise(sess, fullPercent)
		}
	}

	ratio := float64(snap.ReturnedAgentCount) / float64(snap.TotalAgentCount)
	pct := int(math.Round(ratio*100)) - intervalOffset
	return raise(sess, pct)
}

// raise clamps pct to [sess.LastDisplayedPercentage, 100] and records it.
func raise(sess Session, pct int) (DisplayProgress, Session) {
	pct = max(pct, sess.LastDisplayedPercentage)
	p := newDisplayProgress(pct)
	sess.LastDisplayedPercentage = p.Percentage
	return p, sess
}
