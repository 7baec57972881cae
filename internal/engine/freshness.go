package engine

import "github.com/mmcdole/arsview/internal/domain"

// NextFreshness returns the state after snap. firstCompletionObserved is
// the session's completion mark as it was before snap was applied.
//
// AwaitingRefresh is never left here: only a refresh request exits it.
// Error is only left by starting a new session.
func NextFreshness(cur FreshnessState, firstCompletionObserved bool, snap domain.PollSnapshot) FreshnessState {
	snap = snap.Normalize()

	switch {
	case cur == FreshnessError, snap.Status == domain.StatusError:
		return FreshnessError
	case cur == FreshnessAwaitingRefresh:
		return FreshnessAwaitingRefresh
	}

	if !snap.Settled() {
		return FreshnessPolling
	}
	if snap.HasFreshResults && firstCompletionObserved {
		return FreshnessAwaitingRefresh
	}
	return FreshnessSynced
}
