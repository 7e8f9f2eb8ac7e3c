package hub

import (
	"context"
	"errors"
	"fmt"

	"sch-go/internal/model"
)

// SyncReport summarizes one drain of the pending action queue.
type SyncReport struct {
	Attempted  int  // actions transmitted to the backend
	Synced     int  // transmitted and accepted
	Superseded int  // toggle entries collapsed away without transmission
	Failed     int  // definitively rejected and marked failed
	Remaining  int  // entries still queued when the drain ended
	Stopped    bool // drain stopped early because the backend was unavailable
}

// SyncPending drains the pending action queue against the backend in enqueue
// order. Toggle actions on the same key are collapsed to their final
// direction first, so a double-enqueued or re-toggled action is transmitted
// at most once. Entries are removed on success. A fallback-class failure
// (still offline) stops the drain and leaves the remainder queued; a
// definitive rejection marks the entry failed and moves on. Failed entries
// are retried on the next sync.
func (s *Service) SyncPending(ctx context.Context) (*SyncReport, error) {
	if s.store == nil {
		return nil, ErrOfflineUnavailable
	}

	actions, err := s.store.PendingActions()
	if err != nil {
		return nil, fmt.Errorf("reading pending actions: %w", err)
	}

	// Last writer wins per toggle key: only the final entry for a key is
	// transmitted, the rest are superseded.
	last := make(map[string]int64)
	for _, a := range actions {
		if k, ok := toggleKey(a); ok {
			last[k] = a.ID
		}
	}

	report := &SyncReport{}
	for i, a := range actions {
		if k, ok := toggleKey(a); ok && last[k] != a.ID {
			if err := s.store.RemovePendingAction(a.ID); err != nil {
				return report, fmt.Errorf("removing superseded action %d: %w", a.ID, err)
			}
			report.Superseded++
			s.logger.Debug("superseded pending action removed", "action", a.ID, "type", a.Type)
			continue
		}

		report.Attempted++
		rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
		err := s.remote.Replay(rctx, a)
		cancel()

		switch {
		case err == nil:
			if err := s.store.RemovePendingAction(a.ID); err != nil {
				return report, fmt.Errorf("removing synced action %d: %w", a.ID, err)
			}
			report.Synced++
			s.logger.Info("pending action synced", "action", a.ID, "type", a.Type)

		case errors.Is(err, ErrUnavailable):
			report.Stopped = true
			report.Remaining = len(actions) - i
			s.logger.Info("sync stopped, backend unavailable", "remaining", report.Remaining)
			return report, nil

		default:
			if err := s.store.MarkPendingActionFailed(a.ID); err != nil {
				return report, fmt.Errorf("marking action %d failed: %w", a.ID, err)
			}
			report.Failed++
			report.Remaining++
			s.logger.Warn("pending action rejected by backend", "action", a.ID, "type", a.Type, "error", err)
		}
	}
	return report, nil
}

// toggleKey builds the collapse key for toggle-type actions. Comment and
// delete actions are never collapsed.
func toggleKey(a *model.PendingAction) (string, bool) {
	switch a.Type {
	case model.ActionLike, model.ActionBookmark:
		return fmt.Sprintf("%s/%d/%d", a.Type, a.ComplaintID, a.UserID), true
	case model.ActionFollow:
		return fmt.Sprintf("%s/%d/%d", a.Type, a.UserID, a.TargetID), true
	}
	return "", false
}
