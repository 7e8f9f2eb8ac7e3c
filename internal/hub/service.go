package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sch-go/internal/model"
)

// Errors surfaced to callers before any remote or local attempt is made.
var (
	// ErrOfflineUnavailable means a mutation failed remotely and no local
	// store is available to absorb it this session.
	ErrOfflineUnavailable = errors.New("offline storage unavailable")

	// ErrEmptyContent rejects a comment with no text.
	ErrEmptyContent = errors.New("comment content is empty")

	// ErrInvalidID rejects a non-positive record id.
	ErrInvalidID = errors.New("id must be positive")
)

const (
	defaultRemoteTimeout = 10 * time.Second
	defaultMaxPending    = 1000
)

// Options tune coordinator behavior. Zero values select the defaults.
type Options struct {
	// RemoteTimeout bounds each remote attempt before the fallback kicks
	// in, so a hung request cannot stall the offline path.
	RemoteTimeout time.Duration

	// MaxPending caps the pending action queue.
	MaxPending int64
}

// Service coordinates every user-facing operation: mutations go remote-first
// and fall back to the local store plus a pending action on any remote
// failure; reads fetch canonical remote data and overlay local relation
// state on top.
//
// store may be nil when local storage could not be opened. The service then
// runs online-only: reads skip the overlay and mutations report
// ErrOfflineUnavailable instead of falling back.
type Service struct {
	store  Store
	remote Remote
	logger Logger
	clock  Clock
	keys   KeyGenerator

	remoteTimeout time.Duration
	maxPending    int64
}

// NewService creates a Service with the provided dependencies.
func NewService(store Store, remote Remote, logger Logger, clock Clock, keys KeyGenerator, opts Options) *Service {
	if logger == nil {
		logger = NewNopLogger()
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = defaultRemoteTimeout
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = defaultMaxPending
	}
	return &Service{
		store:         store,
		remote:        remote,
		logger:        logger,
		clock:         clock,
		keys:          keys,
		remoteTimeout: opts.RemoteTimeout,
		maxPending:    opts.MaxPending,
	}
}

// Outcome says which side of the remote-first policy produced a result.
type Outcome struct {
	// Remote is true when the backend accepted the call and its response
	// is authoritative. False means the local store absorbed the
	// mutation and a pending action was queued.
	Remote bool

	// Reason holds the remote failure that triggered the fallback.
	// Nil when Remote is true.
	Reason error
}

// Fallback reports whether the result came from the local store.
func (o Outcome) Fallback() bool { return !o.Remote }

// LikeOutcome is the result of a like toggle.
type LikeOutcome struct {
	Outcome
	Liked     bool
	LikeCount int64
}

// BookmarkOutcome is the result of a bookmark toggle.
type BookmarkOutcome struct {
	Outcome
	Bookmarked bool
}

// FollowOutcome is the result of a follow toggle.
type FollowOutcome struct {
	Outcome
	Following bool
}

// CommentOutcome is the result of posting a comment.
type CommentOutcome struct {
	Outcome
	Comment *model.Comment
}

// DeleteOutcome is the result of a complaint deletion.
type DeleteOutcome struct {
	Outcome
}

// Author identifies who is writing a comment and how they appear.
type Author struct {
	ID        int64
	Name      string
	Anonymous bool
}

// attempt runs one bounded remote call. ok=false means the caller must take
// the local fallback; reason carries the remote failure. Every failure class
// selects the fallback here — network errors, timeouts, missing endpoints
// and other HTTP errors alike — because mutations absorb them all.
func attempt[T any](ctx context.Context, s *Service, op string, fn func(context.Context) (T, error)) (v T, ok bool, reason error) {
	ctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()

	v, err := fn(ctx)
	if err != nil {
		s.logger.Warn("remote call failed, using local fallback", "op", op, "error", err)
		var zero T
		return zero, false, err
	}
	return v, true, nil
}

// ToggleLike flips the caller's like on a complaint, remote-first.
func (s *Service) ToggleLike(ctx context.Context, complaintID, userID int64) (*LikeOutcome, error) {
	if complaintID <= 0 || userID <= 0 {
		return nil, fmt.Errorf("toggle like: %w", ErrInvalidID)
	}

	res, ok, reason := attempt(ctx, s, "like", func(ctx context.Context) (*LikeResult, error) {
		return s.remote.Like(ctx, complaintID)
	})
	if ok {
		return &LikeOutcome{
			Outcome:   Outcome{Remote: true},
			Liked:     res.Liked,
			LikeCount: res.LikeCount,
		}, nil
	}

	if s.store == nil {
		return nil, fmt.Errorf("toggle like: %w", ErrOfflineUnavailable)
	}

	liked, err := s.store.ToggleLike(complaintID, userID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("local like toggle: %w", err)
	}
	count, err := s.store.LikeCount(complaintID)
	if err != nil {
		return nil, fmt.Errorf("local like count: %w", err)
	}

	if err := s.enqueue(&model.PendingAction{
		Type:        model.ActionLike,
		ComplaintID: complaintID,
		UserID:      userID,
		Op:          toggleOp(liked),
	}); err != nil {
		return nil, err
	}

	return &LikeOutcome{
		Outcome:   Outcome{Reason: reason},
		Liked:     liked,
		LikeCount: count,
	}, nil
}

// ToggleBookmark flips the caller's bookmark on a complaint, remote-first.
func (s *Service) ToggleBookmark(ctx context.Context, complaintID, userID int64) (*BookmarkOutcome, error) {
	if complaintID <= 0 || userID <= 0 {
		return nil, fmt.Errorf("toggle bookmark: %w", ErrInvalidID)
	}

	res, ok, reason := attempt(ctx, s, "bookmark", func(ctx context.Context) (*BookmarkResult, error) {
		return s.remote.Bookmark(ctx, complaintID)
	})
	if ok {
		return &BookmarkOutcome{
			Outcome:    Outcome{Remote: true},
			Bookmarked: res.Bookmarked,
		}, nil
	}

	if s.store == nil {
		return nil, fmt.Errorf("toggle bookmark: %w", ErrOfflineUnavailable)
	}

	bookmarked, err := s.store.ToggleBookmark(complaintID, userID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("local bookmark toggle: %w", err)
	}

	if err := s.enqueue(&model.PendingAction{
		Type:        model.ActionBookmark,
		ComplaintID: complaintID,
		UserID:      userID,
		Op:          toggleOp(bookmarked),
	}); err != nil {
		return nil, err
	}

	return &BookmarkOutcome{
		Outcome:    Outcome{Reason: reason},
		Bookmarked: bookmarked,
	}, nil
}

// ToggleFollow flips the follow edge from followerID to followingID,
// remote-first.
func (s *Service) ToggleFollow(ctx context.Context, followerID, followingID int64) (*FollowOutcome, error) {
	if followerID <= 0 || followingID <= 0 {
		return nil, fmt.Errorf("toggle follow: %w", ErrInvalidID)
	}

	res, ok, reason := attempt(ctx, s, "follow", func(ctx context.Context) (*FollowResult, error) {
		return s.remote.Follow(ctx, followingID)
	})
	if ok {
		return &FollowOutcome{
			Outcome:   Outcome{Remote: true},
			Following: res.Following,
		}, nil
	}

	if s.store == nil {
		return nil, fmt.Errorf("toggle follow: %w", ErrOfflineUnavailable)
	}

	following, err := s.store.ToggleFollow(followerID, followingID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("local follow toggle: %w", err)
	}

	if err := s.enqueue(&model.PendingAction{
		Type:     model.ActionFollow,
		UserID:   followerID,
		TargetID: followingID,
		Op:       toggleOp(following),
	}); err != nil {
		return nil, err
	}

	return &FollowOutcome{
		Outcome:   Outcome{Reason: reason},
		Following: following,
	}, nil
}

// AddComment posts a comment remote-first. On fallback it synthesizes a
// local comment with a clock-derived id and queues the post for replay.
// Empty content is rejected before any attempt.
func (s *Service) AddComment(ctx context.Context, complaintID int64, author Author, content string) (*CommentOutcome, error) {
	if complaintID <= 0 || author.ID <= 0 {
		return nil, fmt.Errorf("add comment: %w", ErrInvalidID)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("add comment: %w", ErrEmptyContent)
	}

	res, ok, reason := attempt(ctx, s, "comment", func(ctx context.Context) (*RemoteComment, error) {
		return s.remote.PostComment(ctx, complaintID, content, author.Anonymous)
	})
	if ok {
		c := &model.Comment{
			ID:          res.ID,
			ComplaintID: res.ComplaintID,
			AuthorID:    res.AuthorID,
			AuthorName:  res.AuthorName,
			Content:     res.Content,
			IsAnonymous: res.IsAnonymous,
			CreatedAt:   res.CreatedAt,
		}
		if s.store != nil {
			if err := s.store.SaveComment(c); err != nil {
				s.logger.Warn("caching created comment failed", "comment", c.ID, "error", err)
			}
		}
		return &CommentOutcome{Outcome: Outcome{Remote: true}, Comment: c}, nil
	}

	if s.store == nil {
		return nil, fmt.Errorf("add comment: %w", ErrOfflineUnavailable)
	}

	now := s.clock.Now()
	c := &model.Comment{
		ID:          now.UnixMilli(), // provisional id until the server assigns one
		ComplaintID: complaintID,
		AuthorID:    author.ID,
		AuthorName:  displayName(author),
		Content:     content,
		IsAnonymous: author.Anonymous,
		CreatedAt:   now,
	}
	if err := s.store.SaveComment(c); err != nil {
		return nil, fmt.Errorf("saving offline comment: %w", err)
	}

	if err := s.enqueue(&model.PendingAction{
		Type:        model.ActionComment,
		ComplaintID: complaintID,
		UserID:      author.ID,
		Content:     content,
		IsAnonymous: author.Anonymous,
	}); err != nil {
		return nil, err
	}

	return &CommentOutcome{Outcome: Outcome{Reason: reason}, Comment: c}, nil
}

// DeleteComplaint deletes a complaint remote-first. On fallback the cached
// copy stays in place and a delete action is queued; the pending delete
// tombstones the complaint out of every subsequent read.
func (s *Service) DeleteComplaint(ctx context.Context, complaintID int64) (*DeleteOutcome, error) {
	if complaintID <= 0 {
		return nil, fmt.Errorf("delete complaint: %w", ErrInvalidID)
	}

	_, ok, reason := attempt(ctx, s, "delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.remote.DeleteComplaint(ctx, complaintID)
	})
	if ok {
		if s.store != nil {
			if err := s.store.DeleteComplaint(complaintID); err != nil {
				s.logger.Warn("removing deleted complaint from cache failed", "complaint", complaintID, "error", err)
			}
		}
		return &DeleteOutcome{Outcome: Outcome{Remote: true}}, nil
	}

	if s.store == nil {
		return nil, fmt.Errorf("delete complaint: %w", ErrOfflineUnavailable)
	}

	if err := s.enqueue(&model.PendingAction{
		Type:        model.ActionDeleteComplaint,
		ComplaintID: complaintID,
	}); err != nil {
		return nil, err
	}

	return &DeleteOutcome{Outcome: Outcome{Reason: reason}}, nil
}

// Login authenticates against the backend. There is no offline fallback for
// authentication; a successful lookup is written through to the user cache.
func (s *Service) Login(ctx context.Context, username, password string) (*model.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("login: username is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()

	ru, err := s.remote.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	u := &model.User{
		ID:       ru.ID,
		Username: ru.Username,
		FullName: ru.FullName,
		CachedAt: s.clock.Now(),
	}
	if s.store != nil {
		if err := s.store.SaveUser(u); err != nil {
			s.logger.Warn("caching logged-in user failed", "user", u.ID, "error", err)
		}
	}
	return u, nil
}

// PendingActions returns the queued offline mutations in insertion order.
func (s *Service) PendingActions() ([]*model.PendingAction, error) {
	if s.store == nil {
		return nil, ErrOfflineUnavailable
	}
	return s.store.PendingActions()
}

// enqueue appends a pending action, stamping its idempotency key and
// enforcing the queue cap.
func (s *Service) enqueue(a *model.PendingAction) error {
	a.Key = s.keys.New()
	if _, err := s.store.AddPendingAction(a); err != nil {
		return fmt.Errorf("queueing pending action: %w", err)
	}

	evicted, err := s.store.PrunePendingActions(s.maxPending)
	if err != nil {
		return fmt.Errorf("pruning pending actions: %w", err)
	}
	if evicted > 0 {
		s.logger.Warn("pending queue full, evicted oldest entries", "evicted", evicted, "max", s.maxPending)
	}
	return nil
}

func toggleOp(on bool) string {
	if on {
		return model.OpAdd
	}
	return model.OpRemove
}

func displayName(a Author) string {
	if a.Anonymous {
		return "Unknown User"
	}
	return a.Name
}
