package testutil

import (
	"context"
	"sync"

	"sch-go/internal/hub"
	"sch-go/internal/model"
)

// FakeRemote is an in-memory hub.Remote for testing. Responses are canned
// per field; failures are scripted either globally via Err or per operation
// via Errs (keyed by "login", "feed", "like", "bookmark", "follow",
// "comments", "post_comment", "delete", "user", "followers", "following",
// "replay").
type FakeRemote struct {
	mu sync.Mutex

	Err  error
	Errs map[string]error

	LoginUser      *hub.RemoteUser
	FeedItems      []hub.RemoteComplaint
	LikeResult     hub.LikeResult
	BookmarkResult hub.BookmarkResult
	FollowResult   hub.FollowResult
	CommentsList   []hub.RemoteComment
	PostedComment  *hub.RemoteComment
	Users          map[int64]*hub.RemoteUser
	FollowersList  []hub.RemoteUser
	FollowingList  []hub.RemoteUser

	// ReplayErrs scripts per-action replay failures, keyed by the
	// action's idempotency key. Falls back to Errs["replay"] / Err.
	ReplayErrs map[string]error

	// Calls records operation names in invocation order. Replayed records
	// a copy of every action passed to Replay.
	Calls    []string
	Replayed []model.PendingAction
}

// NewFakeRemote creates a FakeRemote with empty canned responses.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		Errs:       make(map[string]error),
		ReplayErrs: make(map[string]error),
		Users:      make(map[int64]*hub.RemoteUser),
	}
}

// FailAll makes every call fail with err. Passing nil restores success.
func (f *FakeRemote) FailAll(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

func (f *FakeRemote) called(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, op)
	if err, ok := f.Errs[op]; ok {
		return err
	}
	return f.Err
}

func (f *FakeRemote) Login(_ context.Context, username, _ string) (*hub.RemoteUser, error) {
	if err := f.called("login"); err != nil {
		return nil, err
	}
	if f.LoginUser != nil {
		return f.LoginUser, nil
	}
	return &hub.RemoteUser{ID: 1, Username: username}, nil
}

func (f *FakeRemote) Feed(_ context.Context, _ hub.FeedQuery) ([]hub.RemoteComplaint, error) {
	if err := f.called("feed"); err != nil {
		return nil, err
	}
	return f.FeedItems, nil
}

func (f *FakeRemote) Like(_ context.Context, _ int64) (*hub.LikeResult, error) {
	if err := f.called("like"); err != nil {
		return nil, err
	}
	res := f.LikeResult
	return &res, nil
}

func (f *FakeRemote) Bookmark(_ context.Context, _ int64) (*hub.BookmarkResult, error) {
	if err := f.called("bookmark"); err != nil {
		return nil, err
	}
	res := f.BookmarkResult
	return &res, nil
}

func (f *FakeRemote) Follow(_ context.Context, _ int64) (*hub.FollowResult, error) {
	if err := f.called("follow"); err != nil {
		return nil, err
	}
	res := f.FollowResult
	return &res, nil
}

func (f *FakeRemote) Comments(_ context.Context, _ int64) ([]hub.RemoteComment, error) {
	if err := f.called("comments"); err != nil {
		return nil, err
	}
	return f.CommentsList, nil
}

func (f *FakeRemote) PostComment(_ context.Context, complaintID int64, content string, anonymous bool) (*hub.RemoteComment, error) {
	if err := f.called("post_comment"); err != nil {
		return nil, err
	}
	if f.PostedComment != nil {
		return f.PostedComment, nil
	}
	return &hub.RemoteComment{
		ID:          9000,
		ComplaintID: complaintID,
		Content:     content,
		IsAnonymous: anonymous,
	}, nil
}

func (f *FakeRemote) DeleteComplaint(_ context.Context, _ int64) error {
	return f.called("delete")
}

func (f *FakeRemote) User(_ context.Context, id int64) (*hub.RemoteUser, error) {
	if err := f.called("user"); err != nil {
		return nil, err
	}
	if u, ok := f.Users[id]; ok {
		return u, nil
	}
	return &hub.RemoteUser{ID: id}, nil
}

func (f *FakeRemote) Followers(_ context.Context, _ int64) ([]hub.RemoteUser, error) {
	if err := f.called("followers"); err != nil {
		return nil, err
	}
	return f.FollowersList, nil
}

func (f *FakeRemote) Following(_ context.Context, _ int64) ([]hub.RemoteUser, error) {
	if err := f.called("following"); err != nil {
		return nil, err
	}
	return f.FollowingList, nil
}

func (f *FakeRemote) Replay(_ context.Context, a *model.PendingAction) error {
	err := f.called("replay")
	f.mu.Lock()
	f.Replayed = append(f.Replayed, *a)
	replayErr, ok := f.ReplayErrs[a.Key]
	f.mu.Unlock()
	if ok {
		return replayErr
	}
	return err
}

// Compile-time check
var _ hub.Remote = (*FakeRemote)(nil)
