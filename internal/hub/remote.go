package hub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"sch-go/internal/model"
)

// ErrUnavailable marks remote failures that should trigger the offline
// fallback: the backend was unreachable, the request timed out, the server
// answered 5xx, or the endpoint does not exist (404 is read as "not
// implemented server-side", not "resource absent"). Implementations wrap
// such failures with this error; anything not wrapped is a definitive
// rejection the backend actually made.
var ErrUnavailable = errors.New("remote unavailable")

// Remote is the backend REST API collaborator. Every call is bounded by the
// caller's context; implementations never retry.
type Remote interface {
	// Login authenticates and returns the server's view of the user.
	Login(ctx context.Context, username, password string) (*RemoteUser, error)

	// Feed returns the canonical complaint list.
	Feed(ctx context.Context, q FeedQuery) ([]RemoteComplaint, error)

	// Like toggles the caller's like on a complaint.
	Like(ctx context.Context, complaintID int64) (*LikeResult, error)

	// Bookmark toggles the caller's bookmark on a complaint.
	Bookmark(ctx context.Context, complaintID int64) (*BookmarkResult, error)

	// Follow toggles the caller's follow edge to another user.
	Follow(ctx context.Context, userID int64) (*FollowResult, error)

	// Comments returns the comments on a complaint.
	Comments(ctx context.Context, complaintID int64) ([]RemoteComment, error)

	// PostComment creates a comment and returns the created record.
	PostComment(ctx context.Context, complaintID int64, content string, anonymous bool) (*RemoteComment, error)

	// DeleteComplaint deletes a complaint.
	DeleteComplaint(ctx context.Context, complaintID int64) error

	// User fetches a user record.
	User(ctx context.Context, id int64) (*RemoteUser, error)

	// Followers and Following list a user's follow edges.
	Followers(ctx context.Context, userID int64) ([]RemoteUser, error)
	Following(ctx context.Context, userID int64) ([]RemoteUser, error)

	// Replay re-transmits a queued offline mutation. The action's Key is
	// sent as an idempotency key so repeated transmission is safe.
	Replay(ctx context.Context, a *model.PendingAction) error
}

// FeedQuery narrows a canonical feed read.
type FeedQuery struct {
	Page      int
	PageSize  int
	Status    string
	CreatedBy int64
}

// RemoteComplaint is the typed shape of a complaint as the backend returns
// it. Raw preserves the exact JSON for the local cache, so fields this
// client does not model still round-trip.
type RemoteComplaint struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	CreatedBy    int64           `json:"created_by"`
	CreatorName  string          `json:"creator_name"`
	IsAnonymous  bool            `json:"is_anonymous"`
	Status       string          `json:"status"`
	Priority     string          `json:"priority"`
	LikeCount    int64           `json:"like_count"`
	CommentCount int64           `json:"comment_count"`
	UserLiked    bool            `json:"user_liked"`
	IsBookmarked bool            `json:"is_bookmarked"`
	CreatedAt    time.Time       `json:"created_at"`
	Raw          json.RawMessage `json:"-"`
}

// RemoteComment is the typed shape of a comment response.
type RemoteComment struct {
	ID          int64     `json:"id"`
	ComplaintID int64     `json:"complaint_id"`
	AuthorID    int64     `json:"author_id"`
	AuthorName  string    `json:"author_name"`
	Content     string    `json:"content"`
	IsAnonymous bool      `json:"is_anonymous"`
	CreatedAt   time.Time `json:"created_at"`
}

// RemoteUser is the typed shape of a user response.
type RemoteUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// LikeResult is the backend's response to a like toggle.
type LikeResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"like_count"`
}

// BookmarkResult is the backend's response to a bookmark toggle.
type BookmarkResult struct {
	Bookmarked bool `json:"bookmarked"`
}

// FollowResult is the backend's response to a follow toggle.
type FollowResult struct {
	Following bool `json:"following"`
}
