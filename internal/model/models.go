package model

import (
	"encoding/json"
	"time"
)

// Complaint is a locally cached mirror of a remote complaint record.
// Only the fields the client filters or overlays on are first-class columns;
// the rest of the remote record rides along opaquely in Raw.
type Complaint struct {
	ID        int64
	CreatedBy int64
	Status    string
	Priority  string
	Raw       json.RawMessage // full remote JSON, passed through untouched
	CachedAt  time.Time
}

// Comment is a complaint comment, either cached from the remote or created
// locally while offline. Offline comments get a clock-derived ID until the
// server assigns a real one.
type Comment struct {
	ID          int64
	ComplaintID int64
	AuthorID    int64
	AuthorName  string
	Content     string
	IsAnonymous bool
	CreatedAt   time.Time
}

// Like records that a user likes a complaint. The (ComplaintID, UserID) pair
// is the primary key, so at most one record exists per pair.
type Like struct {
	ComplaintID int64
	UserID      int64
	CreatedAt   time.Time
}

// Bookmark records that a user saved a complaint. Same keying as Like.
type Bookmark struct {
	ComplaintID int64
	UserID      int64
	CreatedAt   time.Time
}

// Follow is a directed follow edge between two users, keyed by the ordered
// (FollowerID, FollowingID) pair and indexed both ways.
type Follow struct {
	FollowerID  int64
	FollowingID int64
	CreatedAt   time.Time
}

// User is a write-through cache entry for a remote user lookup.
type User struct {
	ID       int64
	Username string
	FullName string
	CachedAt time.Time
}

// ActionType identifies the kind of mutation a pending action replays.
type ActionType string

const (
	ActionLike            ActionType = "like"
	ActionBookmark        ActionType = "bookmark"
	ActionFollow          ActionType = "follow"
	ActionComment         ActionType = "comment"
	ActionDeleteComplaint ActionType = "delete_complaint"
)

// ActionStatus is the lifecycle state of a pending action.
type ActionStatus string

const (
	StatusPending ActionStatus = "pending"
	StatusFailed  ActionStatus = "failed"
)

// Toggle directions carried by like/bookmark/follow actions.
const (
	OpAdd    = "add"
	OpRemove = "remove"
)

// PendingAction is a queued, not-yet-confirmed mutation awaiting replay
// against the backend. Key is a client-generated idempotency key sent with
// the replayed request so the server can deduplicate re-transmissions.
//
// The payload fields are type-specific:
//   - like/bookmark: ComplaintID, UserID, Op
//   - follow:        UserID (follower), TargetID (followed), Op
//   - comment:       ComplaintID, UserID, Content, IsAnonymous
//   - delete:        ComplaintID
type PendingAction struct {
	ID          int64
	Key         string
	Type        ActionType
	Status      ActionStatus
	ComplaintID int64
	UserID      int64
	TargetID    int64
	Op          string
	Content     string
	IsAnonymous bool
	CreatedAt   time.Time
}

// ComplaintFilter narrows a complaint cache read. Zero values mean
// "no constraint".
type ComplaintFilter struct {
	CreatedBy int64
	Status    string
}
