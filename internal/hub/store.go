package hub

import (
	"time"

	"sch-go/internal/model"
)

// Store is the client-local persistent store: seven named collections with
// keyed CRUD and indexed lookup. The store is the only component that touches
// the underlying database; everything else goes through these operations.
//
// Lookup methods return (nil, nil) when the record does not exist, and delete
// operations on absent keys are no-ops. Implementations must run each toggle's
// read-check-then-write inside a single transaction so the at-most-one-record
// invariant holds under concurrent callers.
type Store interface {
	// Complaint cache

	// SaveComplaint inserts or replaces a cached complaint by ID.
	SaveComplaint(c *model.Complaint) error

	// Complaint returns the cached complaint, or nil if not cached.
	Complaint(id int64) (*model.Complaint, error)

	// Complaints returns all cached complaints matching the filter,
	// most recently created first.
	Complaints(filter model.ComplaintFilter) ([]*model.Complaint, error)

	// DeleteComplaint removes a complaint from the cache.
	DeleteComplaint(id int64) error

	// Comments

	// SaveComment inserts or replaces a comment by ID.
	SaveComment(c *model.Comment) error

	// CommentsByComplaint returns all comments for a complaint,
	// oldest first.
	CommentsByComplaint(complaintID int64) ([]*model.Comment, error)

	// Likes

	// ToggleLike flips the like state for (complaintID, userID) and
	// returns the new state. The check and the insert/delete happen in
	// one transaction.
	ToggleLike(complaintID, userID int64, now time.Time) (liked bool, err error)

	// IsLiked reports whether the user currently likes the complaint.
	IsLiked(complaintID, userID int64) (bool, error)

	// LikeCount returns the number of local like records for a complaint.
	LikeCount(complaintID int64) (int64, error)

	// Bookmarks

	// ToggleBookmark flips the bookmark state for (complaintID, userID)
	// and returns the new state.
	ToggleBookmark(complaintID, userID int64, now time.Time) (bookmarked bool, err error)

	// IsBookmarked reports whether the user has the complaint bookmarked.
	IsBookmarked(complaintID, userID int64) (bool, error)

	// BookmarksByUser returns all bookmarks belonging to a user.
	BookmarksByUser(userID int64) ([]*model.Bookmark, error)

	// Follows

	// ToggleFollow flips the follow edge (followerID -> followingID) and
	// returns the new state.
	ToggleFollow(followerID, followingID int64, now time.Time) (following bool, err error)

	// IsFollowing reports whether the follow edge exists.
	IsFollowing(followerID, followingID int64) (bool, error)

	// Followers returns the edges pointing at userID ("who follows me").
	Followers(userID int64) ([]*model.Follow, error)

	// Following returns the edges originating at userID ("who I follow").
	Following(userID int64) ([]*model.Follow, error)

	// User cache

	// SaveUser inserts or replaces a cached user by ID.
	SaveUser(u *model.User) error

	// User returns the cached user, or nil if not cached.
	User(id int64) (*model.User, error)

	// UserByUsername looks a cached user up by the unique username index.
	UserByUsername(username string) (*model.User, error)

	// Pending action queue

	// AddPendingAction appends an action to the queue. Status and
	// CreatedAt are forced by the store; the assigned ID is returned.
	// The queue never deduplicates on append.
	AddPendingAction(a *model.PendingAction) (int64, error)

	// PendingActions returns the whole queue in insertion order.
	PendingActions() ([]*model.PendingAction, error)

	// PendingActionCount returns the queue length.
	PendingActionCount() (int64, error)

	// RemovePendingAction removes an entry by ID.
	RemovePendingAction(id int64) error

	// MarkPendingActionFailed sets an entry's status to failed.
	MarkPendingActionFailed(id int64) error

	// PrunePendingActions evicts entries until at most max remain,
	// removing failed entries oldest-first, then pending entries
	// oldest-first. Returns how many were evicted.
	PrunePendingActions(max int64) (int64, error)

	// Close closes the store.
	Close() error
}
