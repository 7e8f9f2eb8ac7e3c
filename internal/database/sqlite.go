package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sch-go/internal/database/migrations"
	"sch-go/internal/hub"
	"sch-go/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements the hub.Store interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens the store at path (or ":memory:") and applies any
// pending migrations. Opening an up-to-date store leaves it untouched, so
// initialization is idempotent.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. Exported for tests that need a raw connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: serializes writers and keeps :memory: databases
	// from fragmenting across pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return db, nil
}

// Complaint cache operations

func (s *SQLiteStore) SaveComplaint(c *model.Complaint) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO complaints (id, created_by, status, priority, raw, cached_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.CreatedBy, c.Status, c.Priority, []byte(c.Raw), c.CachedAt)
	if err != nil {
		return fmt.Errorf("saving complaint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Complaint(id int64) (*model.Complaint, error) {
	row := s.db.QueryRow(`
		SELECT id, created_by, status, priority, raw, cached_at
		FROM complaints WHERE id = ?`, id)

	c, err := scanComplaint(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // not cached
		}
		return nil, fmt.Errorf("finding complaint: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) Complaints(filter model.ComplaintFilter) ([]*model.Complaint, error) {
	query := `SELECT id, created_by, status, priority, raw, cached_at FROM complaints`
	var conds []string
	var args []any
	if filter.CreatedBy != 0 {
		conds = append(conds, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing complaints: %w", err)
	}
	defer rows.Close()

	var out []*model.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning complaint: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteComplaint(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM complaints WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting complaint: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComplaint(row rowScanner) (*model.Complaint, error) {
	var c model.Complaint
	var raw []byte
	if err := row.Scan(&c.ID, &c.CreatedBy, &c.Status, &c.Priority, &raw, &c.CachedAt); err != nil {
		return nil, err
	}
	c.Raw = raw
	return &c, nil
}

// Comment operations

func (s *SQLiteStore) SaveComment(c *model.Comment) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO comments (id, complaint_id, author_id, author_name, content, is_anonymous, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ComplaintID, c.AuthorID, c.AuthorName, c.Content, c.IsAnonymous, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving comment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CommentsByComplaint(complaintID int64) ([]*model.Comment, error) {
	rows, err := s.db.Query(`
		SELECT id, complaint_id, author_id, author_name, content, is_anonymous, created_at
		FROM comments WHERE complaint_id = ? ORDER BY created_at, id`, complaintID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	var out []*model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.ComplaintID, &c.AuthorID, &c.AuthorName, &c.Content, &c.IsAnonymous, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Like operations

func (s *SQLiteStore) ToggleLike(complaintID, userID int64, now time.Time) (bool, error) {
	return s.togglePair("likes", complaintID, userID, now)
}

func (s *SQLiteStore) IsLiked(complaintID, userID int64) (bool, error) {
	return s.pairExists("likes", complaintID, userID)
}

func (s *SQLiteStore) LikeCount(complaintID int64) (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM likes WHERE complaint_id = ?`, complaintID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting likes: %w", err)
	}
	return count, nil
}

// Bookmark operations

func (s *SQLiteStore) ToggleBookmark(complaintID, userID int64, now time.Time) (bool, error) {
	return s.togglePair("bookmarks", complaintID, userID, now)
}

func (s *SQLiteStore) IsBookmarked(complaintID, userID int64) (bool, error) {
	return s.pairExists("bookmarks", complaintID, userID)
}

func (s *SQLiteStore) BookmarksByUser(userID int64) ([]*model.Bookmark, error) {
	rows, err := s.db.Query(`
		SELECT complaint_id, user_id, created_at
		FROM bookmarks WHERE user_id = ? ORDER BY created_at, complaint_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing bookmarks: %w", err)
	}
	defer rows.Close()

	var out []*model.Bookmark
	for rows.Next() {
		var b model.Bookmark
		if err := rows.Scan(&b.ComplaintID, &b.UserID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning bookmark: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// togglePair flips a (complaint_id, user_id) row in table, doing the
// existence check and the insert/delete in a single transaction so two
// concurrent toggles can never both insert. table is always a compile-time
// constant.
func (s *SQLiteStore) togglePair(table string, complaintID, userID int64, now time.Time) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRow(
		`SELECT 1 FROM `+table+` WHERE complaint_id = ? AND user_id = ?`,
		complaintID, userID).Scan(&one)

	var on bool
	switch {
	case err == nil:
		if _, err := tx.Exec(
			`DELETE FROM `+table+` WHERE complaint_id = ? AND user_id = ?`,
			complaintID, userID); err != nil {
			return false, fmt.Errorf("deleting from %s: %w", table, err)
		}
		on = false
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.Exec(
			`INSERT INTO `+table+` (complaint_id, user_id, created_at) VALUES (?, ?, ?)`,
			complaintID, userID, now); err != nil {
			return false, fmt.Errorf("inserting into %s: %w", table, err)
		}
		on = true
	default:
		return false, fmt.Errorf("checking %s: %w", table, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing toggle: %w", err)
	}
	return on, nil
}

func (s *SQLiteStore) pairExists(table string, complaintID, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM `+table+` WHERE complaint_id = ? AND user_id = ?`,
		complaintID, userID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", table, err)
	}
	return true, nil
}

// Follow operations

func (s *SQLiteStore) ToggleFollow(followerID, followingID int64, now time.Time) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRow(
		`SELECT 1 FROM follows WHERE follower_id = ? AND following_id = ?`,
		followerID, followingID).Scan(&one)

	var following bool
	switch {
	case err == nil:
		if _, err := tx.Exec(
			`DELETE FROM follows WHERE follower_id = ? AND following_id = ?`,
			followerID, followingID); err != nil {
			return false, fmt.Errorf("deleting follow: %w", err)
		}
		following = false
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.Exec(
			`INSERT INTO follows (follower_id, following_id, created_at) VALUES (?, ?, ?)`,
			followerID, followingID, now); err != nil {
			return false, fmt.Errorf("inserting follow: %w", err)
		}
		following = true
	default:
		return false, fmt.Errorf("checking follow: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing toggle: %w", err)
	}
	return following, nil
}

func (s *SQLiteStore) IsFollowing(followerID, followingID int64) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM follows WHERE follower_id = ? AND following_id = ?`,
		followerID, followingID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("checking follow: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) Followers(userID int64) ([]*model.Follow, error) {
	return s.followEdges(`following_id`, userID)
}

func (s *SQLiteStore) Following(userID int64) ([]*model.Follow, error) {
	return s.followEdges(`follower_id`, userID)
}

func (s *SQLiteStore) followEdges(column string, userID int64) ([]*model.Follow, error) {
	rows, err := s.db.Query(
		`SELECT follower_id, following_id, created_at FROM follows WHERE `+column+` = ? ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("listing follows: %w", err)
	}
	defer rows.Close()

	var out []*model.Follow
	for rows.Next() {
		var f model.Follow
		if err := rows.Scan(&f.FollowerID, &f.FollowingID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning follow: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// User cache operations

func (s *SQLiteStore) SaveUser(u *model.User) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO users (id, username, full_name, cached_at)
		VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, u.FullName, u.CachedAt)
	if err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) User(id int64) (*model.User, error) {
	return s.findUser(`id = ?`, id)
}

func (s *SQLiteStore) UserByUsername(username string) (*model.User, error) {
	return s.findUser(`username = ?`, username)
}

func (s *SQLiteStore) findUser(cond string, arg any) (*model.User, error) {
	var u model.User
	err := s.db.QueryRow(
		`SELECT id, username, full_name, cached_at FROM users WHERE `+cond, arg).
		Scan(&u.ID, &u.Username, &u.FullName, &u.CachedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // not cached
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return &u, nil
}

// Pending action queue operations

func (s *SQLiteStore) AddPendingAction(a *model.PendingAction) (int64, error) {
	a.Status = model.StatusPending
	a.CreatedAt = time.Now()

	res, err := s.db.Exec(`
		INSERT INTO pending_actions (key, type, status, complaint_id, user_id, target_id, op, content, is_anonymous, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Key, string(a.Type), string(a.Status), a.ComplaintID, a.UserID, a.TargetID, a.Op, a.Content, a.IsAnonymous, a.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("appending pending action: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading pending action id: %w", err)
	}
	a.ID = id
	return id, nil
}

func (s *SQLiteStore) PendingActions() ([]*model.PendingAction, error) {
	rows, err := s.db.Query(`
		SELECT id, key, type, status, complaint_id, user_id, target_id, op, content, is_anonymous, created_at
		FROM pending_actions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing pending actions: %w", err)
	}
	defer rows.Close()

	var out []*model.PendingAction
	for rows.Next() {
		var a model.PendingAction
		var typ, status string
		if err := rows.Scan(&a.ID, &a.Key, &typ, &status, &a.ComplaintID, &a.UserID, &a.TargetID, &a.Op, &a.Content, &a.IsAnonymous, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning pending action: %w", err)
		}
		a.Type = model.ActionType(typ)
		a.Status = model.ActionStatus(status)
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PendingActionCount() (int64, error) {
	var count int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM pending_actions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting pending actions: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) RemovePendingAction(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM pending_actions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("removing pending action: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MarkPendingActionFailed(id int64) error {
	_, err := s.db.Exec(`UPDATE pending_actions SET status = ? WHERE id = ?`,
		string(model.StatusFailed), id)
	if err != nil {
		return fmt.Errorf("marking pending action failed: %w", err)
	}
	return nil
}

// PrunePendingActions evicts queue entries until at most max remain.
// Failed entries go first (oldest first), then the oldest pending entries.
func (s *SQLiteStore) PrunePendingActions(max int64) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var count int64
	if err := tx.QueryRow(`SELECT COUNT(*) FROM pending_actions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting pending actions: %w", err)
	}
	if count <= max {
		return 0, nil
	}
	over := count - max

	_, err = tx.Exec(`
		DELETE FROM pending_actions WHERE id IN (
			SELECT id FROM pending_actions
			ORDER BY CASE status WHEN 'failed' THEN 0 ELSE 1 END, id
			LIMIT ?
		)`, over)
	if err != nil {
		return 0, fmt.Errorf("evicting pending actions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing eviction: %w", err)
	}
	return over, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteStore implements hub.Store
var _ hub.Store = (*SQLiteStore)(nil)
