package database_test

import (
	"encoding/json"
	"testing"
	"time"

	"sch-go/internal/model"
	"sch-go/internal/testutil"
)

var testNow = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func TestSQLiteStore_ComplaintCache(t *testing.T) {
	t.Run("save and find round-trips raw JSON untouched", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		raw := json.RawMessage(`{"id":42,"title":"Broken AC","vendor_field":"opaque"}`)
		err := store.SaveComplaint(&model.Complaint{
			ID: 42, CreatedBy: 7, Status: "open", Priority: "high",
			Raw: raw, CachedAt: testNow,
		})
		if err != nil {
			t.Fatalf("SaveComplaint() error = %v", err)
		}

		c, err := store.Complaint(42)
		if err != nil {
			t.Fatalf("Complaint() error = %v", err)
		}
		if c == nil {
			t.Fatal("complaint not found after save")
		}
		if string(c.Raw) != string(raw) {
			t.Errorf("raw JSON changed: got %s", c.Raw)
		}
		if c.Status != "open" || c.Priority != "high" {
			t.Errorf("indexed columns wrong: status=%q priority=%q", c.Status, c.Priority)
		}
	})

	t.Run("missing complaint returns nil without error", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		c, err := store.Complaint(999)
		if err != nil {
			t.Fatalf("Complaint() error = %v", err)
		}
		if c != nil {
			t.Errorf("expected nil for missing complaint, got %+v", c)
		}
	})

	t.Run("save with same id replaces", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		first := &model.Complaint{ID: 1, Status: "open", Raw: json.RawMessage(`{"id":1}`), CachedAt: testNow}
		if err := store.SaveComplaint(first); err != nil {
			t.Fatalf("SaveComplaint() error = %v", err)
		}
		second := &model.Complaint{ID: 1, Status: "resolved", Raw: json.RawMessage(`{"id":1,"v":2}`), CachedAt: testNow}
		if err := store.SaveComplaint(second); err != nil {
			t.Fatalf("SaveComplaint() replace error = %v", err)
		}

		c, err := store.Complaint(1)
		if err != nil {
			t.Fatalf("Complaint() error = %v", err)
		}
		if c.Status != "resolved" {
			t.Errorf("replace did not take: status = %q", c.Status)
		}
		all, err := store.Complaints(model.ComplaintFilter{})
		if err != nil {
			t.Fatalf("Complaints() error = %v", err)
		}
		if len(all) != 1 {
			t.Errorf("expected 1 complaint after replace, got %d", len(all))
		}
	})

	t.Run("filter by creator and status", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		seed := []*model.Complaint{
			{ID: 1, CreatedBy: 7, Status: "open", Raw: json.RawMessage(`{}`), CachedAt: testNow},
			{ID: 2, CreatedBy: 7, Status: "resolved", Raw: json.RawMessage(`{}`), CachedAt: testNow},
			{ID: 3, CreatedBy: 8, Status: "open", Raw: json.RawMessage(`{}`), CachedAt: testNow},
		}
		for _, c := range seed {
			if err := store.SaveComplaint(c); err != nil {
				t.Fatalf("SaveComplaint(%d) error = %v", c.ID, err)
			}
		}

		mine, err := store.Complaints(model.ComplaintFilter{CreatedBy: 7})
		if err != nil {
			t.Fatalf("Complaints() error = %v", err)
		}
		if len(mine) != 2 {
			t.Errorf("creator filter: expected 2, got %d", len(mine))
		}

		open, err := store.Complaints(model.ComplaintFilter{Status: "open"})
		if err != nil {
			t.Fatalf("Complaints() error = %v", err)
		}
		if len(open) != 2 {
			t.Errorf("status filter: expected 2, got %d", len(open))
		}

		both, err := store.Complaints(model.ComplaintFilter{CreatedBy: 7, Status: "open"})
		if err != nil {
			t.Fatalf("Complaints() error = %v", err)
		}
		if len(both) != 1 || both[0].ID != 1 {
			t.Errorf("combined filter: got %+v", both)
		}
	})

	t.Run("delete is a no-op for missing keys", func(t *testing.T) {
		store := testutil.NewTestStore(t)
		if err := store.DeleteComplaint(123); err != nil {
			t.Fatalf("DeleteComplaint() on absent key error = %v", err)
		}
	})
}

func TestSQLiteStore_ToggleLike(t *testing.T) {
	t.Run("toggle on then off", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		liked, err := store.ToggleLike(42, 7, testNow)
		if err != nil {
			t.Fatalf("ToggleLike() error = %v", err)
		}
		if !liked {
			t.Error("first toggle should turn the like on")
		}

		liked, err = store.ToggleLike(42, 7, testNow)
		if err != nil {
			t.Fatalf("second ToggleLike() error = %v", err)
		}
		if liked {
			t.Error("second toggle should turn the like off")
		}

		on, err := store.IsLiked(42, 7)
		if err != nil {
			t.Fatalf("IsLiked() error = %v", err)
		}
		if on {
			t.Error("like should be gone after double toggle")
		}
	})

	t.Run("at most one record per pair", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		// on, off, on again
		for i := 0; i < 3; i++ {
			if _, err := store.ToggleLike(42, 7, testNow); err != nil {
				t.Fatalf("ToggleLike() #%d error = %v", i, err)
			}
		}

		count, err := store.LikeCount(42)
		if err != nil {
			t.Fatalf("LikeCount() error = %v", err)
		}
		if count != 1 {
			t.Errorf("expected exactly 1 like record, got %d", count)
		}
	})

	t.Run("counts are per complaint", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		store.ToggleLike(1, 7, testNow)
		store.ToggleLike(1, 8, testNow)
		store.ToggleLike(2, 7, testNow)

		count, err := store.LikeCount(1)
		if err != nil {
			t.Fatalf("LikeCount() error = %v", err)
		}
		if count != 2 {
			t.Errorf("LikeCount(1) = %d, want 2", count)
		}
	})
}

func TestSQLiteStore_ToggleBookmark(t *testing.T) {
	t.Run("bookmark lifecycle for one user", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		on, err := store.ToggleBookmark(42, 7, testNow)
		if err != nil {
			t.Fatalf("ToggleBookmark() error = %v", err)
		}
		if !on {
			t.Error("first toggle should bookmark")
		}

		marked, err := store.IsBookmarked(42, 7)
		if err != nil {
			t.Fatalf("IsBookmarked() error = %v", err)
		}
		if !marked {
			t.Error("bookmark should exist")
		}

		list, err := store.BookmarksByUser(7)
		if err != nil {
			t.Fatalf("BookmarksByUser() error = %v", err)
		}
		if len(list) != 1 || list[0].ComplaintID != 42 || list[0].UserID != 7 {
			t.Errorf("bookmark list wrong: %+v", list)
		}

		on, err = store.ToggleBookmark(42, 7, testNow)
		if err != nil {
			t.Fatalf("second ToggleBookmark() error = %v", err)
		}
		if on {
			t.Error("second toggle should remove the bookmark")
		}

		list, err = store.BookmarksByUser(7)
		if err != nil {
			t.Fatalf("BookmarksByUser() error = %v", err)
		}
		if len(list) != 0 {
			t.Errorf("expected empty bookmark list, got %+v", list)
		}
	})

	t.Run("bookmarks are scoped per user", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		store.ToggleBookmark(42, 7, testNow)
		store.ToggleBookmark(42, 8, testNow)
		store.ToggleBookmark(43, 8, testNow)

		list, err := store.BookmarksByUser(7)
		if err != nil {
			t.Fatalf("BookmarksByUser() error = %v", err)
		}
		if len(list) != 1 {
			t.Errorf("user 7 should have 1 bookmark, got %d", len(list))
		}

		list, err = store.BookmarksByUser(8)
		if err != nil {
			t.Fatalf("BookmarksByUser() error = %v", err)
		}
		if len(list) != 2 {
			t.Errorf("user 8 should have 2 bookmarks, got %d", len(list))
		}
	})
}

func TestSQLiteStore_ToggleFollow(t *testing.T) {
	t.Run("follow edge is directed", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		on, err := store.ToggleFollow(7, 12, testNow)
		if err != nil {
			t.Fatalf("ToggleFollow() error = %v", err)
		}
		if !on {
			t.Error("first toggle should follow")
		}

		following, err := store.IsFollowing(7, 12)
		if err != nil {
			t.Fatalf("IsFollowing() error = %v", err)
		}
		if !following {
			t.Error("edge 7->12 should exist")
		}

		reverse, err := store.IsFollowing(12, 7)
		if err != nil {
			t.Fatalf("IsFollowing() reverse error = %v", err)
		}
		if reverse {
			t.Error("edge 12->7 must not exist")
		}
	})

	t.Run("followers and following query opposite columns", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		store.ToggleFollow(7, 12, testNow)
		store.ToggleFollow(8, 12, testNow)
		store.ToggleFollow(12, 7, testNow)

		followers, err := store.Followers(12)
		if err != nil {
			t.Fatalf("Followers() error = %v", err)
		}
		if len(followers) != 2 {
			t.Errorf("user 12 should have 2 followers, got %d", len(followers))
		}

		following, err := store.Following(12)
		if err != nil {
			t.Fatalf("Following() error = %v", err)
		}
		if len(following) != 1 || following[0].FollowingID != 7 {
			t.Errorf("user 12 following list wrong: %+v", following)
		}
	})
}

func TestSQLiteStore_UserCache(t *testing.T) {
	t.Run("lookup by id and by username", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		err := store.SaveUser(&model.User{ID: 3, Username: "maria", FullName: "Maria S", CachedAt: testNow})
		if err != nil {
			t.Fatalf("SaveUser() error = %v", err)
		}

		u, err := store.User(3)
		if err != nil {
			t.Fatalf("User() error = %v", err)
		}
		if u == nil || u.Username != "maria" {
			t.Errorf("User(3) = %+v", u)
		}

		u, err = store.UserByUsername("maria")
		if err != nil {
			t.Fatalf("UserByUsername() error = %v", err)
		}
		if u == nil || u.ID != 3 {
			t.Errorf("UserByUsername = %+v", u)
		}
	})

	t.Run("missing user returns nil without error", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		u, err := store.User(404)
		if err != nil {
			t.Fatalf("User() error = %v", err)
		}
		if u != nil {
			t.Errorf("expected nil, got %+v", u)
		}
		u, err = store.UserByUsername("ghost")
		if err != nil {
			t.Fatalf("UserByUsername() error = %v", err)
		}
		if u != nil {
			t.Errorf("expected nil, got %+v", u)
		}
	})
}

func TestSQLiteStore_Comments(t *testing.T) {
	t.Run("comments come back oldest first", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		later := testNow.Add(time.Minute)
		store.SaveComment(&model.Comment{ID: 2, ComplaintID: 99, AuthorID: 3, Content: "second", CreatedAt: later})
		store.SaveComment(&model.Comment{ID: 1, ComplaintID: 99, AuthorID: 3, Content: "first", CreatedAt: testNow})
		store.SaveComment(&model.Comment{ID: 3, ComplaintID: 100, AuthorID: 3, Content: "elsewhere", CreatedAt: testNow})

		comments, err := store.CommentsByComplaint(99)
		if err != nil {
			t.Fatalf("CommentsByComplaint() error = %v", err)
		}
		if len(comments) != 2 {
			t.Fatalf("expected 2 comments, got %d", len(comments))
		}
		if comments[0].Content != "first" || comments[1].Content != "second" {
			t.Errorf("wrong order: %q then %q", comments[0].Content, comments[1].Content)
		}
	})
}

func TestSQLiteStore_PendingQueue(t *testing.T) {
	t.Run("append preserves insertion order and never dedups", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		// The same logical toggle enqueued twice stays twice.
		a1 := &model.PendingAction{Key: "k1", Type: model.ActionLike, ComplaintID: 42, UserID: 7, Op: model.OpAdd}
		a2 := &model.PendingAction{Key: "k2", Type: model.ActionLike, ComplaintID: 42, UserID: 7, Op: model.OpRemove}
		if _, err := store.AddPendingAction(a1); err != nil {
			t.Fatalf("AddPendingAction() error = %v", err)
		}
		if _, err := store.AddPendingAction(a2); err != nil {
			t.Fatalf("AddPendingAction() error = %v", err)
		}

		actions, err := store.PendingActions()
		if err != nil {
			t.Fatalf("PendingActions() error = %v", err)
		}
		if len(actions) != 2 {
			t.Fatalf("expected 2 queued actions, got %d", len(actions))
		}
		if actions[0].Key != "k1" || actions[1].Key != "k2" {
			t.Errorf("wrong order: %s then %s", actions[0].Key, actions[1].Key)
		}
	})

	t.Run("append forces pending status and stamps created_at", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		a := &model.PendingAction{
			Key: "k1", Type: model.ActionComment, ComplaintID: 99, UserID: 3,
			Content: "test",
			Status:  model.StatusFailed, // caller-supplied status must be ignored
		}
		id, err := store.AddPendingAction(a)
		if err != nil {
			t.Fatalf("AddPendingAction() error = %v", err)
		}
		if id == 0 || a.ID != id {
			t.Errorf("assigned id not propagated: id=%d a.ID=%d", id, a.ID)
		}

		actions, _ := store.PendingActions()
		if actions[0].Status != model.StatusPending {
			t.Errorf("status = %s, want pending", actions[0].Status)
		}
		if actions[0].CreatedAt.IsZero() {
			t.Error("created_at was not stamped")
		}
	})

	t.Run("mark failed and remove", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		id1, _ := store.AddPendingAction(&model.PendingAction{Key: "k1", Type: model.ActionLike, ComplaintID: 1, UserID: 7, Op: model.OpAdd})
		id2, _ := store.AddPendingAction(&model.PendingAction{Key: "k2", Type: model.ActionLike, ComplaintID: 2, UserID: 7, Op: model.OpAdd})

		if err := store.MarkPendingActionFailed(id1); err != nil {
			t.Fatalf("MarkPendingActionFailed() error = %v", err)
		}
		if err := store.RemovePendingAction(id2); err != nil {
			t.Fatalf("RemovePendingAction() error = %v", err)
		}

		actions, _ := store.PendingActions()
		if len(actions) != 1 {
			t.Fatalf("expected 1 action left, got %d", len(actions))
		}
		if actions[0].ID != id1 || actions[0].Status != model.StatusFailed {
			t.Errorf("remaining action wrong: %+v", actions[0])
		}
	})

	t.Run("prune evicts failed entries before pending ones", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		var ids []int64
		for i := 0; i < 5; i++ {
			id, err := store.AddPendingAction(&model.PendingAction{
				Key: "k", Type: model.ActionLike, ComplaintID: int64(i + 1), UserID: 7, Op: model.OpAdd,
			})
			if err != nil {
				t.Fatalf("AddPendingAction() error = %v", err)
			}
			ids = append(ids, id)
		}
		// Mark a newer entry failed; it must still be evicted first.
		store.MarkPendingActionFailed(ids[3])

		evicted, err := store.PrunePendingActions(3)
		if err != nil {
			t.Fatalf("PrunePendingActions() error = %v", err)
		}
		if evicted != 2 {
			t.Errorf("evicted = %d, want 2", evicted)
		}

		actions, _ := store.PendingActions()
		if len(actions) != 3 {
			t.Fatalf("expected 3 left, got %d", len(actions))
		}
		for _, a := range actions {
			if a.ID == ids[3] {
				t.Error("failed entry survived eviction")
			}
			if a.ID == ids[0] {
				t.Error("oldest pending entry survived while queue still over cap")
			}
		}
	})

	t.Run("prune under cap is a no-op", func(t *testing.T) {
		store := testutil.NewTestStore(t)

		store.AddPendingAction(&model.PendingAction{Key: "k1", Type: model.ActionLike, ComplaintID: 1, UserID: 7, Op: model.OpAdd})

		evicted, err := store.PrunePendingActions(10)
		if err != nil {
			t.Fatalf("PrunePendingActions() error = %v", err)
		}
		if evicted != 0 {
			t.Errorf("evicted = %d, want 0", evicted)
		}
		count, _ := store.PendingActionCount()
		if count != 1 {
			t.Errorf("count = %d, want 1", count)
		}
	})
}
