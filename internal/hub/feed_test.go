package hub_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"sch-go/internal/hub"
	"sch-go/internal/model"
	"sch-go/internal/testutil"
)

func remoteComplaint(id int64, title string) hub.RemoteComplaint {
	raw, _ := json.Marshal(map[string]any{"id": id, "title": title, "status": "open"})
	return hub.RemoteComplaint{ID: id, Title: title, Status: "open", Raw: raw}
}

func TestService_Feed(t *testing.T) {
	t.Run("local relation state overlays the remote feed", func(t *testing.T) {
		f := newFixture(t)
		f.remote.FeedItems = []hub.RemoteComplaint{
			remoteComplaint(1, "one"),
			remoteComplaint(2, "two"),
		}

		// Offline like and bookmark on complaint 1 the server knows
		// nothing about.
		f.store.ToggleLike(1, 7, f.clock.Now())
		f.store.ToggleBookmark(1, 7, f.clock.Now())

		items, err := f.svc.Feed(context.Background(), 7, hub.FeedQuery{})
		if err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(items))
		}

		if !items[0].UserLiked || !items[0].Bookmarked {
			t.Errorf("local state not overlaid: %+v", items[0])
		}
		if items[0].LikeCount != 1 {
			t.Errorf("local like count not merged: %d", items[0].LikeCount)
		}
		if items[1].UserLiked || items[1].Bookmarked {
			t.Errorf("overlay leaked to wrong item: %+v", items[1])
		}
	})

	t.Run("remote like count wins when larger", func(t *testing.T) {
		f := newFixture(t)
		item := remoteComplaint(1, "popular")
		item.LikeCount = 50
		f.remote.FeedItems = []hub.RemoteComplaint{item}

		f.store.ToggleLike(1, 7, f.clock.Now())

		items, err := f.svc.Feed(context.Background(), 7, hub.FeedQuery{})
		if err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
		if items[0].LikeCount != 50 {
			t.Errorf("LikeCount = %d, want remote 50", items[0].LikeCount)
		}
	})

	t.Run("remote feed is cached write-through", func(t *testing.T) {
		f := newFixture(t)
		f.remote.FeedItems = []hub.RemoteComplaint{remoteComplaint(1, "one")}

		if _, err := f.svc.Feed(context.Background(), 7, hub.FeedQuery{}); err != nil {
			t.Fatalf("Feed() error = %v", err)
		}

		cached, err := f.store.Complaint(1)
		if err != nil {
			t.Fatalf("Complaint() error = %v", err)
		}
		if cached == nil {
			t.Fatal("feed item not cached")
		}
		var decoded map[string]any
		if err := json.Unmarshal(cached.Raw, &decoded); err != nil {
			t.Fatalf("cached raw not valid JSON: %v", err)
		}
		if decoded["title"] != "one" {
			t.Errorf("cached raw wrong: %v", decoded)
		}
	})

	t.Run("offline feed is served from the cache", func(t *testing.T) {
		f := newFixture(t)
		f.remote.FeedItems = []hub.RemoteComplaint{remoteComplaint(1, "one"), remoteComplaint(2, "two")}

		// Warm the cache online, then go dark.
		if _, err := f.svc.Feed(context.Background(), 7, hub.FeedQuery{}); err != nil {
			t.Fatalf("warmup Feed() error = %v", err)
		}
		f.remote.FailAll(errOffline)

		items, err := f.svc.Feed(context.Background(), 7, hub.FeedQuery{})
		if err != nil {
			t.Fatalf("offline Feed() error = %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 cached items, got %d", len(items))
		}
		for _, it := range items {
			if !it.FromCache {
				t.Errorf("item %d not marked from cache", it.Complaint.ID)
			}
		}
	})

	t.Run("pending deletes tombstone complaints out of the feed", func(t *testing.T) {
		f := newFixture(t)
		f.remote.FeedItems = []hub.RemoteComplaint{remoteComplaint(1, "keep"), remoteComplaint(2, "doomed")}
		f.remote.Errs["delete"] = errOffline

		if _, err := f.svc.DeleteComplaint(context.Background(), 2); err != nil {
			t.Fatalf("DeleteComplaint() error = %v", err)
		}

		items, err := f.svc.Feed(context.Background(), 7, hub.FeedQuery{})
		if err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
		if len(items) != 1 || items[0].Complaint.ID != 1 {
			t.Errorf("tombstoned complaint still visible: %+v", items)
		}
	})

	t.Run("no store and no remote fails", func(t *testing.T) {
		remote := testutil.NewFakeRemote()
		remote.FailAll(errOffline)
		svc := hub.NewService(nil, remote, nil, testutil.FixedClock(), testutil.NewStubKeyGenerator(), hub.Options{})

		if _, err := svc.Feed(context.Background(), 7, hub.FeedQuery{}); err == nil {
			t.Error("expected error with no store and no remote")
		}
	})
}

func TestService_Comments(t *testing.T) {
	t.Run("remote and local comments merge without duplicates", func(t *testing.T) {
		f := newFixture(t)
		base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
		f.remote.CommentsList = []hub.RemoteComment{
			{ID: 1, ComplaintID: 99, Content: "remote one", CreatedAt: base},
			{ID: 2, ComplaintID: 99, Content: "remote two", CreatedAt: base.Add(time.Minute)},
		}

		// Comment 2 is also cached locally; comment 5000 is offline-only.
		f.store.SaveComment(&model.Comment{ID: 2, ComplaintID: 99, Content: "remote two", CreatedAt: base.Add(time.Minute)})
		f.store.SaveComment(&model.Comment{ID: 5000, ComplaintID: 99, Content: "offline", CreatedAt: base.Add(2 * time.Minute)})

		comments, err := f.svc.Comments(context.Background(), 99)
		if err != nil {
			t.Fatalf("Comments() error = %v", err)
		}
		if len(comments) != 3 {
			t.Fatalf("expected 3 merged comments, got %d", len(comments))
		}
		if comments[0].ID != 1 || comments[1].ID != 2 || comments[2].ID != 5000 {
			t.Errorf("merge order wrong: %d %d %d", comments[0].ID, comments[1].ID, comments[2].ID)
		}
	})

	t.Run("offline comments list comes from the store", func(t *testing.T) {
		f := newFixture(t)
		f.remote.FailAll(errOffline)
		f.store.SaveComment(&model.Comment{ID: 1, ComplaintID: 99, Content: "local", CreatedAt: f.clock.Now()})

		comments, err := f.svc.Comments(context.Background(), 99)
		if err != nil {
			t.Fatalf("Comments() error = %v", err)
		}
		if len(comments) != 1 || comments[0].Content != "local" {
			t.Errorf("comments = %+v", comments)
		}
	})
}

func TestService_Bookmarks(t *testing.T) {
	t.Run("pairs bookmarks with cached complaints", func(t *testing.T) {
		f := newFixture(t)

		f.store.SaveComplaint(&model.Complaint{
			ID: 42, Status: "open",
			Raw:      json.RawMessage(`{"id":42,"title":"Broken AC","status":"open"}`),
			CachedAt: f.clock.Now(),
		})
		f.store.ToggleBookmark(42, 7, f.clock.Now())
		f.store.ToggleBookmark(43, 7, f.clock.Now()) // never cached

		entries, err := f.svc.Bookmarks(7)
		if err != nil {
			t.Fatalf("Bookmarks() error = %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].Complaint == nil || entries[0].Complaint.Title != "Broken AC" {
			t.Errorf("cached complaint not attached: %+v", entries[0])
		}
		if entries[1].Complaint != nil {
			t.Errorf("uncached bookmark should have nil complaint: %+v", entries[1])
		}
	})

	t.Run("tombstoned complaints drop out of the bookmark list", func(t *testing.T) {
		f := newFixture(t)
		f.remote.Errs["delete"] = errOffline

		f.store.ToggleBookmark(42, 7, f.clock.Now())
		if _, err := f.svc.DeleteComplaint(context.Background(), 42); err != nil {
			t.Fatalf("DeleteComplaint() error = %v", err)
		}

		entries, err := f.svc.Bookmarks(7)
		if err != nil {
			t.Fatalf("Bookmarks() error = %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("tombstoned bookmark still listed: %+v", entries)
		}
	})
}

func TestService_Profile(t *testing.T) {
	t.Run("remote profile with local follow state", func(t *testing.T) {
		f := newFixture(t)
		f.remote.Users[12] = &hub.RemoteUser{ID: 12, Username: "sam", FullName: "Sam T"}
		f.remote.FollowersList = []hub.RemoteUser{{ID: 1}, {ID: 2}}
		f.remote.FollowingList = []hub.RemoteUser{{ID: 3}}

		f.store.ToggleFollow(7, 12, f.clock.Now())

		p, err := f.svc.Profile(context.Background(), 7, 12)
		if err != nil {
			t.Fatalf("Profile() error = %v", err)
		}
		if p.User.Username != "sam" || p.FromCache {
			t.Errorf("profile wrong: %+v", p)
		}
		if p.Followers != 2 || p.Following != 1 {
			t.Errorf("counts wrong: followers=%d following=%d", p.Followers, p.Following)
		}
		if !p.IsFollowing {
			t.Error("viewer's local follow not reflected")
		}
	})

	t.Run("local counts win when larger than remote", func(t *testing.T) {
		f := newFixture(t)
		f.remote.Users[12] = &hub.RemoteUser{ID: 12, Username: "sam"}
		// Remote still reports zero followers; local knows of two.
		f.store.ToggleFollow(7, 12, f.clock.Now())
		f.store.ToggleFollow(8, 12, f.clock.Now())

		p, err := f.svc.Profile(context.Background(), 7, 12)
		if err != nil {
			t.Fatalf("Profile() error = %v", err)
		}
		if p.Followers != 2 {
			t.Errorf("Followers = %d, want local 2", p.Followers)
		}
	})

	t.Run("offline profile served from the user cache", func(t *testing.T) {
		f := newFixture(t)
		f.store.SaveUser(&model.User{ID: 12, Username: "sam", FullName: "Sam T", CachedAt: f.clock.Now()})
		f.remote.FailAll(errOffline)

		p, err := f.svc.Profile(context.Background(), 7, 12)
		if err != nil {
			t.Fatalf("Profile() error = %v", err)
		}
		if !p.FromCache || p.User.Username != "sam" {
			t.Errorf("profile wrong: %+v", p)
		}
	})

	t.Run("offline profile of unknown user fails", func(t *testing.T) {
		f := newFixture(t)
		f.remote.FailAll(errOffline)

		if _, err := f.svc.Profile(context.Background(), 7, 404); err == nil {
			t.Error("expected error for uncached user while offline")
		}
	})
}
