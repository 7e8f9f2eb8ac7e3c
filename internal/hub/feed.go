package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"sch-go/internal/model"
)

// FeedItem is a canonical complaint merged with local overlay state.
type FeedItem struct {
	Complaint RemoteComplaint

	// UserLiked and Bookmarked are the remote flags OR'd with the local
	// relation state, so an offline like shows up even when the server
	// does not know about it yet.
	UserLiked  bool
	Bookmarked bool

	// LikeCount is the larger of the remote count and the local count.
	LikeCount int64

	// FromCache is true when the remote feed was unavailable and the
	// item came from the local complaint cache.
	FromCache bool
}

// BookmarkedComplaint pairs a bookmark with its cached complaint. Complaint
// is nil when the complaint was never cached.
type BookmarkedComplaint struct {
	Bookmark  *model.Bookmark
	Complaint *RemoteComplaint
}

// Profile is a user profile with follow counts and the viewer's relation.
type Profile struct {
	User        RemoteUser
	Followers   int64
	Following   int64
	IsFollowing bool
	FromCache   bool
}

// Feed returns the complaint feed. The canonical list comes from the remote;
// each item is cached write-through and overlaid with local relation state.
// When the remote list call fails the feed is served from the local cache
// instead. Complaints with a pending delete are excluded either way.
func (s *Service) Feed(ctx context.Context, userID int64, q FeedQuery) ([]*FeedItem, error) {
	items, ok, reason := attempt(ctx, s, "feed", func(ctx context.Context) ([]RemoteComplaint, error) {
		return s.remote.Feed(ctx, q)
	})
	if ok {
		s.cacheComplaints(items)
		return s.overlay(items, userID, false)
	}

	if s.store == nil {
		return nil, fmt.Errorf("feed: %w", reason)
	}

	cached, err := s.store.Complaints(model.ComplaintFilter{CreatedBy: q.CreatedBy, Status: q.Status})
	if err != nil {
		return nil, fmt.Errorf("reading complaint cache: %w", err)
	}
	items = make([]RemoteComplaint, 0, len(cached))
	for _, c := range cached {
		rc, err := decodeCached(c)
		if err != nil {
			s.logger.Warn("skipping undecodable cached complaint", "complaint", c.ID, "error", err)
			continue
		}
		items = append(items, rc)
	}
	return s.overlay(items, userID, true)
}

// Comments returns the comment list for a complaint: the remote comments
// when reachable, merged with locally stored ones (offline comments and the
// write-through cache), ordered oldest first.
func (s *Service) Comments(ctx context.Context, complaintID int64) ([]*model.Comment, error) {
	if complaintID <= 0 {
		return nil, fmt.Errorf("comments: %w", ErrInvalidID)
	}

	remote, ok, reason := attempt(ctx, s, "comments", func(ctx context.Context) ([]RemoteComment, error) {
		return s.remote.Comments(ctx, complaintID)
	})
	if !ok && s.store == nil {
		return nil, fmt.Errorf("comments: %w", reason)
	}

	var out []*model.Comment
	seen := make(map[int64]bool)
	for _, rc := range remote {
		out = append(out, &model.Comment{
			ID:          rc.ID,
			ComplaintID: rc.ComplaintID,
			AuthorID:    rc.AuthorID,
			AuthorName:  rc.AuthorName,
			Content:     rc.Content,
			IsAnonymous: rc.IsAnonymous,
			CreatedAt:   rc.CreatedAt,
		})
		seen[rc.ID] = true
	}

	if s.store != nil {
		local, err := s.store.CommentsByComplaint(complaintID)
		if err != nil {
			s.logger.Warn("reading local comments failed", "complaint", complaintID, "error", err)
		} else {
			for _, c := range local {
				if !seen[c.ID] {
					out = append(out, c)
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Bookmarks lists the user's bookmarked complaints from the local store,
// excluding tombstoned complaints.
func (s *Service) Bookmarks(userID int64) ([]*BookmarkedComplaint, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("bookmarks: %w", ErrInvalidID)
	}
	if s.store == nil {
		return nil, ErrOfflineUnavailable
	}

	bookmarks, err := s.store.BookmarksByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("reading bookmarks: %w", err)
	}
	tombstones, err := s.pendingDeletes()
	if err != nil {
		return nil, err
	}

	out := make([]*BookmarkedComplaint, 0, len(bookmarks))
	for _, b := range bookmarks {
		if tombstones[b.ComplaintID] {
			continue
		}
		entry := &BookmarkedComplaint{Bookmark: b}
		cached, err := s.store.Complaint(b.ComplaintID)
		if err != nil {
			s.logger.Warn("reading cached complaint failed", "complaint", b.ComplaintID, "error", err)
		} else if cached != nil {
			if rc, err := decodeCached(cached); err == nil {
				entry.Complaint = &rc
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// Profile returns a user profile. The user record and follow lists come
// from the remote when reachable; follow counts take the larger of the
// remote and local values, and the viewer's follow state comes from the
// local store.
func (s *Service) Profile(ctx context.Context, viewerID, userID int64) (*Profile, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("profile: %w", ErrInvalidID)
	}

	ru, ok, reason := attempt(ctx, s, "profile", func(ctx context.Context) (*RemoteUser, error) {
		return s.remote.User(ctx, userID)
	})

	p := &Profile{}
	if ok {
		p.User = *ru
		if s.store != nil {
			u := &model.User{ID: ru.ID, Username: ru.Username, FullName: ru.FullName, CachedAt: s.clock.Now()}
			if err := s.store.SaveUser(u); err != nil {
				s.logger.Warn("caching user failed", "user", u.ID, "error", err)
			}
		}
	} else {
		if s.store == nil {
			return nil, fmt.Errorf("profile: %w", reason)
		}
		cached, err := s.store.User(userID)
		if err != nil {
			return nil, fmt.Errorf("reading cached user: %w", err)
		}
		if cached == nil {
			return nil, fmt.Errorf("profile: %w", reason)
		}
		p.User = RemoteUser{ID: cached.ID, Username: cached.Username, FullName: cached.FullName}
		p.FromCache = true
	}

	followers, fOK, _ := attempt(ctx, s, "followers", func(ctx context.Context) ([]RemoteUser, error) {
		return s.remote.Followers(ctx, userID)
	})
	following, gOK, _ := attempt(ctx, s, "following", func(ctx context.Context) ([]RemoteUser, error) {
		return s.remote.Following(ctx, userID)
	})
	if fOK {
		p.Followers = int64(len(followers))
	}
	if gOK {
		p.Following = int64(len(following))
	}

	if s.store != nil {
		if local, err := s.store.Followers(userID); err == nil && int64(len(local)) > p.Followers {
			p.Followers = int64(len(local))
		}
		if local, err := s.store.Following(userID); err == nil && int64(len(local)) > p.Following {
			p.Following = int64(len(local))
		}
		if viewerID > 0 && viewerID != userID {
			if following, err := s.store.IsFollowing(viewerID, userID); err == nil {
				p.IsFollowing = following
			}
		}
	}
	return p, nil
}

// cacheComplaints writes remote feed items through to the local cache.
// Failures are logged and ignored; caching is best-effort.
func (s *Service) cacheComplaints(items []RemoteComplaint) {
	if s.store == nil {
		return
	}
	now := s.clock.Now()
	for _, it := range items {
		raw := it.Raw
		if raw == nil {
			// Feed implementations normally carry the original JSON;
			// re-encode as a fallback so the cache is never empty.
			encoded, err := json.Marshal(it)
			if err != nil {
				continue
			}
			raw = encoded
		}
		c := &model.Complaint{
			ID:        it.ID,
			CreatedBy: it.CreatedBy,
			Status:    it.Status,
			Priority:  it.Priority,
			Raw:       raw,
			CachedAt:  now,
		}
		if err := s.store.SaveComplaint(c); err != nil {
			s.logger.Warn("caching complaint failed", "complaint", it.ID, "error", err)
		}
	}
}

// overlay merges local relation state onto canonical items and filters out
// complaints with a pending delete. The overlay is skipped silently when the
// store is unavailable or no user is logged in.
func (s *Service) overlay(items []RemoteComplaint, userID int64, fromCache bool) ([]*FeedItem, error) {
	var tombstones map[int64]bool
	if s.store != nil {
		var err error
		tombstones, err = s.pendingDeletes()
		if err != nil {
			return nil, err
		}
	}

	out := make([]*FeedItem, 0, len(items))
	for _, it := range items {
		if tombstones[it.ID] {
			continue
		}
		item := &FeedItem{
			Complaint:  it,
			UserLiked:  it.UserLiked,
			Bookmarked: it.IsBookmarked,
			LikeCount:  it.LikeCount,
			FromCache:  fromCache,
		}
		if s.store != nil && userID > 0 {
			if liked, err := s.store.IsLiked(it.ID, userID); err != nil {
				s.logger.Warn("overlay like lookup failed", "complaint", it.ID, "error", err)
			} else if liked {
				item.UserLiked = true
			}
			if bookmarked, err := s.store.IsBookmarked(it.ID, userID); err != nil {
				s.logger.Warn("overlay bookmark lookup failed", "complaint", it.ID, "error", err)
			} else if bookmarked {
				item.Bookmarked = true
			}
			if count, err := s.store.LikeCount(it.ID); err != nil {
				s.logger.Warn("overlay like count failed", "complaint", it.ID, "error", err)
			} else if count > item.LikeCount {
				item.LikeCount = count
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// pendingDeletes returns the set of complaint ids with a queued deletion.
// Complaints in this set are tombstoned out of every read path.
func (s *Service) pendingDeletes() (map[int64]bool, error) {
	actions, err := s.store.PendingActions()
	if err != nil {
		return nil, fmt.Errorf("reading pending actions: %w", err)
	}
	set := make(map[int64]bool)
	for _, a := range actions {
		if a.Type == model.ActionDeleteComplaint {
			set[a.ComplaintID] = true
		}
	}
	return set, nil
}

// decodeCached rebuilds a RemoteComplaint from a cached record. The cached
// Raw JSON is authoritative; the indexed columns fill any gaps.
func decodeCached(c *model.Complaint) (RemoteComplaint, error) {
	var rc RemoteComplaint
	if len(c.Raw) > 0 {
		if err := json.Unmarshal(c.Raw, &rc); err != nil {
			return RemoteComplaint{}, fmt.Errorf("decoding cached complaint %d: %w", c.ID, err)
		}
		rc.Raw = c.Raw
	}
	if rc.ID == 0 {
		rc.ID = c.ID
	}
	if rc.CreatedBy == 0 {
		rc.CreatedBy = c.CreatedBy
	}
	if rc.Status == "" {
		rc.Status = c.Status
	}
	if rc.Priority == "" {
		rc.Priority = c.Priority
	}
	return rc, nil
}
