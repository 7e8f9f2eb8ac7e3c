package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"sch-go/internal/api"
	"sch-go/internal/config"
	"sch-go/internal/database"
	"sch-go/internal/hub"
	"sch-go/internal/model"
)

// ErrNotLoggedIn means no user is recorded in the config; commands that act
// on behalf of a user refuse to run.
var ErrNotLoggedIn = errors.New("not logged in: run 'sch login' first")

// HubApp is the application layer between the CLI and the coordinator
// service. It constructs all dependencies from config, exposes high-level
// operations, and manages the store lifecycle on Close.
//
// If the local store cannot be opened the app still comes up: the service
// runs online-only and mutations that would need the offline fallback
// report hub.ErrOfflineUnavailable instead.
type HubApp struct {
	cfg        *config.Config
	configPath string
	store      hub.Store
	service    *hub.Service
	logger     hub.Logger
	logFile    *os.File
}

// NewHubApp creates a fully wired HubApp from the given config. configPath
// is kept so Login can persist the user back to the config file. The caller
// must call Close when done.
func NewHubApp(cfg *config.Config, configPath string) (*HubApp, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	// A broken local store degrades the session instead of failing it:
	// remote calls still work, the fallback does not.
	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		logger.Warn("opening local store failed, running online-only", "error", err)
		store = nil
	}

	remote := api.NewClient(cfg.API.BaseURL)

	svc := hub.NewService(store, remote, logger, hub.RealClock{}, hub.UUIDGenerator{}, hub.Options{
		RemoteTimeout: time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		MaxPending:    cfg.Sync.MaxPending,
	})

	return &HubApp{
		cfg:        cfg,
		configPath: configPath,
		store:      store,
		service:    svc,
		logger:     logger,
		logFile:    logFile,
	}, nil
}

// CurrentUser returns the logged-in user's id, or ErrNotLoggedIn.
func (a *HubApp) CurrentUser() (int64, error) {
	if a.cfg.User.ID == 0 {
		return 0, ErrNotLoggedIn
	}
	return a.cfg.User.ID, nil
}

// Login authenticates against the backend and persists the user to the
// config file so later commands know who is acting.
func (a *HubApp) Login(ctx context.Context, username, password string) (*model.User, error) {
	u, err := a.service.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	a.cfg.User.ID = u.ID
	a.cfg.User.Username = u.Username
	a.cfg.User.FullName = u.FullName
	if err := config.SaveToFile(a.configPath, a.cfg); err != nil {
		return nil, fmt.Errorf("persisting logged-in user: %w", err)
	}
	return u, nil
}

// Feed returns the complaint feed with the current user's relation state
// overlaid.
func (a *HubApp) Feed(ctx context.Context, q hub.FeedQuery) ([]*hub.FeedItem, error) {
	userID, err := a.CurrentUser()
	if err != nil {
		return nil, err
	}
	return a.service.Feed(ctx, userID, q)
}

// ToggleLike flips the current user's like on a complaint.
func (a *HubApp) ToggleLike(ctx context.Context, complaintID int64) (*hub.LikeOutcome, error) {
	userID, err := a.CurrentUser()
	if err != nil {
		return nil, err
	}
	return a.service.ToggleLike(ctx, complaintID, userID)
}

// ToggleBookmark flips the current user's bookmark on a complaint.
func (a *HubApp) ToggleBookmark(ctx context.Context, complaintID int64) (*hub.BookmarkOutcome, error) {
	userID, err := a.CurrentUser()
	if err != nil {
		return nil, err
	}
	return a.service.ToggleBookmark(ctx, complaintID, userID)
}

// ToggleFollow flips the current user's follow edge to another user.
func (a *HubApp) ToggleFollow(ctx context.Context, targetID int64) (*hub.FollowOutcome, error) {
	userID, err := a.CurrentUser()
	if err != nil {
		return nil, err
	}
	return a.service.ToggleFollow(ctx, userID, targetID)
}

// AddComment posts a comment as the current user. Anonymity follows the
// show_real_name config setting.
func (a *HubApp) AddComment(ctx context.Context, complaintID int64, content string) (*hub.CommentOutcome, error) {
	userID, err := a.CurrentUser()
	if err != nil {
		return nil, err
	}
	author := hub.Author{
		ID:        userID,
		Name:      a.cfg.User.FullName,
		Anonymous: !a.cfg.User.ShowRealName,
	}
	return a.service.AddComment(ctx, complaintID, author, content)
}

// Comments returns the merged local+remote comment list for a complaint.
func (a *HubApp) Comments(ctx context.Context, complaintID int64) ([]*model.Comment, error) {
	return a.service.Comments(ctx, complaintID)
}

// DeleteComplaint deletes a complaint, queueing the deletion when offline.
func (a *HubApp) DeleteComplaint(ctx context.Context, complaintID int64) (*hub.DeleteOutcome, error) {
	if _, err := a.CurrentUser(); err != nil {
		return nil, err
	}
	return a.service.DeleteComplaint(ctx, complaintID)
}

// Bookmarks lists the current user's bookmarked complaints.
func (a *HubApp) Bookmarks() ([]*hub.BookmarkedComplaint, error) {
	userID, err := a.CurrentUser()
	if err != nil {
		return nil, err
	}
	return a.service.Bookmarks(userID)
}

// Profile returns a user's profile as seen by the current user.
func (a *HubApp) Profile(ctx context.Context, userID int64) (*hub.Profile, error) {
	viewerID, err := a.CurrentUser()
	if err != nil {
		return nil, err
	}
	return a.service.Profile(ctx, viewerID, userID)
}

// Sync drains the pending action queue against the backend.
func (a *HubApp) Sync(ctx context.Context) (*hub.SyncReport, error) {
	return a.service.SyncPending(ctx)
}

// Pending returns the queued offline mutations.
func (a *HubApp) Pending() ([]*model.PendingAction, error) {
	return a.service.PendingActions()
}

// Close releases the store and the log file.
func (a *HubApp) Close() error {
	var firstErr error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = fmt.Errorf("closing store: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
