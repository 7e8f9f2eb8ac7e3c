package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"sch-go/internal/app"
	"sch-go/internal/config"
	"sch-go/internal/hub"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a HubApp. The caller must defer
// app.Close().
func newApp() (*app.HubApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewHubApp(cfg, defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %s", arg)
	}
	return id, nil
}

// side renders where a mutation landed.
func side(o hub.Outcome) string {
	if o.Remote {
		return "synced"
	}
	return "saved offline, will sync later"
}

var rootCmd = &cobra.Command{
	Use:   "sch",
	Short: "Student complaint hub client",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		apiURL, _ := cmd.Flags().GetString("api")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(apiURL, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("API:      %s\n", apiURL)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("API:      %s\n", cfg.API.BaseURL)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		if cfg.User.ID != 0 {
			fmt.Printf("User:     %s (#%d)\n", cfg.User.Username, cfg.User.ID)
		} else {
			fmt.Println("User:     not logged in")
		}
		return nil
	},
}

// login command
var loginCmd = &cobra.Command{
	Use:   "login USERNAME",
	Short: "Log in to the hub",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.Login(cmd.Context(), args[0], string(password))
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		fmt.Printf("Logged in as %s (#%d)\n", u.Username, u.ID)
		return nil
	},
}

// feed command
var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "View the complaint feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		mine, _ := cmd.Flags().GetBool("mine")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		q := hub.FeedQuery{Status: status}
		if mine {
			userID, err := a.CurrentUser()
			if err != nil {
				return err
			}
			q.CreatedBy = userID
		}

		items, err := a.Feed(cmd.Context(), q)
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No complaints.")
			return nil
		}

		for _, it := range items {
			marks := ""
			if it.UserLiked {
				marks += " [liked]"
			}
			if it.Bookmarked {
				marks += " [saved]"
			}
			if it.FromCache {
				marks += " [cached]"
			}
			fmt.Printf("#%-5d %-10s %3d likes  %s%s\n",
				it.Complaint.ID,
				it.Complaint.Status,
				it.LikeCount,
				it.Complaint.Title,
				marks,
			)
		}
		return nil
	},
}

// like command
var likeCmd = &cobra.Command{
	Use:   "like COMPLAINT_ID",
	Short: "Toggle a like on a complaint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.ToggleLike(cmd.Context(), id)
		if err != nil {
			return err
		}

		verb := "Unliked"
		if res.Liked {
			verb = "Liked"
		}
		fmt.Printf("%s complaint #%d (%d likes, %s)\n", verb, id, res.LikeCount, side(res.Outcome))
		return nil
	},
}

// bookmark command
var bookmarkCmd = &cobra.Command{
	Use:   "bookmark COMPLAINT_ID",
	Short: "Toggle a bookmark on a complaint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.ToggleBookmark(cmd.Context(), id)
		if err != nil {
			return err
		}

		verb := "Removed bookmark from"
		if res.Bookmarked {
			verb = "Bookmarked"
		}
		fmt.Printf("%s complaint #%d (%s)\n", verb, id, side(res.Outcome))
		return nil
	},
}

// bookmarks command
var bookmarksCmd = &cobra.Command{
	Use:   "bookmarks",
	Short: "List saved complaints",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Bookmarks()
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No bookmarks.")
			return nil
		}

		for _, e := range entries {
			title := "(not cached)"
			if e.Complaint != nil {
				title = e.Complaint.Title
			}
			fmt.Printf("#%-5d %s  saved %s\n",
				e.Bookmark.ComplaintID,
				title,
				e.Bookmark.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		return nil
	},
}

// follow command
var followCmd = &cobra.Command{
	Use:   "follow USER_ID",
	Short: "Toggle following a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.ToggleFollow(cmd.Context(), id)
		if err != nil {
			return err
		}

		verb := "Unfollowed"
		if res.Following {
			verb = "Following"
		}
		fmt.Printf("%s user #%d (%s)\n", verb, id, side(res.Outcome))
		return nil
	},
}

// comment command
var commentCmd = &cobra.Command{
	Use:   "comment COMPLAINT_ID CONTENT...",
	Short: "Comment on a complaint",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		content := strings.Join(args[1:], " ")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.AddComment(cmd.Context(), id, content)
		if err != nil {
			if errors.Is(err, hub.ErrEmptyContent) {
				return fmt.Errorf("comment content is empty")
			}
			return err
		}

		fmt.Printf("Comment posted on #%d (%s)\n", id, side(res.Outcome))
		return nil
	},
}

// comments command
var commentsCmd = &cobra.Command{
	Use:   "comments COMPLAINT_ID",
	Short: "View comments on a complaint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		comments, err := a.Comments(cmd.Context(), id)
		if err != nil {
			return err
		}

		if len(comments) == 0 {
			fmt.Println("No comments.")
			return nil
		}

		for _, c := range comments {
			name := c.AuthorName
			if c.IsAnonymous || name == "" {
				name = "Unknown User"
			}
			fmt.Printf("%s  %s: %s\n", c.CreatedAt.Format("2006-01-02 15:04"), name, c.Content)
		}
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete COMPLAINT_ID",
	Short: "Delete a complaint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.DeleteComplaint(cmd.Context(), id)
		if err != nil {
			return err
		}

		fmt.Printf("Deleted complaint #%d (%s)\n", id, side(res.Outcome))
		return nil
	},
}

// profile command
var profileCmd = &cobra.Command{
	Use:   "profile USER_ID",
	Short: "View a user profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Profile(cmd.Context(), id)
		if err != nil {
			return err
		}

		name := p.User.FullName
		if name == "" {
			name = p.User.Username
		}
		fmt.Printf("%s (#%d)\n", name, p.User.ID)
		fmt.Printf("Followers: %d  Following: %d\n", p.Followers, p.Following)
		if p.IsFollowing {
			fmt.Println("You follow this user.")
		}
		if p.FromCache {
			fmt.Println("(served from local cache)")
		}
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued offline actions against the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Sync(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Synced %d, superseded %d, failed %d, remaining %d\n",
			report.Synced, report.Superseded, report.Failed, report.Remaining)
		if report.Stopped {
			fmt.Println("Backend unavailable; remaining actions stay queued.")
		}
		return nil
	},
}

// pending command
var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List queued offline actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		actions, err := a.Pending()
		if err != nil {
			return err
		}

		if len(actions) == 0 {
			fmt.Println("Nothing pending.")
			return nil
		}

		for _, p := range actions {
			detail := ""
			switch {
			case p.Op != "":
				detail = p.Op
			case p.Content != "":
				detail = p.Content
			}
			fmt.Printf("#%-4d %-16s %-8s complaint=%d %s\n",
				p.ID, p.Type, p.Status, p.ComplaintID, detail)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("api", "http://localhost:5000/api", "Backend API base URL")

	feedCmd.Flags().String("status", "", "Filter by complaint status")
	feedCmd.Flags().Bool("mine", false, "Only complaints created by the logged-in user")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(likeCmd)
	rootCmd.AddCommand(bookmarkCmd)
	rootCmd.AddCommand(bookmarksCmd)
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(commentsCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(pendingCmd)
}
