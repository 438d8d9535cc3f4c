package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"cloudysky/internal/cache"
	"cloudysky/internal/config"
	"cloudysky/internal/database"
	"cloudysky/internal/models"
	"cloudysky/internal/notifications"
	"cloudysky/internal/repository"

	"github.com/spf13/cobra"
)

var (
	listLimit  int
	listOffset int
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "CloudySky administration",
	Long: `Administrative utilities for a CloudySky deployment.

Staff accounts can hide posts and comments and see hidden content.`,
	SilenceUsage: true,
}

var promoteCmd = &cobra.Command{
	Use:   "promote <username>",
	Short: "Grant staff privileges to a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStaff(cmd.Context(), args[0], true)
	},
}

var demoteCmd = &cobra.Command{
	Use:   "demote <username>",
	Short: "Revoke staff privileges from a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStaff(cmd.Context(), args[0], false)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List users and their roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listUsers(cmd.Context())
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print moderation events as they are published",
	Long: `Subscribe to the moderation channels in Redis and print each hide
as it happens. Stops on Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watch(cmd.Context())
	},
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum users to list")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Users to skip")
	watchCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print events as JSON lines")

	rootCmd.AddCommand(promoteCmd, demoteCmd, listCmd, watchCmd)
}

func openUsers() (repository.UserRepository, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return repository.NewUserRepository(db), nil
}

func setStaff(ctx context.Context, username string, staff bool) error {
	users, err := openUsers()
	if err != nil {
		return err
	}
	user, err := users.SetStaff(ctx, username, staff)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			return fmt.Errorf("user %q not found", username)
		}
		return err
	}

	verb := "Demoted"
	if staff {
		verb = "Promoted"
	}
	fmt.Printf("%s %s (ID: %d), role is now %s\n", verb, user.Username, user.ID, user.Role)
	return nil
}

func listUsers(ctx context.Context) error {
	users, err := openUsers()
	if err != nil {
		return err
	}
	list, err := users.List(ctx, listLimit, listOffset)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No users found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tSTAFF\tROLE")
	for _, u := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\n", u.ID, u.Username, u.Email, u.IsStaff, u.Role)
	}
	return w.Flush()
}

func watch(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()
	if rdb == nil {
		return errors.New("redis is not reachable")
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	err = notifications.NewNotifier(rdb).StartModerationSubscriber(ctx, func(ev notifications.ModerationEvent) {
		if jsonOutput {
			_ = enc.Encode(ev)
			return
		}
		reason := ev.ReasonText
		if reason == "" {
			reason = "-"
		}
		fmt.Printf("%s  hide %-7s #%d by %s (reason: %s)\n",
			ev.HiddenAt.Format("2006-01-02 15:04:05"), ev.Kind, ev.TargetID, ev.Actor, reason)
	})
	if err != nil {
		return err
	}
	fmt.Println("Watching moderation events, Ctrl-C to stop")
	<-ctx.Done()
	return nil
}
