package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/crosschat/internal/auditlog"
	"github.com/nextlevelbuilder/crosschat/internal/bans"
	"github.com/nextlevelbuilder/crosschat/internal/config"
)

// bansCmd operates the Ban Store from the CLI.
func bansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bans",
		Short: "Manage user and server bans",
	}
	cmd.AddCommand(banUserCmd())
	cmd.AddCommand(unbanUserCmd())
	cmd.AddCommand(banServerCmd())
	cmd.AddCommand(unbanServerCmd())
	return cmd
}

func withBans(fn func(ctx context.Context, b *bans.Store, audit *auditlog.Log) error) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	stores, closeStores, err := openStores(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStores()

	b := bans.New(stores.Bans, bans.DefaultTTL)
	audit := auditlog.New(stores.ModLog)
	return fn(context.Background(), b, audit)
}

func banUserCmd() *cobra.Command {
	var reason, moderatorID string
	var durationMinutes int
	cmd := &cobra.Command{
		Use:   "ban-user <user-id>",
		Short: "Ban a user from relaying fleet-wide",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBans(func(ctx context.Context, b *bans.Store, audit *auditlog.Log) error {
				var dur *time.Duration
				if durationMinutes > 0 {
					d := time.Duration(durationMinutes) * time.Minute
					dur = &d
				}
				if err := b.BanUser(ctx, args[0], reason, moderatorID, dur); err != nil {
					return err
				}
				if err := audit.Append(ctx, "ban", args[0], moderatorID, reason, ""); err != nil {
					return err
				}
				fmt.Printf("banned user %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "ban reason")
	cmd.Flags().StringVar(&moderatorID, "moderator", "", "moderator user id")
	cmd.Flags().IntVar(&durationMinutes, "duration-minutes", 0, "ban duration in minutes (0 = permanent)")
	return cmd
}

func unbanUserCmd() *cobra.Command {
	var moderatorID string
	cmd := &cobra.Command{
		Use:   "unban-user <user-id>",
		Short: "Lift a user's ban",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBans(func(ctx context.Context, b *bans.Store, audit *auditlog.Log) error {
				if err := b.UnbanUser(ctx, args[0]); err != nil {
					return err
				}
				if err := audit.Append(ctx, "unban", args[0], moderatorID, "", ""); err != nil {
					return err
				}
				fmt.Printf("unbanned user %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&moderatorID, "moderator", "", "moderator user id")
	return cmd
}

func banServerCmd() *cobra.Command {
	var reason, moderatorID string
	cmd := &cobra.Command{
		Use:   "ban-server <server-id>",
		Short: "Ban every member of a server from relaying",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBans(func(ctx context.Context, b *bans.Store, audit *auditlog.Log) error {
				if err := b.BanServer(ctx, args[0], reason, moderatorID); err != nil {
					return err
				}
				if err := audit.Append(ctx, "serverban", args[0], moderatorID, reason, ""); err != nil {
					return err
				}
				fmt.Printf("banned server %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "ban reason")
	cmd.Flags().StringVar(&moderatorID, "moderator", "", "moderator user id")
	return cmd
}

func unbanServerCmd() *cobra.Command {
	var moderatorID string
	cmd := &cobra.Command{
		Use:   "unban-server <server-id>",
		Short: "Lift a server's ban",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBans(func(ctx context.Context, b *bans.Store, audit *auditlog.Log) error {
				if err := b.UnbanServer(ctx, args[0]); err != nil {
					return err
				}
				if err := audit.Append(ctx, "serverunban", args[0], moderatorID, "", ""); err != nil {
					return err
				}
				fmt.Printf("unbanned server %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&moderatorID, "moderator", "", "moderator user id")
	return cmd
}
