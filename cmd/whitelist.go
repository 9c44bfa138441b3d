package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/crosschat/internal/config"
	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// whitelistCmd operates the Automod Whitelist consulted by the automod
// pipeline as its first check.
func whitelistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whitelist",
		Short: "Manage automod whitelist entries",
	}
	cmd.AddCommand(whitelistAddCmd())
	cmd.AddCommand(whitelistRemoveCmd())
	cmd.AddCommand(whitelistListCmd())
	return cmd
}

func withWhitelist(fn func(ctx context.Context, w store.WhitelistStore) error) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	stores, closeStores, err := openStores(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStores()
	return fn(context.Background(), stores.Whitelist)
}

func whitelistAddCmd() *cobra.Command {
	var addedBy string
	cmd := &cobra.Command{
		Use:   "add <user|role> <identifier>",
		Short: "Bypass automod for a user or role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, identifier := args[0], args[1]
			if kind != "user" && kind != "role" {
				return fmt.Errorf("kind must be \"user\" or \"role\", got %q", kind)
			}
			return withWhitelist(func(ctx context.Context, w store.WhitelistStore) error {
				err := w.Add(ctx, store.WhitelistEntry{
					Kind:       kind,
					Identifier: identifier,
					AddedAt:    time.Now(),
					AddedBy:    addedBy,
				})
				if err != nil {
					return err
				}
				fmt.Printf("whitelisted %s %s\n", kind, identifier)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addedBy, "by", "", "moderator user id")
	return cmd
}

func whitelistRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <user|role> <identifier>",
		Short: "Remove a whitelist bypass",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, identifier := args[0], args[1]
			return withWhitelist(func(ctx context.Context, w store.WhitelistStore) error {
				if err := w.Remove(ctx, kind, identifier); err != nil {
					return err
				}
				fmt.Printf("removed whitelist entry %s %s\n", kind, identifier)
				return nil
			})
		},
	}
}

func whitelistListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every whitelist entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWhitelist(func(ctx context.Context, w store.WhitelistStore) error {
				entries, err := w.List(ctx)
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Printf("%s\t%s\tadded by %s\n", e.Kind, e.Identifier, e.AddedBy)
				}
				return nil
			})
		},
	}
}
