package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/crosschat/internal/config"
	"github.com/nextlevelbuilder/crosschat/internal/registry"
	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// channelsCmd operates the Channel Registry from the CLI, for
// operators who prefer a shell over the in-Discord `setup`/`crosschat`
// slash commands.
func channelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Manage relay-enabled channels",
	}
	cmd.AddCommand(channelsEnableCmd())
	cmd.AddCommand(channelsDisableCmd())
	cmd.AddCommand(channelsListCmd())
	return cmd
}

func withRegistry(fn func(ctx context.Context, reg *registry.Registry, s *store.Stores) error) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	stores, closeStores, err := openStores(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStores()

	reg := registry.New(stores.Channels, registry.DefaultTTL)
	return fn(context.Background(), reg, stores)
}

func channelsEnableCmd() *cobra.Command {
	var serverName, channelName string
	var slowmodeSeconds int
	cmd := &cobra.Command{
		Use:   "enable <server-id> <channel-id>",
		Short: "Register a channel as the relay channel for a server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(func(ctx context.Context, reg *registry.Registry, s *store.Stores) error {
				entry := store.ChannelEntry{
					ServerID:    args[0],
					ChannelID:   args[1],
					ServerName:  serverName,
					ChannelName: channelName,
					Active:      true,
				}
				if err := reg.Enable(ctx, entry, slowmodeSeconds); err != nil {
					return err
				}
				fmt.Printf("enabled channel %s for server %s\n", args[1], args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&serverName, "server-name", "", "cached server display name")
	cmd.Flags().StringVar(&channelName, "channel-name", "", "cached channel display name")
	cmd.Flags().IntVar(&slowmodeSeconds, "slowmode", registry.MinSlowmodeSeconds, "channel slowmode in seconds (must be 5-10)")
	return cmd
}

func channelsDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <channel-id>",
		Short: "Deactivate a relay channel, keeping its row for audit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(func(ctx context.Context, reg *registry.Registry, s *store.Stores) error {
				if err := reg.Disable(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("disabled channel %s\n", args[0])
				return nil
			})
		},
	}
}

func channelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every active relay channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(func(ctx context.Context, reg *registry.Registry, s *store.Stores) error {
				entries, err := reg.ListActive(ctx)
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Printf("%s\t%s\t#%s (%s)\n", e.ServerID, e.ServerName, e.ChannelName, e.ChannelID)
				}
				return nil
			})
		},
	}
}
