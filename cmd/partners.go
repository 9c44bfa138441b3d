package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/crosschat/internal/config"
	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// partnersCmd manages the Partner Servers collection the Tier Resolver
// consults for the Partner tier.
func partnersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partners",
		Short: "Manage partner servers",
	}
	cmd.AddCommand(partnerAddCmd())
	cmd.AddCommand(partnerRemoveCmd())
	cmd.AddCommand(partnerListCmd())
	return cmd
}

func withPartners(fn func(ctx context.Context, p store.PartnerStore) error) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	stores, closeStores, err := openStores(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStores()
	return fn(context.Background(), stores.Partners)
}

func partnerAddCmd() *cobra.Command {
	var serverName, addedBy string
	var boostDelayMs int
	cmd := &cobra.Command{
		Use:   "add <server-id>",
		Short: "Mark a server as a partner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPartners(func(ctx context.Context, p store.PartnerStore) error {
				err := p.Add(ctx, store.PartnerServer{
					ServerID:     args[0],
					ServerName:   serverName,
					BoostDelayMs: boostDelayMs,
					PartneredAt:  time.Now(),
					PartneredBy:  addedBy,
				})
				if err != nil {
					return err
				}
				fmt.Printf("added partner server %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&serverName, "server-name", "", "cached server display name")
	cmd.Flags().StringVar(&addedBy, "by", "", "moderator user id")
	cmd.Flags().IntVar(&boostDelayMs, "boost-delay-ms", 0, "pre-send delay override, milliseconds")
	return cmd
}

func partnerRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <server-id>",
		Short: "Remove a partner server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPartners(func(ctx context.Context, p store.PartnerStore) error {
				if err := p.Remove(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("removed partner server %s\n", args[0])
				return nil
			})
		},
	}
}

func partnerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every partner server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPartners(func(ctx context.Context, p store.PartnerStore) error {
				entries, err := p.List(ctx)
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Printf("%s\t%s\n", e.ServerID, e.ServerName)
				}
				return nil
			})
		},
	}
}
