package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/crosschat/internal/auditlog"
	"github.com/nextlevelbuilder/crosschat/internal/automod"
	"github.com/nextlevelbuilder/crosschat/internal/bans"
	"github.com/nextlevelbuilder/crosschat/internal/commands"
	"github.com/nextlevelbuilder/crosschat/internal/config"
	"github.com/nextlevelbuilder/crosschat/internal/discordgw"
	"github.com/nextlevelbuilder/crosschat/internal/embed"
	"github.com/nextlevelbuilder/crosschat/internal/fingerprint"
	httpapi "github.com/nextlevelbuilder/crosschat/internal/http"
	"github.com/nextlevelbuilder/crosschat/internal/msglog"
	"github.com/nextlevelbuilder/crosschat/internal/orchestrator"
	"github.com/nextlevelbuilder/crosschat/internal/propagator"
	"github.com/nextlevelbuilder/crosschat/internal/registry"
	"github.com/nextlevelbuilder/crosschat/internal/scheduler"
	"github.com/nextlevelbuilder/crosschat/internal/store"
	"github.com/nextlevelbuilder/crosschat/internal/store/pg"
	"github.com/nextlevelbuilder/crosschat/internal/store/sqlite"
	"github.com/nextlevelbuilder/crosschat/internal/tier"
	"github.com/nextlevelbuilder/crosschat/internal/types"
)

func relayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Run the cross-server relay bot",
		Run: func(cmd *cobra.Command, args []string) {
			runRelay()
		},
	}
}

// runRelay wires every component together and blocks until SIGINT/SIGTERM: configure
// logging, load config (fatal on invalid configuration), open the store,
// construct every component, open the gateway, and wait for shutdown.
func runRelay() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	stores, closeStores, err := openStores(cfg)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStores()

	gw, err := discordgw.New(cfg.Discord)
	if err != nil {
		slog.Error("failed to create discord gateway", "error", err)
		os.Exit(1)
	}

	reg := registry.New(stores.Channels, registry.DefaultTTL)
	banStore := bans.New(stores.Bans, bans.DefaultTTL)
	audit := auditlog.New(stores.ModLog)
	tierResolver := tier.New(gw, stores.Partners, cfg.Roles, cfg.Owner)
	pipeline := automod.New(stores.Whitelist, banStore, audit, cfg.Automod)
	allocator := fingerprint.New(stores.Messages)
	log := msglog.New(stores.Messages, stores.Deliveries)

	sendTimeout := time.Duration(cfg.Scheduler.SendTimeoutMillis) * time.Millisecond
	sched := scheduler.New(gw, log, sendTimeout)

	orch := orchestrator.New(reg, banStore, tierResolver, pipeline, allocator, log, sched, gw)
	prop := propagator.New(log, reg, audit, gw)

	gw.OnMessage(func(m types.SourceMessage) {
		ctx := context.Background()
		result := orch.Process(ctx, m)
		if result.Err != nil {
			slog.Error("ingress processing failed", "error", result.Err, "source_message_id", m.SourceMessageID)
		}
	})
	gw.OnMessageEdit(func(sourceChannelID, sourceMessageID, newContent string) {
		ctx := context.Background()
		if err := prop.Edit(ctx, sourceChannelID, sourceMessageID, newContent); err != nil {
			slog.Error("edit propagation failed", "error", err, "source_message_id", sourceMessageID)
		}
	})

	if err := gw.Start(context.Background()); err != nil {
		slog.Error("failed to start discord gateway", "error", err)
		os.Exit(1)
	}
	defer gw.Stop(context.Background())

	handlers := &commands.Handlers{
		Registry:    reg,
		Bans:        banStore,
		Automod:     pipeline,
		Prop:        prop,
		Audit:       audit,
		Whitelist:   stores.Whitelist,
		Partners:    stores.Partners,
		ChannelInfo: gw.ChannelInfo,
		Announce: func(ctx context.Context, channelID, content string) (string, error) {
			return gw.Send(ctx, channelID, embed.Rendered{
				AuthorName:  "Operator Announcement",
				Description: content,
				Timestamp:   time.Now(),
			}, nil)
		},
		StatusReport: func(ctx context.Context) (string, error) {
			return buildStatusReport(ctx, stores)
		},
	}
	gw.OnInteraction(handlers.Dispatch)
	if err := gw.RegisterCommands(commands.Definitions()); err != nil {
		slog.Error("failed to register slash commands", "error", err)
	}

	mux := httpapi.NewMux(stores.Votes, cfg.Webhook.Secret)
	httpServer := &http.Server{Addr: cfg.HTTP.Addr, Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("vote webhook listener failed", "error", err)
		}
	}()

	slog.Info("crosschat relay running", "http_addr", cfg.HTTP.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutdown initiated", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

// openStores opens the configured persistence backend and returns a
// closer the caller must defer.
func openStores(cfg *config.Config) (*store.Stores, func(), error) {
	if cfg.IsPostgres() {
		db, err := pg.OpenDB(cfg.Database.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg.NewStores(db), func() { db.Close() }, nil
	}
	db, err := sqlite.OpenDB(cfg.Database.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	return sqlite.NewStores(db), func() { db.Close() }, nil
}
