// Package commands implements the Operator Command Surface:
// a thin layer of discordgo slash-command handlers, each calling straight
// into the relay engine's own public methods. It carries no business logic
// of its own — policy and validation live in the components it calls.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/crosschat/internal/auditlog"
	"github.com/nextlevelbuilder/crosschat/internal/automod"
	"github.com/nextlevelbuilder/crosschat/internal/bans"
	"github.com/nextlevelbuilder/crosschat/internal/propagator"
	"github.com/nextlevelbuilder/crosschat/internal/registry"
	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// Handlers wires every slash command to the core components it drives.
type Handlers struct {
	Registry  *registry.Registry
	Bans      *bans.Store
	Automod   *automod.Pipeline
	Prop      *propagator.Propagator
	Audit     *auditlog.Log
	Whitelist store.WhitelistStore
	Partners  store.PartnerStore

	// ChannelInfo resolves the invoking channel's name, owning server, and
	// current slowmode for the setup command's policy check. Bound to
	// discordgw.Gateway.ChannelInfo at wiring time.
	ChannelInfo func(ctx context.Context, channelID string) (channelName, serverID, serverName string, slowmodeSeconds int, err error)

	// Announce posts content to one channel; the announce handler calls it
	// once per active relay channel. Bound to
	// discordgw.Gateway.Send by the caller at wiring time, since that
	// method's real signature includes attachments commands never sends.
	Announce func(ctx context.Context, channelID, content string) (string, error)

	// StatusReport renders the same snapshot the `crosschat status` CLI
	// command prints, shared so the two surfaces never drift.
	StatusReport func(ctx context.Context) (string, error)
}

// Definitions returns the discordgo application command tree the relay
// registers at startup.
func Definitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{Name: "setup", Description: "Register this channel as the server's relay channel (requires slowmode 5-10s)"},
		{Name: "warn", Description: "Warn a user", Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to warn", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason", Required: false},
		}},
		{Name: "ban", Description: "Ban a user from relaying fleet-wide", Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to ban", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason", Required: false},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "duration_minutes", Description: "0 = permanent", Required: false},
		}},
		{Name: "unban", Description: "Lift a user's ban", Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to unban", Required: true},
		}},
		{Name: "delete", Description: "Delete a relayed message fleet-wide by its CC-ID", Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "cc_id", Description: "CC-ID", Required: true},
		}},
		{Name: "serverban", Description: "Ban every member of a server from relaying", Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "server_id", Description: "Server id", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason", Required: false},
		}},
		{Name: "serverunban", Description: "Lift a server's ban", Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "server_id", Description: "Server id", Required: true},
		}},
		{Name: "announce", Description: "Broadcast a message to every relay channel", Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "message", Description: "Message", Required: true},
		}},
		{Name: "status", Description: "Show relay fleet status"},
		{Name: "whitelist", Description: "Manage the automod whitelist", Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "add", Description: "Bypass automod for a user or role", Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "kind", Description: "user or role", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "identifier", Description: "id", Required: true},
			}},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "remove", Description: "Remove a whitelist bypass", Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "kind", Description: "user or role", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "identifier", Description: "id", Required: true},
			}},
		}},
		{Name: "partner", Description: "Manage partner servers", Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "add", Description: "Mark a server as a partner", Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "server_id", Description: "Server id", Required: true},
			}},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "remove", Description: "Remove a partner server", Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "server_id", Description: "Server id", Required: true},
			}},
		}},
	}
}

// Dispatch is the single InteractionCreate handler registered against the
// gateway. It routes by command name and replies ephemerally.
func (h *Handlers) Dispatch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	ctx := context.Background()
	moderatorID := interactionUserID(i)

	reply, err := h.route(ctx, data, i.ChannelID, moderatorID)
	if err != nil {
		slog.Error("command failed", "command", data.Name, "error", err)
		reply = fmt.Sprintf("error: %v", err)
	}
	respond(s, i, reply)
}

func (h *Handlers) route(ctx context.Context, data discordgo.ApplicationCommandInteractionData, channelID, moderatorID string) (string, error) {
	opts := optionMap(data.Options)

	switch data.Name {
	case "setup":
		return h.setup(ctx, channelID)
	case "warn":
		userID := optUserID(opts, "user")
		reason := optString(opts, "reason")
		if err := h.Audit.Append(ctx, "warn", userID, moderatorID, reason, ""); err != nil {
			return "", err
		}
		return fmt.Sprintf("warned <@%s>", userID), nil
	case "ban":
		userID := optUserID(opts, "user")
		reason := optString(opts, "reason")
		minutes := optInt(opts, "duration_minutes")
		var dur *time.Duration
		if minutes > 0 {
			d := time.Duration(minutes) * time.Minute
			dur = &d
		}
		if err := h.Bans.BanUser(ctx, userID, reason, moderatorID, dur); err != nil {
			return "", err
		}
		if err := h.Audit.Append(ctx, "ban", userID, moderatorID, reason, ""); err != nil {
			return "", err
		}
		return fmt.Sprintf("banned <@%s>", userID), nil
	case "unban":
		userID := optUserID(opts, "user")
		if err := h.Bans.UnbanUser(ctx, userID); err != nil {
			return "", err
		}
		if err := h.Audit.Append(ctx, "unban", userID, moderatorID, "", ""); err != nil {
			return "", err
		}
		return fmt.Sprintf("unbanned <@%s>", userID), nil
	case "delete":
		ccID := optString(opts, "cc_id")
		result, err := h.Prop.Delete(ctx, ccID, moderatorID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("deleted CC-%s from %d channel(s)", ccID, result.AffectedCount), nil
	case "serverban":
		serverID := optString(opts, "server_id")
		reason := optString(opts, "reason")
		if err := h.Bans.BanServer(ctx, serverID, reason, moderatorID); err != nil {
			return "", err
		}
		if err := h.Audit.Append(ctx, "serverban", serverID, moderatorID, reason, ""); err != nil {
			return "", err
		}
		return fmt.Sprintf("banned server %s", serverID), nil
	case "serverunban":
		serverID := optString(opts, "server_id")
		if err := h.Bans.UnbanServer(ctx, serverID); err != nil {
			return "", err
		}
		if err := h.Audit.Append(ctx, "serverunban", serverID, moderatorID, "", ""); err != nil {
			return "", err
		}
		return fmt.Sprintf("unbanned server %s", serverID), nil
	case "announce":
		message := optString(opts, "message")
		return h.announce(ctx, message, moderatorID)
	case "status":
		return h.StatusReport(ctx)
	case "whitelist":
		return h.whitelist(ctx, data, moderatorID)
	case "partner":
		return h.partner(ctx, data)
	default:
		return "", fmt.Errorf("unknown command %q", data.Name)
	}
}

// setup registers the invoking channel as its server's relay channel,
// replacing any prior channel for that server. The channel's actual
// slowmode must already sit in the required range; a policy rejection is a
// user-visible reply, not an error.
func (h *Handlers) setup(ctx context.Context, channelID string) (string, error) {
	channelName, serverID, serverName, slowmode, err := h.ChannelInfo(ctx, channelID)
	if err != nil {
		return "", err
	}
	err = h.Registry.Enable(ctx, store.ChannelEntry{
		ServerID:    serverID,
		ChannelID:   channelID,
		ServerName:  serverName,
		ChannelName: channelName,
	}, slowmode)
	var policyErr registry.ErrSlowmodeOutOfRange
	if errors.As(err, &policyErr) {
		return fmt.Sprintf("setup rejected: %v — set this channel's slowmode to 5-10 seconds first", policyErr), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("#%s is now the relay channel for %s", channelName, serverName), nil
}

func (h *Handlers) announce(ctx context.Context, message, moderatorID string) (string, error) {
	channels, err := h.Registry.ListActive(ctx)
	if err != nil {
		return "", err
	}
	sent := 0
	for _, c := range channels {
		if _, err := h.Announce(ctx, c.ChannelID, message); err != nil {
			slog.Warn("announce delivery failed", "channel_id", c.ChannelID, "error", err)
			continue
		}
		sent++
	}
	if err := h.Audit.Append(ctx, "announce", "fleet", moderatorID, "", fmt.Sprintf("sent=%d", sent)); err != nil {
		return "", err
	}
	return fmt.Sprintf("announced to %d channel(s)", sent), nil
}

func (h *Handlers) whitelist(ctx context.Context, data discordgo.ApplicationCommandInteractionData, moderatorID string) (string, error) {
	sub := data.Options[0]
	opts := optionMap(sub.Options)
	kind := optString(opts, "kind")
	identifier := optString(opts, "identifier")

	switch sub.Name {
	case "add":
		err := h.Automod.AddWhitelist(ctx, store.WhitelistEntry{
			Kind: kind, Identifier: identifier, AddedAt: time.Now(), AddedBy: moderatorID,
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("whitelisted %s %s", kind, identifier), nil
	case "remove":
		if err := h.Automod.RemoveWhitelist(ctx, kind, identifier); err != nil {
			return "", err
		}
		return fmt.Sprintf("removed whitelist entry %s %s", kind, identifier), nil
	default:
		return "", fmt.Errorf("unknown whitelist subcommand %q", sub.Name)
	}
}

func (h *Handlers) partner(ctx context.Context, data discordgo.ApplicationCommandInteractionData) (string, error) {
	sub := data.Options[0]
	opts := optionMap(sub.Options)
	serverID := optString(opts, "server_id")

	switch sub.Name {
	case "add":
		err := h.Partners.Add(ctx, store.PartnerServer{ServerID: serverID, PartneredAt: time.Now()})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("added partner server %s", serverID), nil
	case "remove":
		if err := h.Partners.Remove(ctx, serverID); err != nil {
			return "", err
		}
		return fmt.Sprintf("removed partner server %s", serverID), nil
	default:
		return "", fmt.Errorf("unknown partner subcommand %q", sub.Name)
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func optString(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := opts[name]; ok {
		return o.StringValue()
	}
	return ""
}

func optInt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) int {
	if o, ok := opts[name]; ok {
		return int(o.IntValue())
	}
	return 0
}

func optUserID(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := opts[name]; ok {
		return o.UserValue(nil).ID
	}
	return ""
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Error("interaction response failed", "error", err)
	}
}
