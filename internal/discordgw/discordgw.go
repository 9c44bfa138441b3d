// Package discordgw is the sole Discord-facing adapter: it wraps
// discordgo.Session behind interfaces internal/scheduler, internal/tier,
// and internal/orchestrator depend on, so the rest of the relay engine
// never imports discordgo directly.
package discordgw

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/crosschat/internal/config"
	"github.com/nextlevelbuilder/crosschat/internal/embed"
	"github.com/nextlevelbuilder/crosschat/internal/types"
)

// Gateway is the Discord-facing half of the relay: ingress event
// normalization and outbound platform operations.
type Gateway struct {
	session   *discordgo.Session
	botUserID string
}

// New creates a Gateway from the bot token in cfg. The session is not
// opened until Start is called.
func New(cfg config.DiscordConfig) (*Gateway, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessages

	return &Gateway{session: session}, nil
}

// Start opens the gateway connection.
func (g *Gateway) Start(_ context.Context) error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	user, err := g.session.User("@me")
	if err != nil {
		g.session.Close()
		return fmt.Errorf("fetch bot identity: %w", err)
	}
	g.botUserID = user.ID
	slog.Info("discord gateway connected", "username", user.Username, "id", user.ID)
	return nil
}

// Stop closes the gateway connection.
func (g *Gateway) Stop(_ context.Context) error {
	return g.session.Close()
}

// OnMessage registers handler to be invoked for every message create event
// not authored by this bot, normalized into a types.SourceMessage. Other
// bots' messages and DMs are passed through; the orchestrator drops them.
func (g *Gateway) OnMessage(handler func(types.SourceMessage)) {
	g.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.ID == g.botUserID {
			return
		}
		handler(g.normalize(m.Message))
	})
}

// OnMessageEdit registers handler to be invoked for every message update
// event not authored by this bot.
func (g *Gateway) OnMessageEdit(handler func(sourceChannelID, sourceMessageID, newContent string)) {
	g.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageUpdate) {
		if m.Author == nil || m.Author.ID == g.botUserID {
			return
		}
		handler(m.ChannelID, m.ID, m.Content)
	})
}

// OnInteraction registers a raw discordgo interaction handler. Unlike the
// rest of this package, internal/commands is handed the *discordgo.Session
// directly: slash-command replies need the full discordgo
// interaction API, which a narrow interface would only reproduce.
func (g *Gateway) OnInteraction(handler func(s *discordgo.Session, i *discordgo.InteractionCreate)) {
	g.session.AddHandler(handler)
}

// RegisterCommands bulk-overwrites the bot's global slash commands. Must be
// called after Start, once the bot's own user id is known.
func (g *Gateway) RegisterCommands(cmds []*discordgo.ApplicationCommand) error {
	if _, err := g.session.ApplicationCommandBulkOverwrite(g.botUserID, "", cmds); err != nil {
		return fmt.Errorf("register application commands: %w", err)
	}
	return nil
}

func (g *Gateway) normalize(m *discordgo.Message) types.SourceMessage {
	guild, _ := g.session.State.Guild(m.GuildID)
	guildName := m.GuildID
	if guild != nil {
		guildName = guild.Name
	}
	channel, _ := g.session.State.Channel(m.ChannelID)
	channelName := m.ChannelID
	if channel != nil {
		channelName = channel.Name
	}

	displayName := m.Author.Username
	if m.Member != nil && m.Member.Nick != "" {
		displayName = m.Member.Nick
	} else if m.Author.GlobalName != "" {
		displayName = m.Author.GlobalName
	}

	// Attachments are re-read from the source into memory exactly once, at
	// ingress time, then re-wrapped per fan-out send.
	attachments := make([]types.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		data, err := fetchAttachment(a.URL)
		if err != nil {
			slog.Warn("attachment fetch failed, relaying without it", "url", a.URL, "error", err)
			continue
		}
		attachments = append(attachments, types.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Data:        data,
			IsImage:     strings.HasPrefix(a.ContentType, "image/"),
		})
	}

	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return types.SourceMessage{
		SourceMessageID:   m.ID,
		SourceServerID:    m.GuildID,
		SourceServerName:  guildName,
		SourceChannelID:   m.ChannelID,
		SourceChannelName: channelName,
		AuthorID:          m.Author.ID,
		AuthorDisplayName: displayName,
		AuthorAvatarURL:   m.Author.AvatarURL(""),
		AuthorRoleIDs:     g.AuthorRoleIDs(m.GuildID, m.Author.ID),
		Content:           m.Content,
		Attachments:       attachments,
		CreatedAt:         ts,
		IsBot:             m.Author.Bot,
	}
}

func fetchAttachment(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty attachment url")
	}
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// AuthorRoleIDs returns the roles the given user holds in the given guild.
func (g *Gateway) AuthorRoleIDs(guildID, userID string) []string {
	member, err := g.session.State.Member(guildID, userID)
	if err != nil || member == nil {
		return nil
	}
	return member.Roles
}

// HasRoleAnywhere implements tier.RoleLookup: it scans every guild the bot
// is a member of for userID holding roleID.
func (g *Gateway) HasRoleAnywhere(_ context.Context, userID, roleID string) (bool, error) {
	if roleID == "" {
		return false, nil
	}
	for _, guild := range g.session.State.Guilds {
		member, err := g.session.State.Member(guild.ID, userID)
		if err != nil || member == nil {
			continue
		}
		for _, r := range member.Roles {
			if r == roleID {
				return true, nil
			}
		}
	}
	return false, nil
}

// Send implements scheduler.Sender: it posts e, with any attachments, to
// channelID and returns the delivered message's id.
func (g *Gateway) Send(ctx context.Context, channelID string, e embed.Rendered, attachments []types.Attachment) (string, error) {
	send := &discordgo.MessageSend{
		Embed: toDiscordEmbed(e),
	}
	for _, a := range attachments {
		if len(a.Data) == 0 {
			continue
		}
		send.Files = append(send.Files, &discordgo.File{
			Name:        a.Filename,
			ContentType: a.ContentType,
			Reader:      bytes.NewReader(a.Data),
		})
	}
	msg, err := g.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send to channel %s: %w", channelID, err)
	}
	return msg.ID, nil
}

// EditDescription fetches a previously delivered message and replaces only
// its embed's description, keeping the author line, "From" field, footer,
// image, and color as delivered.
func (g *Gateway) EditDescription(ctx context.Context, channelID, messageID, newContent string) error {
	msg, err := g.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("fetch delivered message %s/%s: %w", channelID, messageID, err)
	}
	if len(msg.Embeds) == 0 {
		return fmt.Errorf("delivered message %s/%s has no embed", channelID, messageID)
	}
	embeds := msg.Embeds
	embeds[0].Description = newContent

	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.Embeds = &embeds
	if _, err := g.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("edit delivered message %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

// ChannelInfo resolves a channel's name, owning server, and slowmode for
// the setup command's policy check, preferring the state cache over a REST
// round trip.
func (g *Gateway) ChannelInfo(ctx context.Context, channelID string) (channelName, serverID, serverName string, slowmodeSeconds int, err error) {
	ch, err := g.session.State.Channel(channelID)
	if err != nil || ch == nil {
		ch, err = g.session.Channel(channelID, discordgo.WithContext(ctx))
		if err != nil {
			return "", "", "", 0, fmt.Errorf("fetch channel %s: %w", channelID, err)
		}
	}
	serverName = ch.GuildID
	if guild, gerr := g.session.State.Guild(ch.GuildID); gerr == nil && guild != nil {
		serverName = guild.Name
	}
	return ch.Name, ch.GuildID, serverName, ch.RateLimitPerUser, nil
}

// DeleteDelivered removes a delivered message.
func (g *Gateway) DeleteDelivered(ctx context.Context, channelID, messageID string) error {
	if err := g.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete delivered message %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

// DeleteSource removes a source message flagged by the Automod Pipeline.
func (g *Gateway) DeleteSource(ctx context.Context, channelID, messageID string) error {
	if err := g.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete source message %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

// React sets emoji as a reaction on the given message, e.g. the orchestrator's
// "processing" indicator.
func (g *Gateway) React(ctx context.Context, channelID, messageID, emoji string) error {
	if err := g.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("react to message %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

// ClearReactions removes the bot's own reaction with the given emoji from a
// message, used before swapping the "processing" indicator for a final
// status reaction. Other reactions are left in place.
func (g *Gateway) ClearReactions(ctx context.Context, channelID, messageID, emoji string) error {
	if err := g.session.MessageReactionRemove(channelID, messageID, emoji, "@me", discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("clear reaction %s on %s/%s: %w", emoji, channelID, messageID, err)
	}
	return nil
}

// SendText posts a plain text message to a channel, used for community
// notices.
func (g *Gateway) SendText(ctx context.Context, channelID, content string) error {
	if _, err := g.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send text to channel %s: %w", channelID, err)
	}
	return nil
}

// DMUser sends a direct message to userID, used for automod warnings and
// ban notices.
func (g *Gateway) DMUser(ctx context.Context, userID, content string) error {
	channel, err := g.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel with %s: %w", userID, err)
	}
	if _, err := g.session.ChannelMessageSend(channel.ID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send dm to %s: %w", userID, err)
	}
	return nil
}

func toDiscordEmbed(e embed.Rendered) *discordgo.MessageEmbed {
	de := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name:    e.AuthorName,
			IconURL: e.AuthorIcon,
		},
		Description: e.Description,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "From", Value: e.FromField},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: e.Footer,
		},
		Color:     e.Color,
		Timestamp: e.Timestamp.Format(time.RFC3339),
	}
	if e.ImageURL != "" {
		de.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
	}
	return de
}
