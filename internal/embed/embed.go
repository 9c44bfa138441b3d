// Package embed renders the cross-server embed contract.
package embed

import (
	"fmt"
	"strings"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/types"
)

// Rendered is a platform-neutral embed; internal/discordgw converts it to a
// discordgo.MessageEmbed at send time.
type Rendered struct {
	AuthorName   string
	AuthorIcon   string
	Description  string
	FromField    string
	ImageURL     string
	Footer       string
	Color        int
	Timestamp    time.Time
}

// placeholderDescription is used when content is empty but attachments exist.
const placeholderDescription = "*attachment*"

// Render builds the embed for one source message, tagged with the
// resolved tier and CC-ID.
func Render(m types.SourceMessage, tierInfo types.TierInfo, ccID string) Rendered {
	star := ""
	if tierInfo.IsVIP {
		star = " ⭐"
	}
	authorName := fmt.Sprintf("[%s] %s%s • %s", tierInfo.Tier.String(), m.AuthorDisplayName, star, m.SourceServerName)

	description := m.Content
	if strings.TrimSpace(description) == "" && len(m.Attachments) > 0 {
		description = placeholderDescription
	}

	// Image attachments are re-uploaded alongside the embed and referenced
	// via Discord's attachment:// scheme rather than a remote URL, since
	// attachment bytes are held in memory only for the duration of fan-out
	// and never re-fetched from the source platform.
	var imageURL string
	for _, a := range m.Attachments {
		if a.IsImage {
			imageURL = "attachment://" + a.Filename
			break
		}
	}

	return Rendered{
		AuthorName:  authorName,
		AuthorIcon:  m.AuthorAvatarURL,
		Description: description,
		FromField:   fmt.Sprintf("#%s • %s", m.SourceChannelName, m.SourceServerName),
		ImageURL:    imageURL,
		Footer:      fmt.Sprintf("CC-%s • ID: %s", ccID, m.AuthorID),
		Color:       tierInfo.Tier.Color(),
		Timestamp:   m.CreatedAt,
	}
}
