// Package store defines the persistence contracts for the relay engine.
// Concrete backends live in store/pg (fleet mode, Postgres) and
// store/sqlite (standalone mode, single replica).
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookup methods when no row matches.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned by insert methods when a unique constraint is
// violated — the caller (the Fingerprint Allocator) treats this as "someone
// else won the race" rather than a failure.
var ErrConflict = errors.New("store: conflict")

// ChannelEntry is one row of the Channel Registry.
type ChannelEntry struct {
	ServerID    string
	ChannelID   string
	ServerName  string
	ChannelName string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ChannelStore backs the Channel Registry.
type ChannelStore interface {
	// Upsert replaces any existing row for ServerID, deactivating the prior
	// channel, and inserts/activates the given entry — atomically.
	Upsert(ctx context.Context, e ChannelEntry) error
	Disable(ctx context.Context, channelID string) error
	ListActive(ctx context.Context) ([]ChannelEntry, error)
	GetByServer(ctx context.Context, serverID string) (ChannelEntry, error)
}

// BannedUser is one row of the Banned Users collection.
type BannedUser struct {
	UserID      string
	Reason      string
	ModeratorID string
	Duration    *time.Duration // nil = permanent
	BannedAt    time.Time
	Active      bool
}

// BannedServer is one row of the Banned Servers collection.
type BannedServer struct {
	ServerID    string
	Reason      string
	ModeratorID string
	BannedAt    time.Time
}

// BanStore backs the Ban Store.
type BanStore interface {
	BanUser(ctx context.Context, b BannedUser) error
	UnbanUser(ctx context.Context, userID string) error
	IsUserBanned(ctx context.Context, userID string) (bool, error)
	BanServer(ctx context.Context, b BannedServer) error
	UnbanServer(ctx context.Context, serverID string) error
	IsServerBanned(ctx context.Context, serverID string) (bool, error)
}

// MessageRecord is one row of the Message Log.
type MessageRecord struct {
	SourceMessageID   string
	CCID              string
	SourceUserID      string
	SourceDisplayName string
	SourceServerID    string
	SourceChannelID   string
	Content           string
	TagLevel          int
	TagName           string
	IsVIP             bool
	CreatedAt         time.Time
	IsDeleted         bool
	DeletedAt         *time.Time
	DeletedBy         string
}

// MessageStore backs the Message Log.
type MessageStore interface {
	// Insert attempts to atomically create a Message Record with a unique
	// (SourceMessageID, CCID) pair. Returns ErrConflict if either unique
	// constraint already has a row — the caller must re-read to discover
	// the winner.
	Insert(ctx context.Context, m MessageRecord) error
	GetBySourceMessageID(ctx context.Context, sourceMessageID string) (MessageRecord, error)
	GetByCCID(ctx context.Context, ccID string) (MessageRecord, error)
	UpdateContent(ctx context.Context, ccID string, content string) error
	MarkDeleted(ctx context.Context, ccID string, by string, at time.Time) error
}

// DeliveryRecord is one row of the Delivery Index.
type DeliveryRecord struct {
	CCID              string
	TargetChannelID   string
	DeliveredMessageID string
	DeliveredAt       time.Time
	SourceMessageID   string
}

// DeliveryStore backs the Delivery Index.
type DeliveryStore interface {
	// Insert is a no-op (not an error) if (CCID, TargetChannelID) already
	// exists, enforcing the one-delivery-per-channel invariant without
	// surfacing duplicates.
	Insert(ctx context.Context, d DeliveryRecord) error
	ListByCCID(ctx context.Context, ccID string) ([]DeliveryRecord, error)
}

// WhitelistEntry is one row of the Automod Whitelist.
type WhitelistEntry struct {
	Kind       string // "user" or "role"
	Identifier string
	AddedAt    time.Time
	AddedBy    string
}

// WhitelistStore backs the whitelist bypass checked by the automod pipeline.
type WhitelistStore interface {
	Add(ctx context.Context, e WhitelistEntry) error
	Remove(ctx context.Context, kind, identifier string) error
	List(ctx context.Context) ([]WhitelistEntry, error)
}

// PartnerServer is one row of the Partner Servers collection.
type PartnerServer struct {
	ServerID      string
	ServerName    string
	BoostDelayMs  int
	PartneredAt   time.Time
	PartneredBy   string
}

// PartnerStore backs the Partner tier lookup.
type PartnerStore interface {
	Add(ctx context.Context, p PartnerServer) error
	Remove(ctx context.Context, serverID string) error
	Get(ctx context.Context, serverID string) (PartnerServer, bool, error)
	List(ctx context.Context) ([]PartnerServer, error)
}

// ModerationLogEntry is one append-only audit row.
type ModerationLogEntry struct {
	ID         string
	Action     string // "ban", "unban", "serverban", "serverunban", "delete", "warn", "announce"
	TargetID   string
	ModeratorID string
	Reason     string
	Detail     string
	CreatedAt  time.Time
}

// ModerationLogStore backs the audit log.
type ModerationLogStore interface {
	Append(ctx context.Context, e ModerationLogEntry) error
	ListByTarget(ctx context.Context, targetID string, limit int) ([]ModerationLogEntry, error)
}

// VoteRecord is one row of the votes collection.
type VoteRecord struct {
	UserID    string
	Month     string // "YYYY-MM"
	Count     int
	UpdatedAt time.Time
}

// VoteStore backs the vote webhook receiver.
type VoteStore interface {
	RecordVote(ctx context.Context, userID, month string, at time.Time) error
	GetVotes(ctx context.Context, userID, month string) (VoteRecord, error)
}

// Stores is the top-level container for every collection the relay engine
// depends on. Concrete backends populate one struct of this
// shape each: store/pg for fleet mode, store/sqlite for standalone mode.
type Stores struct {
	Channels   ChannelStore
	Bans       BanStore
	Messages   MessageStore
	Deliveries DeliveryStore
	Whitelist  WhitelistStore
	Partners   PartnerStore
	ModLog     ModerationLogStore
	Votes      VoteStore
}
