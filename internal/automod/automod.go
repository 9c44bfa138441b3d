// Package automod implements the Automod Pipeline: an
// ordered, short-circuiting chain of checks run against every inbound
// message, plus the violation-tally escalation to warnings and service bans.
package automod

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/nextlevelbuilder/crosschat/internal/auditlog"
	"github.com/nextlevelbuilder/crosschat/internal/bans"
	"github.com/nextlevelbuilder/crosschat/internal/config"
	"github.com/nextlevelbuilder/crosschat/internal/store"
	"github.com/nextlevelbuilder/crosschat/internal/types"
)

// PatternTTL is how long a whitelist lookup result stays cached. Compiled
// profanity patterns do not expire; they are rebuilt only after
// InvalidatePatterns.
const PatternTTL = 15 * time.Minute

var (
	linkPattern    = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	invitePattern  = regexp.MustCompile(`(?i)\b(?:discord\.gg|discord(?:app)?\.com/invite)/\S+`)
	phonePattern   = regexp.MustCompile(`\b(?:\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	addressPattern = regexp.MustCompile(`(?i)\b\d{1,5}\s+[A-Za-z0-9.\s]{2,30}\b(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr)\b`)
)

// Message is the subset of an inbound message the pipeline evaluates.
type Message struct {
	AuthorID      string
	AuthorRoleIDs []string
	Content       string
}

// Pipeline evaluates messages against the ordered check list and drives the
// violation-tally escalation into warnings and service bans.
type Pipeline struct {
	whitelist store.WhitelistStore
	bans      *bans.Store
	audit     *auditlog.Log
	cfg       config.AutomodConfig

	profanity     []*regexp.Regexp
	profanityOnce sync.Once

	mu          sync.Mutex
	recentMsgs  map[string][]time.Time // authorID -> recent message timestamps (10s rate window)
	recentDups  map[string][]dupEntry  // authorID -> recent (lowercased content, time) pairs (60s window)
	tally       map[string]int         // authorID -> unresolved violation count since last warning

	whitelistCache *lru.LRU[string, bool]
}

type dupEntry struct {
	content string
	at      time.Time
}

// New constructs a Pipeline. cfg supplies the tunable thresholds; numeric
// fields left at zero fall back to the same defaults config.Default() sets,
// and the link and invite filters stay off unless enabled.
func New(whitelist store.WhitelistStore, banStore *bans.Store, audit *auditlog.Log, cfg config.AutomodConfig) *Pipeline {
	return &Pipeline{
		whitelist:      whitelist,
		bans:           banStore,
		audit:          audit,
		cfg:            cfg,
		recentMsgs:     make(map[string][]time.Time),
		recentDups:     make(map[string][]dupEntry),
		tally:          make(map[string]int),
		whitelistCache: lru.NewLRU[string, bool](2048, nil, PatternTTL),
	}
}

func (p *Pipeline) compiledProfanity() []*regexp.Regexp {
	p.profanityOnce.Do(func() {
		p.profanity = make([]*regexp.Regexp, 0, len(p.cfg.Patterns))
		for _, pat := range p.cfg.Patterns {
			re, err := regexp.Compile(pat)
			if err != nil {
				// An invalid pattern never fails the message.
				continue
			}
			p.profanity = append(p.profanity, re)
		}
	})
	return p.profanity
}

// InvalidatePatterns forces the profanity pattern set to recompile on next
// use — called when an operator updates the rule set.
func (p *Pipeline) InvalidatePatterns(cfg config.AutomodConfig) {
	p.cfg.Patterns = cfg.Patterns
	p.profanityOnce = sync.Once{}
}

// Evaluate runs the ordered check pipeline and returns the first flag, or
// AutomodAllow if none match.
func (p *Pipeline) Evaluate(ctx context.Context, m Message) (types.AutomodOutcome, error) {
	whitelisted, err := p.isWhitelisted(ctx, m.AuthorID, m.AuthorRoleIDs)
	if err != nil {
		return types.AutomodOutcome{}, fmt.Errorf("check whitelist: %w", err)
	}
	if whitelisted {
		return types.AutomodOutcome{Kind: types.AutomodAllow}, nil
	}

	now := time.Now()
	if p.checkRate(m.AuthorID, now) {
		return types.AutomodOutcome{Kind: types.AutomodDelete, Category: types.CategorySpam}, nil
	}
	if p.checkDuplicate(m.AuthorID, m.Content, now) {
		return types.AutomodOutcome{Kind: types.AutomodDelete, Category: types.CategoryDuplicate}, nil
	}
	if p.checkCaps(m.Content) {
		return types.AutomodOutcome{Kind: types.AutomodDelete, Category: types.CategoryCaps}, nil
	}
	if p.cfg.LinkFilterEnabled && linkPattern.MatchString(m.Content) {
		return types.AutomodOutcome{Kind: types.AutomodDelete, Category: types.CategoryLinks}, nil
	}
	if p.cfg.InviteFilterEnabled && invitePattern.MatchString(m.Content) {
		return types.AutomodOutcome{Kind: types.AutomodDelete, Category: types.CategoryInvite}, nil
	}
	for _, re := range p.compiledProfanity() {
		if re.MatchString(m.Content) {
			return types.AutomodOutcome{Kind: types.AutomodDelete, Category: types.CategoryToxic}, nil
		}
	}
	if phonePattern.MatchString(m.Content) {
		return types.AutomodOutcome{Kind: types.AutomodDelete, Category: types.CategoryInappropriate}, nil
	}
	if addressPattern.MatchString(m.Content) {
		return types.AutomodOutcome{Kind: types.AutomodDelete, Category: types.CategoryInappropriate}, nil
	}
	return types.AutomodOutcome{Kind: types.AutomodAllow}, nil
}

// AddWhitelist adds a whitelist entry (operator `whitelist add`) and purges
// the whitelist cache so the change takes effect immediately.
func (p *Pipeline) AddWhitelist(ctx context.Context, e store.WhitelistEntry) error {
	if err := p.whitelist.Add(ctx, e); err != nil {
		return fmt.Errorf("add whitelist entry: %w", err)
	}
	p.whitelistCache.Purge()
	return nil
}

// RemoveWhitelist removes a whitelist entry (operator `whitelist remove`)
// and purges the whitelist cache.
func (p *Pipeline) RemoveWhitelist(ctx context.Context, kind, identifier string) error {
	if err := p.whitelist.Remove(ctx, kind, identifier); err != nil {
		return fmt.Errorf("remove whitelist entry: %w", err)
	}
	p.whitelistCache.Purge()
	return nil
}

func (p *Pipeline) isWhitelisted(ctx context.Context, authorID string, roleIDs []string) (bool, error) {
	if ok, hit := p.whitelistCache.Get(authorID); hit {
		return ok, nil
	}
	entries, err := p.whitelist.List(ctx)
	if err != nil {
		return false, err
	}
	roleSet := make(map[string]bool, len(roleIDs))
	for _, r := range roleIDs {
		roleSet[r] = true
	}
	whitelisted := false
	for _, e := range entries {
		if e.Kind == "user" && e.Identifier == authorID {
			whitelisted = true
			break
		}
		if e.Kind == "role" && roleSet[e.Identifier] {
			whitelisted = true
			break
		}
	}
	p.whitelistCache.Add(authorID, whitelisted)
	return whitelisted, nil
}

func (p *Pipeline) checkRate(authorID string, now time.Time) bool {
	limit := p.cfg.RateLimitCount
	if limit <= 0 {
		limit = 3
	}
	window := 10 * time.Second

	p.mu.Lock()
	defer p.mu.Unlock()
	hist := pruneBefore(p.recentMsgs[authorID], now.Add(-window))
	hist = append(hist, now)
	p.recentMsgs[authorID] = hist
	return len(hist) > limit
}

func (p *Pipeline) checkDuplicate(authorID, content string, now time.Time) bool {
	threshold := p.cfg.DuplicateThreshold
	if threshold <= 0 {
		threshold = 3
	}
	window := 60 * time.Second
	lower := strings.ToLower(strings.TrimSpace(content))
	if lower == "" {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	existing := p.recentDups[authorID]
	cutoff := now.Add(-window)
	kept := existing[:0]
	count := 0
	for _, e := range existing {
		if e.at.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
		if e.content == lower {
			count++
		}
	}
	kept = append(kept, dupEntry{content: lower, at: now})
	p.recentDups[authorID] = kept
	return count+1 >= threshold
}

func (p *Pipeline) checkCaps(content string) bool {
	minLen := p.cfg.CapsMinLength
	if minLen <= 0 {
		minLen = 10
	}
	ratio := p.cfg.CapsRatio
	if ratio <= 0 {
		ratio = 0.7
	}
	if len(content) < minLen {
		return false
	}
	var letters, upper int
	for _, r := range content {
		if r >= 'a' && r <= 'z' {
			letters++
		} else if r >= 'A' && r <= 'Z' {
			letters++
			upper++
		}
	}
	if letters == 0 {
		return false
	}
	return float64(upper)/float64(letters) > ratio
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	out := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// RecordViolation increments authorID's tally and escalates to a persisted
// warning every ViolationsPerWarning flags, then to a service ban once the
// user's total warning count reaches WarningsPerBan. It returns the notice
// to post, if any (nil when no escalation threshold was crossed this call).
func (p *Pipeline) RecordViolation(ctx context.Context, authorID string, category types.ViolationCategory) (*Notice, error) {
	perWarning := p.cfg.ViolationsPerWarning
	if perWarning <= 0 {
		perWarning = 3
	}
	perBan := p.cfg.WarningsPerBan
	if perBan <= 0 {
		perBan = 3
	}
	banSeconds := p.cfg.BanDurationSeconds
	if banSeconds <= 0 {
		banSeconds = 1200
	}

	p.mu.Lock()
	p.tally[authorID]++
	crossed := p.tally[authorID] >= perWarning
	if crossed {
		p.tally[authorID] = 0
	}
	p.mu.Unlock()

	if !crossed {
		return nil, nil
	}

	if err := p.audit.Append(ctx, "warn", authorID, "automod", string(category), ""); err != nil {
		return nil, fmt.Errorf("record warning: %w", err)
	}

	entries, err := p.audit.ForTarget(ctx, authorID, 1000)
	if err != nil {
		return nil, fmt.Errorf("count warnings: %w", err)
	}
	warnCount := 0
	for _, e := range entries {
		if e.Action == "warn" {
			warnCount++
		}
	}

	if warnCount < perBan {
		return &Notice{Scope: types.ScopeServer, Category: category}, nil
	}

	duration := time.Duration(banSeconds) * time.Second
	if err := p.bans.BanUser(ctx, authorID, "automod escalation", "automod", &duration); err != nil {
		return nil, fmt.Errorf("apply service ban: %w", err)
	}
	if err := p.audit.Append(ctx, "ban", authorID, "automod", string(category), "escalated service ban"); err != nil {
		return nil, fmt.Errorf("audit escalation ban: %w", err)
	}
	return &Notice{Scope: types.ScopeNetwork, Category: category}, nil
}

// Notice is the generic community notice to post after an escalation.
// It never names the user.
type Notice struct {
	Scope    types.NoticeScope
	Category types.ViolationCategory
}

// Text renders the notice body. It never includes the user's identity.
func (n Notice) Text() string {
	scope := "in this server"
	if n.Scope == types.ScopeNetwork {
		scope = "network-wide"
	}
	return fmt.Sprintf("A moderation action was taken %s for: %s.", scope, n.Category)
}
