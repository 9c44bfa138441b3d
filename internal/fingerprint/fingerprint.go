// Package fingerprint implements the Fingerprint Allocator: it assigns a
// short CC-ID to each source message exactly once fleet-wide, using the
// Message Log's unique constraints as the sole coordination primitive
// rather than a distributed lock.
package fingerprint

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// maxRetries bounds the number of regeneration attempts after a CC-ID-only
// conflict before surfacing ErrAllocatorExhausted.
const maxRetries = 3

// ErrAllocatorExhausted is returned when maxRetries candidate CC-IDs all
// collide with existing rows.
var ErrAllocatorExhausted = errors.New("fingerprint: allocator exhausted")

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// Snapshot is the immutable source-message data captured at allocation
// time and written once to the Message Log.
type Snapshot struct {
	SourceUserID      string
	SourceDisplayName string
	SourceServerID    string
	SourceChannelID   string
	Content           string
	TagLevel          int
	TagName           string
	IsVIP             bool
}

// Allocator implements assign(source_message_id, snapshot) -> CC-ID.
type Allocator struct {
	messages store.MessageStore

	mu    sync.Mutex
	local map[string]string // source_message_id -> cc_id, process-local fast path
}

// New constructs an Allocator backed by messages.
func New(messages store.MessageStore) *Allocator {
	return &Allocator{
		messages: messages,
		local:    make(map[string]string),
	}
}

// Assign is idempotent and exactly-once fleet-wide: concurrent callers with
// the same sourceMessageID observe the same CC-ID, and exactly one caller
// writes the Message Record. created reports whether this caller won the
// insert; a false return means another caller (possibly another replica)
// already holds the row and delivery must not be repeated.
func (a *Allocator) Assign(ctx context.Context, sourceMessageID string, snap Snapshot) (ccID string, created bool, err error) {
	// Step 1: local in-process map.
	a.mu.Lock()
	if ccID, ok := a.local[sourceMessageID]; ok {
		a.mu.Unlock()
		return ccID, false, nil
	}
	a.mu.Unlock()

	// Step 2: store lookup by source-message-id.
	if rec, err := a.messages.GetBySourceMessageID(ctx, sourceMessageID); err == nil {
		a.remember(sourceMessageID, rec.CCID)
		return rec.CCID, false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", false, fmt.Errorf("lookup source message: %w", err)
	}

	// Step 3-5: generate a candidate, attempt insert, retry on CC-ID conflict.
	for attempt := 0; attempt < maxRetries; attempt++ {
		ccID, err := candidateCCID(snap.IsVIP)
		if err != nil {
			return "", false, fmt.Errorf("generate candidate cc-id: %w", err)
		}

		rec := store.MessageRecord{
			SourceMessageID:   sourceMessageID,
			CCID:              ccID,
			SourceUserID:      snap.SourceUserID,
			SourceDisplayName: snap.SourceDisplayName,
			SourceServerID:    snap.SourceServerID,
			SourceChannelID:   snap.SourceChannelID,
			Content:           snap.Content,
			TagLevel:          snap.TagLevel,
			TagName:           snap.TagName,
			IsVIP:             snap.IsVIP,
			CreatedAt:         time.Now(),
		}

		err = a.messages.Insert(ctx, rec)
		if err == nil {
			a.remember(sourceMessageID, ccID)
			return ccID, true, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return "", false, fmt.Errorf("insert message record: %w", err)
		}

		// Someone else may have won on source_message_id; re-read to find out.
		winner, getErr := a.messages.GetBySourceMessageID(ctx, sourceMessageID)
		if getErr == nil {
			a.remember(sourceMessageID, winner.CCID)
			return winner.CCID, false, nil
		}
		if !errors.Is(getErr, store.ErrNotFound) {
			return "", false, fmt.Errorf("re-read after conflict: %w", getErr)
		}
		// Conflict was on CC-ID only: loop and regenerate.
	}

	return "", false, ErrAllocatorExhausted
}

func (a *Allocator) remember(sourceMessageID, ccID string) {
	a.mu.Lock()
	a.local[sourceMessageID] = ccID
	a.mu.Unlock()
}

// candidateCCID derives six base-36 characters from the low bits of the
// current epoch millisecond count, plus two random base-36 characters,
// prefixed with "V" for VIP tags. Clock skew only affects which candidate
// is tried first; uniqueness is enforced by the store.
func candidateCCID(isVIP bool) (string, error) {
	ms := time.Now().UnixMilli()
	var sb strings.Builder
	if isVIP {
		sb.WriteByte('V')
	}
	sb.WriteString(encodeBase36(ms, 6))
	for i := 0; i < 2; i++ {
		c, err := randomBase36Char()
		if err != nil {
			return "", err
		}
		sb.WriteByte(c)
	}
	return sb.String(), nil
}

func encodeBase36(n int64, width int) string {
	if n < 0 {
		n = -n
	}
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = base36[n%36]
		n /= 36
	}
	return string(buf)
}

func randomBase36Char() (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(base36))))
	if err != nil {
		return 0, err
	}
	return base36[n.Int64()], nil
}
