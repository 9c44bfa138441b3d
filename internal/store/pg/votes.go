package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// VoteStore implements store.VoteStore backed by Postgres.
type VoteStore struct {
	db *sql.DB
}

func NewVoteStore(db *sql.DB) *VoteStore {
	return &VoteStore{db: db}
}

func (s *VoteStore) RecordVote(ctx context.Context, userID, month string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO votes (user_id, month, count, updated_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (user_id, month) DO UPDATE SET
			count = votes.count + 1,
			updated_at = EXCLUDED.updated_at
	`, userID, month, at)
	if err != nil {
		return fmt.Errorf("record vote: %w", err)
	}
	return nil
}

func (s *VoteStore) GetVotes(ctx context.Context, userID, month string) (store.VoteRecord, error) {
	var v store.VoteRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, month, count, updated_at FROM votes WHERE user_id = $1 AND month = $2
	`, userID, month).Scan(&v.UserID, &v.Month, &v.Count, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return store.VoteRecord{UserID: userID, Month: month}, nil
	}
	if err != nil {
		return store.VoteRecord{}, fmt.Errorf("get votes: %w", err)
	}
	return v, nil
}
