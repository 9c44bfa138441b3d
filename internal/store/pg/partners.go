package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// PartnerStore implements store.PartnerStore backed by Postgres.
type PartnerStore struct {
	db *sql.DB
}

func NewPartnerStore(db *sql.DB) *PartnerStore {
	return &PartnerStore{db: db}
}

func (s *PartnerStore) Add(ctx context.Context, p store.PartnerServer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO partner_servers (server_id, server_name, boost_delay_ms, partnered_at, partnered_by)
		VALUES ($1, $2, $3, now(), $4)
		ON CONFLICT (server_id) DO UPDATE SET
			server_name = EXCLUDED.server_name,
			boost_delay_ms = EXCLUDED.boost_delay_ms,
			partnered_at = now(),
			partnered_by = EXCLUDED.partnered_by
	`, p.ServerID, p.ServerName, p.BoostDelayMs, p.PartneredBy)
	if err != nil {
		return fmt.Errorf("add partner server: %w", err)
	}
	return nil
}

func (s *PartnerStore) Remove(ctx context.Context, serverID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM partner_servers WHERE server_id = $1`, serverID)
	if err != nil {
		return fmt.Errorf("remove partner server: %w", err)
	}
	return nil
}

func (s *PartnerStore) Get(ctx context.Context, serverID string) (store.PartnerServer, bool, error) {
	var p store.PartnerServer
	err := s.db.QueryRowContext(ctx, `
		SELECT server_id, server_name, boost_delay_ms, partnered_at, partnered_by
		FROM partner_servers WHERE server_id = $1
	`, serverID).Scan(&p.ServerID, &p.ServerName, &p.BoostDelayMs, &p.PartneredAt, &p.PartneredBy)
	if err == sql.ErrNoRows {
		return store.PartnerServer{}, false, nil
	}
	if err != nil {
		return store.PartnerServer{}, false, fmt.Errorf("get partner server: %w", err)
	}
	return p, true, nil
}

func (s *PartnerStore) List(ctx context.Context) ([]store.PartnerServer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT server_id, server_name, boost_delay_ms, partnered_at, partnered_by FROM partner_servers
	`)
	if err != nil {
		return nil, fmt.Errorf("list partner servers: %w", err)
	}
	defer rows.Close()

	var out []store.PartnerServer
	for rows.Next() {
		var p store.PartnerServer
		if err := rows.Scan(&p.ServerID, &p.ServerName, &p.BoostDelayMs, &p.PartneredAt, &p.PartneredBy); err != nil {
			return nil, fmt.Errorf("scan partner server: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
