package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/crosschat/internal/store"
)

type PartnerStore struct {
	db *sql.DB
}

func NewPartnerStore(db *sql.DB) *PartnerStore {
	return &PartnerStore{db: db}
}

func (s *PartnerStore) Add(ctx context.Context, p store.PartnerServer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO partner_servers (server_id, server_name, boost_delay_ms, partnered_at, partnered_by)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (server_id) DO UPDATE SET
			server_name = excluded.server_name,
			boost_delay_ms = excluded.boost_delay_ms,
			partnered_at = excluded.partnered_at,
			partnered_by = excluded.partnered_by
	`, p.ServerID, p.ServerName, p.BoostDelayMs, time.Now().UTC().Format(timeLayout), p.PartneredBy)
	if err != nil {
		return fmt.Errorf("add partner server: %w", err)
	}
	return nil
}

func (s *PartnerStore) Remove(ctx context.Context, serverID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM partner_servers WHERE server_id = ?`, serverID)
	if err != nil {
		return fmt.Errorf("remove partner server: %w", err)
	}
	return nil
}

func (s *PartnerStore) Get(ctx context.Context, serverID string) (store.PartnerServer, bool, error) {
	var p store.PartnerServer
	var partneredAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT server_id, server_name, boost_delay_ms, partnered_at, partnered_by
		FROM partner_servers WHERE server_id = ?
	`, serverID).Scan(&p.ServerID, &p.ServerName, &p.BoostDelayMs, &partneredAt, &p.PartneredBy)
	if err == sql.ErrNoRows {
		return store.PartnerServer{}, false, nil
	}
	if err != nil {
		return store.PartnerServer{}, false, fmt.Errorf("get partner server: %w", err)
	}
	p.PartneredAt, _ = time.Parse(timeLayout, partneredAt)
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
		var partneredAt string
		if err := rows.Scan(&p.ServerID, &p.ServerName, &p.BoostDelayMs, &partneredAt, &p.PartneredBy); err != nil {
			return nil, fmt.Errorf("scan partner server: %w", err)
		}
		p.PartneredAt, _ = time.Parse(timeLayout, partneredAt)
		out = append(out, p)
	}
	return out, rows.Err()
}
