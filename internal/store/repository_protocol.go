package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ProtocolRepository handles tenant (protocol) CRUD.
type ProtocolRepository struct {
	client *Client
}

func NewProtocolRepository(client *Client) *ProtocolRepository {
	return &ProtocolRepository{client: client}
}

// ProtocolRow is the persisted shape of domain.Protocol.
type ProtocolRow struct {
	Name             string
	AuthToken        string
	IsMaster         bool
	AllowRepeatProof bool
	CreatedAt        time.Time
}

// Create inserts a new protocol row. Protocols are created on first
// registration and never deleted while circuits reference them.
func (r *ProtocolRepository) Create(ctx context.Context, p *ProtocolRow) error {
	query := `
		INSERT INTO protocols (name, auth_token, is_master, allow_repeat_proof, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO NOTHING`
	_, err := r.client.ExecContext(ctx, query, p.Name, p.AuthToken, p.IsMaster, p.AllowRepeatProof, time.Now())
	if err != nil {
		return fmt.Errorf("store: create protocol: %w", err)
	}
	return nil
}

// Get retrieves a protocol by name.
func (r *ProtocolRepository) Get(ctx context.Context, name string) (*ProtocolRow, error) {
	query := `SELECT name, auth_token, is_master, allow_repeat_proof, created_at FROM protocols WHERE name = $1`
	p := &ProtocolRow{}
	err := r.client.QueryRowContext(ctx, query, name).Scan(
		&p.Name, &p.AuthToken, &p.IsMaster, &p.AllowRepeatProof, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProtocolNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get protocol: %w", err)
	}
	return p, nil
}
