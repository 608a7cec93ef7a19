package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"sodaclub-ledger-api/internal/model"
)

// MySQLMemberRepository implements MemberRepository against an external
// MySQL member directory. Some clubs keep their member roster in the
// same MySQL database as the rest of their tooling; the ledger tables
// stay in the ledger store either way.
type MySQLMemberRepository struct {
	db *sql.DB
}

// NewMySQLMemberRepository creates a new MySQL member repository.
func NewMySQLMemberRepository(db *sql.DB) *MySQLMemberRepository {
	return &MySQLMemberRepository{db: db}
}

// GetMemberByIdentifier finds a member by the immutable identifier.
func (r *MySQLMemberRepository) GetMemberByIdentifier(ctx context.Context, identifier string) (*model.Member, error) {
	query := `SELECT identifier, name, secret, role, status FROM club_members WHERE identifier = ? LIMIT 1`

	var m model.Member
	err := r.db.QueryRowContext(ctx, query, identifier).
		Scan(&m.Identifier, &m.Name, &m.Secret, &m.Role, &m.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &m, nil
}

// ListMembers returns all members.
func (r *MySQLMemberRepository) ListMembers(ctx context.Context) ([]model.Member, error) {
	query := `SELECT identifier, name, secret, role, status FROM club_members ORDER BY identifier`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.Identifier, &m.Name, &m.Secret, &m.Role, &m.Status); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddMember inserts a new member row.
func (r *MySQLMemberRepository) AddMember(ctx context.Context, m model.Member) error {
	query := `INSERT INTO club_members (identifier, name, secret, role, status) VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, m.Identifier, m.Name, m.Secret, string(m.Role), string(m.Status))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "duplicate") {
			return fmt.Errorf("member %s: %w", m.Identifier, ErrDuplicate)
		}
		return fmt.Errorf("failed to add member: %w", err)
	}

	log.Printf("[MySQLMemberRepository] Added member identifier=%s role=%s", m.Identifier, m.Role)
	return nil
}

// SetMemberStatus activates or deactivates a member.
func (r *MySQLMemberRepository) SetMemberStatus(ctx context.Context, identifier string, status model.MemberStatus) error {
	query := `UPDATE club_members SET status = ? WHERE identifier = ?`

	res, err := r.db.ExecContext(ctx, query, string(status), identifier)
	if err != nil {
		return fmt.Errorf("failed to set member status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateMemberSecret replaces a member's secret code.
func (r *MySQLMemberRepository) UpdateMemberSecret(ctx context.Context, identifier, secret string) error {
	query := `UPDATE club_members SET secret = ? WHERE identifier = ?`

	res, err := r.db.ExecContext(ctx, query, secret, identifier)
	if err != nil {
		return fmt.Errorf("failed to update member secret: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Ensure MySQLMemberRepository implements MemberRepository
var _ MemberRepository = (*MySQLMemberRepository)(nil)
