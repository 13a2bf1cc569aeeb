package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"clubledger/internal/core"
)

const settingNotificationsEnabled = "notifications_enabled"

func (r *SQLiteRepository) ListMembers(ctx context.Context) ([]core.Member, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, email, display_name, role FROM members ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		var (
			m    core.Member
			role string
		)
		if err := rows.Scan(&m.ID, &m.Email, &m.DisplayName, &role); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Role = core.Role(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpsertMember mirrors a member record from the membership subsystem.
func (r *SQLiteRepository) UpsertMember(ctx context.Context, m core.Member) error {
	role := m.Role
	if role == "" {
		role = core.RoleMember
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO members (id, email, display_name, role)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email,
			display_name = excluded.display_name, role = excluded.role`,
		m.ID, m.Email, m.DisplayName, string(role))
	if err != nil {
		return fmt.Errorf("upsert member %s: %w", m.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) NotificationsEnabled(ctx context.Context, def bool) (bool, error) {
	var v string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settingNotificationsEnabled).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("read setting %s: %w", settingNotificationsEnabled, err)
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("parse setting %s=%q: %w", settingNotificationsEnabled, v, err)
	}
	return enabled, nil
}

func (r *SQLiteRepository) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		settingNotificationsEnabled, strconv.FormatBool(enabled))
	if err != nil {
		return fmt.Errorf("write setting %s: %w", settingNotificationsEnabled, err)
	}
	return nil
}
