package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hengadev/carevault"
)

// AppendLog writes entry. A zero Timestamp is replaced with the store clock.
func (s *Store) AppendLog(ctx context.Context, entry carevault.AuditEntry) error {
	ts := s.timestamp()
	if !entry.Timestamp.IsZero() {
		ts = formatTime(entry.Timestamp)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO logs (user_id, role, action, timestamp, details)
		VALUES (?, ?, ?, ?, ?)
	`, entry.UserID, string(entry.Role), string(entry.Action), ts, entry.Details)
	if err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}
	return nil
}

// ListLogs returns the latest limit entries, newest first.
func (s *Store) ListLogs(ctx context.Context, limit int) ([]carevault.AuditEntry, error) {
	return s.queryLogs(ctx, `
		SELECT l.log_id, l.user_id, COALESCE(u.username, ''), l.role, l.action, l.timestamp, COALESCE(l.details, '')
		FROM logs l
		LEFT JOIN users u ON l.user_id = u.user_id
		ORDER BY l.timestamp DESC, l.log_id DESC
		LIMIT ?
	`, limit)
}

// ListLogsByAction returns the latest limit entries recorded for action.
func (s *Store) ListLogsByAction(ctx context.Context, action carevault.Action, limit int) ([]carevault.AuditEntry, error) {
	return s.queryLogs(ctx, `
		SELECT l.log_id, l.user_id, COALESCE(u.username, ''), l.role, l.action, l.timestamp, COALESCE(l.details, '')
		FROM logs l
		LEFT JOIN users u ON l.user_id = u.user_id
		WHERE l.action = ?
		ORDER BY l.timestamp DESC, l.log_id DESC
		LIMIT ?
	`, string(action), limit)
}

func (s *Store) queryLogs(ctx context.Context, query string, args ...any) ([]carevault.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var entries []carevault.AuditEntry
	for rows.Next() {
		var e carevault.AuditEntry
		var role, action, ts string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &role, &action, &ts, &e.Details); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		e.Role = carevault.Role(role)
		e.Action = carevault.Action(action)
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ActivityStats summarizes the log. "Today" is the UTC calendar day of now.
func (s *Store) ActivityStats(ctx context.Context, now time.Time) (carevault.ActivityStats, error) {
	stats := carevault.ActivityStats{MostActiveUser: carevault.MostActiveUserNone}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM logs`).Scan(&stats.TotalLogs); err != nil {
		return stats, fmt.Errorf("failed to count audit logs: %w", err)
	}

	start := startOfDay(now)
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM logs
		WHERE timestamp >= ? AND timestamp < ?
	`, formatTime(start), formatTime(start.AddDate(0, 0, 1))).Scan(&stats.LogsToday); err != nil {
		return stats, fmt.Errorf("failed to count today's audit logs: %w", err)
	}

	var username string
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT u.username, COUNT(*) AS count
		FROM logs l
		JOIN users u ON l.user_id = u.user_id
		GROUP BY l.user_id
		ORDER BY count DESC, u.username ASC
		LIMIT 1
	`).Scan(&username, &count)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return stats, fmt.Errorf("failed to find most active user: %w", err)
	default:
		stats.MostActiveUser = username
		stats.MostActiveCount = count
	}

	return stats, nil
}

// DailyActivity counts entries per UTC day from days before now up to now,
// oldest first. Days without activity are omitted.
func (s *Store) DailyActivity(ctx context.Context, days int, now time.Time) ([]carevault.DailyCount, error) {
	if days < 0 {
		days = 0
	}
	since := startOfDay(now).AddDate(0, 0, -days)

	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(timestamp, 1, 10) AS day, COUNT(*)
		FROM logs
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day
	`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily activity: %w", err)
	}
	defer rows.Close()

	var out []carevault.DailyCount
	for rows.Next() {
		var dc carevault.DailyCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan daily activity: %w", err)
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
