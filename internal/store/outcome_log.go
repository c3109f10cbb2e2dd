package store

import (
	"fmt"

	"github.com/soyeahso/smsrelay/internal/outcome"
)

// OutcomeLog is a persistent outcome.Backend capped at a retention count.
type OutcomeLog struct {
	db        *DB
	retention int
}

// NewOutcomeLog creates an outcome log on db. retention <= 0 selects
// outcome.DefaultRetention.
func NewOutcomeLog(db *DB, retention int) *OutcomeLog {
	if retention <= 0 {
		retention = outcome.DefaultRetention
	}
	return &OutcomeLog{db: db, retention: retention}
}

// Insert implements outcome.Backend.
func (l *OutcomeLog) Insert(entry string) error {
	tx, err := l.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin outcome insert: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT INTO outcome_log (entry) VALUES (?)", entry); err != nil {
		return fmt.Errorf("inserting outcome: %w", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM outcome_log WHERE id NOT IN (
			SELECT id FROM outcome_log ORDER BY id DESC LIMIT ?
		)`, l.retention); err != nil {
		return fmt.Errorf("evicting outcomes: %w", err)
	}
	return tx.Commit()
}

// List implements outcome.Backend.
func (l *OutcomeLog) List(limit int) ([]string, error) {
	if limit <= 0 {
		limit = l.retention
	}
	rows, err := l.db.sql.Query("SELECT entry FROM outcome_log ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Clear implements outcome.Backend.
func (l *OutcomeLog) Clear() error {
	if _, err := l.db.sql.Exec("DELETE FROM outcome_log"); err != nil {
		return fmt.Errorf("clearing outcomes: %w", err)
	}
	return nil
}
