package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/soyeahso/smsrelay/internal/domain"
	"github.com/soyeahso/smsrelay/internal/logging"
)

// channelRecord is the persisted channel shape. Type is kept as written so
// historical names such as "WECHAT" still load.
type channelRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Target string `json:"target"`
	SimID  simID  `json:"simId,omitempty"`
}

// simID accepts the selector as a string or as a numeric subscription id.
// A negative number or null means no selector.
type simID string

func (s *simID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*s = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = simID(strings.TrimSpace(str))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("simId: %w", err)
	}
	id, err := n.Int64()
	if err != nil {
		return fmt.Errorf("simId: %w", err)
	}
	if id < 0 {
		*s = ""
		return nil
	}
	*s = simID(n.String())
	return nil
}

type ruleRecord struct {
	ID        string `json:"id"`
	Keyword   string `json:"keyword"`
	ChannelID string `json:"channelId"`
}

// Rules is the SQLite-backed rule store. It implements routing.RuleSource.
type Rules struct {
	db  *DB
	log *logging.Logger
}

// NewRules creates a rule store on db.
func NewRules(db *DB) *Rules {
	return &Rules{db: db, log: db.log.Sub("rules")}
}

// LoadChannels returns all channels in insertion order. Records that cannot
// be decoded are skipped.
func (s *Rules) LoadChannels(ctx context.Context) ([]domain.Channel, error) {
	var out []domain.Channel
	err := s.scan(ctx, "channels", func(id, raw string) bool {
		var rec channelRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.ID == "" {
			return false
		}
		out = append(out, domain.Channel{
			ID:     rec.ID,
			Name:   rec.Name,
			Kind:   domain.ParseChannelKind(rec.Type),
			Target: rec.Target,
			SIM:    string(rec.SimID),
		})
		return true
	})
	return out, err
}

// LoadRules returns all keyword rules in insertion order. Records that
// cannot be decoded are skipped.
func (s *Rules) LoadRules(ctx context.Context) ([]domain.Rule, error) {
	var out []domain.Rule
	err := s.scan(ctx, "keyword_configs", func(id, raw string) bool {
		var rec ruleRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.ID == "" {
			return false
		}
		out = append(out, domain.Rule{ID: rec.ID, Keyword: rec.Keyword, ChannelID: rec.ChannelID})
		return true
	})
	return out, err
}

func (s *Rules) scan(ctx context.Context, table string, decode func(id, raw string) bool) error {
	rows, err := s.db.sql.QueryContext(ctx,
		"SELECT id, record FROM "+table+" ORDER BY position, rowid")
	if err != nil {
		return fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return fmt.Errorf("scanning %s: %w", table, err)
		}
		if !decode(id, raw) {
			s.log.Warn().Str("table", table).Str("id", id).Msg("skipping malformed record")
		}
	}
	return rows.Err()
}

// SaveChannel inserts ch, or replaces the record with the same id in place.
// A missing id is generated. The stored channel is returned.
func (s *Rules) SaveChannel(ctx context.Context, ch domain.Channel) (domain.Channel, error) {
	ch, rec := channelToRecord(ch)
	if err := s.upsert(ctx, s.db.sql, "channels", ch.ID, rec); err != nil {
		return domain.Channel{}, err
	}
	return ch, nil
}

func channelToRecord(ch domain.Channel) (domain.Channel, channelRecord) {
	if ch.ID == "" {
		ch.ID = uuid.New().String()
	}
	if !ch.Kind.Valid() {
		ch.Kind = domain.ParseChannelKind(string(ch.Kind))
	}
	ch.Target = strings.TrimSpace(ch.Target)
	return ch, channelRecord{ID: ch.ID, Name: ch.Name, Type: string(ch.Kind), Target: ch.Target, SimID: simID(ch.SIM)}
}

func ruleToRecord(r domain.Rule) (domain.Rule, ruleRecord) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return r, ruleRecord{ID: r.ID, Keyword: r.Keyword, ChannelID: r.ChannelID}
}

// SaveRule inserts r, or replaces the record with the same id in place.
// The referenced channel does not have to exist.
func (s *Rules) SaveRule(ctx context.Context, r domain.Rule) (domain.Rule, error) {
	r, rec := ruleToRecord(r)
	if err := s.upsert(ctx, s.db.sql, "keyword_configs", r.ID, rec); err != nil {
		return domain.Rule{}, err
	}
	return r, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Rules) upsert(ctx context.Context, ex execer, table, id string, rec any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding %s record: %w", table, err)
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO `+table+` (id, position, record)
		VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM `+table+`), ?)
		ON CONFLICT(id) DO UPDATE SET record = excluded.record, updated_at = datetime('now')
	`, id, string(data))
	if err != nil {
		return fmt.Errorf("saving %s %s: %w", table, id, err)
	}
	return nil
}

// DeleteChannel removes a channel. Rules that reference it are left in
// place and simply stop matching.
func (s *Rules) DeleteChannel(ctx context.Context, id string) error {
	return s.delete(ctx, "channels", id)
}

// DeleteRule removes a keyword rule.
func (s *Rules) DeleteRule(ctx context.Context, id string) error {
	return s.delete(ctx, "keyword_configs", id)
}

func (s *Rules) delete(ctx context.Context, table, id string) error {
	res, err := s.db.sql.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", strings.TrimSuffix(table, "s"), id, ErrNotFound)
	}
	return nil
}

// Import saves every channel and then every rule in one transaction,
// keeping the given order for new records.
func (s *Rules) Import(ctx context.Context, channels []domain.Channel, rules []domain.Rule) error {
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for _, ch := range channels {
		ch, rec := channelToRecord(ch)
		if err := s.upsert(ctx, tx, "channels", ch.ID, rec); err != nil {
			return err
		}
	}
	for _, r := range rules {
		r, rec := ruleToRecord(r)
		if err := s.upsert(ctx, tx, "keyword_configs", r.ID, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	s.log.Info().Int("channels", len(channels)).Int("rules", len(rules)).Msg("rules imported")
	return nil
}
