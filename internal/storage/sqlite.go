package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	st "moobot/internal/storagetypes"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cowboard (
	guild_id         TEXT PRIMARY KEY,
	emote            TEXT NOT NULL,
	channel_id       TEXT,
	add_threshold    INTEGER NOT NULL,
	remove_threshold INTEGER NOT NULL,
	webhook_id       TEXT,
	webhook_token    TEXT
);

CREATE TABLE IF NOT EXISTS command_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	guild_id   TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	username   TEXT NOT NULL,
	command    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS command_history_guild ON command_history (guild_id, id);
`

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) CowboardConfig(guildID string) (*st.Cowboard, error) {
	cfg, ok, err := s.LookupCowboard(guildID)
	if err != nil {
		return nil, err
	}
	if ok {
		return cfg, nil
	}

	cfg = st.NewCowboard(guildID)
	if err := s.UpdateCowboard(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *SQLite) LookupCowboard(guildID string) (*st.Cowboard, bool, error) {
	if guildID == "" {
		return nil, false, errors.New("guild id is empty")
	}

	cfg := &st.Cowboard{GuildID: guildID}
	var channel, webhookID, webhookToken sql.NullString

	err := s.db.QueryRow(
		`SELECT emote, channel_id, add_threshold, remove_threshold, webhook_id, webhook_token
		 FROM cowboard WHERE guild_id = ?`, guildID,
	).Scan(&cfg.Emote, &channel, &cfg.AddThreshold, &cfg.RemoveThreshold, &webhookID, &webhookToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cowboard for guild %s: %w", guildID, err)
	}

	cfg.Channel = fromNull(channel)
	if webhookID.Valid && webhookToken.Valid {
		cfg.SetWebhook(webhookID.String, webhookToken.String)
	}
	return cfg, true, nil
}

func (s *SQLite) UpdateCowboard(cfg *st.Cowboard) error {
	if cfg == nil {
		return errors.New("cowboard config is nil")
	}

	_, err := s.db.Exec(
		`INSERT INTO cowboard (guild_id, emote, channel_id, add_threshold, remove_threshold, webhook_id, webhook_token)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET
			emote = excluded.emote,
			channel_id = excluded.channel_id,
			add_threshold = excluded.add_threshold,
			remove_threshold = excluded.remove_threshold,
			webhook_id = excluded.webhook_id,
			webhook_token = excluded.webhook_token`,
		cfg.GuildID, cfg.Emote, toNull(cfg.Channel), cfg.AddThreshold, cfg.RemoveThreshold,
		toNull(cfg.WebhookID), toNull(cfg.WebhookToken),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cowboard for guild %s: %w", cfg.GuildID, err)
	}
	return nil
}

func (s *SQLite) AppendCommandHistory(rec st.CommandHistory) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO command_history (guild_id, channel_id, user_id, username, command, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.GuildID, rec.ChannelID, rec.UserID, rec.Username, rec.Command, rec.Datetime.UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert command history: %w", err)
	}

	if _, err := tx.Exec(
		`DELETE FROM command_history WHERE guild_id = ? AND id NOT IN (
			SELECT id FROM command_history WHERE guild_id = ? ORDER BY id DESC LIMIT ?
		)`, rec.GuildID, rec.GuildID, commandHistoryLimit,
	); err != nil {
		return fmt.Errorf("failed to trim command history: %w", err)
	}

	return tx.Commit()
}

func (s *SQLite) CommandHistory(guildID string) ([]st.CommandHistory, error) {
	rows, err := s.db.Query(
		`SELECT guild_id, channel_id, user_id, username, command, created_at
		 FROM command_history WHERE guild_id = ? ORDER BY id ASC`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []st.CommandHistory{}
	for rows.Next() {
		var rec st.CommandHistory
		var at time.Time
		if err := rows.Scan(&rec.GuildID, &rec.ChannelID, &rec.UserID, &rec.Username, &rec.Command, &at); err != nil {
			return nil, err
		}
		rec.Datetime = at
		history = append(history, rec)
	}
	return history, rows.Err()
}

func (s *SQLite) Guilds() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT guild_id FROM cowboard
		 UNION
		 SELECT guild_id FROM command_history
		 ORDER BY guild_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	guilds := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		guilds = append(guilds, id)
	}
	return guilds, rows.Err()
}

func toNull(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func fromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
