// /internal/storage/storage.go
package storage

import (
	"errors"
	"fmt"
	"sync"

	"moobot/datastore"
	st "moobot/internal/storagetypes"
)

const commandHistoryLimit int = 50

// Store is the settings store used by the command handlers.
type Store interface {
	CowboardConfig(guildID string) (*st.Cowboard, error)
	// LookupCowboard reads a guild's record without creating it.
	LookupCowboard(guildID string) (*st.Cowboard, bool, error)
	UpdateCowboard(cfg *st.Cowboard) error
	AppendCommandHistory(rec st.CommandHistory) error
	CommandHistory(guildID string) ([]st.CommandHistory, error)
	// Guilds lists the guilds with stored data, sorted.
	Guilds() ([]string, error)
	Close() error
}

// Driver names accepted by Open.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Open returns the store for the given driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", DriverJSON:
		return New(path)
	case DriverSQLite:
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// Record is everything persisted for one guild.
type Record struct {
	Cowboard        *st.Cowboard        `json:"cowboard,omitempty"`
	CommandsHistory []st.CommandHistory `json:"commands_history"`
}

// Storage keeps one Record per guild in the JSON datastore.
type Storage struct {
	mu sync.Mutex
	ds *datastore.DataStore
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// getOrCreateGuildRecord loads the guild record, creating and persisting a
// default one on first access. Callers hold s.mu.
func (s *Storage) getOrCreateGuildRecord(guildID string) (*Record, error) {
	if guildID == "" {
		return nil, errors.New("guild id is empty")
	}

	var record Record
	exists, err := s.ds.Get(guildID, &record)
	if err != nil {
		return nil, fmt.Errorf("error reading record for guild %s: %w", guildID, err)
	}

	dirty := !exists
	if record.Cowboard == nil {
		record.Cowboard = st.NewCowboard(guildID)
		dirty = true
	}
	if record.CommandsHistory == nil {
		record.CommandsHistory = []st.CommandHistory{}
	}

	if dirty {
		if err := s.ds.Put(guildID, &record); err != nil {
			return nil, err
		}
	}
	return &record, nil
}

// CowboardConfig returns the guild's cowboard record, creating the default one if needed.
func (s *Storage) CowboardConfig(guildID string) (*st.Cowboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.Cowboard, nil
}

func (s *Storage) LookupCowboard(guildID string) (*st.Cowboard, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if guildID == "" {
		return nil, false, errors.New("guild id is empty")
	}
	var record Record
	exists, err := s.ds.Get(guildID, &record)
	if err != nil {
		return nil, false, fmt.Errorf("error reading record for guild %s: %w", guildID, err)
	}
	if !exists || record.Cowboard == nil {
		return nil, false, nil
	}
	return record.Cowboard, true, nil
}

// UpdateCowboard overwrites the guild's cowboard record.
func (s *Storage) UpdateCowboard(cfg *st.Cowboard) error {
	if cfg == nil {
		return errors.New("cowboard config is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(cfg.GuildID)
	if err != nil {
		return err
	}
	record.Cowboard = cfg
	if err := s.ds.Put(cfg.GuildID, record); err != nil {
		return err
	}
	// config changes are rare; flush now instead of waiting for autosave
	return s.ds.Save()
}

func (s *Storage) Guilds() ([]string, error) {
	return s.ds.Keys(), nil
}

func (s *Storage) AppendCommandHistory(rec st.CommandHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(rec.GuildID)
	if err != nil {
		return err
	}

	record.CommandsHistory = append(record.CommandsHistory, rec)
	if len(record.CommandsHistory) > commandHistoryLimit {
		record.CommandsHistory = record.CommandsHistory[len(record.CommandsHistory)-commandHistoryLimit:]
	}
	return s.ds.Put(rec.GuildID, record)
}

// CommandHistory returns the recorded commands, oldest first. Reading never
// creates a guild record.
func (s *Storage) CommandHistory(guildID string) ([]st.CommandHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if guildID == "" {
		return nil, errors.New("guild id is empty")
	}
	var record Record
	if _, err := s.ds.Get(guildID, &record); err != nil {
		return nil, fmt.Errorf("error reading record for guild %s: %w", guildID, err)
	}
	if record.CommandsHistory == nil {
		return []st.CommandHistory{}, nil
	}
	return record.CommandsHistory, nil
}
