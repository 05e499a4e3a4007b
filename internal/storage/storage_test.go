package storage

import (
	"path/filepath"
	"testing"
	"time"

	st "moobot/internal/storagetypes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	jsonStore, err := Open(DriverJSON, filepath.Join(dir, "store.json"))
	require.NoError(t, err)
	sqliteStore, err := Open(DriverSQLite, filepath.Join(dir, "store.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		jsonStore.Close()
		sqliteStore.Close()
	})

	return map[string]Store{DriverJSON: jsonStore, DriverSQLite: sqliteStore}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("mongo", "x")
	assert.Error(t, err)
}

func TestCowboardConfigCreatesDefault(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			cfg, err := store.CowboardConfig("guild-1")
			require.NoError(t, err)

			assert.Equal(t, "guild-1", cfg.GuildID)
			assert.Equal(t, st.DefaultEmote, cfg.Emote)
			assert.Equal(t, st.DefaultAddThreshold, cfg.AddThreshold)
			assert.Equal(t, st.DefaultRemoveThreshold, cfg.RemoveThreshold)
			assert.Nil(t, cfg.Channel)
			assert.False(t, cfg.HasWebhook())
		})
	}
}

func TestUpdateCowboardOverwrites(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			cfg, err := store.CowboardConfig("guild-2")
			require.NoError(t, err)

			channel := "123"
			cfg.Channel = &channel
			cfg.Emote = "<:moo:42>"
			cfg.AddThreshold = 9
			cfg.RemoveThreshold = 1
			cfg.SetWebhook("wh-id", "wh-token")
			require.NoError(t, store.UpdateCowboard(cfg))

			got, err := store.CowboardConfig("guild-2")
			require.NoError(t, err)
			assert.Equal(t, cfg, got)

			got.ClearWebhook()
			got.Channel = nil
			require.NoError(t, store.UpdateCowboard(got))

			again, err := store.CowboardConfig("guild-2")
			require.NoError(t, err)
			assert.Nil(t, again.Channel)
			assert.Nil(t, again.WebhookID)
			assert.Nil(t, again.WebhookToken)
		})
	}
}

func TestCowboardConfigRejectsEmptyGuild(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.CowboardConfig("")
			assert.Error(t, err)
		})
	}
}

func TestCommandHistoryIsCapped(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			for i := 0; i < commandHistoryLimit+5; i++ {
				require.NoError(t, store.AppendCommandHistory(st.CommandHistory{
					GuildID:   "guild-3",
					ChannelID: "c",
					UserID:    "u",
					Username:  "bob",
					Command:   "skip",
					Datetime:  base.Add(time.Duration(i) * time.Minute),
				}))
			}

			history, err := store.CommandHistory("guild-3")
			require.NoError(t, err)
			require.Len(t, history, commandHistoryLimit)
			assert.True(t, history[len(history)-1].Datetime.Equal(base.Add(time.Duration(commandHistoryLimit+4)*time.Minute)))
		})
	}
}

func TestLookupCowboardDoesNotCreate(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			cfg, ok, err := store.LookupCowboard("guild-4")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, cfg)

			history, err := store.CommandHistory("guild-4")
			require.NoError(t, err)
			assert.Empty(t, history)

			_, ok, err = store.LookupCowboard("guild-4")
			require.NoError(t, err)
			assert.False(t, ok, "reads must not create a record")

			_, err = store.CowboardConfig("guild-4")
			require.NoError(t, err)

			cfg, ok, err = store.LookupCowboard("guild-4")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, st.DefaultEmote, cfg.Emote)
		})
	}
}

func TestJSONReadsLeaveDatastoreEmpty(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	defer store.Close()

	_, _, err = store.LookupCowboard("999")
	require.NoError(t, err)
	_, err = store.CommandHistory("999")
	require.NoError(t, err)

	assert.Empty(t, store.ds.Keys())
}

func TestGuilds(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.CowboardConfig("guild-b")
			require.NoError(t, err)
			require.NoError(t, store.AppendCommandHistory(st.CommandHistory{
				GuildID: "guild-a", ChannelID: "c", UserID: "u", Username: "bob", Command: "np",
				Datetime: time.Now(),
			}))

			guilds, err := store.Guilds()
			require.NoError(t, err)
			assert.Equal(t, []string{"guild-a", "guild-b"}, guilds)
		})
	}
}
