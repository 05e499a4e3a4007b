// Package voice tracks the bot's voice connections, one per guild.
package voice

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotConnected = errors.New("not connected to a voice channel")
	ErrNoChannel    = errors.New("user not in any voice channel")
)

// ConnectionInfo describes an open voice connection.
type ConnectionInfo struct {
	GuildID   string
	ChannelID string
	Conn      *discordgo.VoiceConnection
}

// Joiner opens voice connections. *discordgo.Session satisfies it.
type Joiner interface {
	ChannelVoiceJoin(gID, cID string, mute, deaf bool) (*discordgo.VoiceConnection, error)
}

// StateReader reads cached voice states. *discordgo.State satisfies it.
type StateReader interface {
	VoiceState(guildID, userID string) (*discordgo.VoiceState, error)
}

type Manager struct {
	mu     sync.Mutex
	joins  sync.Map // guildID -> *sync.Mutex, serializes joins per guild
	joiner Joiner
	state  StateReader
	conns  map[string]*ConnectionInfo

	// disconnect is swapped in tests.
	disconnect func(*discordgo.VoiceConnection) error
}

func NewManager(joiner Joiner, state StateReader) *Manager {
	return &Manager{
		joiner:     joiner,
		state:      state,
		conns:      make(map[string]*ConnectionInfo),
		disconnect: (*discordgo.VoiceConnection).Disconnect,
	}
}

// Join connects to channelID, reusing the guild's connection when it is
// already in that channel. The voice handshake runs without holding the
// manager lock, so other guilds are never blocked by it.
func (m *Manager) Join(guildID, channelID string) (*ConnectionInfo, error) {
	gl, _ := m.joins.LoadOrStore(guildID, &sync.Mutex{})
	guildLock := gl.(*sync.Mutex)
	guildLock.Lock()
	defer guildLock.Unlock()

	if ci, ok := m.Connection(guildID); ok && ci.ChannelID == channelID {
		return ci, nil
	}

	vc, err := m.joiner.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("join voice channel %s: %w", channelID, err)
	}

	ci := &ConnectionInfo{GuildID: guildID, ChannelID: channelID, Conn: vc}
	m.mu.Lock()
	m.conns[guildID] = ci
	m.mu.Unlock()
	log.Info().Str("guild", guildID).Str("channel", channelID).Msg("joined voice channel")
	return ci, nil
}

// Leave disconnects the guild's voice connection.
func (m *Manager) Leave(guildID string) error {
	m.mu.Lock()
	ci, ok := m.conns[guildID]
	delete(m.conns, guildID)
	m.mu.Unlock()

	if !ok {
		return ErrNotConnected
	}
	if ci.Conn != nil {
		if err := m.disconnect(ci.Conn); err != nil {
			return fmt.Errorf("disconnect: %w", err)
		}
	}
	log.Info().Str("guild", guildID).Str("channel", ci.ChannelID).Msg("left voice channel")
	return nil
}

// LeaveAll disconnects from every guild, logging failures.
func (m *Manager) LeaveAll() {
	m.mu.Lock()
	guilds := make([]string, 0, len(m.conns))
	for id := range m.conns {
		guilds = append(guilds, id)
	}
	m.mu.Unlock()

	for _, id := range guilds {
		if err := m.Leave(id); err != nil {
			log.Warn().Err(err).Str("guild", id).Msg("failed to leave voice channel")
		}
	}
}

func (m *Manager) Connected(guildID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conns[guildID]
	return ok
}

func (m *Manager) Connection(guildID string) (*ConnectionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ci, ok := m.conns[guildID]
	return ci, ok
}

// Forget drops a connection without disconnecting, e.g. after the gateway
// reports the bot was moved out of voice.
func (m *Manager) Forget(guildID string) {
	m.mu.Lock()
	delete(m.conns, guildID)
	m.mu.Unlock()
}

// UserChannel returns the voice channel userID is in, from gateway state.
func (m *Manager) UserChannel(guildID, userID string) (string, error) {
	vs, err := m.state.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", ErrNoChannel
	}
	return vs.ChannelID, nil
}
