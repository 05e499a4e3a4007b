package music

import (
	"context"
	"errors"
	"testing"

	"moobot/internal/command"
	"moobot/internal/music/sources"
	"moobot/internal/voice"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	guildID = "g1"
	userID  = "u1"
	vcID    = "vc1"
)

type mockVoice struct {
	mock.Mock
}

func (m *mockVoice) Join(guildID, channelID string) (*voice.ConnectionInfo, error) {
	args := m.Called(guildID, channelID)
	ci, _ := args.Get(0).(*voice.ConnectionInfo)
	return ci, args.Error(1)
}

func (m *mockVoice) Leave(guildID string) error { return m.Called(guildID).Error(0) }

func (m *mockVoice) Connected(guildID string) bool { return m.Called(guildID).Bool(0) }

func (m *mockVoice) UserChannel(guildID, userID string) (string, error) {
	args := m.Called(guildID, userID)
	return args.String(0), args.Error(1)
}

type mockAudio struct {
	mock.Mock
}

func (m *mockAudio) Search(_ context.Context, query string) ([]sources.Track, error) {
	args := m.Called(query)
	tracks, _ := args.Get(0).([]sources.Track)
	return tracks, args.Error(1)
}

func (m *mockAudio) CreateSession(ci *voice.ConnectionInfo) { m.Called(ci) }
func (m *mockAudio) Destroy(guildID string)                 { m.Called(guildID) }

func (m *mockAudio) Play(guildID string, track sources.Track) error {
	return m.Called(guildID, track).Error(0)
}

func (m *mockAudio) Skip(guildID string) (*sources.Track, bool) {
	args := m.Called(guildID)
	t, _ := args.Get(0).(*sources.Track)
	return t, args.Bool(1)
}

func (m *mockAudio) NowPlaying(guildID string) (*sources.Track, bool) {
	args := m.Called(guildID)
	t, _ := args.Get(0).(*sources.Track)
	return t, args.Bool(1)
}

type reply struct {
	text    string
	isReply bool
}

type recordingChat struct {
	out []reply
}

func (r *recordingChat) Say(_, content string) error {
	r.out = append(r.out, reply{content, false})
	return nil
}

func (r *recordingChat) Reply(_ *discordgo.Message, content string) error {
	r.out = append(r.out, reply{content, true})
	return nil
}

func (r *recordingChat) Embed(string, *discordgo.MessageEmbed) error { return nil }

func (r *recordingChat) texts() []string {
	out := make([]string, len(r.out))
	for i, o := range r.out {
		out[i] = o.text
	}
	return out
}

type fixture struct {
	voice *mockVoice
	audio *mockAudio
	chat  *recordingChat
	deps  *Deps
}

func newFixture() *fixture {
	f := &fixture{voice: new(mockVoice), audio: new(mockAudio), chat: &recordingChat{}}
	f.deps = &Deps{Voice: f.voice, Audio: f.audio}
	return f
}

func (f *fixture) run(t *testing.T, c command.DiscordCommand, args ...string) {
	t.Helper()
	mc := &command.MessageContext{
		Event: &discordgo.MessageCreate{Message: &discordgo.Message{
			ID: "m1", GuildID: guildID, ChannelID: "text1",
			Author: &discordgo.User{ID: userID},
		}},
		Args: args,
		Chat: f.chat,
	}
	require.NoError(t, c.Run(mc))
}

func (f *fixture) assertMocks(t *testing.T) {
	f.voice.AssertExpectations(t)
	f.audio.AssertExpectations(t)
}

func TestHelp(t *testing.T) {
	f := newFixture()
	f.run(t, &HelpCommand{})
	assert.Equal(t, []string{"`help, join, leave, play, now_playing, skip`"}, f.chat.texts())
}

func TestJoin(t *testing.T) {
	f := newFixture()
	ci := &voice.ConnectionInfo{GuildID: guildID, ChannelID: vcID}
	f.voice.On("UserChannel", guildID, userID).Return(vcID, nil)
	f.voice.On("Join", guildID, vcID).Return(ci, nil)
	f.audio.On("CreateSession", ci).Return()

	f.run(t, &JoinCommand{f.deps})

	assert.Equal(t, []string{"Joined <#vc1>"}, f.chat.texts())
	f.assertMocks(t)
}

func TestJoinWithoutVoiceChannel(t *testing.T) {
	f := newFixture()
	f.voice.On("UserChannel", guildID, userID).Return("", voice.ErrNoChannel)

	f.run(t, &JoinCommand{f.deps})

	assert.Equal(t, []reply{{"Join a voice channel first.", true}}, f.chat.out)
	f.voice.AssertNotCalled(t, "Join", mock.Anything, mock.Anything)
	f.audio.AssertNotCalled(t, "CreateSession", mock.Anything)
}

func TestJoinFailure(t *testing.T) {
	f := newFixture()
	f.voice.On("UserChannel", guildID, userID).Return(vcID, nil)
	f.voice.On("Join", guildID, vcID).Return(nil, errors.New("timeout"))

	f.run(t, &JoinCommand{f.deps})

	assert.Equal(t, []string{"Error joining the channel: timeout"}, f.chat.texts())
	f.audio.AssertNotCalled(t, "CreateSession", mock.Anything)
}

func TestLeave(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		leaveErr  error
		want      []reply
	}{
		{"not connected", false, nil, []reply{{"Not in a voice channel", true}}},
		{"connected", true, nil, []reply{{"Left voice channel", false}}},
		{"leave fails", true, errors.New("gone"), []reply{{"Failed: gone", false}, {"Left voice channel", false}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.voice.On("Connected", guildID).Return(tt.connected)
			if tt.connected {
				f.voice.On("Leave", guildID).Return(tt.leaveErr)
				f.audio.On("Destroy", guildID).Return()
			}

			f.run(t, &LeaveCommand{f.deps})

			assert.Equal(t, tt.want, f.chat.out)
			f.assertMocks(t)
		})
	}
}

func TestPlayEmptyQuery(t *testing.T) {
	f := newFixture()
	f.run(t, &PlayCommand{f.deps})

	assert.Equal(t, []string{"Please enter a query or link."}, f.chat.texts())
	f.voice.AssertNotCalled(t, "Connected", mock.Anything)
}

func TestPlayQueuesFirstResult(t *testing.T) {
	f := newFixture()
	first := sources.Track{Title: "Moo Song", URL: "https://example.com/1"}
	f.voice.On("Connected", guildID).Return(true)
	f.audio.On("Search", "moo song").Return([]sources.Track{first, {Title: "other"}}, nil)
	f.audio.On("Play", guildID, first).Return(nil)

	f.run(t, &PlayCommand{f.deps}, "moo", "song")

	assert.Equal(t, []string{"Added to queue: Moo Song"}, f.chat.texts())
	f.assertMocks(t)
}

func TestPlayJoinsFirst(t *testing.T) {
	f := newFixture()
	ci := &voice.ConnectionInfo{GuildID: guildID, ChannelID: vcID}
	track := sources.Track{Title: "t", URL: "https://example.com/t"}
	f.voice.On("Connected", guildID).Return(false)
	f.voice.On("UserChannel", guildID, userID).Return(vcID, nil)
	f.voice.On("Join", guildID, vcID).Return(ci, nil)
	f.audio.On("CreateSession", ci).Return()
	f.audio.On("Search", "https://example.com/t").Return([]sources.Track{track}, nil)
	f.audio.On("Play", guildID, track).Return(nil)

	f.run(t, &PlayCommand{f.deps}, "https://example.com/t")

	assert.Equal(t, []string{"Joined <#vc1>", "Added to queue: t"}, f.chat.texts())
	f.assertMocks(t)
}

func TestPlayJoinFailure(t *testing.T) {
	f := newFixture()
	f.voice.On("Connected", guildID).Return(false)
	f.voice.On("UserChannel", guildID, userID).Return(vcID, nil)
	f.voice.On("Join", guildID, vcID).Return(nil, errors.New("forbidden"))

	f.run(t, &PlayCommand{f.deps}, "x")

	assert.Equal(t, []string{"Failed to connect to voice channel; maybe I don't have permissions?"}, f.chat.texts())
	f.audio.AssertNotCalled(t, "Search", mock.Anything)
}

func TestPlayWithoutVoiceChannel(t *testing.T) {
	f := newFixture()
	f.voice.On("Connected", guildID).Return(false)
	f.voice.On("UserChannel", guildID, userID).Return("", voice.ErrNoChannel)

	f.run(t, &PlayCommand{f.deps}, "x")

	assert.Equal(t, []reply{{"Join a voice channel first.", true}}, f.chat.out)
	f.audio.AssertNotCalled(t, "Search", mock.Anything)
}

func TestPlayNoResults(t *testing.T) {
	for name, err := range map[string]error{
		"not found":     sources.ErrNotFound,
		"search failed": errors.New("http 500"),
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			f.voice.On("Connected", guildID).Return(true)
			f.audio.On("Search", "x").Return(nil, err)

			f.run(t, &PlayCommand{f.deps}, "x")

			assert.Equal(t, []string{"Could not find any video of the search query."}, f.chat.texts())
			f.audio.AssertNotCalled(t, "Play", mock.Anything, mock.Anything)
		})
	}
}

func TestPlayQueueFailureIsSilent(t *testing.T) {
	f := newFixture()
	track := sources.Track{Title: "t"}
	f.voice.On("Connected", guildID).Return(true)
	f.audio.On("Search", "x").Return([]sources.Track{track}, nil)
	f.audio.On("Play", guildID, track).Return(errors.New("no session"))

	f.run(t, &PlayCommand{f.deps}, "x")
	assert.Empty(t, f.chat.out)
}

func TestNowPlaying(t *testing.T) {
	f := newFixture()
	f.audio.On("NowPlaying", guildID).Return(&sources.Track{Title: "Moo"}, true).Once()
	f.audio.On("NowPlaying", guildID).Return(nil, false).Once()

	c := &NowPlayingCommand{f.deps}
	f.run(t, c)
	f.run(t, c)

	assert.Equal(t, []string{"Now Playing: Moo", "Nothing is playing at the moment."}, f.chat.texts())
	assert.Equal(t, []string{"np", "nowplaying"}, c.Aliases())
}

func TestSkip(t *testing.T) {
	f := newFixture()
	f.audio.On("Skip", guildID).Return(&sources.Track{URL: "https://example.com/a"}, true).Once()
	f.audio.On("Skip", guildID).Return(nil, false).Once()

	c := &SkipCommand{f.deps}
	f.run(t, c)
	f.run(t, c)

	assert.Equal(t, []string{"Skipped: https://example.com/a", "Nothing to skip."}, f.chat.texts())
}

func TestCommandsAreGuildOnlyExceptHelp(t *testing.T) {
	for _, c := range Commands(&Deps{}) {
		g, ok := c.(interface{ GuildOnly() bool })
		if c.Name() == "help" {
			assert.False(t, ok && g.GuildOnly())
			continue
		}
		require.True(t, ok, c.Name())
		assert.True(t, g.GuildOnly(), c.Name())
		assert.NotNil(t, c.(command.SlashProvider).SlashDefinition(), c.Name())
	}
}
