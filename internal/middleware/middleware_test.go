package middleware

import (
	"context"
	"errors"
	"testing"

	"moobot/internal/command"
	st "moobot/internal/storagetypes"
	"moobot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testCommand struct {
	guildOnly bool
	perms     []int64
	runs      int
	err       error
}

func (t *testCommand) Name() string             { return "test" }
func (t *testCommand) Description() string      { return "test command" }
func (t *testCommand) Category() string         { return "test" }
func (t *testCommand) UserPermissions() []int64 { return t.perms }
func (t *testCommand) GuildOnly() bool          { return t.guildOnly }
func (t *testCommand) Run(interface{}) error {
	t.runs++
	return t.err
}

type chatLog struct {
	lines []string
}

func (c *chatLog) Say(_, content string) error {
	c.lines = append(c.lines, content)
	return nil
}
func (c *chatLog) Reply(_ *discordgo.Message, content string) error {
	c.lines = append(c.lines, content)
	return nil
}
func (c *chatLog) Embed(string, *discordgo.MessageEmbed) error { return nil }

type mockPerms struct {
	mock.Mock
}

func (m *mockPerms) UserChannelPermissions(userID, channelID string, _ ...discordgo.RequestOption) (int64, error) {
	args := m.Called(userID, channelID)
	return args.Get(0).(int64), args.Error(1)
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) AppendCommandHistory(rec st.CommandHistory) error {
	return m.Called(rec).Error(0)
}

func invocation(guildID string, chat command.Chat, args ...string) *cmd.Invocation {
	mc := &command.MessageContext{
		Event: &discordgo.MessageCreate{Message: &discordgo.Message{
			ID:        "m1",
			GuildID:   guildID,
			ChannelID: "c1",
			Author:    &discordgo.User{ID: "u1", Username: "moo"},
		}},
		Chat: chat,
	}
	return &cmd.Invocation{Args: args, Data: mc}
}

func TestGuildOnly(t *testing.T) {
	inner := &testCommand{guildOnly: true}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: inner}, WithGuildOnly())

	chat := &chatLog{}
	require.NoError(t, c.Run(context.Background(), invocation("", chat)))
	assert.Zero(t, inner.runs)
	assert.Equal(t, []string{"This command can only be run in a server."}, chat.lines)

	require.NoError(t, c.Run(context.Background(), invocation("g1", chat)))
	assert.Equal(t, 1, inner.runs)
}

func TestGuildOnlyIgnoresOtherCommands(t *testing.T) {
	inner := &testCommand{}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: inner}, WithGuildOnly())

	require.NoError(t, c.Run(context.Background(), invocation("", &chatLog{})))
	assert.Equal(t, 1, inner.runs)
}

func TestUserPermissionCheck(t *testing.T) {
	tests := []struct {
		name      string
		perms     []int64
		member    int64
		developer string
		wantRun   bool
	}{
		{"no requirement", nil, 0, "", true},
		{"missing", []int64{discordgo.PermissionAdministrator}, discordgo.PermissionSendMessages, "", false},
		{"administrator", []int64{discordgo.PermissionManageGuild}, discordgo.PermissionAdministrator, "", true},
		{"any of", []int64{discordgo.PermissionManageGuild, discordgo.PermissionManageWebhooks}, discordgo.PermissionManageWebhooks, "", true},
		{"developer bypass", []int64{discordgo.PermissionAdministrator}, 0, "u1", true},
		{"other developer", []int64{discordgo.PermissionAdministrator}, 0, "u9", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perms := new(mockPerms)
			perms.On("UserChannelPermissions", "u1", "c1").Return(tt.member, nil).Maybe()

			inner := &testCommand{perms: tt.perms}
			isDeveloper := func(id string) bool { return tt.developer != "" && id == tt.developer }
			c := cmd.Apply(&command.DiscordAdapter{Cmd: inner}, WithUserPermissionCheck(perms, isDeveloper))

			chat := &chatLog{}
			require.NoError(t, c.Run(context.Background(), invocation("g1", chat)))
			if tt.wantRun {
				assert.Equal(t, 1, inner.runs)
				assert.Empty(t, chat.lines)
				return
			}
			assert.Zero(t, inner.runs)
			require.Len(t, chat.lines, 1)
			assert.Contains(t, chat.lines[0], "`Administrator`")
		})
	}
}

func TestUserPermissionCheckLookupError(t *testing.T) {
	perms := new(mockPerms)
	perms.On("UserChannelPermissions", "u1", "c1").Return(int64(0), errors.New("no state"))

	inner := &testCommand{perms: []int64{discordgo.PermissionAdministrator}}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: inner}, WithUserPermissionCheck(perms, nil))

	assert.Error(t, c.Run(context.Background(), invocation("g1", &chatLog{})))
	assert.Zero(t, inner.runs)
}

func TestCommandLoggerAppendsHistory(t *testing.T) {
	history := new(mockHistory)
	history.On("AppendCommandHistory", mock.MatchedBy(func(rec st.CommandHistory) bool {
		return rec.GuildID == "g1" && rec.ChannelID == "c1" && rec.UserID == "u1" &&
			rec.Username == "moo" && rec.Command == "test" && !rec.Datetime.IsZero()
	})).Return(errors.New("disk full"))

	boom := errors.New("boom")
	inner := &testCommand{err: boom}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: inner}, WithCommandLogger(history))

	err := c.Run(context.Background(), invocation("g1", &chatLog{}))
	assert.ErrorIs(t, err, boom)
	history.AssertExpectations(t)
}

func TestCommandLoggerSkipsDirectMessages(t *testing.T) {
	history := new(mockHistory)
	inner := &testCommand{}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: inner}, WithCommandLogger(history))

	require.NoError(t, c.Run(context.Background(), invocation("", &chatLog{})))
	history.AssertNotCalled(t, "AppendCommandHistory", mock.Anything)
}
