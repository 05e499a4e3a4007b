package router

import (
	"context"
	"errors"
	"testing"

	"moobot/internal/command"
	"moobot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantName string
		wantArgs []string
		wantOK   bool
	}{
		{"prefix", ".cowboard info", "cowboard", []string{"info"}, true},
		{"upper name", ".NP", "np", []string{}, true},
		{"mention", "<@42> play never gonna", "play", []string{"never", "gonna"}, true},
		{"nick mention", "<@!42>   skip", "skip", []string{}, true},
		{"quoted", `.play "never gonna give" you`, "play", []string{"never gonna give", "you"}, true},
		{"empty quotes", `.emote ""`, "emote", []string{""}, true},
		{"other mention", "<@43> play", "", nil, false},
		{"no prefix", "cowboard info", "", nil, false},
		{"prefix only", ".", "", nil, false},
		{"mention only", "<@42>", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args, ok := Parse(tt.content, ".", "42")
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantName, name)
			if len(tt.wantArgs) == 0 {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestTokenizeUnterminatedQuote(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, Tokenize(`a "b c`))
}

func TestQuoteRoundTrip(t *testing.T) {
	for _, s := range []string{
		"plain",
		"two words",
		"",
		"🐮",
		`say "hi" there`,
		`a"b`,
		`back\slash "and quote"`,
		`trailing\`,
	} {
		assert.Equal(t, []string{s}, Tokenize(Quote(s)), s)
	}
}

func TestTokenizeEscapes(t *testing.T) {
	assert.Equal(t, []string{`say "hi"`, "x"}, Tokenize(`"say \"hi\"" x`))
	assert.Equal(t, []string{`C:\path`}, Tokenize(`C:\path`))
}

type spyCommand struct {
	name string
	got  *command.MessageContext
	err  error
}

func (s *spyCommand) Name() string             { return s.name }
func (s *spyCommand) Description() string      { return "spy" }
func (s *spyCommand) Category() string         { return "test" }
func (s *spyCommand) UserPermissions() []int64 { return nil }
func (s *spyCommand) Aliases() []string        { return []string{"sp"} }
func (s *spyCommand) Run(ctx interface{}) error {
	s.got = ctx.(*command.MessageContext)
	return s.err
}

type nopChat struct{}

func (nopChat) Say(string, string) error                     { return nil }
func (nopChat) Reply(*discordgo.Message, string) error      { return nil }
func (nopChat) Embed(string, *discordgo.MessageEmbed) error { return nil }

func newRouter(t *testing.T, c command.DiscordCommand) *Router {
	t.Helper()
	reg := cmd.NewRegistry()
	require.NoError(t, command.RegisterCommand(reg, c))
	return New(reg, ".", nopChat{})
}

func message(content string, bot bool) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "m1",
		GuildID:   "g1",
		ChannelID: "c1",
		Content:   content,
		Author:    &discordgo.User{ID: "u1", Bot: bot},
	}}
}

func TestDispatch(t *testing.T) {
	spy := &spyCommand{name: "spy"}
	r := newRouter(t, spy)

	found, err := r.Dispatch(context.Background(), nil, message(".SP a b", false))
	require.NoError(t, err)
	assert.True(t, found)
	require.NotNil(t, spy.got)
	assert.Equal(t, []string{"a", "b"}, spy.got.Args)
	assert.Equal(t, ".", spy.got.Prefix)
	assert.NotEmpty(t, spy.got.RequestID)
}

func TestDispatchIgnores(t *testing.T) {
	spy := &spyCommand{name: "spy"}
	r := newRouter(t, spy)

	found, err := r.Dispatch(context.Background(), nil, message(".spy", true))
	require.NoError(t, err)
	assert.False(t, found)

	found, err = r.Dispatch(context.Background(), nil, message(".unknown", false))
	require.NoError(t, err)
	assert.False(t, found)

	assert.Nil(t, spy.got)
}

func TestDispatchWrapsError(t *testing.T) {
	boom := errors.New("boom")
	r := newRouter(t, &spyCommand{name: "spy", err: boom})

	found, err := r.Dispatch(context.Background(), nil, message(".spy", false))
	assert.True(t, found)
	assert.ErrorIs(t, err, boom)
}

func interaction(opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:        "i1",
		AppID:     "42",
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   "g1",
		ChannelID: "c1",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "moo"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name:    "spy",
			Options: opts,
		},
	}}
}

func TestMessageFromInteraction(t *testing.T) {
	i := interaction(&discordgo.ApplicationCommandInteractionDataOption{
		Name: "emote",
		Type: discordgo.ApplicationCommandOptionSubCommand,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "emote", Type: discordgo.ApplicationCommandOptionString, Value: "🐄"},
		},
	}, &discordgo.ApplicationCommandInteractionDataOption{
		Name: "count", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(7),
	}, &discordgo.ApplicationCommandInteractionDataOption{
		Name: "query", Type: discordgo.ApplicationCommandOptionString, Value: "never gonna",
	})

	m := MessageFromInteraction(i)
	assert.Equal(t, `<@!42> spy emote 🐄 7 "never gonna"`, m.Content)
	assert.Equal(t, "i1", m.ID)
	assert.Equal(t, "g1", m.GuildID)
	assert.Equal(t, "c1", m.ChannelID)
	assert.Equal(t, "u1", m.Author.ID)
	assert.Same(t, i.Member, m.Member)
	assert.False(t, m.Timestamp.IsZero())
}

func TestMessageFromInteractionDirectMessage(t *testing.T) {
	i := interaction()
	i.GuildID = ""
	i.Member = nil
	i.User = &discordgo.User{ID: "u2"}

	m := MessageFromInteraction(i)
	assert.Equal(t, "<@!42> spy", m.Content)
	assert.Empty(t, m.GuildID)
	assert.Equal(t, "u2", m.Author.ID)
}

type mockResponder struct {
	mock.Mock
	calls []string
}

func (m *mockResponder) InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.calls = append(m.calls, "respond")
	return m.Called(i, resp).Error(0)
}

func (m *mockResponder) InteractionResponseEdit(i *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.calls = append(m.calls, "edit")
	args := m.Called(i, edit)
	return nil, args.Error(0)
}

type orderedSpy struct {
	spyCommand
	resp *mockResponder
}

func (o *orderedSpy) Run(ctx interface{}) error {
	o.resp.calls = append(o.resp.calls, "dispatch")
	return o.spyCommand.Run(ctx)
}

func isDeferral(r *discordgo.InteractionResponse) bool {
	return r.Type == discordgo.InteractionResponseDeferredChannelMessageWithSource &&
		r.Data != nil && r.Data.Flags == discordgo.MessageFlagsEphemeral
}

func TestHandleInteractionDefersDispatchesThenEdits(t *testing.T) {
	resp := new(mockResponder)
	spy := &orderedSpy{spyCommand: spyCommand{name: "spy"}, resp: resp}
	r := newRouter(t, spy)
	i := interaction(&discordgo.ApplicationCommandInteractionDataOption{
		Name: "query", Type: discordgo.ApplicationCommandOptionString, Value: `say "hi" there`,
	})

	resp.On("InteractionRespond", i.Interaction, mock.MatchedBy(isDeferral)).Return(nil)
	resp.On("InteractionResponseEdit", i.Interaction, mock.MatchedBy(func(e *discordgo.WebhookEdit) bool {
		return e.Content != nil && *e.Content == "✅ `/spy`"
	})).Return(errors.New("unknown interaction"))

	r.HandleInteraction(context.Background(), nil, resp, i)

	require.NotNil(t, spy.got)
	assert.Equal(t, []string{`say "hi" there`}, spy.got.Args)
	assert.Equal(t, "i1", spy.got.Event.ID)
	assert.Equal(t, []string{"respond", "dispatch", "edit"}, resp.calls)
	resp.AssertExpectations(t)
}

func TestHandleInteractionStillDispatchesWhenDeferFails(t *testing.T) {
	spy := &spyCommand{name: "spy"}
	r := newRouter(t, spy)
	i := interaction()

	resp := new(mockResponder)
	resp.On("InteractionRespond", i.Interaction, mock.MatchedBy(isDeferral)).Return(errors.New("gone"))

	r.HandleInteraction(context.Background(), nil, resp, i)

	require.NotNil(t, spy.got)
	resp.AssertNotCalled(t, "InteractionResponseEdit", mock.Anything, mock.Anything)
}

func TestHandleInteractionIgnoresComponents(t *testing.T) {
	spy := &spyCommand{name: "spy"}
	r := newRouter(t, spy)
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{Type: discordgo.InteractionMessageComponent}}

	resp := new(mockResponder)
	r.HandleInteraction(context.Background(), nil, resp, i)

	assert.Nil(t, spy.got)
	resp.AssertNotCalled(t, "InteractionRespond", mock.Anything, mock.Anything)
	resp.AssertNotCalled(t, "InteractionResponseEdit", mock.Anything, mock.Anything)
}
