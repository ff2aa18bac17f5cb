package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/LynxShu/ST-var-manager/internal/parser"
	"github.com/LynxShu/ST-var-manager/internal/pipeline"
	"github.com/LynxShu/ST-var-manager/internal/runtime"
	"github.com/LynxShu/ST-var-manager/pkg/adapters/memory"
	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(t *testing.T, static map[string]any) string {
	t.Helper()
	s := domain.NewState()
	s.Static = static
	data, err := json.Marshal(s)
	require.NoError(t, err)
	return "<state-start>\n" + string(data) + "\n<state-end>"
}

type countingChat struct {
	*memory.Chat
	writes int
}

func (c *countingChat) SetMessage(ctx context.Context, index int, text string) error {
	c.writes++
	return c.Chat.SetMessage(ctx, index, text)
}

func setup(msgs ...domain.Message) (*countingChat, *memory.Store, *pipeline.Processor) {
	chat := &countingChat{Chat: memory.NewChat(msgs...)}
	vars := memory.NewStore()
	return chat, vars, pipeline.New(chat, vars, runtime.NewEngine())
}

func TestProcess_AppliesAndEmbeds(t *testing.T) {
	ctx := context.Background()
	chat, vars, p := setup(
		domain.Message{IsUser: true, Text: "attack"},
		domain.Message{Text: "You hit it. <SET :: hero.hp :: 5> <ADD :: hero.hp :: 3>"},
	)

	res, err := p.Process(ctx)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Parsed)

	s, err := vars.State(ctx)
	require.NoError(t, err)
	hp, _ := domain.GetPath(s.Static, "hero.hp")
	assert.Equal(t, 8.0, hp)

	msg, _ := chat.Message(ctx, 1)
	assert.True(t, strings.HasPrefix(msg.Text, "You hit it. <SET :: hero.hp :: 5> <ADD :: hero.hp :: 3>\n\n<state-start>\n{\n  \"static\""))
	assert.True(t, strings.HasSuffix(msg.Text, "\n<state-end>"))

	embedded, found, err := parser.NewParser().Extract(msg.Text)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, s.Static, embedded.Static)
}

func TestProcess_UserMessageIsSkipped(t *testing.T) {
	chat, vars, p := setup(domain.Message{IsUser: true, Text: "<SET :: a :: 1>"})

	res, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Zero(t, chat.writes)

	s, _ := vars.State(context.Background())
	assert.Empty(t, s.Static)
}

func TestProcess_EmptyChat(t *testing.T) {
	_, _, p := setup()
	res, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestProcess_UnchangedTextIsNotRewritten(t *testing.T) {
	ctx := context.Background()
	chat, _, p := setup(domain.Message{Text: "quiet scene"})

	require.NoError(t, p.ProcessLatest(ctx))
	assert.Equal(t, 1, chat.writes)

	// The message now carries the block for the same state.
	require.NoError(t, p.ProcessLatest(ctx))
	assert.Equal(t, 1, chat.writes)
}

func TestProcess_TimedSetAcrossRounds(t *testing.T) {
	ctx := context.Background()
	chat, vars, p := setup(
		domain.Message{IsUser: true, Text: "wait"},
		domain.Message{Text: "<TIMED_SET :: flag.ready :: true :: timer1 :: false :: 2>"},
	)
	require.NoError(t, p.ProcessLatest(ctx))

	s, _ := vars.State(ctx)
	require.Len(t, s.Volatile, 1)
	assert.Equal(t, 3, s.Volatile[0].TriggerAt.Round)

	_, _ = chat.Append(ctx, domain.Message{IsUser: true, Text: "wait more"})
	_, _ = chat.Append(ctx, domain.Message{Text: "time passes"})
	res, err := p.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Promoted)

	s, _ = vars.State(ctx)
	assert.Empty(t, s.Volatile)
	ready, _ := domain.GetPath(s.Static, "flag.ready")
	assert.Equal(t, true, ready)
}

func TestResync_LoadsNewestAssistantState(t *testing.T) {
	ctx := context.Background()
	_, vars, p := setup(
		domain.Message{Text: "intro " + block(t, map[string]any{"v": 1.0})},
		domain.Message{IsUser: true, Text: "user text " + block(t, map[string]any{"v": 99.0})},
		domain.Message{Text: "reply " + block(t, map[string]any{"v": 2.0})},
		domain.Message{IsUser: true, Text: "next"},
	)

	require.NoError(t, p.Resync(ctx))
	s, _ := vars.State(ctx)
	assert.Equal(t, 2.0, s.Static["v"])
}

func TestResync_NoBlockYieldsInitialState(t *testing.T) {
	ctx := context.Background()
	_, vars, p := setup(domain.Message{Text: "no state here"})
	require.NoError(t, vars.ReplaceState(ctx, &domain.State{Static: map[string]any{"stale": true}}))

	require.NoError(t, p.Resync(ctx))
	s, _ := vars.State(ctx)
	assert.Empty(t, s.Static)
}

func TestResync_DecodeFailureYieldsInitialState(t *testing.T) {
	ctx := context.Background()
	_, vars, p := setup(
		domain.Message{Text: "good " + block(t, map[string]any{"v": 1.0})},
		domain.Message{Text: "bad <state-start>\n{not json\n<state-end>"},
	)

	require.NoError(t, p.Resync(ctx))
	s, _ := vars.State(ctx)
	assert.Empty(t, s.Static)
}

func TestReloadForGeneration(t *testing.T) {
	msgs := []domain.Message{
		{Text: "first " + block(t, map[string]any{"v": 1.0})},
		{IsUser: true, Text: "go on"},
		{Text: "second " + block(t, map[string]any{"v": 2.0})},
	}

	t.Run("new", func(t *testing.T) {
		ctx := context.Background()
		_, vars, p := setup(msgs...)
		require.NoError(t, p.ReloadForGeneration(ctx, domain.GenerationNew))
		s, _ := vars.State(ctx)
		assert.Equal(t, 2.0, s.Static["v"])
	})

	t.Run("swipe", func(t *testing.T) {
		ctx := context.Background()
		_, vars, p := setup(msgs...)
		require.NoError(t, p.ReloadForGeneration(ctx, domain.GenerationSwipe))
		s, _ := vars.State(ctx)
		assert.Equal(t, 1.0, s.Static["v"])
	})

	t.Run("swipe without user message", func(t *testing.T) {
		ctx := context.Background()
		_, vars, p := setup(msgs[0], msgs[2])
		require.NoError(t, p.ReloadForGeneration(ctx, domain.GenerationSwipe))
		s, _ := vars.State(ctx)
		assert.Equal(t, 1.0, s.Static["v"])
	})
}

func TestProcess_InstallsLibraryFunctions(t *testing.T) {
	ctx := context.Background()
	lib, err := memory.NewLibrary(domain.FunctionDefinition{Name: "noop", Body: "pass"})
	require.NoError(t, err)

	chat := memory.NewChat(domain.Message{Text: "hello"})
	vars := memory.NewStore()
	p := pipeline.New(chat, vars, runtime.NewEngine(), pipeline.WithFunctionLoader(lib))

	require.NoError(t, p.ProcessLatest(ctx))
	s, _ := vars.State(ctx)
	_, ok := s.FindFunc("noop")
	assert.True(t, ok)
}

func TestProcess_LegacyMarkers(t *testing.T) {
	ctx := context.Background()
	chat := memory.NewChat(domain.Message{Text: "<SET :: a :: 1>"})
	p := pipeline.New(chat, memory.NewStore(), runtime.NewEngine(),
		pipeline.WithParser(parser.NewParser(parser.WithMarkers(domain.LegacyStartMarker, domain.LegacyEndMarker))))

	require.NoError(t, p.ProcessLatest(ctx))
	msg, _ := chat.Message(ctx, 0)
	assert.Contains(t, msg.Text, domain.LegacyStartMarker)
	assert.Contains(t, msg.Text, domain.LegacyEndMarker)
}

type readOnlyChat struct {
	*memory.Chat
}

func (readOnlyChat) SetMessage(context.Context, int, string) error {
	return errors.New("chat is read-only")
}

type brokenStore struct {
	*memory.Store
}

func (brokenStore) ReplaceState(context.Context, *domain.State) error {
	return errors.New("store offline")
}

func TestProcess_MessageRewriteFailureLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	chat := readOnlyChat{Chat: memory.NewChat(domain.Message{Text: "<SET :: gold :: 5>"})}
	vars := memory.NewStore()
	p := pipeline.New(chat, vars, runtime.NewEngine())

	_, err := p.Process(ctx)
	assert.ErrorContains(t, err, "read-only")

	s, err := vars.State(ctx)
	require.NoError(t, err)
	assert.Empty(t, s.Static)
}

func TestProcess_StoreFailureRecoversOnResync(t *testing.T) {
	ctx := context.Background()
	chat := memory.NewChat(domain.Message{Text: "<SET :: gold :: 5>"})
	_, err := pipeline.New(chat, brokenStore{Store: memory.NewStore()}, runtime.NewEngine()).Process(ctx)
	assert.ErrorContains(t, err, "store offline")

	msg, _ := chat.Message(ctx, 0)
	assert.Contains(t, msg.Text, "<state-start>")

	vars := memory.NewStore()
	require.NoError(t, pipeline.New(chat, vars, runtime.NewEngine()).Resync(ctx))
	s, err := vars.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5.0, s.Static["gold"])
}
