package lifecycle_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	mu    sync.Mutex
	calls []string

	processErr error
	panicOn    string

	// during runs inside ProcessLatest, e.g. to raise events mid-batch.
	during func()
}

func (f *fakePipeline) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.panicOn == call {
		panic("boom")
	}
}

func (f *fakePipeline) ProcessLatest(ctx context.Context) error {
	f.record("process")
	if f.during != nil {
		f.during()
	}
	return f.processErr
}

func (f *fakePipeline) Resync(ctx context.Context) error {
	f.record("resync")
	return nil
}

func (f *fakePipeline) ReloadForGeneration(ctx context.Context, mode domain.GenerationMode) error {
	f.record("reload:" + string(mode))
	return nil
}

func (f *fakePipeline) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestMachine_GenerationCycle(t *testing.T) {
	ctx := context.Background()
	p := &fakePipeline{}
	m := lifecycle.NewMachine(p)

	m.Dispatch(ctx, domain.Event{Kind: domain.EventGenerationStarted, Mode: domain.GenerationSwipe})
	assert.Equal(t, domain.PhaseAwaitGeneration, m.Phase())

	m.Dispatch(ctx, domain.Event{Kind: domain.EventGenerationEnded})
	assert.Equal(t, domain.PhaseIdle, m.Phase())

	assert.Equal(t, []string{"reload:swipe", "process"}, p.Calls())
}

func TestMachine_DryRunIgnored(t *testing.T) {
	p := &fakePipeline{}
	m := lifecycle.NewMachine(p)

	m.Dispatch(context.Background(), domain.Event{Kind: domain.EventGenerationStarted, DryRun: true})

	assert.Equal(t, domain.PhaseIdle, m.Phase())
	assert.Empty(t, p.Calls())
}

func TestMachine_DefaultModeIsNew(t *testing.T) {
	p := &fakePipeline{}
	m := lifecycle.NewMachine(p)

	m.Dispatch(context.Background(), domain.Event{Kind: domain.EventGenerationStarted})
	assert.Equal(t, []string{"reload:new"}, p.Calls())
}

func TestMachine_MessageSentAwaits(t *testing.T) {
	p := &fakePipeline{}
	m := lifecycle.NewMachine(p)

	m.Dispatch(context.Background(), domain.Event{Kind: domain.EventMessageSent})
	assert.Equal(t, domain.PhaseAwaitGeneration, m.Phase())
	assert.Empty(t, p.Calls())
}

func TestMachine_IdleResync(t *testing.T) {
	for _, kind := range []domain.EventKind{
		domain.EventMessageSwiped,
		domain.EventMessageEdited,
		domain.EventMessageDeleted,
		domain.EventContextChanged,
	} {
		t.Run(string(kind), func(t *testing.T) {
			p := &fakePipeline{}
			m := lifecycle.NewMachine(p)

			m.Dispatch(context.Background(), domain.Event{Kind: kind})
			assert.Equal(t, domain.PhaseIdle, m.Phase())
			assert.Equal(t, []string{"resync"}, p.Calls())
		})
	}
}

func TestMachine_AwaitIgnoresOtherEvents(t *testing.T) {
	ctx := context.Background()
	p := &fakePipeline{}
	m := lifecycle.NewMachine(p)
	m.Dispatch(ctx, domain.Event{Kind: domain.EventMessageSent})

	for _, kind := range []domain.EventKind{
		domain.EventGenerationStarted,
		domain.EventMessageSent,
		domain.EventMessageSwiped,
		domain.EventMessageEdited,
		domain.EventMessageDeleted,
	} {
		m.Dispatch(ctx, domain.Event{Kind: kind})
		assert.Equal(t, domain.PhaseAwaitGeneration, m.Phase(), kind)
	}
	assert.Empty(t, p.Calls())

	m.Dispatch(ctx, domain.Event{Kind: domain.EventContextChanged})
	assert.Equal(t, domain.PhaseIdle, m.Phase())
	assert.Equal(t, []string{"resync"}, p.Calls())
}

func TestMachine_EventsDuringProcessingAreDropped(t *testing.T) {
	ctx := context.Background()
	p := &fakePipeline{}
	var transitions []*domain.TransitionEvent
	m := lifecycle.NewMachine(p, lifecycle.WithLifecycleHooks(domain.Hooks{
		OnTransition: func(_ context.Context, ev *domain.TransitionEvent) { transitions = append(transitions, ev) },
	}))
	p.during = func() {
		assert.Equal(t, domain.PhaseProcessing, m.Phase())
		m.Dispatch(ctx, domain.Event{Kind: domain.EventMessageEdited})
		m.Dispatch(ctx, domain.Event{Kind: domain.EventGenerationStarted})
	}

	m.Dispatch(ctx, domain.Event{Kind: domain.EventMessageSent})
	m.Dispatch(ctx, domain.Event{Kind: domain.EventGenerationStopped})

	assert.Equal(t, domain.PhaseIdle, m.Phase())
	assert.Equal(t, []string{"process"}, p.Calls())

	require.Len(t, transitions, 4)
	assert.True(t, transitions[1].Dropped)
	assert.True(t, transitions[2].Dropped)
	assert.Equal(t, domain.PhaseProcessing, transitions[1].From)
	assert.Equal(t, domain.PhaseAwaitGeneration, transitions[3].From)
	assert.Equal(t, domain.PhaseIdle, transitions[3].To)
}

func TestMachine_ErrorResetsToIdle(t *testing.T) {
	ctx := context.Background()
	p := &fakePipeline{processErr: errors.New("store offline")}
	var last *domain.TransitionEvent
	m := lifecycle.NewMachine(p, lifecycle.WithLifecycleHooks(domain.Hooks{
		OnTransition: func(_ context.Context, ev *domain.TransitionEvent) { last = ev },
	}))

	m.Dispatch(ctx, domain.Event{Kind: domain.EventMessageSent})
	m.Dispatch(ctx, domain.Event{Kind: domain.EventGenerationEnded})

	assert.Equal(t, domain.PhaseIdle, m.Phase())
	require.NotNil(t, last)
	assert.ErrorContains(t, last.Err, "store offline")
	assert.Equal(t, domain.PhaseIdle, last.To)
}

func TestMachine_PanicResetsToIdle(t *testing.T) {
	ctx := context.Background()
	p := &fakePipeline{panicOn: "process"}
	m := lifecycle.NewMachine(p)

	m.Dispatch(ctx, domain.Event{Kind: domain.EventMessageSent})
	assert.NotPanics(t, func() {
		m.Dispatch(ctx, domain.Event{Kind: domain.EventGenerationEnded})
	})
	assert.Equal(t, domain.PhaseIdle, m.Phase())

	// The machine keeps working afterwards.
	p.panicOn = ""
	m.Dispatch(ctx, domain.Event{Kind: domain.EventMessageSent})
	assert.Equal(t, domain.PhaseAwaitGeneration, m.Phase())
}

func TestMachine_ConcurrentDispatch(t *testing.T) {
	ctx := context.Background()
	p := &fakePipeline{}
	m := lifecycle.NewMachine(p)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Dispatch(ctx, domain.Event{Kind: domain.EventMessageEdited})
		}()
	}
	wg.Wait()

	assert.Len(t, p.Calls(), 50)
	assert.Equal(t, domain.PhaseIdle, m.Phase())
}

func TestEdges_MatchMachine(t *testing.T) {
	for _, e := range lifecycle.Edges {
		if e.From == domain.PhaseProcessing {
			continue
		}
		t.Run(string(e.From)+"/"+string(e.Event), func(t *testing.T) {
			p := &fakePipeline{}
			m := lifecycle.NewMachine(p)
			if e.From == domain.PhaseAwaitGeneration {
				m.Dispatch(context.Background(), domain.Event{Kind: domain.EventMessageSent})
			}

			m.Dispatch(context.Background(), domain.Event{Kind: e.Event})

			want := e.To
			if want == domain.PhaseProcessing {
				want = domain.PhaseIdle
			}
			assert.Equal(t, want, m.Phase())

			found, ok := lifecycle.Lookup(e.From, e.Event)
			assert.True(t, ok)
			assert.Equal(t, e, found)
		})
	}
}
