package lifecycle

import "github.com/LynxShu/ST-var-manager/pkg/domain"

// Effect names the pipeline work an edge performs.
type Effect string

const (
	EffectNone    Effect = ""
	EffectReload  Effect = "reload"
	EffectResync  Effect = "resync"
	EffectProcess Effect = "process"
)

// Edge is one handled (phase, event) pair.
type Edge struct {
	From   domain.Phase
	Event  domain.EventKind
	To     domain.Phase
	Effect Effect
}

// Edges lists every transition the machine handles. Any other pair is a no-op.
// A PROCESSING edge returns to IDLE once the batch is persisted.
var Edges = []Edge{
	{domain.PhaseIdle, domain.EventGenerationStarted, domain.PhaseAwaitGeneration, EffectReload},
	{domain.PhaseIdle, domain.EventMessageSent, domain.PhaseAwaitGeneration, EffectNone},
	{domain.PhaseIdle, domain.EventMessageSwiped, domain.PhaseIdle, EffectResync},
	{domain.PhaseIdle, domain.EventMessageEdited, domain.PhaseIdle, EffectResync},
	{domain.PhaseIdle, domain.EventMessageDeleted, domain.PhaseIdle, EffectResync},
	{domain.PhaseIdle, domain.EventContextChanged, domain.PhaseIdle, EffectResync},
	{domain.PhaseAwaitGeneration, domain.EventGenerationEnded, domain.PhaseProcessing, EffectProcess},
	{domain.PhaseAwaitGeneration, domain.EventGenerationStopped, domain.PhaseProcessing, EffectProcess},
	{domain.PhaseAwaitGeneration, domain.EventContextChanged, domain.PhaseIdle, EffectResync},
	{domain.PhaseProcessing, "", domain.PhaseIdle, EffectNone},
}

// Lookup returns the edge for (from, kind).
func Lookup(from domain.Phase, kind domain.EventKind) (Edge, bool) {
	for _, e := range Edges {
		if e.From == from && e.Event == kind {
			return e, true
		}
	}
	return Edge{}, false
}
