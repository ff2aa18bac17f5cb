package cli

import (
	"context"
	"fmt"
	"os"

	sam "github.com/LynxShu/ST-var-manager"
	"github.com/LynxShu/ST-var-manager/pkg/adapters/memory"
	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/ports"
	"gopkg.in/yaml.v3"
)

// Script is a recorded chat session: an initial transcript followed by the
// host events and chat edits that happened, in order.
//
//	messages:
//	  - {user: true, text: "wake up"}
//	steps:
//	  - event: generation_started
//	  - append: {text: "You wake. <SET :: hero.awake :: true>"}
//	  - event: generation_ended
type Script struct {
	Messages []ScriptMessage `yaml:"messages"`
	Steps    []Step          `yaml:"steps"`
}

// ScriptMessage is one chat message.
type ScriptMessage struct {
	User bool   `yaml:"user"`
	Text string `yaml:"text"`
}

// Step is either a host event or a chat edit. Exactly one field group is set.
type Step struct {
	Event  domain.EventKind      `yaml:"event"`
	Mode   domain.GenerationMode `yaml:"mode"`
	DryRun bool                  `yaml:"dry_run"`

	Append *ScriptMessage `yaml:"append"`
	Edit   *Edit          `yaml:"edit"`
	Delete *int           `yaml:"delete"`
}

// Edit replaces the text of the message at Index.
type Edit struct {
	Index int    `yaml:"index"`
	Text  string `yaml:"text"`
}

type deleter interface {
	Delete(ctx context.Context, index int) error
}

// LoadScript reads a YAML script from path.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	return &s, nil
}

// Replay seeds transcript with the script messages and plays every step.
// Events go through an in-memory bus attached to mgr, as a host would raise them.
func Replay(ctx context.Context, mgr *sam.Manager, transcript ports.Transcript, s *Script) error {
	for _, m := range s.Messages {
		if _, err := transcript.Append(ctx, domain.Message{IsUser: m.User, Text: m.Text}); err != nil {
			return err
		}
	}

	bus := memory.NewBus()
	mgr.Attach(bus)
	defer mgr.Close()

	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch {
		case step.Append != nil:
			if _, err := transcript.Append(ctx, domain.Message{IsUser: step.Append.User, Text: step.Append.Text}); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		case step.Edit != nil:
			if err := transcript.SetMessage(ctx, step.Edit.Index, step.Edit.Text); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		case step.Delete != nil:
			d, ok := transcript.(deleter)
			if !ok {
				return fmt.Errorf("step %d: transcript does not support deleting messages", i)
			}
			if err := d.Delete(ctx, *step.Delete); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		case step.Event != "":
			bus.Publish(domain.Event{
				Kind:   step.Event,
				Mode:   step.Mode,
				DryRun: step.DryRun,
			})
		default:
			return fmt.Errorf("step %d is empty", i)
		}
	}
	return nil
}
