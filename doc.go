/*
Package sam keeps a nested world state inside the text of a chat.

Generated messages carry commands in an embedded language. Each completed
generation is parsed, its commands are applied to the state under strict
ordering, and the resulting state is written back into the message as a JSON
block delimited by markers. The chat itself is therefore the source of truth:
swiping, editing or deleting a message re-reads the newest block.

# Commands

	<SET :: hero.hp :: 10>
	<ADD :: hero.inventory :: {"key": "potion", "count": 2}>
	<DEL :: hero.quests :: 0>
	<REMOVE :: hero.inventory :: key :: potion :: 1>
	<TIMED_SET :: world.night :: true :: nightfall :: false :: 3>
	<CANCEL_SET :: nightfall>
	<RESPONSE_SUMMARY :: the hero rests>
	<EVAL :: advance_time :: 3h>

Timed writes fire after a number of rounds or at an absolute timestamp. EVAL
runs a function stored in the state (written in Starlark) or a native one such
as the built-in world clock and status rules.

# Hexagonal Architecture

The host supplies a ports.MessageStore, a ports.VariableStore and a
ports.EventSource; the Manager drives a lifecycle machine over them. Adapters
for memory, JSON files, Redis and SQLite live under pkg/adapters.

	chat := memory.NewChat()
	bus := memory.NewBus()

	mgr, err := sam.New(chat, memory.NewStore(), sam.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	mgr.Attach(bus)
	defer mgr.Close()

	bus.Publish(domain.Event{Kind: domain.EventGenerationStarted})
	// ... the host appends the generated message ...
	bus.Publish(domain.Event{Kind: domain.EventGenerationEnded})

For one-shot use, Manager.Apply runs the commands of a text against a state
without touching the stores.
*/
package sam
