package domain

import "fmt"

// CommandType is the closed set of instructions understood by the interpreter.
type CommandType string

const (
	CommandSet             CommandType = "SET"
	CommandAdd             CommandType = "ADD"
	CommandDel             CommandType = "DEL"
	CommandRemove          CommandType = "REMOVE"
	CommandTimedSet        CommandType = "TIMED_SET"
	CommandCancelSet       CommandType = "CANCEL_SET"
	CommandResponseSummary CommandType = "RESPONSE_SUMMARY"
	CommandEval            CommandType = "EVAL"
)

// CommandTypes lists every known command type.
var CommandTypes = []CommandType{
	CommandSet,
	CommandAdd,
	CommandDel,
	CommandRemove,
	CommandTimedSet,
	CommandCancelSet,
	CommandResponseSummary,
	CommandEval,
}

// ParseCommandType is case-sensitive.
func ParseCommandType(s string) (CommandType, bool) {
	for _, t := range CommandTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Origin tells where a command came from.
type Origin string

const (
	OriginText      Origin = "text"
	OriginScheduler Origin = "scheduler"
	OriginDerived   Origin = "derived"
)

// Command is one typed instruction.
//
// Commands parsed from text carry their parameters as Raw, split on "::" at
// execution time. Commands synthesized internally are Preparsed and carry typed
// Params that are used as-is.
type Command struct {
	Type      CommandType
	Raw       string
	Params    []any
	Preparsed bool
	Origin    Origin
}

// NewCommand builds a preparsed command.
func NewCommand(t CommandType, origin Origin, params ...any) Command {
	return Command{Type: t, Params: params, Preparsed: true, Origin: origin}
}

func (c Command) String() string {
	if c.Preparsed {
		return fmt.Sprintf("<%s :: %v>", c.Type, c.Params)
	}
	return fmt.Sprintf("<%s :: %s>", c.Type, c.Raw)
}
