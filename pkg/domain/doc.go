/*
Package domain contains the core data model of the state engine.

It defines the persisted world State, the deferred TimedEntry records, user-registered
FunctionDefinitions, the closed set of Commands produced by the parser, and the events
raised by the host. The package is kept free of I/O so that every other layer
(parser, runtime, sandbox, lifecycle, adapters) can depend on it.

# Key Entities

  - State: the single persisted aggregate (static, volatile, responseSummary, func).
  - Command: one typed instruction, either raw text parameters or preparsed values.
  - Event: a host notification fed into the lifecycle queue.
  - Hooks: observability callbacks for batches, commands and transitions.

Path helpers (GetPath, SetPath, DeletePath) implement dotted/bracket addressing over
the JSON-shaped static tree.
*/
package domain
