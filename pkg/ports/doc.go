/*
Package ports defines the driven ports (interfaces) for the state manager.

The host application owns the chat, the variable store and the event stream.
These interfaces let the pipeline and the lifecycle machine work against any of
them: the in-memory adapters used by tests and the CLI, SQLite transcripts,
Redis or a JSON file.

# Key Interfaces

  - MessageStore: reads and rewrites chat messages by index.
  - VariableStore: holds the working copy of the world state between batches.
  - EventSource: delivers host notifications to the lifecycle machine.
  - RoundCounter: the integer clock used by round-based deferred writes.
  - FunctionLoader: supplies function definitions kept outside the chat.
  - Locker: serializes read-modify-write cycles on shared backends.
*/
package ports
