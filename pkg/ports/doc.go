/*
Package ports defines the driven ports (interfaces) for the Tollgate engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various storage backends, language models and tool
runtimes.

# Key Interfaces

  - CheckpointStore: Persists and loads conversation checkpoints (get/put/compare-and-swap).
  - Model: Produces the next agent turn from the message log.
  - ToolExecutor: Executes tool calls by name.
  - DistributedLocker: Provides distributed locking for concurrent conversation access.
*/
package ports
