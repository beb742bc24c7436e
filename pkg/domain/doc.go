/*
Package domain contains the core domain models of the Tollgate engine.

It defines the conversation record and the execution snapshot that the
orchestrator persists between steps. This package is kept pure and free of
external dependencies like I/O or persistence.

# Key Entities

  - Turn: One immutable log entry (human text, agent response with tool calls, or tool result).
  - MessageLog: The append-only, ordered sequence of turns of a conversation.
  - Checkpoint: The durable snapshot (log + next step) written after every step.
  - StepID: The name of a step in the execution graph (generate_response, run_tool, approval_gate).
  - LifecycleHooks: Observability callbacks fired by the orchestrator.
*/
package domain
