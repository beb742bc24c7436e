/*
Package tollgate is a human-in-the-loop agent workflow engine.

A conversational agent may request tool calls, but every tool call must be
approved by a human before it runs. Execution suspends at an approval gate
and resumes later, possibly after a process restart, from a durable
per-conversation checkpoint.

# Concept

Each conversation walks a small fixed graph of steps:

	generate_response --(tool calls)--> approval_gate --(approve)--> run_tool --> generate_response
	generate_response --(final answer)--> done
	approval_gate --(reject / reply)--> generate_response

After every step the engine persists a checkpoint (the message log plus the
next step to run) through compare-and-swap, so a stale writer can never
overwrite a newer state. Operations on one conversation are serialized;
different conversations run in parallel.

# Key Features

  - Durable Suspend & Resume: memory, file, Redis and SQL checkpoint stores.
  - Pluggable model: any ports.Model (OpenAI-compatible HTTP adapter, offline rules model).
  - Tool registry: Go functions and allow-listed external processes.
  - Observability: lifecycle hooks, Prometheus metrics, OpenTelemetry spans.

# Usage

	eng := tollgate.New(
		tollgate.WithStore(file.New(".tollgate/conversations")),
	)

	id, err := eng.Start(ctx)
	if err != nil {
		log.Fatal(err)
	}

	snap, err := eng.SendMessage(ctx, id, "What's the weather in SF?")
	if err != nil {
		log.Fatal(err)
	}

	if snap.Suspended {
		// Show snap.Pending to a reviewer, then either:
		snap, err = eng.Approve(ctx, id)
		// or: snap, err = eng.SendMessage(ctx, id, "No, use Paris instead")
	}
*/
package tollgate
