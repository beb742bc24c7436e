// Package runtime implements the step graph of a conversation: the
// generate_response and run_tool steps, the approval gate and the pure
// routing functions between them. It knows nothing about storage or locking;
// callers hand it a checkpoint and a SaveFunc.
package runtime
