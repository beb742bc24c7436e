/*
Package session implements per-conversation serialization and persistence orchestration.

Every operation on a conversation runs under that conversation's lock: a local
refcounted mutex, optionally backed by a distributed lock so several replicas
can share one checkpoint store. Operations on different conversations proceed
in parallel.
*/
package session
