/*
Package observability provides lifecycle hooks for monitoring the Tollgate engine.

Metrics exports Prometheus counters and histograms for steps, tool calls and
suspensions. LoggingHooks writes the same events as structured log lines.
Both return domain.LifecycleHooks and can be combined with Merge.
*/
package observability
