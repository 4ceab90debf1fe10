// Package observe provides structured JSON logging shared by the
// resilience, taskmanager, and storage packages.
//
// It is a pure logging library, trimmed from a broader telemetry package
// down to the [Logger] concern this module actually wires: timestamped,
// leveled, JSON-encoded log entries with automatic redaction of
// sensitive field names.
//
// [Logger.WithComponent] returns a logger bound to a [ComponentMeta], so
// log lines from a given circuit breaker, bulkhead, or the task manager
// carry their kind and name without the caller having to repeat them on
// every call.
//
// # Sensitive Field Redaction
//
// The logger automatically redacts these fields to prevent credential
// leakage:
//   - input, inputs
//   - password, secret, token
//   - api_key, apiKey, credential
//
// See [RedactedFields] for the complete list.
package observe
