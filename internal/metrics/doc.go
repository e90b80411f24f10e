// Package metrics provides Prometheus metrics and the health endpoint.
//
// Key metrics:
//   - Channel state and transitions
//   - Dispatched events by name, disconnects by close reason
//   - Reconnect attempts and give-ups
//   - Outbound queue depth and evictions
package metrics
