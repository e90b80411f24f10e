// Package connection maintains the dashboard's persistent status channel.
//
// A Manager owns one channel at a time:
//   - Connects with an optional session token carried in the URL query
//   - Sends application pings and recycles the channel when pongs stop
//   - Reconnects with exponential backoff after unexpected closes
//   - Queues outbound envelopes while offline and flushes them on open
//   - Publishes lifecycle events and server frames on an events.Dispatcher
//
// Transports are pluggable; WebSocketTransport is the production one.
package connection
