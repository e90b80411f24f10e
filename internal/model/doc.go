// Package model defines the typed payloads of the domain frames the status
// channel carries.
//
// Conventions:
//   - JSON members are camelCase, as sent by the dashboard backend
//   - Timestamps accept RFC 3339 strings or Unix milliseconds
//   - Unknown frame types are not an error for the channel, only for Decode
package model
