// Package events implements the typed publish/subscribe bus used to fan
// channel events out to consumers.
//
// Each event name is bound to a payload type with a Key:
//
//	var Connected = events.NewKey[ConnectedEvent]("connected")
//
//	sub := events.On(d, Connected, func(e ConnectedEvent) { ... })
//	defer d.Off(sub)
//
// Handlers for a name run in registration order, then wildcard handlers.
// A panicking handler never prevents the remaining handlers from running.
package events
