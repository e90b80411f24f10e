// Package buffer provides the FIFO ring buffer shared by the connection
// manager (outbound queue, event delivery) and the event journal.
//
// The buffer grows by doubling when it reaches 70% of its capacity. A
// bounded buffer additionally evicts its oldest item once the configured
// limit is reached, so producers never block.
package buffer
