// Package messaging defines standard subject names for the tramita message bus.
package messaging

// Subject constants for the tramita message bus.
// Follow the pattern: {domain}.{resource}.{action}
const (
	// Message lifecycle subjects - published by the dispatch service
	SubjectMessagesDispatched = "tramita.messages.dispatched" // Envelope delivered to its recipients
	SubjectMessagesArchived   = "tramita.messages.archived"   // Message record moved to the archive

	// Process lifecycle subjects - published when custody changes hands
	SubjectProcessesForwarded = "tramita.processes.forwarded" // Process handed to a new custodian
)

// Queue group names for load-balanced consumers.
// Workers in the same queue group share messages (each message processed once).
const (
	QueueNotifyWorkers  = "notify-workers"  // Pool of recipient notification handlers
	QueueArchiveWorkers = "archive-workers" // Pool of archive index consumers
)
