// Package nats provides NATS message broker integration for the tramita service.
package nats

import "time"

// MessageDispatchedEvent is published to tramita.messages.dispatched when an
// envelope has been delivered to all of its recipients.
type MessageDispatchedEvent struct {
	EnvelopeID   string    `json:"envelope_id"`
	SenderID     string    `json:"sender_id"`
	RecipientIDs []string  `json:"recipient_ids"`
	ProcessID    *string   `json:"process_id,omitempty"`
	Title        string    `json:"title"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

// ProcessForwardedEvent is published to tramita.processes.forwarded when a
// process changes custody as part of a dispatch.
type ProcessForwardedEvent struct {
	ProcessID    string    `json:"process_id"`
	ActorID      string    `json:"actor_id"`
	CustodyMode  string    `json:"custody_mode"`
	ReceiverID   string    `json:"receiver_id,omitempty"`
	Section      string    `json:"section,omitempty"`
	StateEntryID string    `json:"state_entry_id"`
	Annotation   string    `json:"annotation"`
	ForwardedAt  time.Time `json:"forwarded_at"`
}

// MessageArchivedEvent is published to tramita.messages.archived when a
// message record is moved from the inbox to the archive.
type MessageArchivedEvent struct {
	ArchiveID  string    `json:"archive_id"`
	MessageID  string    `json:"message_id"`
	ReceiverID string    `json:"receiver_id"`
	ArchivedAt time.Time `json:"archived_at"`
}
