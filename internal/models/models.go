// Package models defines the domain entities for the tramita dispatch service.
package models

import "time"

// NoProcessTitle is the sentinel process title stamped on messages that are
// not attached to any process.
const NoProcessTitle = "No Process"

// User is an organizational actor. Users are created by external systems
// (or the seeder) and are never mutated by the dispatch core.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Section   string    `json:"section,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CustodyMode enumerates who may currently move a process.
type CustodyMode string

const (
	// CustodyUser means a specific user holds (or is about to pick up) the process.
	CustodyUser CustodyMode = "user"
	// CustodySection means the process is pending pickup by any member of a section.
	CustodySection CustodyMode = "section"
)

// Custody describes the target holder of a process after a handoff.
// Exactly one of UserID / Section is meaningful, selected by Mode.
type Custody struct {
	Mode    CustodyMode `json:"mode"`
	UserID  string      `json:"user_id,omitempty"`
	Section string      `json:"section,omitempty"`
}

// Process is a workflow object whose custody moves between users and
// sections. Exactly one of HolderID, ReceiverID, SectionReceiver is
// populated at any time:
//
//   - HolderID: a user has claimed the process and currently holds it.
//   - ReceiverID: the process was forwarded to a specific user, pending pickup.
//   - SectionReceiver: the process was forwarded to a section, pending pickup
//     by any of its members.
type Process struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	HolderID        *string   `json:"holder_id,omitempty"`
	ReceiverID      *string   `json:"receiver_id,omitempty"`
	SectionReceiver *string   `json:"section_receiver,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ApplyCustody rewrites the custody fields for a handoff, clearing the
// previous mode's fields so that exactly one mode remains populated.
func (p *Process) ApplyCustody(c Custody) {
	p.HolderID = nil
	p.ReceiverID = nil
	p.SectionReceiver = nil
	switch c.Mode {
	case CustodyUser:
		id := c.UserID
		p.ReceiverID = &id
	case CustodySection:
		section := c.Section
		p.SectionReceiver = &section
	}
}

// ProcessState values form a closed enumeration; new states must be added here.
const (
	// StateInTransfer marks a custody handoff that is awaiting pickup.
	StateInTransfer = "in_transfer"
)

// ProcessState is one append-only entry in a process audit trail. Entries are
// never updated or deleted.
type ProcessState struct {
	ID         string    `json:"id"`
	ProcessID  string    `json:"process_id"`
	ActorID    *string   `json:"actor_id,omitempty"`
	State      string    `json:"state"`
	Annotation string    `json:"annotation,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessageEnvelope is one logical send action, independent of how many
// recipients the send fanned out to.
type MessageEnvelope struct {
	ID           string    `json:"id"`
	SenderID     string    `json:"sender_id"`
	ProcessID    *string   `json:"process_id,omitempty"`
	Title        string    `json:"title"`
	ProcessTitle string    `json:"process_title"`
	Content      string    `json:"content,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}

// Message is one physical delivery record: one per (envelope, recipient)
// pair. Only the Visualized flag is ever mutated after creation.
type Message struct {
	ID           string    `json:"id"`
	EnvelopeID   string    `json:"envelope_id"`
	SenderID     string    `json:"sender_id"`
	ReceiverID   string    `json:"receiver_id"`
	ProcessID    *string   `json:"process_id,omitempty"`
	Title        string    `json:"title"`
	ProcessTitle string    `json:"process_title"`
	Content      string    `json:"content,omitempty"`
	Visualized   bool      `json:"visualized"`
	SentAt       time.Time `json:"sent_at"`
}

// ArchivedMessage is an immutable copy of a message moved out of the inbox.
type ArchivedMessage struct {
	ID           string    `json:"id"`
	MessageID    string    `json:"message_id"`
	EnvelopeID   string    `json:"envelope_id"`
	SenderID     string    `json:"sender_id"`
	ReceiverID   string    `json:"receiver_id"`
	ProcessID    *string   `json:"process_id,omitempty"`
	Title        string    `json:"title"`
	ProcessTitle string    `json:"process_title"`
	Content      string    `json:"content,omitempty"`
	Visualized   bool      `json:"visualized"`
	SentAt       time.Time `json:"sent_at"`
	ArchivedAt   time.Time `json:"archived_at"`
}

// SendMessageRequest is the payload for POST /api/v1/messages. Exactly one of
// ReceiverID / SectionReceiver must be set.
type SendMessageRequest struct {
	SenderID        string `json:"sender_id"`
	Title           string `json:"title"`
	Content         string `json:"content,omitempty"`
	ProcessID       string `json:"process_id,omitempty"`
	ReceiverID      string `json:"receiver_id,omitempty"`
	SectionReceiver string `json:"section_receiver,omitempty"`
}

// SendMessageResult reports everything the dispatch transaction created.
// StateEntry and Process are nil for sends without an attached process.
type SendMessageResult struct {
	Envelope   *MessageEnvelope `json:"envelope"`
	Records    []Message        `json:"records"`
	StateEntry *ProcessState    `json:"state_entry,omitempty"`
	Process    *Process         `json:"process,omitempty"`
}

// ListMessagesRequest carries the statically allow-listed inbox filters.
// Filters are declared here, one field per queryable column; there is no
// schema introspection.
type ListMessagesRequest struct {
	ReceiverID string
	SenderID   string
	ProcessID  string
	Visualized *bool
	Page       int
	Limit      int
}

// HealthResponse is returned by the health and readiness endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
