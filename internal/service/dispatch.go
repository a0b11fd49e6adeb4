package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tramita-io/tramita/internal/metrics"
	"github.com/tramita-io/tramita/internal/models"
	"github.com/tramita-io/tramita/internal/nats"
	"github.com/tramita-io/tramita/internal/repository"
)

// SendMessage dispatches one logical message to an individual user or to
// every member of a section, and, when a process is attached, hands the
// process over to the recipient in the same transaction.
//
// All validation, entity resolution and the custody check happen before the
// transaction opens; a failure in any of them leaves no trace in storage.
// Once the transaction opens, every write either commits as a whole or is
// rolled back as a whole.
func (s *Service) SendMessage(ctx context.Context, req *models.SendMessageRequest) (*models.SendMessageResult, error) {
	start := time.Now()

	if err := validateSendRequest(req); err != nil {
		return nil, err
	}

	sender, err := s.repo.GetUser(ctx, req.SenderID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, &NotFoundError{Resource: "sender", ID: req.SenderID}
		}
		return nil, fmt.Errorf("resolve sender: %w", err)
	}

	processTitle := models.NoProcessTitle
	var process *models.Process
	if req.ProcessID != "" {
		process, err = s.repo.GetProcess(ctx, req.ProcessID)
		if err != nil {
			if errors.Is(err, repository.ErrProcessNotFound) {
				return nil, &NotFoundError{Resource: "process", ID: req.ProcessID}
			}
			return nil, fmt.Errorf("resolve process: %w", err)
		}
		processTitle = process.Title
		if err := authorizeForward(process, sender); err != nil {
			return nil, err
		}
	}

	recipients, custody, targetName, err := s.resolveRecipients(ctx, req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var processID *string
	if process != nil {
		id := process.ID
		processID = &id
	}

	envelope := &models.MessageEnvelope{
		ID:           uuid.New().String(),
		SenderID:     sender.ID,
		ProcessID:    processID,
		Title:        req.Title,
		ProcessTitle: processTitle,
		Content:      req.Content,
		SentAt:       now,
	}

	records := make([]models.Message, 0, len(recipients))
	for _, recipient := range recipients {
		records = append(records, models.Message{
			ID:           uuid.New().String(),
			EnvelopeID:   envelope.ID,
			SenderID:     sender.ID,
			ReceiverID:   recipient.ID,
			ProcessID:    processID,
			Title:        req.Title,
			ProcessTitle: processTitle,
			Content:      req.Content,
			SentAt:       now,
		})
	}

	var entry *models.ProcessState
	if process != nil {
		actorID := sender.ID
		entry = &models.ProcessState{
			ID:         uuid.New().String(),
			ProcessID:  process.ID,
			ActorID:    &actorID,
			State:      models.StateInTransfer,
			Annotation: fmt.Sprintf("from %s to %s", sender.Name, targetName),
			CreatedAt:  now,
		}
	}

	if err := s.runDispatchTx(ctx, envelope, records, entry, process, custody); err != nil {
		metrics.DispatchTotal.WithLabelValues(dispatchMode(req), "error").Inc()
		return nil, err
	}

	if process != nil {
		process.ApplyCustody(custody)
		process.UpdatedAt = now
	}

	metrics.DispatchTotal.WithLabelValues(dispatchMode(req), "ok").Inc()
	metrics.DispatchFanout.Observe(float64(len(records)))
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())

	s.afterDispatch(ctx, envelope, records, entry, process, custody)

	return &models.SendMessageResult{
		Envelope:   envelope,
		Records:    records,
		StateEntry: entry,
		Process:    process,
	}, nil
}

// runDispatchTx performs the coordinated write sequence inside one
// transaction: envelope, record fan-out, optional state entry and custody
// update. Any failure rolls back everything written so far.
func (s *Service) runDispatchTx(ctx context.Context, envelope *models.MessageEnvelope, records []models.Message, entry *models.ProcessState, process *models.Process, custody models.Custody) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return &TransactionError{Err: err}
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			s.log.ErrorContext(ctx, "dispatch rollback failed", "error", rollbackErr)
		}
	}()

	if err := tx.CreateEnvelope(ctx, envelope); err != nil {
		return &TransactionError{Err: err}
	}
	for i := range records {
		if err := tx.CreateMessage(ctx, &records[i]); err != nil {
			return &TransactionError{Err: err}
		}
	}
	if process != nil {
		if err := tx.AppendProcessState(ctx, entry); err != nil {
			return &TransactionError{Err: err}
		}
		if err := tx.UpdateProcessCustody(ctx, process.ID, custody); err != nil {
			return &TransactionError{Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &TransactionError{Err: err}
	}
	return nil
}

// resolveRecipients expands the request target into the concrete recipient
// set and the custody the process will take on if one is attached.
func (s *Service) resolveRecipients(ctx context.Context, req *models.SendMessageRequest) ([]models.User, models.Custody, string, error) {
	if req.ReceiverID != "" {
		receiver, err := s.repo.GetUser(ctx, req.ReceiverID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, models.Custody{}, "", &NotFoundError{Resource: "receiver", ID: req.ReceiverID}
			}
			return nil, models.Custody{}, "", fmt.Errorf("resolve receiver: %w", err)
		}
		custody := models.Custody{Mode: models.CustodyUser, UserID: receiver.ID}
		return []models.User{*receiver}, custody, receiver.Name, nil
	}

	members, err := s.repo.ListUsersBySection(ctx, req.SectionReceiver)
	if err != nil {
		return nil, models.Custody{}, "", fmt.Errorf("resolve section: %w", err)
	}
	// A section with no members registered is reported, not treated as a
	// storage failure.
	if len(members) == 0 {
		return nil, models.Custody{}, "", &NotFoundError{Resource: "section", ID: req.SectionReceiver}
	}
	custody := models.Custody{Mode: models.CustodySection, Section: req.SectionReceiver}
	return members, custody, req.SectionReceiver, nil
}

// authorizeForward decides whether sender currently has the right to move
// the process: the claimed holder when one exists, otherwise the pending
// receiver user or any member of the pending receiver section.
func authorizeForward(process *models.Process, sender *models.User) error {
	if process.HolderID != nil {
		if sender.ID == *process.HolderID {
			return nil
		}
	} else {
		if process.ReceiverID != nil && sender.ID == *process.ReceiverID {
			return nil
		}
		if process.SectionReceiver != nil && sender.Section != "" && sender.Section == *process.SectionReceiver {
			return nil
		}
	}
	return &AuthorizationError{
		Reason: fmt.Sprintf("user %q does not hold custody of process %q", sender.ID, process.ID),
	}
}

func validateSendRequest(req *models.SendMessageRequest) error {
	if req.SenderID == "" {
		return &ValidationError{Reason: "sender_id is required"}
	}
	if req.Title == "" {
		return &ValidationError{Reason: "title is required"}
	}
	if req.ReceiverID != "" && req.SectionReceiver != "" {
		return &ValidationError{Reason: "receiver_id and section_receiver are mutually exclusive"}
	}
	if req.ReceiverID == "" && req.SectionReceiver == "" {
		return &ValidationError{Reason: "either receiver_id or section_receiver is required"}
	}
	return nil
}

func dispatchMode(req *models.SendMessageRequest) string {
	if req.SectionReceiver != "" {
		return "section"
	}
	return "individual"
}

// afterDispatch runs the best-effort side effects of a committed dispatch:
// cache invalidation and event publishing. Failures are logged, never
// surfaced to the caller.
func (s *Service) afterDispatch(ctx context.Context, envelope *models.MessageEnvelope, records []models.Message, entry *models.ProcessState, process *models.Process, custody models.Custody) {
	if s.unread != nil {
		for _, record := range records {
			if err := s.unread.Invalidate(ctx, record.ReceiverID); err != nil {
				s.log.WarnContext(ctx, "unread cache invalidation failed", "user_id", record.ReceiverID, "error", err)
			}
		}
	}

	if s.events == nil {
		return
	}

	recipientIDs := make([]string, 0, len(records))
	for _, record := range records {
		recipientIDs = append(recipientIDs, record.ReceiverID)
	}
	dispatched := &nats.MessageDispatchedEvent{
		EnvelopeID:   envelope.ID,
		SenderID:     envelope.SenderID,
		RecipientIDs: recipientIDs,
		ProcessID:    envelope.ProcessID,
		Title:        envelope.Title,
		DispatchedAt: envelope.SentAt,
	}
	if err := s.events.PublishMessageDispatched(ctx, dispatched); err != nil {
		s.log.WarnContext(ctx, "failed to publish message dispatched event", "envelope_id", envelope.ID, "error", err)
	}

	if process == nil {
		return
	}
	forwarded := &nats.ProcessForwardedEvent{
		ProcessID:    process.ID,
		ActorID:      envelope.SenderID,
		CustodyMode:  string(custody.Mode),
		ReceiverID:   custody.UserID,
		Section:      custody.Section,
		StateEntryID: entry.ID,
		Annotation:   entry.Annotation,
		ForwardedAt:  entry.CreatedAt,
	}
	if err := s.events.PublishProcessForwarded(ctx, forwarded); err != nil {
		s.log.WarnContext(ctx, "failed to publish process forwarded event", "process_id", process.ID, "error", err)
	}
}
