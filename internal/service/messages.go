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

// GetMessage returns one message record.
func (s *Service) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	message, err := s.repo.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, &NotFoundError{Resource: "message", ID: id}
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return message, nil
}

// ListMessages lists message records matching the allow-listed filters.
func (s *Service) ListMessages(ctx context.Context, req *models.ListMessagesRequest) ([]models.Message, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	if req.Limit > 1000 {
		req.Limit = 1000
	}
	if req.Page < 1 {
		req.Page = 1
	}

	messages, total, err := s.repo.ListMessages(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	return messages, total, nil
}

// MarkVisualized flags a message record as read and drops the receiver's
// cached unread count.
func (s *Service) MarkVisualized(ctx context.Context, id string) (*models.Message, error) {
	message, err := s.repo.MarkVisualized(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, &NotFoundError{Resource: "message", ID: id}
		}
		return nil, fmt.Errorf("mark message visualized: %w", err)
	}

	if s.unread != nil {
		if err := s.unread.Invalidate(ctx, message.ReceiverID); err != nil {
			s.log.WarnContext(ctx, "unread cache invalidation failed", "user_id", message.ReceiverID, "error", err)
		}
	}
	return message, nil
}

// UnreadCount returns how many unvisualized messages a user has, served from
// the cache when possible.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	if s.unread != nil {
		count, hit, err := s.unread.Get(ctx, userID)
		if err != nil {
			s.log.WarnContext(ctx, "unread cache read failed", "user_id", userID, "error", err)
		} else if hit {
			metrics.UnreadCacheHits.Inc()
			return count, nil
		}
		metrics.UnreadCacheMisses.Inc()
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}

	if s.unread != nil {
		if err := s.unread.Set(ctx, userID, count); err != nil {
			s.log.WarnContext(ctx, "unread cache write failed", "user_id", userID, "error", err)
		}
	}
	return count, nil
}

// ArchiveMessage moves a message record out of the inbox: the archived copy
// is inserted and the original deleted in one transaction. The archived copy
// is then indexed for search, best effort.
func (s *Service) ArchiveMessage(ctx context.Context, id string) (*models.ArchivedMessage, error) {
	message, err := s.repo.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, &NotFoundError{Resource: "message", ID: id}
		}
		return nil, fmt.Errorf("get message: %w", err)
	}

	archived := &models.ArchivedMessage{
		ID:           uuid.New().String(),
		MessageID:    message.ID,
		EnvelopeID:   message.EnvelopeID,
		SenderID:     message.SenderID,
		ReceiverID:   message.ReceiverID,
		ProcessID:    message.ProcessID,
		Title:        message.Title,
		ProcessTitle: message.ProcessTitle,
		Content:      message.Content,
		Visualized:   message.Visualized,
		SentAt:       message.SentAt,
		ArchivedAt:   time.Now().UTC(),
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, &TransactionError{Err: err}
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			s.log.ErrorContext(ctx, "archive rollback failed", "error", rollbackErr)
		}
	}()

	if err := tx.ArchiveMessage(ctx, archived); err != nil {
		return nil, &TransactionError{Err: err}
	}
	if err := tx.DeleteMessage(ctx, message.ID); err != nil {
		return nil, &TransactionError{Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, &TransactionError{Err: err}
	}

	metrics.MessagesArchived.Inc()

	if s.unread != nil && !message.Visualized {
		if err := s.unread.Invalidate(ctx, message.ReceiverID); err != nil {
			s.log.WarnContext(ctx, "unread cache invalidation failed", "user_id", message.ReceiverID, "error", err)
		}
	}
	if s.archive != nil {
		if err := s.archive.IndexArchived(ctx, archived); err != nil {
			s.log.WarnContext(ctx, "failed to index archived message", "message_id", message.ID, "error", err)
		}
	}
	if s.events != nil {
		event := &nats.MessageArchivedEvent{
			ArchiveID:  archived.ID,
			MessageID:  archived.MessageID,
			ReceiverID: archived.ReceiverID,
			ArchivedAt: archived.ArchivedAt,
		}
		if err := s.events.PublishMessageArchived(ctx, event); err != nil {
			s.log.WarnContext(ctx, "failed to publish message archived event", "message_id", message.ID, "error", err)
		}
	}

	return archived, nil
}

// SearchArchive queries the archive index. Returns a validation error when
// no indexer is configured.
func (s *Service) SearchArchive(ctx context.Context, query string, page, limit int) ([]models.ArchivedMessage, int, error) {
	if s.archive == nil {
		return nil, 0, &ValidationError{Reason: "archive search is not enabled"}
	}
	if query == "" {
		return nil, 0, &ValidationError{Reason: "query is required"}
	}
	if limit <= 0 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}

	results, total, err := s.archive.Search(ctx, query, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("search archive: %w", err)
	}
	return results, total, nil
}

// ProcessHistory returns the append-only audit trail of a process in
// creation order.
func (s *Service) ProcessHistory(ctx context.Context, processID string) ([]models.ProcessState, error) {
	if _, err := s.repo.GetProcess(ctx, processID); err != nil {
		if errors.Is(err, repository.ErrProcessNotFound) {
			return nil, &NotFoundError{Resource: "process", ID: processID}
		}
		return nil, fmt.Errorf("get process: %w", err)
	}

	entries, err := s.repo.ListProcessStates(ctx, processID)
	if err != nil {
		return nil, fmt.Errorf("list process states: %w", err)
	}
	return entries, nil
}
