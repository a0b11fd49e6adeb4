// Package service implements the message dispatch and process handoff engine.
package service

import (
	"context"

	"github.com/tramita-io/tramita/internal/logging"
	"github.com/tramita-io/tramita/internal/models"
	"github.com/tramita-io/tramita/internal/nats"
	"github.com/tramita-io/tramita/internal/repository"
)

// EventPublisher publishes lifecycle events after a dispatch commits.
// Publishing is best effort and never part of the transaction.
type EventPublisher interface {
	PublishMessageDispatched(ctx context.Context, event *nats.MessageDispatchedEvent) error
	PublishProcessForwarded(ctx context.Context, event *nats.ProcessForwardedEvent) error
	PublishMessageArchived(ctx context.Context, event *nats.MessageArchivedEvent) error
}

// UnreadCache caches per-user unread counts. Dispatch and read operations
// invalidate; UnreadCount reads through.
type UnreadCache interface {
	Get(ctx context.Context, userID string) (int, bool, error)
	Set(ctx context.Context, userID string, count int) error
	Invalidate(ctx context.Context, userID string) error
}

// ArchiveIndexer indexes archived messages for search.
type ArchiveIndexer interface {
	IndexArchived(ctx context.Context, archived *models.ArchivedMessage) error
	Search(ctx context.Context, query string, page, limit int) ([]models.ArchivedMessage, int, error)
}

// Service provides business logic for the tramita service.
type Service struct {
	repo    repository.Repository
	log     *logging.Logger
	events  EventPublisher
	unread  UnreadCache
	archive ArchiveIndexer
}

// NewService creates a new Service instance.
func NewService(repo repository.Repository, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Default()
	}
	return &Service{repo: repo, log: log}
}

// WithEvents sets the post-commit event publisher.
func (s *Service) WithEvents(events EventPublisher) *Service {
	s.events = events
	return s
}

// WithUnreadCache sets the unread-count cache.
func (s *Service) WithUnreadCache(cache UnreadCache) *Service {
	s.unread = cache
	return s
}

// WithArchiveIndex sets the archive search indexer.
func (s *Service) WithArchiveIndex(indexer ArchiveIndexer) *Service {
	s.archive = indexer
	return s
}

// Ready reports whether the backing store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
