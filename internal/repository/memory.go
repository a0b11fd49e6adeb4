package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/tramita-io/tramita/internal/models"
)

// InMemoryRepository is a map-backed Repository for tests and local
// development. Transactions buffer their writes and apply them atomically
// under the repository lock on Commit.
type InMemoryRepository struct {
	users     map[string]*models.User
	processes map[string]*models.Process
	states    map[string][]models.ProcessState
	envelopes map[string]*models.MessageEnvelope
	messages  map[string]*models.Message
	archived  map[string]*models.ArchivedMessage
	mu        sync.RWMutex
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:     make(map[string]*models.User),
		processes: make(map[string]*models.Process),
		states:    make(map[string][]models.ProcessState),
		envelopes: make(map[string]*models.MessageEnvelope),
		messages:  make(map[string]*models.Message),
		archived:  make(map[string]*models.ArchivedMessage),
	}
}

func (r *InMemoryRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *InMemoryRepository) ListUsersBySection(ctx context.Context, section string) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var users []models.User
	for _, user := range r.users {
		if user.Section == section {
			users = append(users, *user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (r *InMemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *InMemoryRepository) GetProcess(ctx context.Context, id string) (*models.Process, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	process, exists := r.processes[id]
	if !exists {
		return nil, ErrProcessNotFound
	}
	copied := *process
	return &copied, nil
}

func (r *InMemoryRepository) CreateProcess(ctx context.Context, process *models.Process) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *process
	r.processes[process.ID] = &copied
	return nil
}

func (r *InMemoryRepository) ListProcessStates(ctx context.Context, processID string) ([]models.ProcessState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]models.ProcessState, len(r.states[processID]))
	copy(entries, r.states[processID])
	return entries, nil
}

func (r *InMemoryRepository) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	message, exists := r.messages[id]
	if !exists {
		return nil, ErrMessageNotFound
	}
	copied := *message
	return &copied, nil
}

func (r *InMemoryRepository) ListMessages(ctx context.Context, req *models.ListMessagesRequest) ([]models.Message, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []models.Message
	for _, message := range r.messages {
		if req.ReceiverID != "" && message.ReceiverID != req.ReceiverID {
			continue
		}
		if req.SenderID != "" && message.SenderID != req.SenderID {
			continue
		}
		if req.ProcessID != "" && (message.ProcessID == nil || *message.ProcessID != req.ProcessID) {
			continue
		}
		if req.Visualized != nil && message.Visualized != *req.Visualized {
			continue
		}
		matched = append(matched, *message)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].SentAt.Equal(matched[j].SentAt) {
			return matched[i].SentAt.After(matched[j].SentAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if req.Limit > 0 {
		offset := 0
		if req.Page > 1 {
			offset = (req.Page - 1) * req.Limit
		}
		if offset >= len(matched) {
			matched = nil
		} else {
			end := offset + req.Limit
			if end > len(matched) {
				end = len(matched)
			}
			matched = matched[offset:end]
		}
	}
	return matched, total, nil
}

func (r *InMemoryRepository) MarkVisualized(ctx context.Context, id string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, exists := r.messages[id]
	if !exists {
		return nil, ErrMessageNotFound
	}
	message.Visualized = true
	copied := *message
	return &copied, nil
}

func (r *InMemoryRepository) CountUnread(ctx context.Context, receiverID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, message := range r.messages {
		if message.ReceiverID == receiverID && !message.Visualized {
			count++
		}
	}
	return count, nil
}

// Begin returns a transaction that buffers writes until Commit.
func (r *InMemoryRepository) Begin(ctx context.Context) (Tx, error) {
	return &memoryTx{repo: r}, nil
}

func (r *InMemoryRepository) Ping(ctx context.Context) error { return nil }

func (r *InMemoryRepository) Close() error { return nil }

type memoryTx struct {
	repo *InMemoryRepository
	ops  []func() error
	done bool
}

func (t *memoryTx) CreateEnvelope(ctx context.Context, envelope *models.MessageEnvelope) error {
	copied := *envelope
	t.ops = append(t.ops, func() error {
		t.repo.envelopes[copied.ID] = &copied
		return nil
	})
	return nil
}

func (t *memoryTx) CreateMessage(ctx context.Context, message *models.Message) error {
	copied := *message
	t.ops = append(t.ops, func() error {
		t.repo.messages[copied.ID] = &copied
		return nil
	})
	return nil
}

func (t *memoryTx) AppendProcessState(ctx context.Context, entry *models.ProcessState) error {
	copied := *entry
	t.ops = append(t.ops, func() error {
		t.repo.states[copied.ProcessID] = append(t.repo.states[copied.ProcessID], copied)
		return nil
	})
	return nil
}

func (t *memoryTx) UpdateProcessCustody(ctx context.Context, processID string, custody models.Custody) error {
	t.ops = append(t.ops, func() error {
		process, exists := t.repo.processes[processID]
		if !exists {
			return ErrProcessNotFound
		}
		process.ApplyCustody(custody)
		return nil
	})
	return nil
}

func (t *memoryTx) ArchiveMessage(ctx context.Context, archived *models.ArchivedMessage) error {
	copied := *archived
	t.ops = append(t.ops, func() error {
		t.repo.archived[copied.ID] = &copied
		return nil
	})
	return nil
}

func (t *memoryTx) DeleteMessage(ctx context.Context, messageID string) error {
	t.ops = append(t.ops, func() error {
		if _, exists := t.repo.messages[messageID]; !exists {
			return ErrMessageNotFound
		}
		delete(t.repo.messages, messageID)
		return nil
	})
	return nil
}

// Commit applies every buffered write under the repository lock. A failing
// op aborts the apply loop; since ops only fail before mutating, a partial
// commit cannot leak records for the dispatch sequences used by the service.
func (t *memoryTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true

	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	for _, op := range t.ops {
		if err := op(); err != nil {
			return err
		}
	}
	return nil
}

func (t *memoryTx) Rollback(ctx context.Context) error {
	t.done = true
	t.ops = nil
	return nil
}
