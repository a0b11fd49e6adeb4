package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tramita-io/tramita/internal/logging"
	"github.com/tramita-io/tramita/internal/models"
	"github.com/tramita-io/tramita/internal/nats"
	"github.com/tramita-io/tramita/internal/repository"
)

func newTestService(t *testing.T) (*Service, *repository.InMemoryRepository) {
	t.Helper()
	repo := repository.NewInMemoryRepository()
	return NewService(repo, logging.Default()), repo
}

func seedUser(t *testing.T, repo *repository.InMemoryRepository, id, name, section string) *models.User {
	t.Helper()
	user := &models.User{
		ID:        id,
		Name:      name,
		Email:     name + "@example.com",
		Section:   section,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

func seedProcess(t *testing.T, repo *repository.InMemoryRepository, id, title string, custody models.Custody) *models.Process {
	t.Helper()
	process := &models.Process{
		ID:        id,
		Title:     title,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	switch custody.Mode {
	case models.CustodyUser:
		process.HolderID = &custody.UserID
	case models.CustodySection:
		process.SectionReceiver = &custody.Section
	}
	require.NoError(t, repo.CreateProcess(context.Background(), process))
	return process
}

func TestSendMessage_Individual(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	seedUser(t, repo, "sender-1", "Alice", "Legal")
	seedUser(t, repo, "receiver-1", "Bob", "Finance")

	result, err := svc.SendMessage(ctx, &models.SendMessageRequest{
		SenderID:   "sender-1",
		Title:      "Quarterly review",
		Content:    "Please take a look.",
		ReceiverID: "receiver-1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Envelope.ID)
	assert.Equal(t, "sender-1", result.Envelope.SenderID)
	assert.Equal(t, models.NoProcessTitle, result.Envelope.ProcessTitle)
	assert.Nil(t, result.Envelope.ProcessID)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "receiver-1", result.Records[0].ReceiverID)
	assert.Equal(t, result.Envelope.ID, result.Records[0].EnvelopeID)
	assert.False(t, result.Records[0].Visualized)

	// No process attached, so no state entry and no custody change
	assert.Nil(t, result.StateEntry)
	assert.Nil(t, result.Process)

	// The record is actually persisted
	stored, err := repo.GetMessage(ctx, result.Records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly review", stored.Title)
}

func TestSendMessage_SectionFanout(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	sender := seedUser(t, repo, "sender-1", "Alice", "Legal")
	seedUser(t, repo, "fin-1", "Bob", "Finance")
	seedUser(t, repo, "fin-2", "Carol", "Finance")
	seedUser(t, repo, "fin-3", "Dave", "Finance")
	seedUser(t, repo, "eng-1", "Erin", "Engineering")

	process := seedProcess(t, repo, "proc-1", "Budget approval", models.Custody{
		Mode: models.CustodyUser, UserID: sender.ID,
	})

	result, err := svc.SendMessage(ctx, &models.SendMessageRequest{
		SenderID:        sender.ID,
		Title:           "Handing over",
		ProcessID:       process.ID,
		SectionReceiver: "Finance",
	})
	require.NoError(t, err)

	// One record per section member, none for other sections
	require.Len(t, result.Records, 3)
	receivers := map[string]bool{}
	for _, record := range result.Records {
		receivers[record.ReceiverID] = true
		assert.Equal(t, "Budget approval", record.ProcessTitle)
		require.NotNil(t, record.ProcessID)
		assert.Equal(t, process.ID, *record.ProcessID)
	}
	assert.True(t, receivers["fin-1"])
	assert.True(t, receivers["fin-2"])
	assert.True(t, receivers["fin-3"])

	// State entry records the handoff
	require.NotNil(t, result.StateEntry)
	assert.Equal(t, models.StateInTransfer, result.StateEntry.State)
	assert.Equal(t, "from Alice to Finance", result.StateEntry.Annotation)
	require.NotNil(t, result.StateEntry.ActorID)
	assert.Equal(t, sender.ID, *result.StateEntry.ActorID)

	// Custody moved to the section, clearing the holder
	stored, err := repo.GetProcess(ctx, process.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.HolderID)
	assert.Nil(t, stored.ReceiverID)
	require.NotNil(t, stored.SectionReceiver)
	assert.Equal(t, "Finance", *stored.SectionReceiver)

	// Result reflects the committed custody
	require.NotNil(t, result.Process)
	require.NotNil(t, result.Process.SectionReceiver)
	assert.Equal(t, "Finance", *result.Process.SectionReceiver)

	// The audit trail is persisted
	states, err := repo.ListProcessStates(ctx, process.ID)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, models.StateInTransfer, states[0].State)
}

func TestSendMessage_IndividualWithProcess(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	sender := seedUser(t, repo, "sender-1", "Alice", "Legal")
	receiver := seedUser(t, repo, "receiver-1", "Bob", "Finance")

	process := seedProcess(t, repo, "proc-1", "Contract signing", models.Custody{
		Mode: models.CustodyUser, UserID: sender.ID,
	})

	result, err := svc.SendMessage(ctx, &models.SendMessageRequest{
		SenderID:   sender.ID,
		Title:      "Over to you",
		ProcessID:  process.ID,
		ReceiverID: receiver.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, "from Alice to Bob", result.StateEntry.Annotation)

	stored, err := repo.GetProcess(ctx, process.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.HolderID)
	require.NotNil(t, stored.ReceiverID)
	assert.Equal(t, receiver.ID, *stored.ReceiverID)
	assert.Nil(t, stored.SectionReceiver)
}

func TestSendMessage_AuthorizationDeniedLeavesNoTrace(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	holder := seedUser(t, repo, "holder-1", "Alice", "Legal")
	intruder := seedUser(t, repo, "intruder-1", "Mallory", "Engineering")
	seedUser(t, repo, "receiver-1", "Bob", "Finance")

	process := seedProcess(t, repo, "proc-1", "Sensitive case", models.Custody{
		Mode: models.CustodyUser, UserID: holder.ID,
	})

	_, err := svc.SendMessage(ctx, &models.SendMessageRequest{
		SenderID:   intruder.ID,
		Title:      "Taking this",
		ProcessID:  process.ID,
		ReceiverID: "receiver-1",
	})

	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)

	// Nothing was written: no messages, no states, unchanged custody
	messages, total, listErr := repo.ListMessages(ctx, &models.ListMessagesRequest{})
	require.NoError(t, listErr)
	assert.Empty(t, messages)
	assert.Zero(t, total)

	states, stateErr := repo.ListProcessStates(ctx, process.ID)
	require.NoError(t, stateErr)
	assert.Empty(t, states)

	stored, getErr := repo.GetProcess(ctx, process.ID)
	require.NoError(t, getErr)
	require.NotNil(t, stored.HolderID)
	assert.Equal(t, holder.ID, *stored.HolderID)
}

func TestSendMessage_PendingReceiverMayForward(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	pending := seedUser(t, repo, "pending-1", "Alice", "Legal")
	seedUser(t, repo, "receiver-1", "Bob", "Finance")

	process := seedProcess(t, repo, "proc-1", "In transit", models.Custody{})
	// Custody pending pickup by a specific user
	process.ReceiverID = &pending.ID
	require.NoError(t, repo.CreateProcess(ctx, process))

	_, err := svc.SendMessage(ctx, &models.SendMessageRequest{
		SenderID:   pending.ID,
		Title:      "Passing along",
		ProcessID:  process.ID,
		ReceiverID: "receiver-1",
	})
	require.NoError(t, err)
}

func TestSendMessage_SectionMemberMayForward(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	member := seedUser(t, repo, "member-1", "Alice", "Legal")
	seedUser(t, repo, "receiver-1", "Bob", "Finance")

	seedProcess(t, repo, "proc-1", "Section custody", models.Custody{
		Mode: models.CustodySection, Section: "Legal",
	})

	_, err := svc.SendMessage(ctx, &models.SendMessageRequest{
		SenderID:   member.ID,
		Title:      "Claiming and forwarding",
		ProcessID:  "proc-1",
		ReceiverID: "receiver-1",
	})
	require.NoError(t, err)

	// A member of a different section may not
	outsider := seedUser(t, repo, "outsider-1", "Mallory", "Engineering")
	seedProcess(t, repo, "proc-2", "Section custody", models.Custody{
		Mode: models.CustodySection, Section: "Legal",
	})

	_, err = svc.SendMessage(ctx, &models.SendMessageRequest{
		SenderID:   outsider.ID,
		Title:      "Should fail",
		ProcessID:  "proc-2",
		ReceiverID: "receiver-1",
	})
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
}

func TestSendMessage_Validation(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	seedUser(t, repo, "sender-1", "Alice", "Legal")
	seedUser(t, repo, "receiver-1", "Bob", "Finance")

	tests := []struct {
		name string
		req  *models.SendMessageRequest
	}{
		{
			name: "missing sender",
			req:  &models.SendMessageRequest{Title: "x", ReceiverID: "receiver-1"},
		},
		{
			name: "missing title",
			req:  &models.SendMessageRequest{SenderID: "sender-1", ReceiverID: "receiver-1"},
		},
		{
			name: "both targets",
			req: &models.SendMessageRequest{
				SenderID: "sender-1", Title: "x",
				ReceiverID: "receiver-1", SectionReceiver: "Finance",
			},
		},
		{
			name: "neither target",
			req:  &models.SendMessageRequest{SenderID: "sender-1", Title: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendMessage(ctx, tt.req)
			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestSendMessage_NotFound(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	sender := seedUser(t, repo, "sender-1", "Alice", "Legal")

	tests := []struct {
		name     string
		req      *models.SendMessageRequest
		resource string
	}{
		{
			name:     "unknown sender",
			req:      &models.SendMessageRequest{SenderID: "ghost", Title: "x", ReceiverID: "whoever"},
			resource: "sender",
		},
		{
			name:     "unknown receiver",
			req:      &models.SendMessageRequest{SenderID: sender.ID, Title: "x", ReceiverID: "ghost"},
			resource: "receiver",
		},
		{
			name:     "unknown process",
			req:      &models.SendMessageRequest{SenderID: sender.ID, Title: "x", ReceiverID: "ghost", ProcessID: "missing"},
			resource: "process",
		},
		{
			name:     "empty section",
			req:      &models.SendMessageRequest{SenderID: sender.ID, Title: "x", SectionReceiver: "Void"},
			resource: "section",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendMessage(ctx, tt.req)
			var notFoundErr *NotFoundError
			require.ErrorAs(t, err, &notFoundErr)
			assert.Equal(t, tt.resource, notFoundErr.Resource)
		})
	}
}

// failingRepo wraps a repository and injects a failure into one transaction
// operation to exercise rollback behavior.
type failingRepo struct {
	repository.Repository
	failCustody bool
}

func (r *failingRepo) Begin(ctx context.Context) (repository.Tx, error) {
	tx, err := r.Repository.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{Tx: tx, failCustody: r.failCustody}, nil
}

type failingTx struct {
	repository.Tx
	failCustody bool
}

func (t *failingTx) UpdateProcessCustody(ctx context.Context, processID string, custody models.Custody) error {
	if t.failCustody {
		return errors.New("injected custody failure")
	}
	return t.Tx.UpdateProcessCustody(ctx, processID, custody)
}

func TestSendMessage_AtomicRollback(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	svc := NewService(&failingRepo{Repository: repo, failCustody: true}, logging.Default())
	ctx := context.Background()

	sender := seedUser(t, repo, "sender-1", "Alice", "Legal")
	seedUser(t, repo, "receiver-1", "Bob", "Finance")
	process := seedProcess(t, repo, "proc-1", "Doomed handoff", models.Custody{
		Mode: models.CustodyUser, UserID: sender.ID,
	})

	_, err := svc.SendMessage(ctx, &models.SendMessageRequest{
		SenderID:   sender.ID,
		Title:      "This must roll back",
		ProcessID:  process.ID,
		ReceiverID: "receiver-1",
	})

	var txErr *TransactionError
	require.ErrorAs(t, err, &txErr)

	// The custody failure must take the envelope and records down with it
	messages, total, listErr := repo.ListMessages(ctx, &models.ListMessagesRequest{})
	require.NoError(t, listErr)
	assert.Empty(t, messages)
	assert.Zero(t, total)

	states, stateErr := repo.ListProcessStates(ctx, process.ID)
	require.NoError(t, stateErr)
	assert.Empty(t, states)

	stored, getErr := repo.GetProcess(ctx, process.ID)
	require.NoError(t, getErr)
	require.NotNil(t, stored.HolderID)
	assert.Equal(t, sender.ID, *stored.HolderID)
}

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	dispatched []*nats.MessageDispatchedEvent
	forwarded  []*nats.ProcessForwardedEvent
	archived   []*nats.MessageArchivedEvent
}

func (p *capturingPublisher) PublishMessageDispatched(ctx context.Context, event *nats.MessageDispatchedEvent) error {
	p.dispatched = append(p.dispatched, event)
	return nil
}

func (p *capturingPublisher) PublishProcessForwarded(ctx context.Context, event *nats.ProcessForwardedEvent) error {
	p.forwarded = append(p.forwarded, event)
	return nil
}

func (p *capturingPublisher) PublishMessageArchived(ctx context.Context, event *nats.MessageArchivedEvent) error {
	p.archived = append(p.archived, event)
	return nil
}

func TestSendMessage_PublishesEvents(t *testing.T) {
	svc, repo := newTestService(t)
	publisher := &capturingPublisher{}
	svc = svc.WithEvents(publisher)
	ctx := context.Background()

	sender := seedUser(t, repo, "sender-1", "Alice", "Legal")
	receiver := seedUser(t, repo, "receiver-1", "Bob", "Finance")
	process := seedProcess(t, repo, "proc-1", "Eventful", models.Custody{
		Mode: models.CustodyUser, UserID: sender.ID,
	})

	result, err := svc.SendMessage(ctx, &models.SendMessageRequest{
		SenderID:   sender.ID,
		Title:      "With events",
		ProcessID:  process.ID,
		ReceiverID: receiver.ID,
	})
	require.NoError(t, err)

	require.Len(t, publisher.dispatched, 1)
	assert.Equal(t, result.Envelope.ID, publisher.dispatched[0].EnvelopeID)
	assert.Equal(t, []string{receiver.ID}, publisher.dispatched[0].RecipientIDs)

	require.Len(t, publisher.forwarded, 1)
	assert.Equal(t, process.ID, publisher.forwarded[0].ProcessID)
	assert.Equal(t, string(models.CustodyUser), publisher.forwarded[0].CustodyMode)
	assert.Equal(t, receiver.ID, publisher.forwarded[0].ReceiverID)
	assert.Equal(t, result.StateEntry.ID, publisher.forwarded[0].StateEntryID)
}

// fakeCache is an in-memory UnreadCache for assertions.
type fakeCache struct {
	values      map[string]int
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]int)}
}

func (c *fakeCache) Get(ctx context.Context, userID string) (int, bool, error) {
	count, ok := c.values[userID]
	return count, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, userID string, count int) error {
	c.values[userID] = count
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, userID string) error {
	delete(c.values, userID)
	c.invalidated = append(c.invalidated, userID)
	return nil
}

func TestSendMessage_InvalidatesUnreadCounters(t *testing.T) {
	svc, repo := newTestService(t)
	cache := newFakeCache()
	svc = svc.WithUnreadCache(cache)
	ctx := context.Background()

	seedUser(t, repo, "sender-1", "Alice", "Legal")
	seedUser(t, repo, "fin-1", "Bob", "Finance")
	seedUser(t, repo, "fin-2", "Carol", "Finance")

	cache.values["fin-1"] = 0
	cache.values["fin-2"] = 3

	_, err := svc.SendMessage(ctx, &models.SendMessageRequest{
		SenderID:        "sender-1",
		Title:           "Stale counters beware",
		SectionReceiver: "Finance",
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"fin-1", "fin-2"}, cache.invalidated)
	assert.Empty(t, cache.values)
}
