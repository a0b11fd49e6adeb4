// Package repository defines the storage contract for the tramita service.
package repository

import (
	"context"
	"errors"

	"github.com/tramita-io/tramita/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrProcessNotFound = errors.New("process not found")
	ErrMessageNotFound = errors.New("message not found")
)

// Tx is an explicit transaction handle for the dispatch write sequence.
// Every write in a coordinated unit goes through the same Tx; the caller
// must end the transaction on every exit path, normally with
//
//	tx, err := repo.Begin(ctx)
//	defer tx.Rollback(ctx)
//	... writes ...
//	return tx.Commit(ctx)
//
// Rollback after a successful Commit is a no-op.
type Tx interface {
	CreateEnvelope(ctx context.Context, envelope *models.MessageEnvelope) error
	CreateMessage(ctx context.Context, message *models.Message) error
	AppendProcessState(ctx context.Context, entry *models.ProcessState) error
	UpdateProcessCustody(ctx context.Context, processID string, custody models.Custody) error
	ArchiveMessage(ctx context.Context, archived *models.ArchivedMessage) error
	DeleteMessage(ctx context.Context, messageID string) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Repository is the storage interface for the dispatch service. Reads run
// outside transactions; all writes that must be atomic go through Begin.
type Repository interface {
	// Users and processes are created elsewhere; the dispatch core only reads
	// them. Create methods exist for the seeder and tests.
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsersBySection(ctx context.Context, section string) ([]models.User, error)
	CreateUser(ctx context.Context, user *models.User) error

	GetProcess(ctx context.Context, id string) (*models.Process, error)
	CreateProcess(ctx context.Context, process *models.Process) error
	ListProcessStates(ctx context.Context, processID string) ([]models.ProcessState, error)

	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, req *models.ListMessagesRequest) ([]models.Message, int, error)
	MarkVisualized(ctx context.Context, id string) (*models.Message, error)
	CountUnread(ctx context.Context, receiverID string) (int, error)

	// Begin opens the atomic unit for the dispatch write sequence.
	Begin(ctx context.Context) (Tx, error)

	Ping(ctx context.Context) error
	Close() error
}
