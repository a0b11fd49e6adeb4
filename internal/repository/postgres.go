package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tramita-io/tramita/internal/models"
)

const queryTimeout = 5 * time.Second

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a PostgreSQL repository backed by a pgx pool.
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the connection pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// =============================================================================
// USERS
// =============================================================================

const userColumns = `id, name, email, COALESCE(section, ''), created_at`

func (r *PostgresRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user models.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.Section, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (r *PostgresRepository) ListUsersBySection(ctx context.Context, section string) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE section = $1 ORDER BY name`

	rows, err := r.pool.Query(ctx, query, section)
	if err != nil {
		return nil, fmt.Errorf("failed to list users by section: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Section, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO users (id, name, email, section, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
	`

	_, err := r.pool.Exec(ctx, query, user.ID, user.Name, user.Email, user.Section, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// =============================================================================
// PROCESSES
// =============================================================================

const processColumns = `id, title, holder_id, receiver_id, section_receiver, created_at, updated_at`

func (r *PostgresRepository) GetProcess(ctx context.Context, id string) (*models.Process, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + processColumns + ` FROM processes WHERE id = $1`

	var process models.Process
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&process.ID, &process.Title, &process.HolderID, &process.ReceiverID,
		&process.SectionReceiver, &process.CreatedAt, &process.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProcessNotFound
		}
		return nil, fmt.Errorf("failed to get process: %w", err)
	}

	return &process, nil
}

func (r *PostgresRepository) CreateProcess(ctx context.Context, process *models.Process) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO processes (id, title, holder_id, receiver_id, section_receiver, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		process.ID, process.Title, process.HolderID, process.ReceiverID,
		process.SectionReceiver, process.CreatedAt, process.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create process: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListProcessStates(ctx context.Context, processID string) ([]models.ProcessState, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, process_id, actor_id, state, COALESCE(annotation, ''), created_at
		FROM process_states
		WHERE process_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, processID)
	if err != nil {
		return nil, fmt.Errorf("failed to list process states: %w", err)
	}
	defer rows.Close()

	var entries []models.ProcessState
	for rows.Next() {
		var entry models.ProcessState
		if err := rows.Scan(&entry.ID, &entry.ProcessID, &entry.ActorID, &entry.State, &entry.Annotation, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan process state: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate process states: %w", err)
	}

	return entries, nil
}

// =============================================================================
// MESSAGES
// =============================================================================

const messageColumns = `id, envelope_id, sender_id, receiver_id, process_id, title, process_title, COALESCE(content, ''), visualized, sent_at`

func scanMessage(row pgx.Row, message *models.Message) error {
	return row.Scan(
		&message.ID, &message.EnvelopeID, &message.SenderID, &message.ReceiverID,
		&message.ProcessID, &message.Title, &message.ProcessTitle, &message.Content,
		&message.Visualized, &message.SentAt,
	)
}

func (r *PostgresRepository) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	var message models.Message
	if err := scanMessage(r.pool.QueryRow(ctx, query, id), &message); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &message, nil
}

func (r *PostgresRepository) ListMessages(ctx context.Context, req *models.ListMessagesRequest) ([]models.Message, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// Filters are a fixed allow-list; each maps to exactly one indexed column.
	where := " WHERE 1=1"
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if req.ReceiverID != "" {
		where += " AND receiver_id = " + arg(req.ReceiverID)
	}
	if req.SenderID != "" {
		where += " AND sender_id = " + arg(req.SenderID)
	}
	if req.ProcessID != "" {
		where += " AND process_id = " + arg(req.ProcessID)
	}
	if req.Visualized != nil {
		where += " AND visualized = " + arg(*req.Visualized)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM messages"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	query := "SELECT " + messageColumns + " FROM messages" + where + " ORDER BY sent_at DESC, id"
	if req.Limit > 0 {
		query += " LIMIT " + arg(req.Limit)
		if req.Page > 1 {
			query += " OFFSET " + arg((req.Page-1)*req.Limit)
		}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var message models.Message
		if err := scanMessage(rows, &message); err != nil {
			return nil, 0, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return messages, total, nil
}

func (r *PostgresRepository) MarkVisualized(ctx context.Context, id string) (*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE messages SET visualized = TRUE
		WHERE id = $1
		RETURNING ` + messageColumns

	var message models.Message
	if err := scanMessage(r.pool.QueryRow(ctx, query, id), &message); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to mark message visualized: %w", err)
	}

	return &message, nil
}

func (r *PostgresRepository) CountUnread(ctx context.Context, receiverID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND NOT visualized`,
		receiverID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}

	return count, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// Begin opens a database transaction for the dispatch write sequence.
func (r *PostgresRepository) Begin(ctx context.Context) (Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &postgresTx{tx: tx}, nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) CreateEnvelope(ctx context.Context, envelope *models.MessageEnvelope) error {
	query := `
		INSERT INTO message_envelopes (id, sender_id, process_id, title, process_title, content, sent_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`
	_, err := t.tx.Exec(ctx, query,
		envelope.ID, envelope.SenderID, envelope.ProcessID, envelope.Title,
		envelope.ProcessTitle, envelope.Content, envelope.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create envelope: %w", err)
	}
	return nil
}

func (t *postgresTx) CreateMessage(ctx context.Context, message *models.Message) error {
	query := `
		INSERT INTO messages (id, envelope_id, sender_id, receiver_id, process_id, title, process_title, content, visualized, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
	`
	_, err := t.tx.Exec(ctx, query,
		message.ID, message.EnvelopeID, message.SenderID, message.ReceiverID,
		message.ProcessID, message.Title, message.ProcessTitle, message.Content,
		message.Visualized, message.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (t *postgresTx) AppendProcessState(ctx context.Context, entry *models.ProcessState) error {
	query := `
		INSERT INTO process_states (id, process_id, actor_id, state, annotation, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
	`
	_, err := t.tx.Exec(ctx, query,
		entry.ID, entry.ProcessID, entry.ActorID, entry.State, entry.Annotation, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append process state: %w", err)
	}
	return nil
}

func (t *postgresTx) UpdateProcessCustody(ctx context.Context, processID string, custody models.Custody) error {
	// Clears every custody field, then sets the one selected by the mode.
	// The table CHECK constraint keeps the result exclusive.
	var query string
	var args []any
	switch custody.Mode {
	case models.CustodyUser:
		query = `
			UPDATE processes
			SET holder_id = NULL, receiver_id = $2, section_receiver = NULL, updated_at = now()
			WHERE id = $1
		`
		args = []any{processID, custody.UserID}
	case models.CustodySection:
		query = `
			UPDATE processes
			SET holder_id = NULL, receiver_id = NULL, section_receiver = $2, updated_at = now()
			WHERE id = $1
		`
		args = []any{processID, custody.Section}
	default:
		return fmt.Errorf("unknown custody mode %q", custody.Mode)
	}

	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update process custody: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProcessNotFound
	}
	return nil
}

func (t *postgresTx) ArchiveMessage(ctx context.Context, archived *models.ArchivedMessage) error {
	query := `
		INSERT INTO archived_messages (id, message_id, envelope_id, sender_id, receiver_id, process_id, title, process_title, content, visualized, sent_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)
	`
	_, err := t.tx.Exec(ctx, query,
		archived.ID, archived.MessageID, archived.EnvelopeID, archived.SenderID,
		archived.ReceiverID, archived.ProcessID, archived.Title, archived.ProcessTitle,
		archived.Content, archived.Visualized, archived.SentAt, archived.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive message: %w", err)
	}
	return nil
}

func (t *postgresTx) DeleteMessage(ctx context.Context, messageID string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM messages WHERE id = $1`, messageID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (t *postgresTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
