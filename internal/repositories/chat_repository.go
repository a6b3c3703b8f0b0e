package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"project-hub/internal/locks"
	"project-hub/internal/models"
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
)

// DefaultRecentLimit is the number of messages returned by Recent when the
// caller passes a non-positive limit.
const DefaultRecentLimit = 50

// ChatRepository abstracts project chat persistence.
type ChatRepository interface {
	// GetOrCreate returns the project's chat, creating it with the given
	// participant snapshot when absent. Concurrent calls create one chat.
	GetOrCreate(ctx context.Context, projectID string, participants []string) (models.Chat, error)
	// Append stores msg at the end of the project's log. onAppended, when
	// set, runs before the next Append for the same project may complete, so
	// observers see messages in append order.
	Append(ctx context.Context, projectID string, msg models.ChatMessage, onAppended func(models.ChatMessage)) (models.ChatMessage, error)
	// Recent returns up to limit newest messages, oldest first.
	Recent(ctx context.Context, projectID string, limit int) ([]models.ChatMessage, error)
	GetMessage(ctx context.Context, projectID, messageID string) (models.ChatMessage, error)
	SoftDelete(ctx context.Context, projectID, messageID, userID string) error
	HardDelete(ctx context.Context, projectID, messageID string) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db    *sqlx.DB
	locks *locks.Keyed
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db, locks: locks.NewKeyed()}
}

const messageColumns = `id, project_id, seq, sender_id, sender_name, content, created_at`

// GetOrCreate upserts the chat row in a single statement.
func (r *ChatRepo) GetOrCreate(ctx context.Context, projectID string, participants []string) (models.Chat, error) {
	if participants == nil {
		participants = []string{}
	}

	var chat models.Chat
	err := r.db.QueryRowxContext(ctx, `INSERT INTO project_chats (id, project_id, participants) VALUES ($1, $2, $3)
        ON CONFLICT (project_id) DO UPDATE SET project_id = EXCLUDED.project_id
        RETURNING id, project_id, participants, last_message_at, created_at`,
		uuid.NewString(), projectID, pq.Array(participants)).
		Scan(&chat.ID, &chat.ProjectID, pq.Array(&chat.Participants), &chat.LastMessageAt, &chat.CreatedAt)
	if err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// Append locks the chat row, bumps the project sequence and inserts the message.
func (r *ChatRepo) Append(ctx context.Context, projectID string, msg models.ChatMessage, onAppended func(models.ChatMessage)) (models.ChatMessage, error) {
	unlock := r.locks.Lock(projectID)
	defer unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatMessage{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var chatID string
	err = tx.QueryRowxContext(ctx, `UPDATE project_chats
        SET message_seq = message_seq + 1, last_message_at = GREATEST(clock_timestamp(), last_message_at)
        WHERE project_id=$1
        RETURNING id, message_seq, last_message_at`, projectID).
		Scan(&chatID, &msg.Seq, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrChatNotFound
		return models.ChatMessage{}, err
	}
	if err != nil {
		return models.ChatMessage{}, err
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.ProjectID = projectID
	msg.DeletedFor = []string{}

	if _, err = tx.ExecContext(ctx, `INSERT INTO chat_messages (id, chat_id, project_id, seq, sender_id, sender_name, content, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.ID, chatID, projectID, msg.Seq, msg.SenderID, msg.SenderName, msg.Content, msg.CreatedAt); err != nil {
		return models.ChatMessage{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.ChatMessage{}, err
	}

	if onAppended != nil {
		onAppended(msg)
	}
	return msg, nil
}

// Recent selects the newest messages, then returns them oldest first.
func (r *ChatRepo) Recent(ctx context.Context, projectID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	var msgs []models.ChatMessage
	query := `SELECT ` + messageColumns + ` FROM (
            SELECT ` + messageColumns + ` FROM chat_messages
            WHERE project_id=$1
            ORDER BY created_at DESC, seq DESC
            LIMIT $2
        ) recent
        ORDER BY created_at ASC, seq ASC`
	if err := r.db.SelectContext(ctx, &msgs, query, projectID, limit); err != nil {
		return nil, err
	}
	if err := r.loadDeletions(ctx, msgs); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	return msgs, nil
}

// GetMessage fetches one message of the project.
func (r *ChatRepo) GetMessage(ctx context.Context, projectID, messageID string) (models.ChatMessage, error) {
	if _, err := uuid.Parse(messageID); err != nil {
		return models.ChatMessage{}, ErrMessageNotFound
	}

	msgs := make([]models.ChatMessage, 1)
	err := r.db.GetContext(ctx, &msgs[0], `SELECT `+messageColumns+` FROM chat_messages WHERE id=$1 AND project_id=$2`, messageID, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatMessage{}, ErrMessageNotFound
	}
	if err != nil {
		return models.ChatMessage{}, err
	}
	if err := r.loadDeletions(ctx, msgs); err != nil {
		return models.ChatMessage{}, err
	}
	return msgs[0], nil
}

// SoftDelete hides a message for one user. Repeated calls are no-ops.
func (r *ChatRepo) SoftDelete(ctx context.Context, projectID, messageID, userID string) error {
	if err := r.ensureChat(ctx, projectID); err != nil {
		return err
	}
	if _, err := r.GetMessage(ctx, projectID, messageID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO chat_message_deletions (message_id, user_id) VALUES ($1, $2)
        ON CONFLICT (message_id, user_id) DO NOTHING`, messageID, userID)
	return err
}

// HardDelete removes a message for everyone.
func (r *ChatRepo) HardDelete(ctx context.Context, projectID, messageID string) error {
	if err := r.ensureChat(ctx, projectID); err != nil {
		return err
	}
	if _, err := uuid.Parse(messageID); err != nil {
		return ErrMessageNotFound
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE id=$1 AND project_id=$2`, messageID, projectID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *ChatRepo) ensureChat(ctx context.Context, projectID string) error {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM project_chats WHERE project_id=$1)`, projectID); err != nil {
		return err
	}
	if !exists {
		return ErrChatNotFound
	}
	return nil
}

func (r *ChatRepo) loadDeletions(ctx context.Context, msgs []models.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(msgs))
	index := make(map[string]int, len(msgs))
	for i := range msgs {
		msgs[i].DeletedFor = []string{}
		ids = append(ids, msgs[i].ID)
		index[msgs[i].ID] = i
	}

	rows, err := r.db.QueryxContext(ctx, `SELECT message_id, user_id FROM chat_message_deletions
        WHERE message_id = ANY($1::uuid[]) ORDER BY created_at ASC`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var messageID, userID string
		if err := rows.Scan(&messageID, &userID); err != nil {
			return err
		}
		if i, ok := index[messageID]; ok {
			msgs[i].DeletedFor = append(msgs[i].DeletedFor, userID)
		}
	}
	return rows.Err()
}
