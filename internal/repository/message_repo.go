package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/teamchat-api/internal/models"
)

// ErrUnknownScope is returned for a scope kind the repository cannot scan.
var ErrUnknownScope = errors.New("unknown message scope")

// ScopeKind selects the single dimension a message page is restricted to.
type ScopeKind int

// Supported message scopes.
const (
	ScopeChannel ScopeKind = iota + 1
	ScopeConversation
	ScopeThread
)

// String returns the scope name used in logs and traces.
func (k ScopeKind) String() string {
	switch k {
	case ScopeChannel:
		return "channel"
	case ScopeConversation:
		return "conversation"
	case ScopeThread:
		return "thread"
	default:
		return "unknown"
	}
}

// MessageScope identifies the channel, conversation or thread parent to scan.
type MessageScope struct {
	Kind ScopeKind
	ID   uint
}

// MessageCursor is the position of the last row of a page.
type MessageCursor struct {
	CreatedAt time.Time `json:"t"`
	ID        uint      `json:"i"`
}

// ThreadStat holds the reply count and latest reply of one parent message.
type ThreadStat struct {
	Count  int64
	Latest models.Message
}

// MessageRepository persists messages and scans scoped history.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	Get(ctx context.Context, id uint) (models.Message, error)
	UpdateBody(ctx context.Context, id uint, body datatypes.JSON, editedAt time.Time) error
	ListPage(ctx context.Context, scope MessageScope, cursor *MessageCursor, limit int) ([]models.Message, error)
	ThreadStats(ctx context.Context, parentIDs []uint) (map[uint]ThreadStat, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a GORM-backed message repository.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) Get(ctx context.Context, id uint) (models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).First(&message, id).Error; err != nil {
		return models.Message{}, err
	}
	return message, nil
}

func (r *messageRepository) UpdateBody(ctx context.Context, id uint, body datatypes.JSON, editedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"body": body, "updated_at": editedAt})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListPage returns up to limit messages of the scope, newest first, strictly
// older than cursor when one is given. Channel and conversation scopes only
// contain top-level messages.
func (r *messageRepository) ListPage(ctx context.Context, scope MessageScope, cursor *MessageCursor, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 20
	}

	query := r.db.WithContext(ctx).Model(&models.Message{})
	switch scope.Kind {
	case ScopeChannel:
		query = query.Where("channel_id = ? AND parent_message_id IS NULL", scope.ID)
	case ScopeConversation:
		query = query.Where("conversation_id = ? AND parent_message_id IS NULL", scope.ID)
	case ScopeThread:
		query = query.Where("parent_message_id = ?", scope.ID)
	default:
		return nil, ErrUnknownScope
	}

	if cursor != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var messages []models.Message
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *messageRepository) ThreadStats(ctx context.Context, parentIDs []uint) (map[uint]ThreadStat, error) {
	stats := make(map[uint]ThreadStat, len(parentIDs))
	if len(parentIDs) == 0 {
		return stats, nil
	}

	var counts []struct {
		ParentMessageID uint
		Count           int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Select("parent_message_id, COUNT(*) AS count").
		Where("parent_message_id IN ?", parentIDs).
		Group("parent_message_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}

	for _, row := range counts {
		if row.Count == 0 {
			continue
		}

		var latest models.Message
		if err := r.db.WithContext(ctx).
			Where("parent_message_id = ?", row.ParentMessageID).
			Order("created_at DESC").
			Order("id DESC").
			First(&latest).Error; err != nil {
			return nil, err
		}

		stats[row.ParentMessageID] = ThreadStat{Count: row.Count, Latest: latest}
	}

	return stats, nil
}
