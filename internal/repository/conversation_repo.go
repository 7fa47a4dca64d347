package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/teamchat-api/internal/models"
)

// ConversationRepository persists direct-message pairings.
type ConversationRepository interface {
	Get(ctx context.Context, id uint) (models.Conversation, error)
	FindBetween(ctx context.Context, workspaceID, memberA, memberB uint) (models.Conversation, error)
	FindOrCreate(ctx context.Context, workspaceID, initiatorID, otherID uint) (models.Conversation, bool, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository constructs a GORM-backed conversation repository.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Get(ctx context.Context, id uint) (models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.WithContext(ctx).First(&conversation, id).Error; err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}

func (r *conversationRepository) FindBetween(ctx context.Context, workspaceID, memberA, memberB uint) (models.Conversation, error) {
	return findConversation(r.db.WithContext(ctx), workspaceID, memberA, memberB)
}

// FindOrCreate returns the pairing for the two members regardless of who
// started it, inserting it when absent. The boolean reports an insert. A
// concurrent insert of the same pair loses on the unique index and returns
// the winner's row.
func (r *conversationRepository) FindOrCreate(ctx context.Context, workspaceID, initiatorID, otherID uint) (models.Conversation, bool, error) {
	db := r.db.WithContext(ctx)

	existing, err := findConversation(db, workspaceID, initiatorID, otherID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Conversation{}, false, err
	}

	one, two := models.ConversationPair(initiatorID, otherID)
	conversation := models.Conversation{
		WorkspaceID: workspaceID,
		MemberOneID: one,
		MemberTwoID: two,
	}
	if err := db.Create(&conversation).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Conversation{}, false, err
		}
		existing, findErr := findConversation(db, workspaceID, one, two)
		if findErr != nil {
			return models.Conversation{}, false, findErr
		}
		return existing, false, nil
	}

	return conversation, true, nil
}

func findConversation(db *gorm.DB, workspaceID, memberA, memberB uint) (models.Conversation, error) {
	var conversation models.Conversation
	err := db.
		Where("workspace_id = ?", workspaceID).
		Where("(member_one_id = ? AND member_two_id = ?) OR (member_one_id = ? AND member_two_id = ?)", memberA, memberB, memberB, memberA).
		Order("id ASC").
		First(&conversation).Error
	if err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}
