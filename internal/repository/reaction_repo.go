package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/teamchat-api/internal/models"
)

// ReactionRepository persists per-member emoji reactions.
type ReactionRepository interface {
	Toggle(ctx context.Context, reaction models.Reaction) (models.Reaction, bool, error)
	ListByMessageIDs(ctx context.Context, messageIDs []uint) ([]models.Reaction, error)
}

type reactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository constructs a GORM-backed reaction repository.
func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

// Toggle deletes the (message, member, value) reaction when present and
// inserts it otherwise. The boolean reports whether the reaction now exists.
func (r *reactionRepository) Toggle(ctx context.Context, reaction models.Reaction) (models.Reaction, bool, error) {
	var (
		result models.Reaction
		added  bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Reaction
		err := tx.
			Where("message_id = ? AND member_id = ? AND value = ?", reaction.MessageID, reaction.MemberID, reaction.Value).
			Take(&existing).Error
		switch {
		case err == nil:
			result = existing
			return tx.Delete(&models.Reaction{}, existing.ID).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			result = reaction
			added = true
			return tx.Create(&result).Error
		default:
			return err
		}
	})
	if err != nil {
		return models.Reaction{}, false, err
	}

	return result, added, nil
}

// ListByMessageIDs returns the reactions of the given messages in storage order.
func (r *reactionRepository) ListByMessageIDs(ctx context.Context, messageIDs []uint) ([]models.Reaction, error) {
	if len(messageIDs) == 0 {
		return []models.Reaction{}, nil
	}

	var reactions []models.Reaction
	if err := r.db.WithContext(ctx).
		Where("message_id IN ?", messageIDs).
		Order("id ASC").
		Find(&reactions).Error; err != nil {
		return nil, err
	}
	return reactions, nil
}
