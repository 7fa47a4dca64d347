package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/teamchat-api/internal/models"
)

// ChannelRepository persists workspace channels.
type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	Get(ctx context.Context, id uint) (models.Channel, error)
	ListByWorkspace(ctx context.Context, workspaceID uint) ([]models.Channel, error)
	UpdateName(ctx context.Context, id uint, name string) error
}

type channelRepository struct {
	db *gorm.DB
}

// NewChannelRepository constructs a GORM-backed channel repository.
func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) Create(ctx context.Context, channel *models.Channel) error {
	return r.db.WithContext(ctx).Create(channel).Error
}

func (r *channelRepository) Get(ctx context.Context, id uint) (models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).First(&channel, id).Error; err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

func (r *channelRepository) ListByWorkspace(ctx context.Context, workspaceID uint) ([]models.Channel, error) {
	var channels []models.Channel
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *channelRepository) UpdateName(ctx context.Context, id uint, name string) error {
	result := r.db.WithContext(ctx).Model(&models.Channel{}).Where("id = ?", id).Update("name", name)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
