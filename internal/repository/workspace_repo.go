package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/teamchat-api/internal/models"
)

// WorkspaceRepository persists workspaces.
type WorkspaceRepository interface {
	CreateWithDefaults(ctx context.Context, workspace *models.Workspace, defaultChannel string) (models.Member, models.Channel, error)
	Get(ctx context.Context, id uint) (models.Workspace, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Workspace, error)
	UpdateName(ctx context.Context, id uint, name string) error
	UpdateJoinCode(ctx context.Context, id uint, code string) error
}

type workspaceRepository struct {
	db *gorm.DB
}

// NewWorkspaceRepository constructs a GORM-backed repository.
func NewWorkspaceRepository(db *gorm.DB) WorkspaceRepository {
	return &workspaceRepository{db: db}
}

// CreateWithDefaults inserts the workspace, its owner as admin member and the
// default channel in one transaction.
func (r *workspaceRepository) CreateWithDefaults(ctx context.Context, workspace *models.Workspace, defaultChannel string) (models.Member, models.Channel, error) {
	var (
		member  models.Member
		channel models.Channel
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(workspace).Error; err != nil {
			return err
		}

		member = models.Member{
			WorkspaceID: workspace.ID,
			UserID:      workspace.UserID,
			Role:        models.MemberRoleAdmin,
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}

		channel = models.Channel{
			WorkspaceID: workspace.ID,
			Name:        defaultChannel,
		}
		return tx.Create(&channel).Error
	})
	if err != nil {
		return models.Member{}, models.Channel{}, err
	}

	return member, channel, nil
}

func (r *workspaceRepository) Get(ctx context.Context, id uint) (models.Workspace, error) {
	var workspace models.Workspace
	if err := r.db.WithContext(ctx).First(&workspace, id).Error; err != nil {
		return models.Workspace{}, err
	}
	return workspace, nil
}

func (r *workspaceRepository) ListForUser(ctx context.Context, userID uint) ([]models.Workspace, error) {
	var workspaces []models.Workspace
	if err := r.db.WithContext(ctx).
		Select("workspaces.*").
		Joins("JOIN members ON members.workspace_id = workspaces.id").
		Where("members.user_id = ?", userID).
		Order("workspaces.created_at ASC").
		Order("workspaces.id ASC").
		Find(&workspaces).Error; err != nil {
		return nil, err
	}
	return workspaces, nil
}

func (r *workspaceRepository) UpdateName(ctx context.Context, id uint, name string) error {
	return r.updateColumn(ctx, id, "name", name)
}

func (r *workspaceRepository) UpdateJoinCode(ctx context.Context, id uint, code string) error {
	return r.updateColumn(ctx, id, "join_code", code)
}

func (r *workspaceRepository) updateColumn(ctx context.Context, id uint, column string, value interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Workspace{}).Where("id = ?", id).Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
