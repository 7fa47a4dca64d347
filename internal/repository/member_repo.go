package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/teamchat-api/internal/models"
)

// ErrLastAdmin reports a change that would leave a workspace without an admin.
var ErrLastAdmin = errors.New("workspace must keep at least one admin")

// MemberRepository persists workspace memberships.
type MemberRepository interface {
	FindByWorkspaceAndUser(ctx context.Context, workspaceID, userID uint) (models.Member, error)
	Get(ctx context.Context, id uint) (models.Member, error)
	ListByWorkspace(ctx context.Context, workspaceID uint) ([]models.Member, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.Member, error)
	Create(ctx context.Context, member *models.Member) error
	UpdateRole(ctx context.Context, id uint, role string) error
	CountAdmins(ctx context.Context, workspaceID uint) (int64, error)
}

type memberRepository struct {
	db *gorm.DB
}

// NewMemberRepository constructs a GORM-backed member repository.
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) FindByWorkspaceAndUser(ctx context.Context, workspaceID, userID uint) (models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Take(&member).Error
	if err != nil {
		return models.Member{}, err
	}
	return member, nil
}

func (r *memberRepository) Get(ctx context.Context, id uint) (models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).First(&member, id).Error; err != nil {
		return models.Member{}, err
	}
	return member, nil
}

func (r *memberRepository) ListByWorkspace(ctx context.Context, workspaceID uint) ([]models.Member, error) {
	var members []models.Member
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *memberRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.Member, error) {
	if len(ids) == 0 {
		return []models.Member{}, nil
	}

	var members []models.Member
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *memberRepository) Create(ctx context.Context, member *models.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// UpdateRole changes the member's role. Demoting an admin is refused with
// ErrLastAdmin when no other admin would remain.
func (r *memberRepository) UpdateRole(ctx context.Context, id uint, role string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member models.Member
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&member, id).Error; err != nil {
			return err
		}
		if role != models.MemberRoleAdmin {
			if err := KeepAnotherAdmin(member.WorkspaceID, member.ID)(tx); err != nil {
				return err
			}
		}

		result := tx.Model(&models.Member{}).Where("id = ?", id).Update("role", role)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// KeepAnotherAdmin guards changes that take memberID out of the admin set.
// The workspace's admin rows stay locked until the transaction ends, so two
// concurrent demotions cannot both see the other admin.
func KeepAnotherAdmin(workspaceID, memberID uint) CascadeGuard {
	return func(tx *gorm.DB) error {
		var adminIDs []uint
		if err := tx.Model(&models.Member{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("workspace_id = ? AND role = ?", workspaceID, models.MemberRoleAdmin).
			Pluck("id", &adminIDs).Error; err != nil {
			return err
		}

		isAdmin := false
		for _, adminID := range adminIDs {
			if adminID == memberID {
				isAdmin = true
				break
			}
		}
		if isAdmin && len(adminIDs) <= 1 {
			return ErrLastAdmin
		}
		return nil
	}
}

func (r *memberRepository) CountAdmins(ctx context.Context, workspaceID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("workspace_id = ? AND role = ?", workspaceID, models.MemberRoleAdmin).
		Count(&count).Error
	return count, err
}
