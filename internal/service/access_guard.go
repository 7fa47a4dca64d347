package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/teamchat-api/internal/models"
	"github.com/noah-isme/teamchat-api/internal/repository"
)

// AccessGuard resolves the caller's membership in a workspace.
type AccessGuard interface {
	Authorize(ctx context.Context, workspaceID, userID uint) (models.Member, error)
	AuthorizeAdmin(ctx context.Context, workspaceID, userID uint) (models.Member, error)
}

type accessGuard struct {
	members repository.MemberRepository
}

// NewAccessGuard constructs a guard over the member repository.
func NewAccessGuard(members repository.MemberRepository) AccessGuard {
	return &accessGuard{members: members}
}

// Authorize returns the caller's member record or ErrUnauthorized when the
// caller is anonymous or does not belong to the workspace.
func (g *accessGuard) Authorize(ctx context.Context, workspaceID, userID uint) (models.Member, error) {
	if userID == 0 || workspaceID == 0 {
		return models.Member{}, ErrUnauthorized
	}

	member, err := g.members.FindByWorkspaceAndUser(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Member{}, ErrUnauthorized
		}
		return models.Member{}, fmt.Errorf("lookup member: %w", err)
	}

	return member, nil
}

// AuthorizeAdmin additionally requires the admin role.
func (g *accessGuard) AuthorizeAdmin(ctx context.Context, workspaceID, userID uint) (models.Member, error) {
	member, err := g.Authorize(ctx, workspaceID, userID)
	if err != nil {
		return models.Member{}, err
	}
	if !member.IsAdmin() {
		return models.Member{}, ErrUnauthorized
	}
	return member, nil
}
