package dto

import (
	"time"

	"github.com/noah-isme/teamchat-api/internal/models"
)

// WorkspaceCreateRequest is the payload to create a workspace.
type WorkspaceCreateRequest struct {
	Name string `json:"name" validate:"required,min=3,max=80"`
}

// WorkspaceUpdateRequest renames a workspace.
type WorkspaceUpdateRequest struct {
	Name string `json:"name" validate:"required,min=3,max=80"`
}

// WorkspaceJoinRequest joins a workspace with its join code.
type WorkspaceJoinRequest struct {
	JoinCode string `json:"join_code" validate:"required,len=6,alphanum"`
}

// WorkspaceResponse describes a workspace returned to members.
type WorkspaceResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	UserID    uint      `json:"user_id"`
	JoinCode  string    `json:"join_code"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkspaceInfoResponse is the public join-page view of a workspace.
type WorkspaceInfoResponse struct {
	Name     string `json:"name"`
	IsMember bool   `json:"is_member"`
}

// NewWorkspaceResponse converts a workspace model into a DTO.
func NewWorkspaceResponse(model models.Workspace) WorkspaceResponse {
	return WorkspaceResponse{
		ID:        model.ID,
		Name:      model.Name,
		UserID:    model.UserID,
		JoinCode:  model.JoinCode,
		CreatedAt: model.CreatedAt,
	}
}

// NewWorkspaceResponseSlice converts workspaces into DTOs.
func NewWorkspaceResponseSlice(items []models.Workspace) []WorkspaceResponse {
	out := make([]WorkspaceResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewWorkspaceResponse(item))
	}
	return out
}

// MemberRoleUpdateRequest changes a member's workspace role.
type MemberRoleUpdateRequest struct {
	Role string `json:"role" validate:"required,oneof=admin member"`
}

// MemberResponse describes a member with its hydrated user.
type MemberResponse struct {
	ID          uint          `json:"id"`
	WorkspaceID uint          `json:"workspace_id"`
	UserID      uint          `json:"user_id"`
	Role        string        `json:"role"`
	CreatedAt   time.Time     `json:"created_at"`
	User        *UserResponse `json:"user,omitempty"`
}

// NewMemberResponse converts a member and optional user into a DTO.
func NewMemberResponse(member models.Member, user *models.User) MemberResponse {
	response := MemberResponse{
		ID:          member.ID,
		WorkspaceID: member.WorkspaceID,
		UserID:      member.UserID,
		Role:        member.Role,
		CreatedAt:   member.CreatedAt,
	}
	if user != nil {
		u := NewUserResponse(*user)
		u.Email = ""
		response.User = &u
	}
	return response
}

// ChannelCreateRequest is the payload to create a channel.
type ChannelCreateRequest struct {
	Name string `json:"name" validate:"required,min=3,max=80"`
}

// ChannelUpdateRequest renames a channel.
type ChannelUpdateRequest struct {
	Name string `json:"name" validate:"required,min=3,max=80"`
}

// ChannelResponse describes a channel.
type ChannelResponse struct {
	ID          uint      `json:"id"`
	WorkspaceID uint      `json:"workspace_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewChannelResponse converts a channel model into a DTO.
func NewChannelResponse(model models.Channel) ChannelResponse {
	return ChannelResponse{
		ID:          model.ID,
		WorkspaceID: model.WorkspaceID,
		Name:        model.Name,
		CreatedAt:   model.CreatedAt,
	}
}

// NewChannelResponseSlice converts channels into DTOs.
func NewChannelResponseSlice(items []models.Channel) []ChannelResponse {
	out := make([]ChannelResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewChannelResponse(item))
	}
	return out
}

// ConversationCreateRequest opens (or reopens) a direct conversation with a member.
type ConversationCreateRequest struct {
	MemberID uint `json:"member_id" validate:"required"`
}

// ConversationResponse describes a direct conversation.
type ConversationResponse struct {
	ID          uint      `json:"id"`
	WorkspaceID uint      `json:"workspace_id"`
	MemberOneID uint      `json:"member_one_id"`
	MemberTwoID uint      `json:"member_two_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewConversationResponse converts a conversation model into a DTO.
func NewConversationResponse(model models.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:          model.ID,
		WorkspaceID: model.WorkspaceID,
		MemberOneID: model.MemberOneID,
		MemberTwoID: model.MemberTwoID,
		CreatedAt:   model.CreatedAt,
	}
}
