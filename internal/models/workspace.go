package models

import "time"

// Member roles within a workspace.
const (
	MemberRoleAdmin  = "admin"
	MemberRoleMember = "member"
)

// Workspace is the root tenant grouping members, channels and conversations.
type Workspace struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:80;not null" json:"name"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	JoinCode  string    `gorm:"size:16;not null" json:"join_code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Member binds a user to a workspace with a workspace-scoped role.
type Member struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID uint      `gorm:"uniqueIndex:idx_members_workspace_user;not null" json:"workspace_id"`
	UserID      uint      `gorm:"uniqueIndex:idx_members_workspace_user;index;not null" json:"user_id"`
	Role        string    `gorm:"size:16;not null;default:member" json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsAdmin reports whether the member holds the admin role.
func (m Member) IsAdmin() bool {
	return m.Role == MemberRoleAdmin
}

// Channel is a named message stream inside a workspace.
type Channel struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID uint      `gorm:"index;not null" json:"workspace_id"`
	Name        string    `gorm:"size:80;not null" json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Conversation is a direct-message pairing of two members. The pair is
// stored with the lower member id first so each pair maps to one row.
type Conversation struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID uint      `gorm:"uniqueIndex:idx_conversations_pair;not null" json:"workspace_id"`
	MemberOneID uint      `gorm:"uniqueIndex:idx_conversations_pair;index;not null" json:"member_one_id"`
	MemberTwoID uint      `gorm:"uniqueIndex:idx_conversations_pair;index;not null" json:"member_two_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConversationPair orders two member ids the way conversations store them.
func ConversationPair(memberA, memberB uint) (uint, uint) {
	if memberB < memberA {
		return memberB, memberA
	}
	return memberA, memberB
}

// Involves reports whether the member takes part in the conversation.
func (c Conversation) Involves(memberID uint) bool {
	return c.MemberOneID == memberID || c.MemberTwoID == memberID
}
