package models

import (
	"time"

	"gorm.io/datatypes"
)

// Message is a rich-text post in a channel, a conversation, or a thread.
// Top-level messages carry exactly one of ChannelID or ConversationID;
// replies also set ParentMessageID and inherit the parent's scope.
type Message struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	WorkspaceID     uint           `gorm:"index;not null" json:"workspace_id"`
	MemberID        uint           `gorm:"index;not null" json:"member_id"`
	Body            datatypes.JSON `json:"body"`
	Image           *string        `gorm:"size:512" json:"image,omitempty"`
	ChannelID       *uint          `gorm:"index:idx_messages_channel_created" json:"channel_id,omitempty"`
	ConversationID  *uint          `gorm:"index:idx_messages_conversation_created" json:"conversation_id,omitempty"`
	ParentMessageID *uint          `gorm:"index:idx_messages_parent_created" json:"parent_message_id,omitempty"`
	CreatedAt       time.Time      `gorm:"index:idx_messages_channel_created;index:idx_messages_conversation_created;index:idx_messages_parent_created" json:"created_at"`
	UpdatedAt       *time.Time     `gorm:"autoCreateTime:false;autoUpdateTime:false" json:"updated_at,omitempty"`
}

// IsReply reports whether the message belongs to a thread.
func (m Message) IsReply() bool {
	return m.ParentMessageID != nil
}

// Reaction is one member's emoji on one message. A member may react with
// several distinct values but never twice with the same value.
type Reaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID uint      `gorm:"index;not null" json:"workspace_id"`
	MessageID   uint      `gorm:"uniqueIndex:idx_reactions_message_member_value;not null" json:"message_id"`
	MemberID    uint      `gorm:"uniqueIndex:idx_reactions_message_member_value;index;not null" json:"member_id"`
	Value       string    `gorm:"uniqueIndex:idx_reactions_message_member_value;size:64;not null" json:"value"`
	CreatedAt   time.Time `json:"created_at"`
}
