package dto

import (
	"encoding/json"
	"time"
)

// MessageCreateRequest posts a message to a channel, a conversation, or a thread.
type MessageCreateRequest struct {
	WorkspaceID     uint            `json:"workspace_id" validate:"required"`
	Body            json.RawMessage `json:"body" validate:"required"`
	Image           *string         `json:"image" validate:"omitempty,min=1,max=512"`
	ChannelID       *uint           `json:"channel_id" validate:"omitempty,min=1"`
	ConversationID  *uint           `json:"conversation_id" validate:"omitempty,min=1"`
	ParentMessageID *uint           `json:"parent_message_id" validate:"omitempty,min=1"`
}

// MessageUpdateRequest replaces the body of a message.
type MessageUpdateRequest struct {
	Body json.RawMessage `json:"body" validate:"required"`
}

// MessageListQuery selects one page of messages in exactly one scope.
type MessageListQuery struct {
	ChannelID       *uint  `query:"channel_id"`
	ConversationID  *uint  `query:"conversation_id"`
	ParentMessageID *uint  `query:"parent_message_id"`
	Cursor          string `query:"cursor" validate:"omitempty,max=512"`
	Limit           int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// AuthorSnapshot is the display identity of a message author.
type AuthorSnapshot struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// ReactionSummary groups the reactions sharing one value on one message.
type ReactionSummary struct {
	Value     string `json:"value"`
	Count     int    `json:"count"`
	MemberIDs []uint `json:"member_ids"`
}

// ThreadSummary describes the replies to a parent message.
type ThreadSummary struct {
	Count           int64     `json:"count"`
	LastTimestamp   time.Time `json:"last_timestamp"`
	LastAuthorName  string    `json:"last_author_name"`
	LastAuthorImage string    `json:"last_author_image,omitempty"`
}

// MessageResponse is a message enriched with its author, reactions and thread summary.
type MessageResponse struct {
	ID              uint              `json:"id"`
	WorkspaceID     uint              `json:"workspace_id"`
	MemberID        uint              `json:"member_id"`
	Body            json.RawMessage   `json:"body"`
	Image           string            `json:"image,omitempty"`
	ChannelID       *uint             `json:"channel_id,omitempty"`
	ConversationID  *uint             `json:"conversation_id,omitempty"`
	ParentMessageID *uint             `json:"parent_message_id,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       *time.Time        `json:"updated_at,omitempty"`
	User            AuthorSnapshot    `json:"user"`
	Reactions       []ReactionSummary `json:"reactions"`
	ThreadCount     int64             `json:"thread_count"`
	ThreadTimestamp *time.Time        `json:"thread_timestamp,omitempty"`
	ThreadName      string            `json:"thread_name,omitempty"`
	ThreadImage     string            `json:"thread_image,omitempty"`
}

// MessagePage is one newest-first page of a scope plus its continuation.
type MessagePage struct {
	Items      []MessageResponse `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
	IsDone     bool              `json:"is_done"`
}

// ReactionToggleRequest adds or removes the caller's reaction.
type ReactionToggleRequest struct {
	Value string `json:"value" validate:"required,max=64"`
}

// ReactionToggleResponse reports the outcome of a toggle.
type ReactionToggleResponse struct {
	ReactionID uint `json:"reaction_id"`
	Added      bool `json:"added"`
}
