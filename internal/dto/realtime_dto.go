package dto

import "time"

// Change event types pushed to live subscribers.
const (
	EventMessageCreated      = "message.created"
	EventMessageUpdated      = "message.updated"
	EventMessageDeleted      = "message.deleted"
	EventReactionToggled     = "reaction.toggled"
	EventChannelCreated      = "channel.created"
	EventChannelUpdated      = "channel.updated"
	EventChannelDeleted      = "channel.deleted"
	EventMemberJoined        = "member.joined"
	EventMemberUpdated       = "member.updated"
	EventMemberRemoved       = "member.removed"
	EventConversationCreated = "conversation.created"
	EventWorkspaceUpdated    = "workspace.updated"
	EventWorkspaceDeleted    = "workspace.deleted"
)

// ChangeEvent tells subscribers of a workspace which queries to re-run.
type ChangeEvent struct {
	Type            string    `json:"type"`
	WorkspaceID     uint      `json:"workspace_id"`
	ChannelID       *uint     `json:"channel_id,omitempty"`
	ConversationID  *uint     `json:"conversation_id,omitempty"`
	ParentMessageID *uint     `json:"parent_message_id,omitempty"`
	MessageID       *uint     `json:"message_id,omitempty"`
	MemberID        *uint     `json:"member_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`

	// Audience lists the only members allowed to receive the event. It is
	// required for events carrying a ConversationID.
	Audience []uint `json:"-"`
}
