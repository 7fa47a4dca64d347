package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/models"
	"github.com/noah-isme/teamchat-api/internal/repository"
)

// UnknownAuthorName is shown for messages whose author member or user is gone.
const UnknownAuthorName = "Unknown member"

// ObjectURLResolver turns a stored image reference into a fetchable URL.
type ObjectURLResolver interface {
	URL(ctx context.Context, key string) (string, error)
}

// messageHydrator enriches stored messages with authors, reactions and
// thread summaries using one batched query per concern.
type messageHydrator struct {
	messages  repository.MessageRepository
	reactions repository.ReactionRepository
	members   repository.MemberRepository
	users     repository.UserRepository
	resolver  ObjectURLResolver
	logger    zerolog.Logger
}

// hydrate converts rows in order. Thread summaries are only computed when
// withThreads is set and only for top-level rows.
func (h *messageHydrator) hydrate(ctx context.Context, rows []models.Message, withThreads bool) ([]dto.MessageResponse, error) {
	items := make([]dto.MessageResponse, 0, len(rows))
	if len(rows) == 0 {
		return items, nil
	}

	ids := make([]uint, 0, len(rows))
	parents := make([]uint, 0, len(rows))
	memberIDs := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
		memberIDs = append(memberIDs, row.MemberID)
		if withThreads && !row.IsReply() {
			parents = append(parents, row.ID)
		}
	}

	stats, err := h.messages.ThreadStats(ctx, parents)
	if err != nil {
		return nil, fmt.Errorf("load thread stats: %w", err)
	}
	for _, stat := range stats {
		memberIDs = append(memberIDs, stat.Latest.MemberID)
	}

	authors, err := h.authors(ctx, memberIDs)
	if err != nil {
		return nil, err
	}

	reactionRows, err := h.reactions.ListByMessageIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load reactions: %w", err)
	}
	reactions := groupReactionsByMessage(reactionRows)

	for _, row := range rows {
		item := h.toResponse(ctx, row, authorOf(authors, row.MemberID))
		item.Reactions = AggregateReactions(reactions[row.ID])
		if stat, ok := stats[row.ID]; ok {
			applyThreadSummary(&item, summarizeThread(stat, authorOf(authors, stat.Latest.MemberID)))
		}
		items = append(items, item)
	}

	return items, nil
}

// summarize returns the thread summary of parentID or nil when it has no replies.
func (h *messageHydrator) summarize(ctx context.Context, parentID uint) (*dto.ThreadSummary, error) {
	stats, err := h.messages.ThreadStats(ctx, []uint{parentID})
	if err != nil {
		return nil, fmt.Errorf("load thread stats: %w", err)
	}
	stat, ok := stats[parentID]
	if !ok {
		return nil, nil
	}

	authors, err := h.authors(ctx, []uint{stat.Latest.MemberID})
	if err != nil {
		return nil, err
	}
	return summarizeThread(stat, authorOf(authors, stat.Latest.MemberID)), nil
}

// authors resolves member ids to display identities through member then user.
func (h *messageHydrator) authors(ctx context.Context, memberIDs []uint) (map[uint]dto.AuthorSnapshot, error) {
	authors := make(map[uint]dto.AuthorSnapshot, len(memberIDs))
	unique := uniqueIDs(memberIDs)
	if len(unique) == 0 {
		return authors, nil
	}

	members, err := h.members.ListByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("load authors: %w", err)
	}

	userIDs := make([]uint, 0, len(members))
	for _, member := range members {
		userIDs = append(userIDs, member.UserID)
	}
	users, err := h.users.ListByIDs(ctx, uniqueIDs(userIDs))
	if err != nil {
		return nil, fmt.Errorf("load author users: %w", err)
	}

	byID := make(map[uint]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	for _, member := range members {
		user, ok := byID[member.UserID]
		if !ok {
			continue
		}
		authors[member.ID] = dto.AuthorSnapshot{Name: user.Name, Image: user.Image}
	}

	return authors, nil
}

func (h *messageHydrator) toResponse(ctx context.Context, row models.Message, author dto.AuthorSnapshot) dto.MessageResponse {
	return dto.MessageResponse{
		ID:              row.ID,
		WorkspaceID:     row.WorkspaceID,
		MemberID:        row.MemberID,
		Body:            json.RawMessage(row.Body),
		Image:           h.imageURL(ctx, row.Image),
		ChannelID:       row.ChannelID,
		ConversationID:  row.ConversationID,
		ParentMessageID: row.ParentMessageID,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		User:            author,
		Reactions:       []dto.ReactionSummary{},
	}
}

func (h *messageHydrator) imageURL(ctx context.Context, ref *string) string {
	if ref == nil {
		return ""
	}
	key := strings.TrimSpace(*ref)
	if key == "" || h.resolver == nil || isAbsoluteURL(key) {
		return key
	}

	url, err := h.resolver.URL(ctx, key)
	if err != nil {
		h.logger.Warn().Err(err).Str("storage_id", key).Msg("failed to resolve message image")
		return ""
	}
	return url
}

// summarizeThread builds the summary of a thread with at least one reply.
func summarizeThread(stat repository.ThreadStat, lastAuthor dto.AuthorSnapshot) *dto.ThreadSummary {
	if stat.Count == 0 {
		return nil
	}
	return &dto.ThreadSummary{
		Count:           stat.Count,
		LastTimestamp:   stat.Latest.CreatedAt,
		LastAuthorName:  lastAuthor.Name,
		LastAuthorImage: lastAuthor.Image,
	}
}

func applyThreadSummary(item *dto.MessageResponse, summary *dto.ThreadSummary) {
	if summary == nil {
		return
	}
	timestamp := summary.LastTimestamp
	item.ThreadCount = summary.Count
	item.ThreadTimestamp = &timestamp
	item.ThreadName = summary.LastAuthorName
	item.ThreadImage = summary.LastAuthorImage
}

func authorOf(authors map[uint]dto.AuthorSnapshot, memberID uint) dto.AuthorSnapshot {
	if author, ok := authors[memberID]; ok {
		return author
	}
	return dto.AuthorSnapshot{Name: UnknownAuthorName}
}

func isAbsoluteURL(value string) bool {
	return strings.HasPrefix(value, "https://") || strings.HasPrefix(value, "http://")
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
