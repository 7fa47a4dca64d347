package service

import (
	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/models"
)

// AggregateReactions groups raw reaction rows by value. Groups keep the
// order in which each value is first seen, and each group lists every
// reacting member once.
func AggregateReactions(rows []models.Reaction) []dto.ReactionSummary {
	summaries := make([]dto.ReactionSummary, 0)
	index := make(map[string]int)
	seen := make(map[string]map[uint]struct{})

	for _, row := range rows {
		pos, ok := index[row.Value]
		if !ok {
			pos = len(summaries)
			index[row.Value] = pos
			seen[row.Value] = make(map[uint]struct{})
			summaries = append(summaries, dto.ReactionSummary{Value: row.Value, MemberIDs: []uint{}})
		}

		summaries[pos].Count++
		if _, dup := seen[row.Value][row.MemberID]; dup {
			continue
		}
		seen[row.Value][row.MemberID] = struct{}{}
		summaries[pos].MemberIDs = append(summaries[pos].MemberIDs, row.MemberID)
	}

	return summaries
}

func groupReactionsByMessage(rows []models.Reaction) map[uint][]models.Reaction {
	grouped := make(map[uint][]models.Reaction)
	for _, row := range rows {
		grouped[row.MessageID] = append(grouped[row.MessageID], row)
	}
	return grouped
}
