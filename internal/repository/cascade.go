package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/teamchat-api/internal/models"
)

// Entities of the ownership graph.
const (
	EntityWorkspace    = "workspace"
	EntityMember       = "member"
	EntityChannel      = "channel"
	EntityConversation = "conversation"
	EntityMessage      = "message"
	EntityReaction     = "reaction"
)

// CascadeRule states that deleting a Parent row deletes every Child row whose
// ForeignKey column references it. The rule is not followed when the walk
// started at one of the SkipFromRoots entities.
type CascadeRule struct {
	Parent        string
	Child         string
	ForeignKey    string
	SkipFromRoots []string
}

func (r CascadeRule) followsFrom(root string) bool {
	for _, skipped := range r.SkipFromRoots {
		if skipped == root {
			return false
		}
	}
	return true
}

// OwnershipGraph is the cascade DAG walked on delete. Thread replies are
// owned by their parent message. Removing a member takes only what that
// member wrote: replies and direct messages written by others stay.
var OwnershipGraph = []CascadeRule{
	{Parent: EntityWorkspace, Child: EntityMember, ForeignKey: "workspace_id"},
	{Parent: EntityWorkspace, Child: EntityChannel, ForeignKey: "workspace_id"},
	{Parent: EntityWorkspace, Child: EntityConversation, ForeignKey: "workspace_id"},
	{Parent: EntityWorkspace, Child: EntityMessage, ForeignKey: "workspace_id"},
	{Parent: EntityWorkspace, Child: EntityReaction, ForeignKey: "workspace_id"},
	{Parent: EntityMember, Child: EntityMessage, ForeignKey: "member_id"},
	{Parent: EntityMember, Child: EntityReaction, ForeignKey: "member_id"},
	{Parent: EntityMember, Child: EntityConversation, ForeignKey: "member_one_id"},
	{Parent: EntityMember, Child: EntityConversation, ForeignKey: "member_two_id"},
	{Parent: EntityChannel, Child: EntityMessage, ForeignKey: "channel_id"},
	{Parent: EntityConversation, Child: EntityMessage, ForeignKey: "conversation_id", SkipFromRoots: []string{EntityMember}},
	{Parent: EntityMessage, Child: EntityReaction, ForeignKey: "message_id"},
	{Parent: EntityMessage, Child: EntityMessage, ForeignKey: "parent_message_id", SkipFromRoots: []string{EntityMember}},
}

var entityModels = map[string]func() interface{}{
	EntityWorkspace:    func() interface{} { return &models.Workspace{} },
	EntityMember:       func() interface{} { return &models.Member{} },
	EntityChannel:      func() interface{} { return &models.Channel{} },
	EntityConversation: func() interface{} { return &models.Conversation{} },
	EntityMessage:      func() interface{} { return &models.Message{} },
	EntityReaction:     func() interface{} { return &models.Reaction{} },
}

// CascadeReport counts deleted rows per entity.
type CascadeReport map[string]int64

// Total returns the number of rows deleted across all entities.
func (r CascadeReport) Total() int64 {
	var total int64
	for _, count := range r {
		total += count
	}
	return total
}

// CascadeGuard runs inside the delete transaction before any row is
// removed. A non-nil error aborts the delete.
type CascadeGuard func(tx *gorm.DB) error

// CascadeRepository deletes rows together with everything they own.
type CascadeRepository interface {
	Delete(ctx context.Context, entity string, ids ...uint) (CascadeReport, error)
	DeleteGuarded(ctx context.Context, guard CascadeGuard, entity string, ids ...uint) (CascadeReport, error)
}

type cascadeRepository struct {
	db    *gorm.DB
	rules []CascadeRule
}

// NewCascadeRepository constructs a cascade deleter over OwnershipGraph.
func NewCascadeRepository(db *gorm.DB) CascadeRepository {
	return &cascadeRepository{db: db, rules: OwnershipGraph}
}

// Delete walks the ownership graph depth-first from the given rows and
// removes children before parents, all in a single transaction.
func (r *cascadeRepository) Delete(ctx context.Context, entity string, ids ...uint) (CascadeReport, error) {
	return r.DeleteGuarded(ctx, nil, entity, ids...)
}

// DeleteGuarded is Delete with a precondition checked in the same transaction.
func (r *cascadeRepository) DeleteGuarded(ctx context.Context, guard CascadeGuard, entity string, ids ...uint) (CascadeReport, error) {
	if _, ok := entityModels[entity]; !ok {
		return nil, fmt.Errorf("unknown cascade entity %q", entity)
	}

	report := CascadeReport{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if guard != nil {
			if err := guard(tx); err != nil {
				return err
			}
		}
		walk := &cascadeWalk{
			tx:      tx,
			root:    entity,
			rules:   r.rules,
			visited: make(map[string]map[uint]struct{}),
			report:  report,
		}
		return walk.delete(entity, ids)
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}

type cascadeWalk struct {
	tx      *gorm.DB
	root    string
	rules   []CascadeRule
	visited map[string]map[uint]struct{}
	report  CascadeReport
}

func (w *cascadeWalk) delete(entity string, ids []uint) error {
	ids = w.claim(entity, ids)
	if len(ids) == 0 {
		return nil
	}

	for _, rule := range w.rules {
		if rule.Parent != entity || !rule.followsFrom(w.root) {
			continue
		}

		var childIDs []uint
		if err := w.tx.Model(entityModels[rule.Child]()).
			Where(rule.ForeignKey+" IN ?", ids).
			Pluck("id", &childIDs).Error; err != nil {
			return fmt.Errorf("collect %s of %s: %w", rule.Child, entity, err)
		}

		if err := w.delete(rule.Child, childIDs); err != nil {
			return err
		}
	}

	result := w.tx.Where("id IN ?", ids).Delete(entityModels[entity]())
	if result.Error != nil {
		return fmt.Errorf("delete %s: %w", entity, result.Error)
	}
	w.report[entity] += result.RowsAffected

	return nil
}

// claim filters out rows already visited and marks the rest.
func (w *cascadeWalk) claim(entity string, ids []uint) []uint {
	seen, ok := w.visited[entity]
	if !ok {
		seen = make(map[uint]struct{})
		w.visited[entity] = seen
	}

	fresh := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, done := seen[id]; done {
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, id)
	}
	return fresh
}
