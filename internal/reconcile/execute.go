package reconcile

import (
	"context"
	"errors"
	"fmt"

	"academy/contentsync/internal/store"
	"academy/contentsync/internal/util"
)

// ErrUnresolvedPlaceholder means a relationship names a placeholder that no
// insert of the plan produced.
var ErrUnresolvedPlaceholder = errors.New("unresolved placeholder id")

// TxRunner opens the transaction a plan is applied in.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(*store.Tx) error) error
}

// Apply executes plan in one transaction and returns the ids the store
// assigned to inserted resources, keyed by their placeholder. Any failure
// rolls the whole plan back.
func Apply(ctx context.Context, runner TxRunner, plan Plan) (map[string]string, error) {
	var assigned map[string]string
	err := runner.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		assigned, err = apply(ctx, tx, plan)
		return err
	})
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

func apply(ctx context.Context, tx *store.Tx, plan Plan) (map[string]string, error) {
	for _, id := range plan.Deletes {
		if err := tx.DeleteResource(ctx, id); err != nil {
			return nil, err
		}
	}

	for _, parentID := range plan.Rebuild {
		if err := tx.DeleteChildRelationships(ctx, parentID); err != nil {
			return nil, err
		}
	}
	for _, id := range plan.Deletes {
		if err := tx.DeleteRelationshipsOf(ctx, id); err != nil {
			return nil, err
		}
	}

	for _, update := range plan.Updates {
		doc, err := tx.FieldDocument(ctx, update.ID)
		if err != nil {
			return nil, fmt.Errorf("update %s: %w", update.OriginalID, err)
		}
		for key, value := range update.Patch {
			doc[key] = value
		}
		if err := tx.UpdateFields(ctx, update.ID, doc); err != nil {
			return nil, fmt.Errorf("update %s: %w", update.OriginalID, err)
		}
	}

	assigned := make(map[string]string, len(plan.Inserts))
	for _, insert := range plan.Inserts {
		id, err := tx.InsertResource(ctx, insert.Kind, insert.Fields)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", insert.OriginalID, err)
		}
		assigned[insert.TempID] = id
	}

	for _, rel := range plan.Relationships {
		rel.ParentID = resolve(assigned, rel.ParentID)
		rel.ChildID = resolve(assigned, rel.ChildID)
		for _, id := range []string{rel.ParentID, rel.ChildID} {
			if util.IsPlaceholderID(id) {
				return nil, fmt.Errorf("%w: %s", ErrUnresolvedPlaceholder, id)
			}
		}
		if err := tx.InsertRelationship(ctx, rel); err != nil {
			return nil, err
		}
	}
	return assigned, nil
}

// resolve maps a placeholder to its real id. Ids without a mapping are
// returned as they are.
func resolve(assigned map[string]string, id string) string {
	if realID, ok := assigned[id]; ok {
		return realID
	}
	return id
}

// Resolved rewrites the plan's original-id assignments through the ids the
// store handed out, giving the mapping written back into the manifest.
func (p Plan) Resolved(assigned map[string]string) map[string]string {
	out := make(map[string]string, len(p.Assigned))
	for originalID, id := range p.Assigned {
		out[originalID] = resolve(assigned, id)
	}
	return out
}
