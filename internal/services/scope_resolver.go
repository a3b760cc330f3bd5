package services

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/store"
)

// ScopeMutationResolver applies updates and removals to one instance of a
// recurring series and propagates them to siblings according to the
// caller-supplied scope.
type ScopeMutationResolver struct {
	repo store.Repository
}

func NewScopeMutationResolver(repo store.Repository) *ScopeMutationResolver {
	return &ScopeMutationResolver{repo: repo}
}

// Update patches the named instance and, per scope, its siblings. An item
// without a recurring group always resolves to single-instance scope.
// Returns the named instance after the patch.
func (r *ScopeMutationResolver) Update(ctx context.Context, owner string, id int64, patch core.ItemPatch, scope core.Scope) (*core.Item, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if scope == "" {
		scope = core.ScopeThis
	}

	var updated *core.Item
	err := r.repo.InTx(ctx, func(s store.Store) error {
		item, err := s.ItemByID(ctx, owner, id)
		if err != nil {
			return err
		}
		if patch.Status != nil && !item.Kind.ValidStatus(*patch.Status) {
			return fmt.Errorf("%w: status %q not valid for kind %q", core.ErrInvalidInput, *patch.Status, item.Kind)
		}

		effective := scope
		if item.RecurringGroupID == nil {
			effective = core.ScopeThis
		}

		switch effective {
		case core.ScopeThis:
			if err := s.UpdateItem(ctx, owner, id, patch); err != nil {
				return fmt.Errorf("update instance: %w", err)
			}
		case core.ScopeFuture:
			if err := s.UpdateItem(ctx, owner, id, patch); err != nil {
				return fmt.Errorf("update instance: %w", err)
			}
			month := item.MonthKey
			if _, err := s.UpdateGroup(ctx, owner, *item.RecurringGroupID, &month, patch); err != nil {
				return fmt.Errorf("update future siblings: %w", err)
			}
		case core.ScopeAll:
			if _, err := s.UpdateGroup(ctx, owner, *item.RecurringGroupID, nil, patch); err != nil {
				return fmt.Errorf("update series: %w", err)
			}
		default:
			return fmt.Errorf("%w: unknown scope %q", core.ErrInvalidInput, scope)
		}

		updated, err = s.ItemByID(ctx, owner, id)
		if err != nil {
			return fmt.Errorf("reload instance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Recurring item updated",
		applog.FieldOwner, owner,
		applog.FieldItemID, id,
		applog.FieldScope, string(scope))
	return updated, nil
}

// Remove cancels or deletes the named instance and, per scope, its siblings.
//
//   - this: soft-cancel only. The row stays in place so lazy generation
//     still sees the month as materialized, and the series keeps recurring.
//   - future: stop the series at the named instance (is_recurring off) and
//     hard-delete every strictly later sibling.
//   - all: hard-delete the entire series.
func (r *ScopeMutationResolver) Remove(ctx context.Context, owner string, id int64, scope core.Scope) error {
	if scope == "" {
		scope = core.ScopeThis
	}

	err := r.repo.InTx(ctx, func(s store.Store) error {
		item, err := s.ItemByID(ctx, owner, id)
		if err != nil {
			return err
		}

		effective := scope
		if item.RecurringGroupID == nil {
			effective = core.ScopeThis
		}

		switch effective {
		case core.ScopeThis:
			canceled := core.StatusCanceled
			if err := s.UpdateItem(ctx, owner, id, core.ItemPatch{Status: &canceled}); err != nil {
				return fmt.Errorf("cancel instance: %w", err)
			}
		case core.ScopeFuture:
			// The named instance becomes the last of the series; with the
			// flag off it no longer qualifies as a template next month.
			if err := s.SetItemRecurring(ctx, owner, id, false); err != nil {
				return fmt.Errorf("stop recurrence: %w", err)
			}
			month := item.MonthKey
			if _, err := s.DeleteGroup(ctx, owner, *item.RecurringGroupID, &month); err != nil {
				return fmt.Errorf("delete future siblings: %w", err)
			}
		case core.ScopeAll:
			if _, err := s.DeleteGroup(ctx, owner, *item.RecurringGroupID, nil); err != nil {
				return fmt.Errorf("delete series: %w", err)
			}
		default:
			return fmt.Errorf("%w: unknown scope %q", core.ErrInvalidInput, scope)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Recurring item removed",
		applog.FieldOwner, owner,
		applog.FieldItemID, id,
		applog.FieldScope, string(scope))
	return nil
}
