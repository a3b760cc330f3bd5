// Package services implements the finance engine: lazy recurrence
// generation, scope-based series mutations, the debt installment lifecycle
// and monthly KPI aggregation.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/store"
)

// RecurrenceGenerator lazily materializes the current month's instances of
// recurring series the first time any read touches the month.
type RecurrenceGenerator struct {
	repo store.Repository
}

func NewRecurrenceGenerator(repo store.Repository) *RecurrenceGenerator {
	return &RecurrenceGenerator{repo: repo}
}

// EnsureGenerated creates the target month's instance for every recurring
// series that has an instance in the previous month and none in the target
// month yet, returning how many instances it created. Safe to call any
// number of times: the existence check plus the storage unique index
// guarantee at most one instance per series per month.
func (g *RecurrenceGenerator) EnsureGenerated(ctx context.Context, owner string, month core.MonthKey) (int, error) {
	if strings.TrimSpace(owner) == "" {
		return 0, fmt.Errorf("%w: empty owner id", core.ErrInvalidInput)
	}
	if err := month.Validate(); err != nil {
		return 0, err
	}

	previous := month.Prev()
	created := 0

	err := g.repo.InTx(ctx, func(s store.Store) error {
		templates, err := s.RecurringTemplates(ctx, owner, previous)
		if err != nil {
			return fmt.Errorf("load recurring templates: %w", err)
		}

		for _, tmpl := range templates {
			_, err := s.ItemByGroupAndMonth(ctx, owner, *tmpl.RecurringGroupID, month)
			if err == nil {
				continue // already materialized
			}
			if !errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("check existing instance: %w", err)
			}

			instance := materialize(tmpl, month)
			inserted, err := s.InsertItem(ctx, &instance)
			if err != nil {
				return fmt.Errorf("insert generated instance: %w", err)
			}
			if inserted {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if created > 0 {
		slog.InfoContext(ctx, "Materialized recurring instances",
			applog.FieldOwner, owner,
			applog.FieldMonth, month.String(),
			"created", created)
	}
	return created, nil
}

// materialize copies the template fields of a previous-month instance into
// a fresh instance for the target month. Status resets to the kind's initial
// state; a canceled template still propagates, since cancellation is scoped
// to the month it happened in.
func materialize(tmpl core.Item, month core.MonthKey) core.Item {
	return core.Item{
		OwnerID:          tmpl.OwnerID,
		Kind:             tmpl.Kind,
		Name:             tmpl.Name,
		Category:         tmpl.Category,
		AmountCents:      tmpl.AmountCents,
		DueDay:           tmpl.DueDay,
		MonthKey:         month,
		Status:           tmpl.Kind.InitialStatus(),
		IsRecurring:      true,
		RecurringGroupID: tmpl.RecurringGroupID,
		Currency:         tmpl.Currency,
	}
}
