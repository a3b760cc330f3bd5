package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/store"
)

// FinanceService is the surface the HTTP layer calls. It wires the four
// engine components together, runs lazy generation ahead of every read, and
// publishes finance events after successful writes. Event publishing is
// best-effort: a publish failure never fails the request.
type FinanceService struct {
	repo       store.Repository
	generator  *RecurrenceGenerator
	resolver   *ScopeMutationResolver
	debts      *DebtLifecycle
	aggregator *SummaryAggregator
	amqpClient *amqp.Client
}

func NewFinanceService(repo store.Repository, amqpClient *amqp.Client) *FinanceService {
	return &FinanceService{
		repo:       repo,
		generator:  NewRecurrenceGenerator(repo),
		resolver:   NewScopeMutationResolver(repo),
		debts:      NewDebtLifecycle(repo),
		aggregator: NewSummaryAggregator(repo),
		amqpClient: amqpClient,
	}
}

// EnsureGenerated materializes the month's recurring instances.
func (s *FinanceService) EnsureGenerated(ctx context.Context, owner string, month core.MonthKey) error {
	created, err := s.generator.EnsureGenerated(ctx, owner, month)
	if err != nil {
		return err
	}
	if created > 0 {
		ev := amqp.NewFinanceEvent(amqp.EventInstancesGenerated, owner, 0, month.String())
		ev.Count = created
		s.publish(ctx, ev)
	}
	return nil
}

// CreateItem persists the user-created first instance of an item. A
// recurring item gets a fresh series id; lazy generation produces every
// later instance from it.
func (s *FinanceService) CreateItem(ctx context.Context, item *core.Item) error {
	if item.Status == "" {
		item.Status = item.Kind.InitialStatus()
	}
	if item.Currency == "" {
		item.Currency = "EUR"
	}
	if err := item.Validate(); err != nil {
		return err
	}
	if item.IsRecurring && item.RecurringGroupID == nil {
		groupID := uuid.NewString()
		item.RecurringGroupID = &groupID
	}

	inserted, err := s.repo.InsertItem(ctx, item)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	if !inserted {
		return fmt.Errorf("%w: instance already exists for this month", core.ErrPreconditionFailed)
	}

	slog.InfoContext(ctx, "Item created",
		applog.FieldOwner, item.OwnerID,
		applog.FieldItemID, item.ID,
		"kind", string(item.Kind),
		applog.FieldMonth, item.MonthKey.String(),
		"recurring", item.IsRecurring)
	s.publish(ctx, amqp.NewFinanceEvent(amqp.EventItemCreated, item.OwnerID, item.ID, item.MonthKey.String()))
	return nil
}

// ListItems runs lazy generation for the month, then returns its items.
func (s *FinanceService) ListItems(ctx context.Context, owner string, month core.MonthKey, kind core.ItemKind) ([]core.Item, error) {
	if kind != "" && !kind.Valid() {
		return nil, core.ErrInvalidKind
	}
	if err := s.EnsureGenerated(ctx, owner, month); err != nil {
		return nil, err
	}
	return s.repo.ItemsForMonth(ctx, owner, month, kind)
}

// UpdateRecurring applies a scoped update and returns the named instance.
func (s *FinanceService) UpdateRecurring(ctx context.Context, owner string, id int64, patch core.ItemPatch, scope core.Scope) (*core.Item, error) {
	item, err := s.resolver.Update(ctx, owner, id, patch, scope)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, amqp.NewFinanceEvent(amqp.EventItemUpdated, owner, id, item.MonthKey.String()))
	return item, nil
}

// RemoveRecurring applies a scoped removal.
func (s *FinanceService) RemoveRecurring(ctx context.Context, owner string, id int64, scope core.Scope) error {
	if err := s.resolver.Remove(ctx, owner, id, scope); err != nil {
		return err
	}
	s.publish(ctx, amqp.NewFinanceEvent(amqp.EventItemRemoved, owner, id, ""))
	return nil
}

// CreateDebt registers a tracked liability.
func (s *FinanceService) CreateDebt(ctx context.Context, debt *core.Debt) error {
	if err := s.debts.CreateDebt(ctx, debt); err != nil {
		return err
	}
	s.publish(ctx, amqp.NewFinanceEvent(amqp.EventDebtCreated, debt.OwnerID, debt.ID, ""))
	return nil
}

// ListDebts returns the owner's debts.
func (s *FinanceService) ListDebts(ctx context.Context, owner string) ([]core.Debt, error) {
	return s.debts.ListDebts(ctx, owner)
}

// PayInstallment records one installment payment in the given month.
func (s *FinanceService) PayInstallment(ctx context.Context, owner string, debtID int64, month core.MonthKey) (*core.Debt, error) {
	debt, err := s.debts.PayInstallment(ctx, owner, debtID, month)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, amqp.NewFinanceEvent(amqp.EventDebtPaid, owner, debtID, month.String()))
	return debt, nil
}

// NegotiateDebt installs an installment plan on a debt.
func (s *FinanceService) NegotiateDebt(ctx context.Context, owner string, debtID int64, plan core.NegotiationPlan) (*core.Debt, error) {
	debt, err := s.debts.Negotiate(ctx, owner, debtID, plan)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, amqp.NewFinanceEvent(amqp.EventDebtNegotiated, owner, debtID, ""))
	return debt, nil
}

// GetSummary runs lazy generation, then derives the month's KPI block.
func (s *FinanceService) GetSummary(ctx context.Context, owner string, month core.MonthKey) (*core.FinanceSummary, error) {
	if err := s.EnsureGenerated(ctx, owner, month); err != nil {
		return nil, err
	}
	return s.aggregator.Summarize(ctx, owner, month)
}

func (s *FinanceService) publish(ctx context.Context, ev *amqp.FinanceEvent) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishFinanceEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish finance event",
			"type", ev.Type,
			applog.FieldOwner, ev.OwnerID,
			"error", err)
	}
}

// Close releases the service's storage and messaging connections.
func (s *FinanceService) Close() error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close finance service: %v", errs)
	}
	return nil
}
