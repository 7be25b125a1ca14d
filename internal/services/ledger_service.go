package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"registri/internal/amqp"
	"registri/internal/books"
	"registri/internal/core"
)

// EventPublisher announces ledger mutations to downstream consumers.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

// LedgerService writes through to the backend first and then publishes a
// mutation event. A failed publish is logged; the write stands.
type LedgerService struct {
	books.Books
	publisher EventPublisher
}

var _ books.Books = (*LedgerService)(nil)

func NewLedgerService(b books.Books, publisher EventPublisher) *LedgerService {
	return &LedgerService{Books: b, publisher: publisher}
}

func (s *LedgerService) CreateAccount(ctx context.Context, scope core.Scope, a core.Account, openedOn core.Date) (string, error) {
	id, err := s.Books.CreateAccount(ctx, scope, a, openedOn)
	if err != nil {
		return "", fmt.Errorf("create account: %w", err)
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.AccountCreated, scope.TenantID, "", id))
	return id, nil
}

func (s *LedgerService) CreateMovement(ctx context.Context, scope core.Scope, p core.MovementPayload) (string, error) {
	id, err := s.Books.CreateMovement(ctx, scope, p)
	if err != nil {
		return "", fmt.Errorf("create movement: %w", err)
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.MovementCreated, scope.TenantID, id, p.AccountID))
	return id, nil
}

func (s *LedgerService) UpdateMovement(ctx context.Context, scope core.Scope, id string, p core.MovementPayload) error {
	if err := s.Books.UpdateMovement(ctx, scope, id, p); err != nil {
		return fmt.Errorf("update movement: %w", err)
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.MovementUpdated, scope.TenantID, id, p.AccountID))
	return nil
}

func (s *LedgerService) DeleteMovement(ctx context.Context, scope core.Scope, id string) error {
	if err := s.Books.DeleteMovement(ctx, scope, id); err != nil {
		return fmt.Errorf("delete movement: %w", err)
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.MovementDeleted, scope.TenantID, id))
	return nil
}

// CreateTransfer publishes whenever at least one leg was accepted, since a
// partial transfer still changed a ledger.
func (s *LedgerService) CreateTransfer(ctx context.Context, scope core.Scope, outflow, inflow core.MovementPayload) (core.TransferReceipt, error) {
	receipt, err := s.Books.CreateTransfer(ctx, scope, outflow, inflow)

	var accounts []string
	if receipt.OutflowID != "" {
		accounts = append(accounts, outflow.AccountID)
	}
	if receipt.InflowID != "" {
		accounts = append(accounts, inflow.AccountID)
	}
	if len(accounts) > 0 {
		s.publish(ctx, amqp.NewLedgerEvent(amqp.TransferCreated, scope.TenantID, "", accounts...))
	}
	return receipt, err
}

func (s *LedgerService) publish(ctx context.Context, event *amqp.LedgerEvent) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping ledger event", "kind", event.Kind)
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", event.Kind,
			"tenant_id", event.TenantID,
			"movement_id", event.MovementID,
			"error", err)
	}
}

// Close closes the backend and the publisher when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error

	if c, ok := s.Books.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close ledger service: %w", err)
	}
	return nil
}
