package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"registri/internal/amqp"
	"registri/internal/core"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
	closed bool
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, e *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func TestLedgerServicePublishesMutations(t *testing.T) {
	b, cassa, banca := newBooks(t)
	pub := &recordingPublisher{}
	svc := NewLedgerService(b, pub)
	ctx := context.Background()

	id, err := svc.CreateMovement(ctx, scope, payload(cassa, 2, core.Inflow, 100))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.UpdateMovement(ctx, scope, id, payload(cassa, 2, core.Inflow, 200)); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteMovement(ctx, scope, id); err != nil {
		t.Fatal(err)
	}
	out := core.MovementPayload{AccountID: cassa, Date: core.NewDate(2024, 1, 3), Type: core.Outflow, Amount: core.Cents(10), SpecialKind: core.Transfer}
	in := out
	in.AccountID, in.Type = banca, core.Inflow
	if _, err := svc.CreateTransfer(ctx, scope, out, in); err != nil {
		t.Fatal(err)
	}

	want := []amqp.EventKind{amqp.MovementCreated, amqp.MovementUpdated, amqp.MovementDeleted, amqp.TransferCreated}
	if len(pub.events) != len(want) {
		t.Fatalf("published %d events, want %d", len(pub.events), len(want))
	}
	for i, k := range want {
		if pub.events[i].Kind != k {
			t.Errorf("event %d = %s, want %s", i, pub.events[i].Kind, k)
		}
		if pub.events[i].TenantID != scope.TenantID {
			t.Errorf("event %d tenant = %q", i, pub.events[i].TenantID)
		}
	}
	if got := pub.events[3].AccountIDs; len(got) != 2 {
		t.Errorf("transfer event should name both accounts, got %v", got)
	}
}

func TestLedgerServiceKeepsWriteWhenPublishFails(t *testing.T) {
	b, cassa, _ := newBooks(t)
	svc := NewLedgerService(b, &recordingPublisher{err: errors.New("broker down")})

	id, err := svc.CreateMovement(context.Background(), scope, payload(cassa, 2, core.Inflow, 100))
	if err != nil {
		t.Fatalf("publish failure must not fail the write: %v", err)
	}
	if id == "" {
		t.Fatal("expected movement id")
	}
}

func TestLedgerServiceDoesNotPublishRejectedWrites(t *testing.T) {
	b, cassa, _ := newBooks(t)
	pub := &recordingPublisher{}
	svc := NewLedgerService(b, pub)

	bad := payload(cassa, 2, core.Inflow, 0)
	if _, err := svc.CreateMovement(context.Background(), scope, bad); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("rejected write published %d events", len(pub.events))
	}
}

func TestLedgerServicePartialTransferPublishesAcceptedLeg(t *testing.T) {
	b, cassa, banca := newBooks(t)
	b.RejectTransferLeg(core.Inflow, errors.New("destination closed"))
	pub := &recordingPublisher{}
	svc := NewLedgerService(b, pub)

	out := core.MovementPayload{AccountID: cassa, Date: core.NewDate(2024, 1, 3), Type: core.Outflow, Amount: core.Cents(10), SpecialKind: core.Transfer}
	in := out
	in.AccountID, in.Type = banca, core.Inflow
	receipt, err := svc.CreateTransfer(context.Background(), scope, out, in)
	if err == nil || receipt.OutflowID == "" {
		t.Fatalf("expected partial receipt with error, got %+v %v", receipt, err)
	}
	if len(pub.events) != 1 || len(pub.events[0].AccountIDs) != 1 || pub.events[0].AccountIDs[0] != cassa {
		t.Errorf("expected one event for the source account, got %+v", pub.events)
	}
}

func TestLedgerService_Close(t *testing.T) {
	t.Run("nil publisher", func(t *testing.T) {
		b, _, _ := newBooks(t)
		if err := NewLedgerService(b, nil).Close(); err != nil {
			t.Fatalf("Close should not fail: %v", err)
		}
	})

	t.Run("closes publisher", func(t *testing.T) {
		b, _, _ := newBooks(t)
		pub := &recordingPublisher{}
		if err := NewLedgerService(b, pub).Close(); err != nil {
			t.Fatal(err)
		}
		if !pub.closed {
			t.Error("publisher should be closed")
		}
	})
}
