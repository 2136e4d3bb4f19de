package services

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fambudget/internal/amqp"
	"fambudget/internal/core"
	"fambudget/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev amqp.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	store      *storage.Store
	events     *recordingPublisher
	ledger     *Ledger
	goals      *Goals
	categories *Categories
	families   *Families
	household  *Household
	directory  *Directory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	var tick atomic.Int64
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store, err := storage.Open(context.Background(), storage.Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "services.db"),
		Now: func() time.Time {
			return base.Add(time.Duration(tick.Add(1)) * time.Second)
		},
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	events := &recordingPublisher{}
	families := NewFamilies(store)
	categories := NewCategories(store)
	return &fixture{
		store:      store,
		events:     events,
		ledger:     NewLedger(store, events),
		goals:      NewGoals(store, events),
		categories: categories,
		families:   families,
		household:  NewHousehold(families, categories),
		directory:  NewDirectory(store),
	}
}

func (f *fixture) user(t *testing.T, name string, balance int64) core.User {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), core.User{
		AuthIdentity:     "identity-" + name,
		DisplayName:      name,
		Email:            name + "@example.com",
		AvailableBalance: core.Cents(balance),
	})
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (f *fixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	return u.AvailableBalance.Cents
}

func (f *fixture) accumulated(t *testing.T, goalID string) int64 {
	t.Helper()
	g, err := f.store.GetGoal(context.Background(), goalID)
	if err != nil {
		t.Fatal(err)
	}
	return g.Accumulated.Cents
}

func mustAmount(t *testing.T, s string) core.Money {
	t.Helper()
	m, err := core.ParseAmount(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return m
}
