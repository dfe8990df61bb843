package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

type fakeSweepStore struct {
	rows int
	err  error
}

func (f *fakeSweepStore) SweepExpired(context.Context) (int, error) {
	n := f.rows
	f.rows = 0
	return n, f.err
}

func TestSweepOnce(t *testing.T) {
	store := &fakeSweepStore{rows: 3}
	sw := NewSweeper(store, slog.New(slog.DiscardHandler))

	if err := sw.SweepOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.rows != 0 {
		t.Fatal("expected sweep to run against the store")
	}
}

func TestSweepOncePropagatesStoreError(t *testing.T) {
	errDown := errors.New("database unavailable")
	sw := NewSweeper(&fakeSweepStore{err: errDown}, slog.New(slog.DiscardHandler))

	if err := sw.SweepOnce(context.Background()); !errors.Is(err, errDown) {
		t.Fatalf("expected store error, got %v", err)
	}
}
