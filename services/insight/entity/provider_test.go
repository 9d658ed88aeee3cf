// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package entity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// failingLister always errors, standing in for a down entity store.
type failingLister struct {
	calls atomic.Int32
}

func (f *failingLister) ListKnownCompanies(ctx context.Context) ([]Company, error) {
	f.calls.Add(1)
	return nil, errors.New("entity store unreachable")
}

// countingLister returns a fixed set and counts fetches.
type countingLister struct {
	companies []Company
	calls     atomic.Int32
}

func (c *countingLister) ListKnownCompanies(ctx context.Context) ([]Company, error) {
	c.calls.Add(1)
	return c.companies, nil
}

// memStore is an in-memory SnapshotStore.
type memStore struct {
	saved   []Company
	loadErr error
	saveErr error
}

func (m *memStore) Load(ctx context.Context) ([]Company, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.saved, nil
}

func (m *memStore) Save(ctx context.Context, companies []Company) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = companies
	return nil
}

func TestSnapshotProvider_FetchesAndCaches(t *testing.T) {
	lister := &countingLister{companies: []Company{{ID: "1", Name: "Acme"}}}
	p := NewSnapshotProvider(lister, nil, time.Minute, nil)

	for i := 0; i < 3; i++ {
		got := p.Companies(context.Background())
		if len(got) != 1 || got[0].Name != "Acme" {
			t.Fatalf("snapshot = %+v", got)
		}
	}
	if n := lister.calls.Load(); n != 1 {
		t.Errorf("lister called %d times, want 1 (cache window)", n)
	}
}

func TestSnapshotProvider_InvalidateForcesRefetch(t *testing.T) {
	lister := &countingLister{companies: []Company{{ID: "1", Name: "Acme"}}}
	p := NewSnapshotProvider(lister, nil, time.Minute, nil)

	p.Companies(context.Background())
	p.Invalidate()
	p.Companies(context.Background())

	if n := lister.calls.Load(); n != 2 {
		t.Errorf("lister called %d times, want 2 after invalidation", n)
	}
}

func TestSnapshotProvider_DegradesToEmpty(t *testing.T) {
	lister := &failingLister{}
	p := NewSnapshotProvider(lister, nil, time.Minute, nil)

	got := p.Companies(context.Background())
	if len(got) != 0 {
		t.Errorf("snapshot = %+v, want empty on total failure", got)
	}
}

func TestSnapshotProvider_FallsBackToPersistedSnapshot(t *testing.T) {
	store := &memStore{saved: []Company{{ID: "1", Name: "Acme"}}}
	p := NewSnapshotProvider(&failingLister{}, store, time.Minute, nil)

	got := p.Companies(context.Background())
	if len(got) != 1 || got[0].Name != "Acme" {
		t.Fatalf("snapshot = %+v, want persisted fallback", got)
	}
}

func TestSnapshotProvider_PersistsOnFetch(t *testing.T) {
	store := &memStore{}
	lister := &countingLister{companies: []Company{{ID: "1", Name: "Acme"}}}
	p := NewSnapshotProvider(lister, store, time.Minute, nil)

	p.Companies(context.Background())
	if len(store.saved) != 1 {
		t.Errorf("store.saved = %+v, want fetched snapshot persisted", store.saved)
	}
}

func TestSnapshotProvider_SaveFailureDoesNotFailRequest(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	lister := &countingLister{companies: []Company{{ID: "1", Name: "Acme"}}}
	p := NewSnapshotProvider(lister, store, time.Minute, nil)

	got := p.Companies(context.Background())
	if len(got) != 1 {
		t.Errorf("snapshot = %+v, persistence failure must not drop the fetch", got)
	}
}
