package store

import (
	"GuardBench/internal/model"
	"GuardBench/internal/netkey"
	"context"
	"fmt"
	"net/netip"
	"testing"
)

// fakeStore returns a fixed allowlist and records the queries it saw.
type fakeStore struct {
	allowlist []netip.Prefix
	err       error
	queries   []AllowlistQuery
}

func (s *fakeStore) Targets(ctx context.Context) ([]Target, error) { return nil, nil }

func (s *fakeStore) TrafficInterval(ctx context.Context, timeStart, window int, location string, dst netip.Prefix) ([]netkey.Entry, error) {
	return nil, nil
}

func (s *fakeStore) Allowlist(ctx context.Context, q AllowlistQuery) ([]netip.Prefix, error) {
	s.queries = append(s.queries, q)
	return s.allowlist, s.err
}

func (s *fakeStore) Close() error { return nil }

func TestFetchMapsConfigurationToQuery(t *testing.T) {
	st := &fakeStore{allowlist: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/24")}}
	fetcher := NewAllowlistFetcher(st)

	cfg := model.DataConfiguration{
		Location:    "ams",
		DstNetwork:  netip.MustParsePrefix("203.0.113.0/24"),
		WindowStart: 7,
		TrainLength: 24,
		MinActive:   4,
		MinPktsAvg:  128,
	}
	nets, err := fetcher.Fetch(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(nets) != 1 {
		t.Fatalf("expected 1 network, got %d", len(nets))
	}

	want := AllowlistQuery{
		TimeStart:   7,
		TrainWindow: 24,
		MinActive:   4,
		MinPktsAvg:  128,
		Location:    "ams",
		DstNetwork:  cfg.DstNetwork,
	}
	if len(st.queries) != 1 || st.queries[0] != want {
		t.Errorf("expected query %+v, got %+v", want, st.queries)
	}
}

func TestFetchEmptyAllowlistIsNotAnError(t *testing.T) {
	fetcher := NewAllowlistFetcher(&fakeStore{})

	cfg := model.DataConfiguration{
		Location:    "ams",
		DstNetwork:  netip.MustParsePrefix("203.0.113.0/24"),
		WindowStart: 1,
	}
	for i := 0; i < 3; i++ {
		nets, err := fetcher.Fetch(context.Background(), cfg)
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if len(nets) != 0 {
			t.Fatalf("expected an empty allowlist, got %v", nets)
		}
	}
	if len(fetcher.warned) != 1 {
		t.Errorf("expected one warned triple, got %d", len(fetcher.warned))
	}
}

func TestFetchPropagatesStoreErrors(t *testing.T) {
	fetcher := NewAllowlistFetcher(&fakeStore{err: fmt.Errorf("connection lost")})
	_, err := fetcher.Fetch(context.Background(), model.DataConfiguration{})
	if err == nil {
		t.Error("expected Fetch to fail")
	}
}
