// Package store provides the client side of the aggregated traffic store:
// pre-aggregated per-window traffic tables and the precomputed allowlist,
// both produced by the external ingestion pipeline.
package store

import (
	"GuardBench/internal/config"
	"GuardBench/internal/netkey"
	"context"
	"fmt"
	"net/netip"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Target is one (location, destination) pair with aggregated data available.
type Target struct {
	Location   string
	DstNetwork netip.Prefix
}

// AllowlistQuery identifies one exact allowlist combination.
type AllowlistQuery struct {
	TimeStart   int
	TrainWindow int
	MinActive   int
	MinPktsAvg  int
	Location    string
	DstNetwork  netip.Prefix
}

// Store is the read interface the evaluation engine consumes. The aggregated
// tables themselves are owned by the ingestion pipeline.
type Store interface {
	// Targets lists every (location, destination) combination present in
	// the traffic_interval table, ordered by location then destination.
	Targets(ctx context.Context) ([]Target, error)
	// TrafficInterval returns the average packet rate per source network
	// for one (window start, window length, location, destination), as a
	// sorted, normalized entry slice.
	TrafficInterval(ctx context.Context, timeStart, window int, location string, dst netip.Prefix) ([]netkey.Entry, error)
	// Allowlist returns the approved source networks for one exact
	// parameter combination, sorted and normalized. An empty result is a
	// valid "no data" response, never an error.
	Allowlist(ctx context.Context, q AllowlistQuery) ([]netip.Prefix, error)
	Close() error
}

// clickhouseStore implements Store against ClickHouse.
type clickhouseStore struct {
	conn clickhouse.Conn
}

// NewClickHouseStore connects to ClickHouse and verifies the connection.
func NewClickHouseStore(cfg config.StoreConfig) (Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		MaxOpenConns: cfg.MaxOpenConns,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return &clickhouseStore{conn: conn}, nil
}

func (s *clickhouseStore) Targets(ctx context.Context) ([]Target, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT location, iprange_dst
		FROM traffic_interval
		ORDER BY location, iprange_dst`)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	var targets []Target
	for rows.Next() {
		var location, dst string
		if err := rows.Scan(&location, &dst); err != nil {
			return nil, fmt.Errorf("failed to scan target row: %w", err)
		}
		prefix, err := netip.ParsePrefix(dst)
		if err != nil {
			return nil, fmt.Errorf("target destination %q: %w", dst, err)
		}
		// The evaluation covers IPv4 anycast destinations only.
		if !prefix.Addr().Is4() {
			continue
		}
		prefix, err = netkey.Normalize(prefix)
		if err != nil {
			return nil, fmt.Errorf("target destination %q: %w", dst, err)
		}
		targets = append(targets, Target{Location: location, DstNetwork: prefix})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read target rows: %w", err)
	}
	return targets, nil
}

func (s *clickhouseStore) TrafficInterval(ctx context.Context, timeStart, window int, location string, dst netip.Prefix) ([]netkey.Entry, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT iprange_src, pkts_avg
		FROM traffic_interval
		WHERE time_start = ?
		  AND train_window = ?
		  AND location = ?
		  AND iprange_dst = ?`,
		int32(timeStart), int32(window), location, dst.String())
	if err != nil {
		return nil, fmt.Errorf("traffic interval for time_start %d, train_window %d, location %s, iprange_dst %s: %w",
			timeStart, window, location, dst, err)
	}
	defer rows.Close()

	var entries []netkey.Entry
	for rows.Next() {
		var src string
		var pktsAvg float64
		if err := rows.Scan(&src, &pktsAvg); err != nil {
			return nil, fmt.Errorf("failed to scan traffic interval row: %w", err)
		}
		prefix, err := parseSource(src)
		if err != nil {
			return nil, fmt.Errorf("traffic interval source: %w", err)
		}
		entries = append(entries, netkey.Entry{Net: prefix, Rate: pktsAvg})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("traffic interval for time_start %d, train_window %d, location %s, iprange_dst %s: %w",
			timeStart, window, location, dst, err)
	}
	netkey.SortEntries(entries)
	return entries, nil
}

func (s *clickhouseStore) Allowlist(ctx context.Context, q AllowlistQuery) ([]netip.Prefix, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT iprange_src
		FROM allowlist
		WHERE time_start = ?
		  AND train_window = ?
		  AND active_min = ?
		  AND pkts_min = ?
		  AND location = ?
		  AND iprange_dst = ?`,
		int32(q.TimeStart), int32(q.TrainWindow), int32(q.MinActive), int32(q.MinPktsAvg),
		q.Location, q.DstNetwork.String())
	if err != nil {
		return nil, fmt.Errorf("allowlist for time_start %d, train_window %d, active_min %d, pkts_min %d, location %s, iprange_dst %s: %w",
			q.TimeStart, q.TrainWindow, q.MinActive, q.MinPktsAvg, q.Location, q.DstNetwork, err)
	}
	defer rows.Close()

	var nets []netip.Prefix
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("failed to scan allowlist row: %w", err)
		}
		prefix, err := parseSource(src)
		if err != nil {
			return nil, fmt.Errorf("allowlist source: %w", err)
		}
		nets = append(nets, prefix)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("allowlist for time_start %d, train_window %d, active_min %d, pkts_min %d, location %s, iprange_dst %s: %w",
			q.TimeStart, q.TrainWindow, q.MinActive, q.MinPktsAvg, q.Location, q.DstNetwork, err)
	}
	netkey.SortPrefixes(nets)
	return nets, nil
}

func (s *clickhouseStore) Close() error {
	return s.conn.Close()
}

// parseSource parses a source network column value and normalizes it so the
// merge-join sees canonical keys only.
func parseSource(s string) (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%q: %w", s, err)
	}
	return netkey.Normalize(prefix)
}
