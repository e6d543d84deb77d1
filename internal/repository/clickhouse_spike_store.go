package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SpikeWatch/internal/domain/models"
	"SpikeWatch/internal/domain/repository"
)

// ClickHouseSpikeStore persists completed spike episodes and rocket alerts.
type ClickHouseSpikeStore struct {
	db          *sql.DB
	spikeTable  string
	rocketTable string
}

// NewClickHouseSpikeStore creates a SpikeStore over an existing pool.
func NewClickHouseSpikeStore(db *sql.DB, spikeTable, rocketTable string) repository.SpikeStore {
	if spikeTable == "" {
		spikeTable = "spike_history"
	}
	if rocketTable == "" {
		rocketTable = "rocket_alerts"
	}
	return &ClickHouseSpikeStore{db: db, spikeTable: spikeTable, rocketTable: rocketTable}
}

// Init ensures the tables exist (idempotent).
func (s *ClickHouseSpikeStore) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			symbol String,
			start_time DateTime64(3),
			end_time DateTime64(3),
			start_price Float64,
			current_price Float64,
			high_price Float64,
			price_change_pct Float64,
			volume_burst_ratio Float64,
			dollar_volume Float64,
			trade_count UInt32,
			momentum LowCardinality(String),
			duration_seconds Float64,
			end_reason LowCardinality(String)
		) ENGINE = MergeTree() ORDER BY (symbol, start_time)`, s.spikeTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			symbol String,
			ts DateTime64(3),
			price Float64,
			signals String
		) ENGINE = MergeTree() ORDER BY (symbol, ts)`, s.rocketTable),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init spike store: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseSpikeStore) StoreSpike(ctx context.Context, rec *models.SpikeRecord) error {
	q := fmt.Sprintf(`INSERT INTO %s
		(symbol, start_time, end_time, start_price, current_price, high_price,
		 price_change_pct, volume_burst_ratio, dollar_volume, trade_count,
		 momentum, duration_seconds, end_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.spikeTable)
	_, err := s.db.ExecContext(ctx, q,
		rec.Symbol,
		rec.StartTime,
		rec.EndTime,
		rec.StartPrice,
		rec.CurrentPrice,
		rec.HighPrice,
		rec.PriceChangePercent,
		rec.VolumeBurstRatio,
		rec.DollarVolume,
		uint32(rec.TradeCount),
		string(rec.Momentum),
		rec.DurationSeconds,
		string(rec.EndReason),
	)
	return err
}

func (s *ClickHouseSpikeStore) StoreRocket(ctx context.Context, alert *models.RocketAlert) error {
	tags := make([]string, 0, len(alert.Signals))
	for _, t := range alert.Signals {
		tags = append(tags, string(t))
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, ts, price, signals) VALUES (?, ?, ?, ?)", s.rocketTable)
	_, err := s.db.ExecContext(ctx, q, alert.Symbol, alert.Timestamp, alert.Price, strings.Join(tags, ","))
	return err
}

func (s *ClickHouseSpikeStore) QuerySpikes(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.SpikeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	q := fmt.Sprintf(`SELECT symbol, start_time, end_time, start_price, current_price,
		high_price, price_change_pct, volume_burst_ratio, dollar_volume, trade_count,
		momentum, duration_seconds, end_reason
		FROM %s WHERE symbol = ? AND start_time >= ? AND start_time <= ?
		ORDER BY start_time DESC LIMIT ?`, s.spikeTable)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.SpikeRecord
	for rows.Next() {
		var rec models.SpikeRecord
		var count uint32
		var momentum, reason string
		if err := rows.Scan(
			&rec.Symbol,
			&rec.StartTime,
			&rec.EndTime,
			&rec.StartPrice,
			&rec.CurrentPrice,
			&rec.HighPrice,
			&rec.PriceChangePercent,
			&rec.VolumeBurstRatio,
			&rec.DollarVolume,
			&count,
			&momentum,
			&rec.DurationSeconds,
			&reason,
		); err != nil {
			return nil, err
		}
		rec.TradeCount = int(count)
		rec.Momentum = models.Momentum(momentum)
		rec.EndReason = models.SpikeEndReason(reason)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *ClickHouseSpikeStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSpikeStore) Close() error {
	return nil // pool owned by pkg client
}
