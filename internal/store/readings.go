package store

import (
	"context"
	"time"

	"emspulse/pkg/contracts/domain"
)

// InsertSamples stores raw readings for one series. Duplicate timestamps
// within a series are overwritten.
func (s *Store) InsertSamples(ctx context.Context, series string, samples []domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				_ = rerr
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO readings (series, ts, value) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			_ = cerr
		}
	}()

	for _, sample := range samples {
		if _, err = stmt.ExecContext(ctx, series, sample.Timestamp.UnixMilli(), sample.Value); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadSeries reads the in-window samples for each named series, preserving
// the requested order so base-series tie-breaking stays deterministic.
func (s *Store) LoadSeries(ctx context.Context, names []string, window domain.Window) ([]domain.SourceSeries, error) {
	result := make([]domain.SourceSeries, 0, len(names))
	for _, name := range names {
		samples, err := s.loadOneSeries(ctx, name, window)
		if err != nil {
			return nil, err
		}
		result = append(result, domain.SourceSeries{Name: name, Samples: samples})
	}
	return result, nil
}

func (s *Store) loadOneSeries(ctx context.Context, name string, window domain.Window) ([]domain.Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, value FROM readings
		 WHERE series = ? AND ts >= ? AND ts <= ?
		 ORDER BY ts ASC`,
		name, window.Start.UnixMilli(), window.End.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			_ = cerr
		}
	}()

	var samples []domain.Sample
	for rows.Next() {
		var ts int64
		var value float64
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, err
		}
		samples = append(samples, domain.Sample{Timestamp: time.UnixMilli(ts).UTC(), Value: value})
	}
	return samples, rows.Err()
}
