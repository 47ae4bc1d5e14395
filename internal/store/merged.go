package store

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"emspulse/pkg/contracts/domain"
)

// ReplaceWindow materializes merged rows for a window: any prior rows whose
// bucket overlaps the window are deleted first, then the new rows are
// inserted, all in one transaction. Re-running the same merge is idempotent
// with respect to final content.
func (s *Store) ReplaceWindow(ctx context.Context, window domain.Window, rows []domain.MergedRow) error {
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

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM report_data WHERE bucket >= ? AND bucket <= ?`,
		window.Start.UnixMilli(), window.End.UnixMilli()); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO report_data (bucket, param, value) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			_ = cerr
		}
	}()

	for _, row := range rows {
		bucket := row.Bucket.UnixMilli()
		for param, value := range row.Values {
			var v any
			if value != nil {
				v = *value
			}
			if _, err = stmt.ExecContext(ctx, bucket, param, v); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// LoadWindow reads back the materialized rows for a window, one MergedRow
// per bucket, ordered ascending.
func (s *Store) LoadWindow(ctx context.Context, window domain.Window) ([]domain.MergedRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT bucket, param, value FROM report_data
		 WHERE bucket >= ? AND bucket <= ?
		 ORDER BY bucket ASC, param ASC`,
		window.Start.UnixMilli(), window.End.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			_ = cerr
		}
	}()

	byBucket := make(map[int64]*domain.MergedRow)
	var order []int64
	for rows.Next() {
		var bucket int64
		var param string
		var value sql.NullFloat64
		if err := rows.Scan(&bucket, &param, &value); err != nil {
			return nil, err
		}
		row, ok := byBucket[bucket]
		if !ok {
			row = &domain.MergedRow{
				Bucket: time.UnixMilli(bucket).UTC(),
				Values: make(map[string]*float64),
			}
			byBucket[bucket] = row
			order = append(order, bucket)
		}
		if value.Valid {
			v := value.Float64
			row.Values[param] = &v
		} else {
			row.Values[param] = nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(order, func(a, b int) bool { return order[a] < order[b] })
	result := make([]domain.MergedRow, 0, len(order))
	for _, bucket := range order {
		result = append(result, *byBucket[bucket])
	}
	return result, nil
}
