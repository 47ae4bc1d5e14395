package timeseries

import (
	"context"
	"log/slog"
	"time"

	"emspulse/pkg/contracts/domain"
)

// Summarize computes per-parameter max, min and mean over the merged rows.
// A value participates only when the row actually carries it; max and min
// keep their originating bucket, and an exact tie keeps the first bucket
// seen. Displayed values are truncated to whole units, not rounded. A
// parameter with zero valid samples logs a warning and yields an empty
// summary, which renders as a placeholder downstream.
func Summarize(ctx context.Context, logger *slog.Logger, rows []domain.MergedRow, baseNames []string) map[string]domain.StatSummary {
	summaries := make(map[string]domain.StatSummary, len(baseNames))

	for _, name := range baseNames {
		var (
			maxVal, minVal float64
			maxAt, minAt   time.Time
			sum            float64
			count          int64
		)

		for _, row := range rows {
			v := row.Values[name]
			if v == nil {
				continue
			}
			if count == 0 || *v > maxVal {
				maxVal, maxAt = *v, row.Bucket
			}
			if count == 0 || *v < minVal {
				minVal, minAt = *v, row.Bucket
			}
			sum += *v
			count++
		}

		if count == 0 {
			logger.WarnContext(ctx, "no valid samples for parameter",
				slog.String("parameter", name),
				slog.Int("rows", len(rows)))
			summaries[name] = domain.StatSummary{}
			continue
		}

		avg := int64(sum / float64(count))
		summaries[name] = domain.StatSummary{
			Max: &domain.Extreme{Value: int64(maxVal), At: maxAt},
			Min: &domain.Extreme{Value: int64(minVal), At: minAt},
			Avg: &avg,
		}
	}

	return summaries
}
