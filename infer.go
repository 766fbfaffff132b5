package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const rateMatchTolerance = 0.001

// inferGrainFromRate picks the most common grain_type among classified rows
// whose rate_per_quintal is within rateMatchTolerance of rate. Equal counts
// go to the grain with the lowest id. A NULL rate never matches.
func inferGrainFromRate(ctx context.Context, q sqlQueryer, rate decimal.NullDecimal) (string, int, bool, error) {
	if !rate.Valid {
		return "", 0, false, nil
	}

	var (
		grain string
		count int
	)
	err := q.QueryRowContext(ctx, `
		SELECT grain_type, COUNT(*) AS cnt
		FROM sell_transactions
		WHERE grain_type IS NOT NULL
		  AND trim(grain_type) <> ''
		  AND abs(rate_per_quintal - ?) < ?
		GROUP BY grain_type
		ORDER BY cnt DESC, MIN(id) ASC
		LIMIT 1
	`, rate.Decimal.InexactFloat64(), rateMatchTolerance).Scan(&grain, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("query rate candidates for %s: %w", rate.Decimal.String(), err)
	}
	return grain, count, true, nil
}

// inferRemainingChanges runs rate inference for every row still missing a
// grain_type. Each hit is written before the next row is looked at, so rows
// filled earlier in the same pass count as candidates for later ones.
func inferRemainingChanges(ctx context.Context, q sqlQueryer) ([]grainChange, error) {
	log := loggerFromContext(ctx)

	remaining, err := loadEmptyGrainRows(ctx, q)
	if err != nil {
		return nil, err
	}

	var inferred []grainChange
	for _, row := range remaining {
		grain, votes, ok, err := inferGrainFromRate(ctx, q, row.rate)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Debug().Str("id", formatRowID(row.id)).Str("rate", formatNullDecimal(row.rate)).Msg("no rate match")
			continue
		}
		if err := updateGrainType(ctx, q, row.id, grain); err != nil {
			return nil, err
		}
		log.Debug().
			Str("id", formatRowID(row.id)).
			Str("grain_type", grain).
			Int("votes", votes).
			Msg("inferred from rate")
		inferred = append(inferred, grainChange{
			id:          row.id,
			grainType:   grain,
			source:      sourceRate,
			description: row.description,
			rate:        row.rate,
			quantity:    row.quantity,
		})
	}
	return inferred, nil
}
