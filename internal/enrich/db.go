package enrich

import (
	"context"
	"fmt"

	"github.com/eaur/qbsync/internal/db/sqlc"
)

type dbReader struct {
	queries *sqlc.Queries
}

// NewDBReader creates a LookupReader backed by the reference tables. Each
// call issues exactly one ANY(ids) query for the requested kind.
func NewDBReader(queries *sqlc.Queries) LookupReader {
	return &dbReader{queries: queries}
}

func (r *dbReader) LookupDisplayNames(ctx context.Context, kind Kind, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))

	switch kind {
	case KindCampus:
		rows, err := r.queries.GetCampusesByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load campuses: %w", err)
		}
		for _, row := range rows {
			names[row.ID] = row.DisplayName
		}
	case KindProgram:
		rows, err := r.queries.GetProgramsByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load programs: %w", err)
		}
		for _, row := range rows {
			names[row.ID] = row.DisplayName
		}
	case KindCountry:
		rows, err := r.queries.GetCountriesByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load countries: %w", err)
		}
		for _, row := range rows {
			names[row.ID] = row.DisplayName
		}
	case KindProgramMode:
		rows, err := r.queries.GetProgramModesByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load program modes: %w", err)
		}
		for _, row := range rows {
			names[row.ID] = row.DisplayName
		}
	case KindLevel:
		rows, err := r.queries.GetLevelsByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load levels: %w", err)
		}
		for _, row := range rows {
			names[row.ID] = row.DisplayName
		}
	case KindIntake:
		rows, err := r.queries.GetIntakesByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load intakes: %w", err)
		}
		for _, row := range rows {
			names[row.ID] = row.DisplayName
		}
	default:
		return nil, fmt.Errorf("unknown lookup kind: %s", kind)
	}

	return names, nil
}
