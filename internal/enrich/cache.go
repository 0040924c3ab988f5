// Package enrich resolves lookup foreign keys on sync records into display
// names. Each lookup kind is read in one bulk query per Resolve call, never
// one row at a time.
package enrich

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/eaur/qbsync/internal/records"
)

// Kind identifies one lookup dimension.
type Kind string

// Lookup dimensions.
const (
	KindCampus      Kind = "campus"
	KindProgram     Kind = "program"
	KindCountry     Kind = "country"
	KindProgramMode Kind = "program_mode"
	KindLevel       Kind = "level"
	KindIntake      Kind = "intake"
)

// AllKinds lists every lookup dimension in a stable order.
func AllKinds() []Kind {
	return []Kind{KindCampus, KindProgram, KindCountry, KindProgramMode, KindLevel, KindIntake}
}

// LookupReader performs one bulk display-name read for a lookup kind.
type LookupReader interface {
	LookupDisplayNames(ctx context.Context, kind Kind, ids []int64) (map[int64]string, error)
}

// Enriched is a record together with its resolved display names. The source
// record is copied, never mutated.
type Enriched struct {
	Record records.Record

	// Names maps each populated lookup dimension to its display name. A
	// missing reference row degrades to the raw id as text.
	Names map[Kind]string

	// Degraded lists the dimensions that fell back because the reference row
	// was missing.
	Degraded []Kind
}

// Name returns the resolved display name for a dimension, or empty.
func (e Enriched) Name(kind Kind) string {
	return e.Names[kind]
}

// Cache resolves lookups for batches of records.
type Cache struct {
	reader LookupReader
}

// NewCache creates an enrichment cache on top of the given reader.
func NewCache(reader LookupReader) *Cache {
	return &Cache{reader: reader}
}

// Resolve enriches all records in one pass: the distinct ids of every
// populated dimension are gathered, each dimension is fetched with a single
// bulk read (dimensions in parallel), and enriched copies are returned keyed
// by record id. A missing reference row is a recorded degradation, not an
// error; the record keeps flowing with the raw id as its display text.
func (c *Cache) Resolve(ctx context.Context, recs []records.Record) (map[int64]Enriched, error) {
	wanted := make(map[Kind]map[int64]struct{})
	for i := range recs {
		for _, kind := range AllKinds() {
			if id := fkFor(&recs[i], kind); id != nil {
				if wanted[kind] == nil {
					wanted[kind] = make(map[int64]struct{})
				}
				wanted[kind][*id] = struct{}{}
			}
		}
	}

	// One job per dimension with its own result slot, written only by that
	// dimension's goroutine. No shared mutable state until the group joins.
	type lookupJob struct {
		kind  Kind
		ids   []int64
		names map[int64]string
	}
	jobs := make([]*lookupJob, 0, len(wanted))
	for kind, idSet := range wanted {
		ids := make([]int64, 0, len(idSet))
		for id := range idSet {
			ids = append(ids, id)
		}
		jobs = append(jobs, &lookupJob{kind: kind, ids: ids})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		g.Go(func() error {
			names, err := c.reader.LookupDisplayNames(gctx, job.kind, job.ids)
			if err != nil {
				return err
			}
			job.names = names
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resolved := make(map[Kind]map[int64]string, len(jobs))
	for _, job := range jobs {
		resolved[job.kind] = job.names
	}

	out := make(map[int64]Enriched, len(recs))
	for i := range recs {
		rec := recs[i]
		enriched := Enriched{
			Record: rec,
			Names:  make(map[Kind]string),
		}
		for _, kind := range AllKinds() {
			id := fkFor(&rec, kind)
			if id == nil {
				continue
			}
			if name, ok := resolved[kind][*id]; ok {
				enriched.Names[kind] = name
				continue
			}
			enriched.Names[kind] = strconv.FormatInt(*id, 10)
			enriched.Degraded = append(enriched.Degraded, kind)
			slog.Warn("lookup row missing, using raw id",
				"kind", string(kind),
				"lookup_id", *id,
				"record_id", rec.ID,
			)
		}
		out[rec.ID] = enriched
	}
	return out, nil
}

func fkFor(rec *records.Record, kind Kind) *int64 {
	switch kind {
	case KindCampus:
		return rec.CampusID
	case KindProgram:
		return rec.ProgramID
	case KindCountry:
		return rec.CountryID
	case KindProgramMode:
		return rec.ProgramModeID
	case KindLevel:
		return rec.LevelID
	case KindIntake:
		return rec.IntakeID
	default:
		return nil
	}
}
