package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/eaur/qbsync/internal/db/sqlc"
	"github.com/eaur/qbsync/internal/records"
)

type dbRecordStore struct {
	queries *sqlc.Queries
}

// NewDBRecordStore creates the database-backed record store. The claim query
// uses FOR UPDATE SKIP LOCKED, so concurrent engines partition the claimable
// set instead of blocking each other.
func NewDBRecordStore(queries *sqlc.Queries) RecordStore {
	return &dbRecordStore{queries: queries}
}

func (s *dbRecordStore) CountByStatus(ctx context.Context, kind records.EntityKind) (map[records.SyncStatus]int64, error) {
	rows, err := s.queries.CountRecordsByStatus(ctx, sqlc.EntityKind(kind))
	if err != nil {
		return nil, err
	}
	counts := make(map[records.SyncStatus]int64, len(rows))
	for _, row := range rows {
		counts[records.SyncStatus(row.SyncStatus)] = row.Count
	}
	return counts, nil
}

func (s *dbRecordStore) ListUnsynced(ctx context.Context, kind records.EntityKind, limit, offset int) ([]records.Record, error) {
	rows, err := s.queries.ListUnsyncedRecords(ctx, sqlc.ListUnsyncedRecordsParams{
		EntityKind: sqlc.EntityKind(kind),
		Limit:      int32(limit),
		Offset:     int32(offset),
	})
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (s *dbRecordStore) Claim(ctx context.Context, kind records.EntityKind, limit int) ([]records.Record, error) {
	rows, err := s.queries.ClaimSyncRecords(ctx, sqlc.ClaimSyncRecordsParams{
		EntityKind: sqlc.EntityKind(kind),
		Limit:      int32(limit),
	})
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (s *dbRecordStore) ClaimOne(ctx context.Context, kind records.EntityKind, id int64) (*records.Record, error) {
	row, err := s.queries.ClaimSyncRecord(ctx, sqlc.ClaimSyncRecordParams{
		EntityKind: sqlc.EntityKind(kind),
		ID:         id,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%d", ErrRecordNotFound, kind, id)
		}
		return nil, err
	}
	rec := fromRow(row)
	return &rec, nil
}

func (s *dbRecordStore) MarkSynced(ctx context.Context, id int64, remoteID, pushedBy string) error {
	return s.queries.MarkRecordSynced(ctx, sqlc.MarkRecordSyncedParams{
		ID:       id,
		RemoteID: pgtype.Text{String: remoteID, Valid: remoteID != ""},
		PushedBy: pgtype.Text{String: pushedBy, Valid: pushedBy != ""},
	})
}

func (s *dbRecordStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	return s.queries.MarkRecordFailed(ctx, sqlc.MarkRecordFailedParams{
		ID:        id,
		LastError: pgtype.Text{String: errMsg, Valid: errMsg != ""},
	})
}

func (s *dbRecordStore) Release(ctx context.Context, ids []int64) error {
	return s.queries.ReleaseSyncRecords(ctx, ids)
}

func fromRows(rows []sqlc.SyncRecord) []records.Record {
	out := make([]records.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out
}

func fromRow(row sqlc.SyncRecord) records.Record {
	rec := records.Record{
		ID:               row.ID,
		Kind:             records.EntityKind(row.EntityKind),
		TrackingID:       row.TrackingID.String,
		RegNo:            row.RegNo.String,
		FirstName:        row.FirstName.String,
		MiddleName:       row.MiddleName.String,
		LastName:         row.LastName.String,
		Sex:              row.Sex.String,
		NationalID:       row.NationalID.String,
		Phone:            row.Phone.String,
		Email:            row.Email.String,
		ReferenceNo:      row.ReferenceNo.String,
		Amount:           row.Amount.Float64,
		CustomerRemoteID: row.CustomerRemoteID.String,
		InvoiceRemoteID:  row.InvoiceRemoteID.String,
		CampusID:         int8Ptr(row.CampusID),
		ProgramID:        int8Ptr(row.ProgramID),
		CountryID:        int8Ptr(row.CountryID),
		ProgramModeID:    int8Ptr(row.ProgramModeID),
		LevelID:          int8Ptr(row.LevelID),
		IntakeID:         int8Ptr(row.IntakeID),
		Status:           records.SyncStatus(row.SyncStatus),
		LastError:        row.LastError.String,
		PushedBy:         row.PushedBy.String,
		TxnDate:          timePtr(row.TxnDate),
		DueDate:          timePtr(row.DueDate),
		PushedAt:         timePtr(row.PushedAt),
	}
	if row.RemoteID.Valid {
		remoteID := row.RemoteID.String
		rec.RemoteID = &remoteID
	}
	return rec
}

func int8Ptr(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	val := v.Int64
	return &val
}

func timePtr(v pgtype.Timestamptz) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

type dbAuditSink struct {
	queries *sqlc.Queries
}

// NewDBAuditSink creates the database-backed audit sink. Writes are
// best-effort: a failed audit insert is logged and never fails a sync.
func NewDBAuditSink(queries *sqlc.Queries) AuditSink {
	return &dbAuditSink{queries: queries}
}

func (s *dbAuditSink) Record(ctx context.Context, entry AuditEntry) {
	err := s.queries.InsertAuditLog(ctx, sqlc.InsertAuditLogParams{
		BatchID:    entry.BatchID,
		EntityKind: sqlc.EntityKind(entry.Kind),
		LocalID:    pgtype.Int8{Int64: entry.LocalID, Valid: true},
		Action:     entry.Action,
		Status:     entry.Status,
		ErrorMsg:   pgtype.Text{String: entry.Error, Valid: entry.Error != ""},
		DurationMs: pgtype.Int8{Int64: entry.Duration.Milliseconds(), Valid: true},
	})
	if err != nil {
		slog.Error("failed to write audit log", "record_id", entry.LocalID, "error", err)
	}
}
