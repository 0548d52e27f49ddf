package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ascheung/poolbot/internal/domain"
)

// defaultMultipartThreshold is the serialized-payload size above which an
// archive object is uploaded via the multipart manager instead of a single
// PutObject call.
const defaultMultipartThreshold int64 = 32 * 1024 * 1024

// watermarkScanLimit bounds how many recent audit entries are scanned when
// looking up the previous archive cutoff.
const watermarkScanLimit = 500

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// The archiver only requires the query methods it actually calls, not the
// full domain store interfaces. The Postgres stores satisfy these implicitly.
// ---------------------------------------------------------------------------

// LedgerArchiveStore provides read access to ledger entries for archival
// purposes.
type LedgerArchiveStore interface {
	// ListBefore returns all ledger entries recorded strictly before the
	// given cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.LedgerEntry, error)
}

// AuditArchiveStore provides read access to audit entries for archival
// purposes, plus Log so the archival event itself is recorded. List is used
// to recover the previous cutoff from earlier archive events.
type AuditArchiveStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error)
	// ListBefore returns all audit entries recorded strictly before the
	// given cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.AuditEntry, error)
}

// ---------------------------------------------------------------------------
// ArchiveImpl
// ---------------------------------------------------------------------------

// ArchiveImpl implements domain.Archiver by querying the domain stores for
// old records, serializing them to JSONL, and uploading the result to S3.
//
// Each cycle archives only the records between the previous cutoff and the
// current one. The previous cutoff is recovered from the most recent
// archive.* audit event, so a restarted process never re-uploads rows an
// earlier cycle already archived. Objects are partitioned by the month each
// record was created in and named after the cycle's cutoff, so successive
// cycles never overwrite each other.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer domain.BlobWriter
	ledger LedgerArchiveStore
	audit  AuditArchiveStore

	multipartThreshold int64
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, ledger LedgerArchiveStore, audit AuditArchiveStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:             writer,
		ledger:             ledger,
		audit:              audit,
		multipartThreshold: defaultMultipartThreshold,
	}
}

// WithMultipartThreshold overrides the payload size above which uploads go
// through the multipart manager. Must be called before the first archive
// cycle.
func (a *ArchiveImpl) WithMultipartThreshold(n int64) *ArchiveImpl {
	if n > 0 {
		a.multipartThreshold = n
	}
	return a
}

// ArchiveLedger archives ledger entries recorded since the previous cycle's
// cutoff and strictly before the given one. Entries are grouped into one
// JSONL object per calendar month, the archival event is recorded in the
// audit log, and the count of archived records is returned.
func (a *ArchiveImpl) ArchiveLedger(ctx context.Context, before time.Time) (int64, error) {
	mark, err := a.lastCutoff(ctx, "archive.ledger")
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive ledger cutoff lookup: %w", err)
	}

	entries, err := a.ledger.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive ledger query: %w", err)
	}
	entries = dropArchived(entries, mark, func(e domain.LedgerEntry) time.Time { return e.CreatedAt })
	if len(entries) == 0 {
		return 0, nil
	}

	paths, err := uploadByMonth(ctx, a, "ledger", before, entries, func(e domain.LedgerEntry) time.Time { return e.CreatedAt })
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive ledger upload: %w", err)
	}

	count := int64(len(entries))

	if err := a.audit.Log(ctx, "archive.ledger", map[string]any{
		"paths":  paths,
		"count":  count,
		"before": before.UTC().Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive ledger audit log: %w", err)
	}

	return count, nil
}

// ArchiveAudit archives audit entries recorded since the previous cycle's
// cutoff and strictly before the given one, with the same partitioning and
// bookkeeping as ArchiveLedger.
func (a *ArchiveImpl) ArchiveAudit(ctx context.Context, before time.Time) (int64, error) {
	mark, err := a.lastCutoff(ctx, "archive.audit")
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit cutoff lookup: %w", err)
	}

	entries, err := a.audit.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	entries = dropArchived(entries, mark, func(e domain.AuditEntry) time.Time { return e.CreatedAt })
	if len(entries) == 0 {
		return 0, nil
	}

	paths, err := uploadByMonth(ctx, a, "audit", before, entries, func(e domain.AuditEntry) time.Time { return e.CreatedAt })
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit upload: %w", err)
	}

	count := int64(len(entries))

	if err := a.audit.Log(ctx, "archive.audit", map[string]any{
		"paths":  paths,
		"count":  count,
		"before": before.UTC().Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive audit audit log: %w", err)
	}

	return count, nil
}

// lastCutoff returns the cutoff recorded by the most recent audit event of
// the given kind, or the zero time when no cycle has completed yet. Events
// with a missing or malformed cutoff are skipped rather than trusted.
func (a *ArchiveImpl) lastCutoff(ctx context.Context, event string) (time.Time, error) {
	entries, err := a.audit.List(ctx, domain.ListOpts{Limit: watermarkScanLimit})
	if err != nil {
		return time.Time{}, err
	}
	for _, e := range entries {
		if e.Event != event {
			continue
		}
		raw, ok := e.Detail["before"].(string)
		if !ok {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			continue
		}
		return t, nil
	}
	return time.Time{}, nil
}

// upload writes one serialized archive object, switching to the multipart
// manager when the payload exceeds the configured threshold.
func (a *ArchiveImpl) upload(ctx context.Context, path string, buf []byte) error {
	if int64(len(buf)) >= a.multipartThreshold {
		return a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), a.multipartThreshold)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), contentTypeJSONL)
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// dropArchived filters out records created strictly before the previous
// cutoff. Those were uploaded by an earlier cycle.
func dropArchived[T any](records []T, mark time.Time, ts func(T) time.Time) []T {
	if mark.IsZero() {
		return records
	}
	out := records[:0]
	for _, rec := range records {
		if ts(rec).Before(mark) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// uploadByMonth groups records by the calendar month they were created in
// and uploads one JSONL object per month. Returned paths are sorted by month.
func uploadByMonth[T any](ctx context.Context, a *ArchiveImpl, kind string, before time.Time, records []T, ts func(T) time.Time) ([]string, error) {
	byMonth := make(map[string][]T)
	for _, rec := range records {
		month := ts(rec).UTC().Format("2006-01")
		byMonth[month] = append(byMonth[month], rec)
	}

	months := make([]string, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	sort.Strings(months)

	paths := make([]string, 0, len(months))
	for _, month := range months {
		buf, err := marshalJSONL(byMonth[month])
		if err != nil {
			return nil, fmt.Errorf("marshal month %s: %w", month, err)
		}
		path := archivePath(kind, month, before)
		if err := a.upload(ctx, path, buf); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// archivePath builds the S3 key for one archive object. Keys are partitioned
// by the month the records belong to and suffixed with the cycle's cutoff so
// consecutive cycles never collide.
//
//	archive/ledger/2025-07/20250825T060000Z.jsonl
//	archive/audit/2025-08/20250825T060000Z.jsonl
func archivePath(kind, month string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, month, before.UTC().Format("20060102T150405Z"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
