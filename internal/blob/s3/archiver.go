package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/cryptowallet/internal/domain"
)

// PriceHistorySource lists price history recorded in [after, before).
type PriceHistorySource interface {
	ListBetween(ctx context.Context, after, before time.Time) ([]domain.PriceHistoryRecord, error)
}

// archiveEvent is the audit event written after each export. Its "before"
// detail is the cutoff the next export starts from.
const archiveEvent = "archive.price_history"

// PriceHistoryArchive implements domain.Archiver. Each export covers the
// records between the previous export's cutoff and the new one, written as
// JSONL and recorded in the audit log. Records are never deleted from the
// database here.
type PriceHistoryArchive struct {
	writer  domain.BlobWriter
	history PriceHistorySource
	audit   domain.AuditStore
}

// NewPriceHistoryArchive creates a PriceHistoryArchive.
func NewPriceHistoryArchive(writer domain.BlobWriter, history PriceHistorySource, audit domain.AuditStore) *PriceHistoryArchive {
	return &PriceHistoryArchive{writer: writer, history: history, audit: audit}
}

// Compile-time interface check.
var _ domain.Archiver = (*PriceHistoryArchive)(nil)

// ArchivePriceHistory uploads the records not yet exported and recorded
// before the cutoff to archive/price_history/YYYY-MM-DD.jsonl and returns how
// many were written.
func (a *PriceHistoryArchive) ArchivePriceHistory(ctx context.Context, before time.Time) (int64, error) {
	after, err := a.lastCutoff(ctx)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive price history watermark: %w", err)
	}
	if !after.Before(before) {
		return 0, nil
	}

	records, err := a.history.ListBetween(ctx, after, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive price history query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive price history marshal: %w", err)
	}

	path := archivePath("price_history", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive price history upload: %w", err)
	}

	count := int64(len(records))
	detail := map[string]any{
		"path":   path,
		"count":  count,
		"before": before.UTC().Format(time.RFC3339Nano),
	}
	if !after.IsZero() {
		detail["after"] = after.Format(time.RFC3339Nano)
	}
	if err := a.audit.Log(ctx, archiveEvent, detail); err != nil {
		return count, fmt.Errorf("s3blob: archive price history audit log: %w", err)
	}
	return count, nil
}

// lastCutoff returns the cutoff of the most recent export, or the zero time
// when nothing has been exported yet.
func (a *PriceHistoryArchive) lastCutoff(ctx context.Context) (time.Time, error) {
	entries, err := a.audit.List(ctx, domain.ListOpts{Event: archiveEvent, Limit: 1})
	if err != nil {
		return time.Time{}, err
	}
	if len(entries) == 0 {
		return time.Time{}, nil
	}
	raw, _ := entries[0].Detail["before"].(string)
	before, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("audit entry %d: parse cutoff %q: %w", entries[0].ID, raw, err)
	}
	return before.UTC(), nil
}

// archivePath is the object key of an export, stamped with the cutoff day.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format(time.DateOnly))
}

// marshalJSONL encodes records as newline-delimited JSON.
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
