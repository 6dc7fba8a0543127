package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/straddlebot/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"

	// Payloads above this size go through the multipart uploader.
	multipartThreshold = 8 * 1024 * 1024
)

// positionRecord is one archived JSONL line: a closed position with the
// trades and swaps attributed to it.
type positionRecord struct {
	Position   domain.Position          `json:"position"`
	Trades     []domain.Trade           `json:"trades"`
	Swaps      []domain.SwapTransaction `json:"swaps"`
	ArchivedAt time.Time                `json:"archived_at"`
}

// ArchiveImpl implements domain.Archiver. It reads closed positions from the
// primary store, serializes them to JSONL and uploads the file.
//
// Archived rows are not deleted from the primary store. Trade and swap
// foreign keys make position deletion a separate, explicit step.
type ArchiveImpl struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	stores domain.Stores
	logger *slog.Logger
	now    func() time.Time
}

// NewArchiver creates an archiver. reader may be nil, in which case an
// existing object at the target path is overwritten.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, stores domain.Stores, logger *slog.Logger) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		reader: reader,
		stores: stores,
		logger: logger.With(slog.String("component", "archiver")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ArchivePositions uploads every position closed before the cutoff to
// archive/positions/YYYY-MM-DD.jsonl, records the run in the audit log and
// returns the number of archived positions. A run whose target object
// already exists is skipped and reports zero.
func (a *ArchiveImpl) ArchivePositions(ctx context.Context, before time.Time) (int64, error) {
	positions, err := a.stores.Positions.ListClosedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive positions query: %w", err)
	}
	if len(positions) == 0 {
		return 0, nil
	}

	path := archivePath("positions", before)
	if a.reader != nil {
		exists, err := a.reader.Exists(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive positions exists: %w", err)
		}
		if exists {
			a.logger.InfoContext(ctx, "archiver: archive already present", slog.String("path", path))
			return 0, nil
		}
	}

	archivedAt := a.now()
	records := make([]positionRecord, 0, len(positions))
	for _, p := range positions {
		trades, err := a.stores.Trades.ListByPosition(ctx, p.ID)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive trades for %s: %w", p.ID, err)
		}
		swaps, err := a.stores.Swaps.ListByPosition(ctx, p.ID)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive swaps for %s: %w", p.ID, err)
		}
		records = append(records, positionRecord{Position: p, Trades: trades, Swaps: swaps, ArchivedAt: archivedAt})
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive positions marshal: %w", err)
	}

	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive positions upload: %w", err)
	}

	count := int64(len(records))
	a.logger.InfoContext(ctx, "archiver: positions archived",
		slog.String("path", path),
		slog.Int64("count", count),
		slog.Int("bytes", len(buf)),
	)

	if err := a.stores.Audit.Log(ctx, "archive.positions", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive positions audit log: %w", err)
	}
	return count, nil
}

// archivePath builds the object key for an archive file, partitioned by the
// cutoff date.
//
//	archive/positions/2026-01-31.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01-02"))
}

// marshalJSONL serialises records as newline-delimited JSON.
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

var _ domain.Archiver = (*ArchiveImpl)(nil)
