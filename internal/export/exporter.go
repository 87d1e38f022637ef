package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sqlpilot/sqlpilot/internal/agent"
	"github.com/sqlpilot/sqlpilot/internal/observability"
	"github.com/sqlpilot/sqlpilot/internal/storage"
)

const parquetContentType = "application/vnd.apache.parquet"

type Request struct {
	Question string
	Query    string
	Records  []agent.Record
}

type Receipt struct {
	Key     string `json:"key"`
	Size    int64  `json:"size_bytes"`
	Records int64  `json:"records"`
	ETag    string `json:"etag,omitempty"`
}

type Exporter struct {
	store  storage.ObjectStore
	logger *slog.Logger
	now    func() time.Time
}

func New(store storage.ObjectStore, logger *slog.Logger) (*Exporter, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Exporter{store: store, logger: logger, now: time.Now}, nil
}

// Export encodes a result set to parquet and writes it to the object store.
func (e *Exporter) Export(ctx context.Context, req Request) (Receipt, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Receipt{}, fmt.Errorf("question is required")
	}
	if len(req.Records) == 0 {
		return Receipt{}, fmt.Errorf("there are no records to export")
	}

	encoded, err := EncodeRecordsToParquet(req.Records)
	if err != nil {
		return Receipt{}, err
	}

	traceID := observability.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = "untraced"
	}
	key, err := storage.BuildExportPath(req.Question, e.now(), traceID)
	if err != nil {
		return Receipt{}, err
	}

	info, err := e.store.Put(ctx, key, bytes.NewReader(encoded.Data), int64(len(encoded.Data)),
		storage.PutOptions{ContentType: parquetContentType})
	if err != nil {
		return Receipt{}, fmt.Errorf("store export: %w", err)
	}

	e.logger.InfoContext(ctx, "exported result set",
		slog.String("key", info.Key),
		slog.String("query", req.Query),
		slog.Int64("records", encoded.RecordCount),
		slog.Int64("size_bytes", info.Size),
	)
	observability.ObserveExport(encoded.RecordCount)

	return Receipt{
		Key:     info.Key,
		Size:    info.Size,
		Records: encoded.RecordCount,
		ETag:    info.ETag,
	}, nil
}
