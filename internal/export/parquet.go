package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/sqlpilot/sqlpilot/internal/agent"
)

type ParquetEncodeResult struct {
	Data        []byte
	RecordCount int64
}

// exportRow carries one result record as a JSON payload so result sets with
// arbitrary column shapes fit a single parquet schema.
type exportRow struct {
	RowIndex int64  `parquet:"row_index"`
	RowJSON  string `parquet:"row_json"`
}

func EncodeRecordsToParquet(records []agent.Record) (ParquetEncodeResult, error) {
	if len(records) == 0 {
		return ParquetEncodeResult{}, fmt.Errorf("records are required")
	}

	rows := make([]exportRow, 0, len(records))
	for i, record := range records {
		payload, err := json.Marshal(record)
		if err != nil {
			return ParquetEncodeResult{}, fmt.Errorf("encode record %d: %w", i, err)
		}
		rows = append(rows, exportRow{
			RowIndex: int64(i),
			RowJSON:  string(payload),
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[exportRow](buf)
	if _, err := writer.Write(rows); err != nil {
		return ParquetEncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return ParquetEncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return ParquetEncodeResult{
		Data:        buf.Bytes(),
		RecordCount: int64(len(rows)),
	}, nil
}
