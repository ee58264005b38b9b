package etl

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/BartekS5/subjectmap/pkg/models"
)

// SQLSource reads subject records from MS SQL Server and renders them as the
// same flat document the REDCap export produces, one record per row.
type SQLSource struct {
	DB            *sql.DB
	Query         string
	RecordElement string
	Timeout       time.Duration
}

func (s *SQLSource) Fetch(ctx context.Context) (*models.RawRecordSet, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	rows, err := s.DB.QueryContext(ctx, s.Query)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var records []models.Record
	for rows.Next() {
		columns := make([]interface{}, len(cols))
		columnPointers := make([]interface{}, len(cols))
		for i := range columns {
			columnPointers[i] = &columns[i]
		}
		if err := rows.Scan(columnPointers...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(records), err)
		}
		records = append(records, rowRecord(cols, columns))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	var buf bytes.Buffer
	if err := EncodeRecords(&buf, "records", s.recordElement(), records); err != nil {
		return nil, fmt.Errorf("render records: %w", err)
	}
	return &models.RawRecordSet{Data: buf.Bytes(), Origin: "sql"}, nil
}

func (s *SQLSource) recordElement() string {
	if s.RecordElement == "" {
		return "item"
	}
	return s.RecordElement
}

// rowRecord turns one scanned row into a record. NULL columns become empty
// fields so every record carries the same field names.
func rowRecord(cols []string, vals []interface{}) models.Record {
	rec := models.Record{Fields: make([]models.Field, 0, len(cols))}
	for i, colName := range cols {
		rec.Fields = append(rec.Fields, models.Field{Name: colName, Value: formatColumn(vals[i])})
	}
	return rec
}

func formatColumn(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
