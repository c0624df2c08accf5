package sorter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
)

// LogHeader is the first row of every audit log.
var LogHeader = []string{"timestamp", "fileName", "originalFolder", "targetFolder", "classification", "reasoning", "status", "error"}

// LogRecord is one parsed audit log row.
type LogRecord struct {
	Timestamp string
	models.SortOutcome
}

// LogFileName names the audit log of a run started at t,
// e.g. process_log_2025-03-01T09-30-00.csv.
func LogFileName(t time.Time) string {
	return "process_log_" + t.UTC().Format("2006-01-02T15-04-05") + ".csv"
}

// EncodeLog renders outcomes as CSV, one row per outcome in order.
func EncodeLog(ts time.Time, outcomes []models.SortOutcome) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(LogHeader); err != nil {
		return nil, err
	}
	stamp := ts.UTC().Format(time.RFC3339)
	for _, o := range outcomes {
		row := []string{stamp, o.FileName, o.OriginalFolder, o.TargetFolder, o.Classification, o.Reasoning, o.Status, o.Error}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to encode audit log: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseLog reads an audit log back. A leading byte order mark is ignored and the
// header row must match LogHeader.
func ParseLog(r io.Reader) ([]LogRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\uFEFF")))
	cr.FieldsPerRecord = len(LogHeader)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("audit log is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log header: %w", err)
	}
	for i, h := range LogHeader {
		if header[i] != h {
			return nil, fmt.Errorf("unexpected audit log column %d: %q", i, header[i])
		}
	}

	records := []LogRecord{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read audit log row: %w", err)
		}
		records = append(records, LogRecord{
			Timestamp: row[0],
			SortOutcome: models.SortOutcome{
				FileName:       row[1],
				OriginalFolder: row[2],
				TargetFolder:   row[3],
				Classification: row[4],
				Reasoning:      row[5],
				Status:         row[6],
				Error:          row[7],
			},
		})
	}
	return records, nil
}
