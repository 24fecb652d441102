// Package parser tokenizes uploaded CSV files into raw transaction rows.
// It uses gocsv for struct-based unmarshaling against the fixed header
// Date,Description,Amount,Currency.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// ErrParse tags whole-file tokenizer failures. Unlike per-row schema
// errors, these abort the import.
var ErrParse = errors.New("failed to parse file")

// RawRow is one CSV row before any validation. AmountINR is only populated
// when a row in the import report was pulled from an already-stored record.
type RawRow struct {
	Date        string `csv:"Date" json:"Date"`
	Description string `csv:"Description" json:"Description"`
	Amount      string `csv:"Amount" json:"Amount"`
	Currency    string `csv:"Currency" json:"Currency"`
	AmountINR   string `csv:"-" json:"AmountINR,omitempty"`
}

// Parse decodes an uploaded file into raw rows. A leading UTF-8 byte-order
// mark is stripped; blank lines are skipped. Structural CSV errors (bad
// quoting, ragged records) fail the whole call.
func Parse(fileData []byte) ([]RawRow, error) {
	fileData = stripUTF8BOM(fileData)

	reader := newReader(bytes.NewReader(fileData))

	var rows []RawRow
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	return rows, nil
}

func newReader(in io.Reader) gocsv.CSVReader {
	r := csv.NewReader(in)
	r.TrimLeadingSpace = true
	return r
}

func stripUTF8BOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
