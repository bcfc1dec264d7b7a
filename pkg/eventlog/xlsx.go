package eventlog

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/tracemine/tracemine/internal/model"
)

// ImportXLSX reads a flat Excel event log from the first sheet, applying
// the same column mapping and well-formedness rules as ImportCSV.
func ImportXLSX(ctx context.Context, r io.Reader, cfg ImportConfig) (*model.EventLog, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("eventlog: opening xlsx: %w", err)
	}
	defer xl.Close()

	sheet := xl.GetSheetName(0)
	if sheet == "" {
		sheets := xl.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyInput
		}
		sheet = sheets[0]
	}

	rows, err := xl.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("eventlog: reading sheet %q: %w", sheet, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrEmptyInput
	}
	header, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("eventlog: reading header: %w", err)
	}

	imp, err := newRowImporter(header, cfg)
	if err != nil {
		return nil, err
	}

	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		row, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("eventlog: reading row: %w", err)
		}
		if len(row) == 0 {
			continue
		}
		if err := imp.addRow(row); err != nil {
			return nil, err
		}
	}

	return imp.finish(), nil
}
