package catalog

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"pantry-backend/internal/apperr"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// spreadsheet column order
var importColumns = []string{"code", "name", "tags", "ingredients", "calories", "protein", "fat", "carbs"}

type RowError struct {
	Row     int    `json:"row"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type ImportReport struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Failed  []RowError `json:"failed"`
}

// ImportXLSX reads the first sheet of a workbook and runs every row through
// CreateOrUpdate. A header row is detected by a "code" cell in column A.
// Tags and ingredients cells are separated by commas or semicolons.
func (s *Store) ImportXLSX(ctx context.Context, r io.Reader) (*ImportReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Validation(apperr.Field("file", "could not read workbook"))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Validation(apperr.Field("file", "workbook has no sheets"))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperr.Validation(apperr.Field("file", "could not read sheet %q", sheets[0]))
	}

	start := 0
	if len(rows) > 0 && len(rows[0]) > 0 && strings.EqualFold(strings.TrimSpace(rows[0][0]), "code") {
		start = 1
	}

	report := &ImportReport{Failed: []RowError{}}
	for i := start; i < len(rows); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rowNum := i + 1
		raw, err := rowPayload(rows[i])
		if err != nil {
			report.Failed = append(report.Failed, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		if raw == nil {
			report.Skipped++
			continue
		}

		code, _ := raw["code"].(string)
		_, created, err := s.CreateOrUpdate(ctx, raw)
		if err != nil {
			if e, ok := apperr.As(err); ok && e.Kind == apperr.KindUnavailable {
				return nil, err
			}
			s.log.Warn("import row failed", zap.Int("row", rowNum), zap.String("code", code), zap.Error(err))
			report.Failed = append(report.Failed, RowError{Row: rowNum, Code: code, Message: err.Error()})
			continue
		}
		if created {
			report.Created++
		} else {
			report.Updated++
		}
	}
	return report, nil
}

// rowPayload converts a spreadsheet row into a product document. Blank rows
// yield nil.
func rowPayload(row []string) (map[string]any, error) {
	raw := map[string]any{}
	for i, col := range importColumns {
		if i >= len(row) {
			break
		}
		cell := strings.TrimSpace(row[i])
		if cell == "" {
			continue
		}
		switch col {
		case "code", "name":
			raw[col] = cell
		case "tags", "ingredients":
			parts := strings.FieldsFunc(cell, func(r rune) bool { return r == ',' || r == ';' })
			items := make([]any, 0, len(parts))
			for _, p := range parts {
				items = append(items, p)
			}
			raw[col] = items
		default:
			v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", "."), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: %q is not a number", col, cell)
			}
			raw[col] = v
		}
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}
