package export

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/classcheck/internal/domain"
)

const (
	elementsSheet = "Elements"
	summarySheet  = "Summary"
	taxonomySheet = "Taxonomy"
)

var (
	elementHeaders  = []any{"elemGUID", "elemID", "elemType", "classGUID", "classType", "classSysGUID"}
	summaryHeaders  = []any{"classType", "name", "elements"}
	taxonomyHeaders = []any{"guid", "code", "name", "description", "parentGUID", "depth"}
)

// LabelCount is the number of elements sharing one classification label.
type LabelCount struct {
	Label string
	Name  string
	Count int
}

// summarize counts elements per label, largest first. Ties sort by label.
func summarize(elements []domain.Element, items []domain.ClassificationItem) []LabelCount {
	names := make(map[string]string, len(items))
	for _, item := range items {
		if _, ok := names[item.ID]; !ok {
			names[item.ID] = item.Name
		}
	}

	counts := make(map[string]int)
	for _, e := range elements {
		counts[e.ClassificationLabel]++
	}

	out := make([]LabelCount, 0, len(counts))
	for label, count := range counts {
		out = append(out, LabelCount{Label: label, Name: names[label], Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// buildWorkbook lays out the snapshot on three sheets. The caller closes the file.
func buildWorkbook(elements []domain.Element, items []domain.ClassificationItem, summary []LabelCount) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", elementsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	rows := make([][]any, 0, len(elements))
	for _, e := range elements {
		rows = append(rows, []any{
			e.GUID.String(),
			e.ID,
			e.Type,
			optionalGUID(e.ClassificationGUID),
			e.ClassificationLabel,
			optionalGUID(e.ClassificationSystemGUID),
		})
	}
	if err := writeSheet(f, elementsSheet, elementHeaders, rows); err != nil {
		f.Close()
		return nil, err
	}

	rows = rows[:0]
	for _, c := range summary {
		rows = append(rows, []any{c.Label, c.Name, c.Count})
	}
	if err := writeSheet(f, summarySheet, summaryHeaders, rows); err != nil {
		f.Close()
		return nil, err
	}

	rows = rows[:0]
	for _, item := range items {
		rows = append(rows, []any{
			item.GUID.String(),
			item.ID,
			item.Name,
			item.Description,
			optionalGUID(item.ParentGUID),
			item.Depth,
		})
	}
	if err := writeSheet(f, taxonomySheet, taxonomyHeaders, rows); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}

// writeSheet streams headers and rows into sheet, creating it when missing.
func writeSheet(f *excelize.File, sheet string, headers []any, rows [][]any) error {
	if idx, err := f.GetSheetIndex(sheet); err != nil {
		return fmt.Errorf("lookup sheet %s: %w", sheet, err)
	} else if idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open sheet %s: %w", sheet, err)
	}
	if err := sw.SetRow("A1", headers); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet %s: %w", sheet, err)
	}
	return nil
}

func optionalGUID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
