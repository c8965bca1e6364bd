package campaign

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportToExcel renders the metrics and analytics of c as an xlsx workbook.
func ExportToExcel(c *Campaign) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	summary := [][]any{
		{"Campaign", c.Name},
		{"Status", string(c.Status)},
		{"Recipients", len(c.Recipients)},
		{"Sent", c.Metrics.Sent},
		{"Delivered", c.Metrics.Delivered},
		{"Opened", c.Metrics.Opened},
		{"Clicked", c.Metrics.Clicked},
	}
	if c.SentAt != nil {
		summary = append(summary, []any{"Sent At (UTC)", c.SentAt.UTC().Format(time.RFC3339)})
	}

	if err := f.SetSheetName("Sheet1", "Metrics"); err != nil {
		return nil, "", err
	}
	if err := writeRows(f, "Metrics", []string{"Field", "Value"}, summary, headerStyle); err != nil {
		return nil, "", err
	}

	for _, sheet := range []struct {
		name   string
		header string
		counts CounterMap
	}{
		{"Devices", "Device", c.Analytics.Devices},
		{"Geos", "Country", c.Analytics.Geos},
	} {
		if _, err := f.NewSheet(sheet.name); err != nil {
			return nil, "", err
		}
		if err := writeRows(f, sheet.name, []string{sheet.header, "Count"}, counterRows(sheet.counts), headerStyle); err != nil {
			return nil, "", err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("campaign_%s_%s.xlsx", c.ID.Hex(), time.Now().UTC().Format("20060102"))
	return buf.Bytes(), filename, nil
}

func writeRows(f *excelize.File, sheet string, header []string, rows [][]any, headerStyle int) error {
	for i, col := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}
	for r, row := range rows {
		for i, v := range row {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// counterRows orders by count descending, then key.
func counterRows(m CounterMap) [][]any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})

	rows := make([][]any, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []any{k, m[k]})
	}
	return rows
}
