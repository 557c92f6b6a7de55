package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ndtl/timereport/pkg/aggregator"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	defaultSheet  = "Report"
	maxSheetName  = 31
	invalidSheets = `[]:*?/\`
)

// XLSX exports a workbook with one sheet per section. Column A holds labels
// indented by depth, followed by one column per week and the total.
func XLSX(title string, sections []Section) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Warnf("failed to close workbook: %v", err)
		}
	}()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	used := make(map[string]bool)
	for i, section := range sections {
		sheet := uniqueSheetName(section, used)
		if i == 0 {
			err = f.SetSheetName("Sheet1", sheet)
		} else {
			_, err = f.NewSheet(sheet)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create sheet %q: %w", sheet, err)
		}
		if err := writeSheet(f, sheet, title, bold, section.Tree); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// uniqueSheetName derives a valid sheet name from the section caption or
// heading. Excel limits names to 31 characters without []:*?/\.
func uniqueSheetName(section Section, used map[string]bool) string {
	base := section.Caption
	if base == "" {
		base = section.Heading
	}
	base = strings.TrimSpace(strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidSheets, r) {
			return -1
		}
		return r
	}, base))
	if base == "" {
		base = defaultSheet
	}

	name := truncate(base, maxSheetName)
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncate(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func writeSheet(f *excelize.File, sheet string, title string, bold int, tree *aggregator.Tree) error {
	header := []any{title}
	for _, w := range tree.Weeks {
		header = append(header, fmt.Sprintf("Week %d (%s)", w.Number, w.Label()))
	}
	header = append(header, "Hours")
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	lastColumn, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastColumn+"1", bold); err != nil {
		return err
	}

	rowNumber := 2
	for _, row := range Rows(tree) {
		if err := writeRow(f, sheet, rowNumber, row); err != nil {
			return err
		}
		rowNumber++
	}

	total := Row{Label: "Total", Strong: true, Total: tree.TotalHours()}
	for _, w := range tree.Weeks {
		total.Weeks = append(total.Weeks, tree.Root.WeekHours(w.Number))
	}
	if err := writeRow(f, sheet, rowNumber, total); err != nil {
		return err
	}

	return f.SetColWidth(sheet, "A", "A", 48)
}

func writeRow(f *excelize.File, sheet string, rowNumber int, row Row) error {
	values := []any{row.Label}
	for _, h := range row.Weeks {
		values = append(values, h)
	}
	values = append(values, row.Total)

	cell, err := excelize.CoordinatesToCellName(1, rowNumber)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", rowNumber, sheet, err)
	}

	style := excelize.Style{Alignment: &excelize.Alignment{Indent: row.Depth}}
	if row.Strong {
		style.Font = &excelize.Font{Bold: true}
	}
	styleId, err := f.NewStyle(&style)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, styleId)
}
