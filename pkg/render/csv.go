package render

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/ndtl/timereport/pkg/aggregator"
	log "github.com/sirupsen/logrus"
)

const CSVContentType = "text/csv; charset=utf-8"

// CSV exports the tree with the same columns as XLSX. Labels are indented
// with two spaces per level.
func CSV(tree *aggregator.Tree, title string) (string, error) {
	header := make([]string, 0, len(tree.Weeks)+2)
	header = append(header, title)
	for _, w := range tree.Weeks {
		header = append(header, fmt.Sprintf("Week %d (%s)", w.Number, w.Label()))
	}
	header = append(header, "Hours")

	data := make([][]string, 0, 2)
	data = append(data, header)
	for _, row := range Rows(tree) {
		data = append(data, csvRow(row))
	}

	total := Row{Label: "Total", Total: tree.TotalHours()}
	for _, w := range tree.Weeks {
		total.Weeks = append(total.Weeks, tree.Root.WeekHours(w.Number))
	}
	data = append(data, csvRow(total))

	var b bytes.Buffer
	writer := csv.NewWriter(&b)
	for _, row := range data {
		if err := writer.Write(row); err != nil {
			log.Errorf("Error writing to csv: %v", err)
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return "", err
	}

	return b.String(), nil
}

func csvRow(row Row) []string {
	values := make([]string, 0, len(row.Weeks)+2)
	values = append(values, strings.Repeat("  ", row.Depth)+row.Label)
	for _, h := range row.Weeks {
		values = append(values, FormatHours(h))
	}
	return append(values, FormatHours(row.Total))
}
