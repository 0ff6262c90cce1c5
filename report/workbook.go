package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/cloudx-io/opentender/core"
)

const (
	summarySheet  = "Summary"
	maxSheetName  = 31
	lotHeaderRow  = 4
	lotFirstRow   = lotHeaderRow + 1
	summaryHeader = 4
)

var (
	summaryColumns = []string{"Lot", "Winner", "Own company", "Amount", "Final score", "Qualifying", "Offers"}
	summaryWidths  = []float64{12, 40, 12, 18, 14, 12, 10}
	lotColumns     = []string{"#", "Participant", "Own company", "Amount", "Technical", "Economic", "Final", "Qualifies", "Winner"}
	lotWidths      = []float64{6, 40, 12, 18, 12, 12, 12, 11, 9}
)

type styles struct {
	title, subtitle, header, row, winner, excluded int
}

// GenerateWorkbook renders an evaluation as an xlsx workbook: a summary sheet
// with one line per lot, followed by one sheet per lot with its ranked rows.
// Lots appear in allocation order.
func GenerateWorkbook(title string, ev *core.Evaluation) ([]byte, error) {
	if ev == nil {
		return nil, errors.New("evaluation is nil")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}

	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	lotIDs := ev.LotOrder
	if len(lotIDs) == 0 {
		lotIDs = ev.Lots.SortLotIDs()
	}

	if err := writeSummary(f, st, title, ev, lotIDs); err != nil {
		return nil, err
	}

	used := map[string]bool{strings.ToLower(summarySheet): true}
	for _, lotID := range lotIDs {
		name := lotSheetName(lotID, used)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet for lot %s: %w", lotID, err)
		}
		if err := writeLot(f, st, name, lotID, ev.Lots[lotID]); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

func writeSummary(f *excelize.File, st styles, title string, ev *core.Evaluation, lotIDs []string) error {
	if err := setWidths(f, summarySheet, summaryWidths); err != nil {
		return err
	}

	lastCol := columnName(len(summaryColumns))
	if title == "" {
		title = "Tender evaluation"
	}
	if err := f.MergeCell(summarySheet, "A1", lastCol+"1"); err != nil {
		return fmt.Errorf("merge title: %w", err)
	}
	f.SetCellValue(summarySheet, "A1", sanitizeExcelCell(title))
	f.SetCellStyle(summarySheet, "A1", lastCol+"1", st.title)

	f.SetCellValue(summarySheet, "A2", fmt.Sprintf("Method: %s", ev.Method))
	f.SetCellStyle(summarySheet, "A2", "A2", st.subtitle)
	f.SetCellValue(summarySheet, "D2", fmt.Sprintf("Lots awarded: %d of %d", ev.WinnerCount(), len(lotIDs)))
	f.SetCellStyle(summarySheet, "D2", "D2", st.subtitle)

	if err := writeHeader(f, summarySheet, summaryHeader, summaryColumns, st.header); err != nil {
		return err
	}

	row := summaryHeader + 1
	for _, lotID := range lotIDs {
		rows := ev.Lots[lotID]
		r := fmt.Sprint(row)

		f.SetCellValue(summarySheet, "A"+r, sanitizeExcelCell(lotID))
		style := st.row
		if w, ok := core.Winner(rows); ok {
			f.SetCellValue(summarySheet, "B"+r, sanitizeExcelCell(w.Participant.Name))
			f.SetCellValue(summarySheet, "C"+r, yesNo(w.Participant.IsOwnCompany))
			f.SetCellValue(summarySheet, "D"+r, w.Amount)
			f.SetCellValue(summarySheet, "E"+r, w.FinalScore)
		} else {
			f.SetCellValue(summarySheet, "B"+r, "No winner")
			style = st.excluded
		}
		f.SetCellValue(summarySheet, "F"+r, len(core.Qualifiers(rows)))
		f.SetCellValue(summarySheet, "G"+r, len(rows))
		f.SetCellStyle(summarySheet, "A"+r, lastCol+r, style)
		row++
	}

	if len(ev.Duplicates) > 0 {
		row++
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("Duplicate offers discarded: %d", len(ev.Duplicates)))
		f.SetCellStyle(summarySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), st.subtitle)
		for _, d := range ev.Duplicates {
			row++
			f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), sanitizeExcelCell(d.LotID))
			f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), sanitizeExcelCell(d.Participant))
			f.SetCellValue(summarySheet, fmt.Sprintf("D%d", row), d.KeptValue)
			f.SetCellValue(summarySheet, fmt.Sprintf("E%d", row), d.DiscardedValue)
		}
	}
	return nil
}

func writeLot(f *excelize.File, st styles, sheet, lotID string, rows []core.RowResult) error {
	if err := setWidths(f, sheet, lotWidths); err != nil {
		return err
	}

	lastCol := columnName(len(lotColumns))
	f.SetCellValue(sheet, "A1", sanitizeExcelCell("Lot "+lotID))
	f.SetCellStyle(sheet, "A1", "A1", st.title)
	f.SetCellValue(sheet, "A2", fmt.Sprintf("Offers: %d, qualifying: %d", len(rows), len(core.Qualifiers(rows))))
	f.SetCellStyle(sheet, "A2", "A2", st.subtitle)

	if err := writeHeader(f, sheet, lotHeaderRow, lotColumns, st.header); err != nil {
		return err
	}

	for i, r := range rows {
		row := fmt.Sprint(lotFirstRow + i)
		values := []any{
			i + 1,
			sanitizeExcelCell(r.Participant.Name),
			yesNo(r.Participant.IsOwnCompany),
			r.Amount,
			r.TechnicalScore,
			r.EconomicScore,
			r.FinalScore,
			yesNo(r.Qualifies),
			yesNo(r.IsWinner),
		}
		for c, v := range values {
			f.SetCellValue(sheet, columnName(c+1)+row, v)
		}

		style := st.row
		switch {
		case r.IsWinner:
			style = st.winner
		case !r.Qualifies:
			style = st.excluded
		}
		f.SetCellStyle(sheet, "A"+row, lastCol+row, style)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, row int, headers []string, style int) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		f.SetCellValue(sheet, cell, h)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), row)
	if err != nil {
		return fmt.Errorf("header cell: %w", err)
	}
	return f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), last, style)
}

func setWidths(f *excelize.File, sheet string, widths []float64) error {
	for i, w := range widths {
		col := columnName(i + 1)
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("set col width %s: %w", col, err)
		}
	}
	return nil
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error

	if st.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}}); err != nil {
		return st, fmt.Errorf("create title style: %w", err)
	}
	if st.subtitle, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Size: 11}}); err != nil {
		return st, fmt.Errorf("create subtitle style: %w", err)
	}

	// Column header: bold, white text, charcoal background, centered.
	st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorders(),
	})
	if err != nil {
		return st, fmt.Errorf("create header style: %w", err)
	}

	if st.row, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Size: 10}, Border: thinBorders()}); err != nil {
		return st, fmt.Errorf("create row style: %w", err)
	}

	st.winner, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 10},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#D9EAD3"}, Pattern: 1},
		Border: thinBorders(),
	})
	if err != nil {
		return st, fmt.Errorf("create winner style: %w", err)
	}

	st.excluded, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Size: 10, Color: "#888888"},
		Border: thinBorders(),
	})
	if err != nil {
		return st, fmt.Errorf("create excluded style: %w", err)
	}
	return st, nil
}

// lotSheetName builds a unique, valid sheet name for a lot.
func lotSheetName(lotID string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, lotID)
	base := truncateRunes("Lot "+clean, maxSheetName)
	// excelize rejects names ending in a single quote; "Lot " covers the start.
	if strings.HasSuffix(base, "'") {
		base = strings.TrimSuffix(base, "'") + "_"
	}

	name := base
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func columnName(col int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return name
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// sanitizeExcelCell prevents formula injection by prefixing dangerous leading
// characters with a single quote.
func sanitizeExcelCell(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}

// thinBorders returns thin borders on all four sides.
func thinBorders() []excelize.Border {
	sides := []string{"left", "top", "bottom", "right"}
	borders := make([]excelize.Border, len(sides))
	for i, side := range sides {
		borders[i] = excelize.Border{
			Type:  side,
			Color: "#000000",
			Style: 1, // thin
		}
	}
	return borders
}
