package report

import (
	"errors"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	marotocore "github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/cloudx-io/opentender/core"
)

var (
	headerBg    = &props.Color{Red: 33, Green: 37, Blue: 41}
	winnerBg    = &props.Color{Red: 217, Green: 234, Blue: 211}
	sectionBg   = &props.Color{Red: 240, Green: 240, Blue: 240}
	mutedColor  = &props.Color{Red: 120, Green: 120, Blue: 120}
	headerColor = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// GeneratePDF renders an evaluation as a printable report: a summary table
// with one line per lot, then the ranked rows of every lot.
func GeneratePDF(title string, ev *core.Evaluation) ([]byte, error) {
	if ev == nil {
		return nil, errors.New("evaluation is nil")
	}
	if title == "" {
		title = "Tender evaluation"
	}

	cfg := config.NewBuilder().
		WithOrientation(orientation.Vertical).
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).
		WithTopMargin(10).
		WithRightMargin(10).
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
			Size:    7,
			Color:   mutedColor,
		}).
		Build()

	m := maroto.New(cfg)

	lotIDs := ev.LotOrder
	if len(lotIDs) == 0 {
		lotIDs = ev.Lots.SortLotIDs()
	}

	addPDFHeader(m, title, ev, len(lotIDs))
	addPDFSummary(m, ev, lotIDs)
	for _, lotID := range lotIDs {
		addPDFLot(m, lotID, ev.Lots[lotID])
	}
	if len(ev.Duplicates) > 0 {
		addPDFDuplicates(m, ev.Duplicates)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return doc.GetBytes(), nil
}

func addPDFHeader(m marotocore.Maroto, title string, ev *core.Evaluation, lots int) {
	m.AddRows(
		row.New(12).Add(
			col.New(12).Add(
				text.New(title, props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Center}),
			),
		),
		row.New(8).Add(
			col.New(6).Add(
				text.New(fmt.Sprintf("Method: %s", ev.Method), props.Text{Size: 9, Align: align.Left, Color: mutedColor}),
			),
			col.New(6).Add(
				text.New(fmt.Sprintf("Lots awarded: %d of %d", ev.WinnerCount(), lots), props.Text{Size: 9, Align: align.Right, Color: mutedColor}),
			),
		),
		row.New(4),
	)
}

func addPDFSummary(m marotocore.Maroto, ev *core.Evaluation, lotIDs []string) {
	addPDFTableHeader(m, []pdfColumn{
		{"Lot", 2}, {"Winner", 4}, {"Amount", 2}, {"Final score", 2}, {"Qualifying", 2},
	})

	for _, lotID := range lotIDs {
		rows := ev.Lots[lotID]
		winner, amount, score := "No winner", "", ""
		var style *props.Cell
		if w, ok := core.Winner(rows); ok {
			winner = w.Participant.Name
			amount = formatAmount(w.Amount)
			score = formatScore(w.FinalScore)
			style = &props.Cell{BackgroundColor: winnerBg}
		}
		addPDFRow(m, style,
			pdfCell{lotID, 2, align.Left},
			pdfCell{winner, 4, align.Left},
			pdfCell{amount, 2, align.Right},
			pdfCell{score, 2, align.Right},
			pdfCell{fmt.Sprintf("%d / %d", len(core.Qualifiers(rows)), len(rows)), 2, align.Center},
		)
	}
	m.AddRows(row.New(6))
}

func addPDFLot(m marotocore.Maroto, lotID string, rows []core.RowResult) {
	m.AddRows(
		row.New(8).Add(
			col.New(12).Add(
				text.New("Lot "+lotID, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Left}),
			).WithStyle(&props.Cell{BackgroundColor: sectionBg}),
		),
	)

	addPDFTableHeader(m, []pdfColumn{
		{"#", 1}, {"Participant", 4}, {"Amount", 2}, {"Tech", 1}, {"Eco", 1}, {"Final", 1}, {"Status", 2},
	})

	for i, r := range rows {
		var style *props.Cell
		if r.IsWinner {
			style = &props.Cell{BackgroundColor: winnerBg}
		}
		name := r.Participant.Name
		if r.Participant.IsOwnCompany {
			name += " (own)"
		}
		addPDFRow(m, style,
			pdfCell{fmt.Sprint(i + 1), 1, align.Center},
			pdfCell{name, 4, align.Left},
			pdfCell{formatAmount(r.Amount), 2, align.Right},
			pdfCell{formatScore(r.TechnicalScore), 1, align.Right},
			pdfCell{formatScore(r.EconomicScore), 1, align.Right},
			pdfCell{formatScore(r.FinalScore), 1, align.Right},
			pdfCell{rowStatus(r), 2, align.Center},
		)
	}
	m.AddRows(row.New(6))
}

func addPDFDuplicates(m marotocore.Maroto, dupes []core.DuplicateOffer) {
	m.AddRows(
		row.New(8).Add(
			col.New(12).Add(
				text.New(fmt.Sprintf("Duplicate offers discarded: %d", len(dupes)), props.Text{Size: 9, Style: fontstyle.Bold}),
			),
		),
	)
	for _, d := range dupes {
		m.AddRows(
			row.New(6).Add(
				col.New(12).Add(
					text.New(fmt.Sprintf("Lot %s, %s: kept %s, discarded %s",
						d.LotID, d.Participant, formatAmount(d.KeptValue), formatAmount(d.DiscardedValue)),
						props.Text{Size: 8, Color: mutedColor}),
				),
			),
		)
	}
}

type pdfColumn struct {
	label string
	size  int
}

type pdfCell struct {
	value string
	size  int
	align align.Type
}

func addPDFTableHeader(m marotocore.Maroto, columns []pdfColumn) {
	headerCell := &props.Cell{BackgroundColor: headerBg}
	cols := make([]marotocore.Col, len(columns))
	for i, c := range columns {
		cols[i] = col.New(c.size).Add(
			text.New(c.label, props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Center, Color: headerColor}),
		).WithStyle(headerCell)
	}
	m.AddRows(row.New(7).Add(cols...))
}

func addPDFRow(m marotocore.Maroto, style *props.Cell, cells ...pdfCell) {
	cols := make([]marotocore.Col, len(cells))
	for i, c := range cells {
		cols[i] = col.New(c.size).Add(text.New(c.value, props.Text{Size: 8, Align: c.align}))
		if style != nil {
			cols[i] = cols[i].WithStyle(style)
		}
	}
	m.AddRows(row.New(6).Add(cols...))
}

func rowStatus(r core.RowResult) string {
	switch {
	case r.IsWinner:
		return "Winner"
	case r.Qualifies:
		return "Qualifies"
	default:
		return "Excluded"
	}
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
