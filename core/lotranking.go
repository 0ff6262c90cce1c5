package core

import (
	"cmp"
	"slices"
)

// RankLot orders a lot's scored rows and marks the winner.
//
// Ordering:
//  1. Qualifying rows first
//  2. Among qualifiers: ascending amount for LowestPrice; descending final
//     score, then ascending amount for the point methods
//  3. Non-qualifying rows by ascending amount
//  4. Participant name breaks any remaining tie
//
// The first qualifying row, if any, becomes the winner. The input slice is
// not modified.
func RankLot(rows []RowResult, method Method) []RowResult {
	ranked := make([]RowResult, len(rows))
	copy(ranked, rows)
	for i := range ranked {
		ranked[i].IsWinner = false
	}

	slices.SortStableFunc(ranked, func(a, b RowResult) int {
		return compareRows(a, b, method)
	})

	if len(ranked) > 0 && ranked[0].Qualifies {
		ranked[0].IsWinner = true
	}
	return ranked
}

func compareRows(a, b RowResult, method Method) int {
	if a.Qualifies != b.Qualifies {
		if a.Qualifies {
			return -1
		}
		return 1
	}

	if a.Qualifies && method != LowestPrice {
		// Descending final score.
		if c := cmp.Compare(b.FinalScore, a.FinalScore); c != 0 {
			return c
		}
	}

	if c := cmp.Compare(a.Amount, b.Amount); c != 0 {
		return c
	}
	return compareNames(a.Participant.Name, b.Participant.Name)
}

// Winner returns the winning row of a lot, if any.
func Winner(rows []RowResult) (RowResult, bool) {
	for _, r := range rows {
		if r.IsWinner {
			return r, true
		}
	}
	return RowResult{}, false
}

// Qualifiers returns the qualifying rows in ranked order.
func Qualifiers(rows []RowResult) []RowResult {
	out := make([]RowResult, 0, len(rows))
	for _, r := range rows {
		if r.Qualifies {
			out = append(out, r)
		}
	}
	return out
}
