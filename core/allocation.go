package core

import (
	"slices"
	"strings"
)

// CompareLotIDs orders lot ids: purely numeric ids first by numeric value,
// then every other id lexically.
func CompareLotIDs(a, b string) int {
	aNum, bNum := isNumericID(a), isNumericID(b)
	switch {
	case aNum && bNum:
		if c := compareDigits(a, b); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case aNum:
		return -1
	case bNum:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// SortLotIDs returns the ids of results in allocation order.
func (r LotResults) SortLotIDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, CompareLotIDs)
	return ids
}

func isNumericID(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// compareDigits compares two digit strings by value without parsing them,
// so arbitrarily long ids cannot overflow.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// AllocateSingleLot applies the one-lot-per-bidder rule. Lots are visited in
// CompareLotIDs order; each lot goes to its best-ranked qualifier that has
// not already won an earlier lot. When every qualifier of a lot already holds
// another lot, the lot still goes to its top qualifier, so that bidder ends
// up holding two lots. Lots without qualifiers keep no winner.
//
// The input is not modified and the transform is idempotent.
func AllocateSingleLot(results LotResults) LotResults {
	out := make(LotResults, len(results))
	alreadyWon := make(map[string]bool)

	for _, lotID := range results.SortLotIDs() {
		rows := make([]RowResult, len(results[lotID]))
		copy(rows, results[lotID])
		for i := range rows {
			rows[i].IsWinner = false
		}

		awarded := -1
		for i, r := range rows {
			if r.Qualifies && !alreadyWon[r.Participant.Key()] {
				awarded = i
				break
			}
		}
		if awarded < 0 {
			// Every qualifier already won a lot; fall back to the top one.
			for i, r := range rows {
				if r.Qualifies {
					awarded = i
					break
				}
			}
		}
		if awarded >= 0 {
			rows[awarded].IsWinner = true
			alreadyWon[rows[awarded].Participant.Key()] = true
		}
		out[lotID] = rows
	}
	return out
}
