package core

import (
	"fmt"
)

// Evaluate executes the bid evaluation pipeline for a whole tender:
// offer matrix → qualification → scoring → ranking → single-lot allocation.
// The CLI and the evaluation service both go through it.
//
// Parameters:
//   - tender: lots, our own bids and the third-party bidders
//   - params: scoring method, its knobs, technical scores and disqualifications
//
// Returns:
//   - Evaluation with the ranked rows per lot and any duplicate offers found
//     while building the matrix
//   - an error wrapping ErrUnknownMethod or ErrInvalidParameter when params
//     are unusable; nothing is computed in that case
//
// Processing flow:
//  1. Validate parameters
//  2. Build the offer matrix from the tender
//  3. Qualify and score each lot's offers with the selected method
//  4. Rank each lot and mark its winner
//  5. Apply the one-lot-per-bidder rule when enabled
//
// Inputs are never modified.
func Evaluate(tender Tender, params EvaluationParameters) (*Evaluation, error) {
	// Step 1: Validate parameters
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("evaluate tender %q: %w", tender.ID, err)
	}

	// Step 2: Build the offer matrix
	matrix, duplicates := BuildOfferMatrix(tender)

	// Step 3 and 4: Qualify, score and rank per lot
	book := newScoreBook(params)
	lots := make(LotResults, len(matrix))
	for lotID, offers := range matrix {
		rows := book.scoreLot(lotID, offers, params)
		lots[lotID] = RankLot(rows, params.Method)
	}

	// Step 5: One lot per bidder
	if params.ApplySingleLotRule {
		lots = AllocateSingleLot(lots)
	}

	return &Evaluation{
		Method:     params.Method,
		Lots:       lots,
		LotOrder:   lots.SortLotIDs(),
		Duplicates: duplicates,
	}, nil
}

// EvaluateRaw parses a persisted parameter record, adds the manual
// disqualifications carried by the phase A failures and evaluates the tender.
// The returned parameters are the ones the evaluation actually used.
func EvaluateRaw(tender Tender, raw RawParameters, failures []PhaseAFailure) (*Evaluation, EvaluationParameters, error) {
	params, err := ParseParameters(raw)
	if err != nil {
		return nil, EvaluationParameters{}, err
	}
	if manual := DisqualifiedFromFailures(failures); len(manual) > 0 {
		params.Disqualified = append(params.Disqualified, manual...)
	}

	ev, err := Evaluate(tender, params)
	if err != nil {
		return nil, EvaluationParameters{}, err
	}
	return ev, params, nil
}

// Winners returns lot id -> winning participant name for lots with a winner.
func (r LotResults) Winners() map[string]string {
	winners := make(map[string]string, len(r))
	for lotID, rows := range r {
		if w, ok := Winner(rows); ok {
			winners[lotID] = w.Participant.Name
		}
	}
	return winners
}

// WinnerCount returns how many lots have a winner.
func (e *Evaluation) WinnerCount() int {
	if e == nil {
		return 0
	}
	return len(e.Lots.Winners())
}
