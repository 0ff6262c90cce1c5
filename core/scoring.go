package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const scorePrecision int32 = 6 // scores are rounded before ranking so reruns compare equal

var hundred = decimal.NewFromInt(100)

// ScoreLot qualifies and scores one lot's offers with the selected method.
// Rows come back in offer order, unranked and without winners.
func ScoreLot(lotID string, offers []Offer, params EvaluationParameters) ([]RowResult, error) {
	if !params.Method.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, params.Method)
	}
	return newScoreBook(params).scoreLot(lotID, offers, params), nil
}

func (b *scoreBook) scoreLot(lotID string, offers []Offer, params EvaluationParameters) []RowResult {
	rows := make([]RowResult, len(offers))
	for i, offer := range offers {
		rows[i] = RowResult{
			Participant: offer.Participant,
			Amount:      offer.Amount,
			Qualifies:   b.qualifies(offer, lotID, params),
		}
	}

	switch params.Method {
	case LowestPrice:
		scoreLowestPrice(rows)
	case AbsolutePoints:
		for i := range rows {
			rows[i].TechnicalScore = b.technicalScore(rows[i].Participant.Key(), lotID, params)
		}
		scoreAbsolutePoints(rows, params)
	case WeightedPoints:
		for i := range rows {
			rows[i].TechnicalScore = b.technicalScore(rows[i].Participant.Key(), lotID, params)
		}
		scoreWeightedPoints(rows, params)
	default:
		panic(fmt.Sprintf("scoreLot: unhandled method %s", params.Method))
	}
	return rows
}

// scoreLowestPrice marks qualifiers with a nominal technical score of 100.
// Ranking uses the amount, so the economic and final scores stay 0.
func scoreLowestPrice(rows []RowResult) {
	for i := range rows {
		rows[i].EconomicScore = 0
		rows[i].FinalScore = 0
		if rows[i].Qualifies {
			rows[i].TechnicalScore = 100
		} else {
			rows[i].TechnicalScore = 0
		}
	}
}

// scoreAbsolutePoints: final = technical + ecoMax * minPrice / amount.
func scoreAbsolutePoints(rows []RowResult, params EvaluationParameters) {
	minPrice, ok := minQualifyingAmount(rows)
	ecoMax := decimal.NewFromFloat(params.EcoMax)

	for i := range rows {
		technical := decimal.NewFromFloat(rows[i].TechnicalScore)
		economic := decimal.Zero
		if ok && rows[i].Qualifies {
			economic = relativePrice(ecoMax, minPrice, rows[i].Amount)
		}
		rows[i].TechnicalScore = roundScore(technical)
		rows[i].EconomicScore = roundScore(economic)
		rows[i].FinalScore = roundScore(technical.Add(economic))
	}
}

// scoreWeightedPoints: final = tech% * weightTech/100 + eco% * weightEco/100,
// where eco% = 100 * minPrice / amount.
func scoreWeightedPoints(rows []RowResult, params EvaluationParameters) {
	minPrice, ok := minQualifyingAmount(rows)
	weightTech := decimal.NewFromFloat(params.WeightTech).Div(hundred)
	weightEco := decimal.NewFromFloat(params.WeightEco).Div(hundred)

	for i := range rows {
		technical := decimal.NewFromFloat(rows[i].TechnicalScore)
		economic := decimal.Zero
		if ok && rows[i].Qualifies {
			economic = relativePrice(hundred, minPrice, rows[i].Amount)
		}
		rows[i].TechnicalScore = roundScore(technical)
		rows[i].EconomicScore = roundScore(economic)
		rows[i].FinalScore = roundScore(technical.Mul(weightTech).Add(economic.Mul(weightEco)))
	}
}

// minQualifyingAmount returns the lowest amount among qualifying rows.
// ok is false when no row qualifies.
func minQualifyingAmount(rows []RowResult) (minPrice decimal.Decimal, ok bool) {
	for _, r := range rows {
		if !r.Qualifies {
			continue
		}
		amount := decimal.NewFromFloat(r.Amount)
		if !ok || amount.LessThan(minPrice) {
			minPrice = amount
			ok = true
		}
	}
	return minPrice, ok
}

// relativePrice computes scale * minPrice / amount, or 0 when either price is
// not positive.
func relativePrice(scale, minPrice decimal.Decimal, amount float64) decimal.Decimal {
	if !validAmount(amount) || !minPrice.IsPositive() {
		return decimal.Zero
	}
	return scale.Mul(minPrice).Div(decimal.NewFromFloat(amount))
}

func roundScore(d decimal.Decimal) float64 {
	f, _ := d.Round(scorePrecision).Float64()
	return f
}
