package core

import (
	"math"
	"sort"
	"strings"
)

// MeetsThreshold returns true if score is at least threshold. The comparison
// is exact: 48.99995 does not meet 49.
func MeetsThreshold(score, threshold float64) bool {
	return score >= threshold
}

// validAmount reports whether amount is a positive, finite value. Any
// positive amount counts, however small.
func validAmount(amount float64) bool {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return false
	}
	return amount > 0
}

// scoreBook is EvaluationParameters re-keyed by normalized participant name.
type scoreBook struct {
	global       map[string]float64
	perLot       map[string]map[string]float64
	disqualified map[string]bool
}

func newScoreBook(params EvaluationParameters) *scoreBook {
	book := &scoreBook{
		global:       normalizeScores(params.TechnicalScores),
		perLot:       make(map[string]map[string]float64, len(params.LotTechnicalScores)),
		disqualified: make(map[string]bool, len(params.Disqualified)),
	}

	lotIDs := make([]string, 0, len(params.LotTechnicalScores))
	for lotID := range params.LotTechnicalScores {
		lotIDs = append(lotIDs, lotID)
	}
	sort.Strings(lotIDs)
	for _, lotID := range lotIDs {
		key := strings.TrimSpace(lotID)
		scores := normalizeScores(params.LotTechnicalScores[lotID])
		if existing, ok := book.perLot[key]; ok {
			for name, v := range scores {
				existing[name] = v
			}
			continue
		}
		book.perLot[key] = scores
	}

	for _, name := range params.Disqualified {
		if key := NameKey(name); key != "" {
			book.disqualified[key] = true
		}
	}
	return book
}

// normalizeScores re-keys a score map; on key collisions the entry whose
// original name sorts last wins.
func normalizeScores(scores map[string]float64) map[string]float64 {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]float64, len(scores))
	for _, name := range names {
		v := scores[name]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[NameKey(name)] = v
	}
	return out
}

// rawTechnicalScore resolves a participant's technical score: the per-lot
// override first, then the global score, then 0.
func (b *scoreBook) rawTechnicalScore(participantKey, lotID string) float64 {
	if lotScores, ok := b.perLot[strings.TrimSpace(lotID)]; ok {
		if v, ok := lotScores[participantKey]; ok {
			return v
		}
	}
	return b.global[participantKey]
}

// technicalScore is the raw score bounded by the method's scale.
func (b *scoreBook) technicalScore(participantKey, lotID string, params EvaluationParameters) float64 {
	raw := b.rawTechnicalScore(participantKey, lotID)
	switch params.Method {
	case AbsolutePoints:
		return clamp(raw, 0, params.TechMax)
	case WeightedPoints:
		return clamp(raw, 0, 100)
	default:
		return raw
	}
}

func (b *scoreBook) qualifies(offer Offer, lotID string, params EvaluationParameters) bool {
	if !validAmount(offer.Amount) {
		return false
	}
	if !offer.PhaseAPassed {
		return false
	}
	key := offer.Participant.Key()
	if b.disqualified[key] {
		return false
	}
	if params.Method.RequiresTechnicalThreshold() {
		return MeetsThreshold(b.technicalScore(key, lotID, params), params.TechMin)
	}
	return true
}

// TechnicalScore returns the participant's technical score on a lot as the
// selected method sees it.
func TechnicalScore(participant Participant, lotID string, params EvaluationParameters) float64 {
	return newScoreBook(params).technicalScore(participant.Key(), lotID, params)
}

// Qualifies decides whether an offer may compete on its lot. The checks run
// in order and stop at the first failure: positive amount, phase A passed,
// not manually disqualified, and for point methods a technical score at
// least TechMin.
func Qualifies(offer Offer, lotID string, params EvaluationParameters) bool {
	return newScoreBook(params).qualifies(offer, lotID, params)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
