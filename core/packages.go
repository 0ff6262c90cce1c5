package core

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// PackageLine is the offer chosen for one lot of a package.
type PackageLine struct {
	LotID        string  `json:"lot_id"`
	Participant  string  `json:"participant"`
	IsOwnCompany bool    `json:"is_own_company"`
	Amount       float64 `json:"amount"`
}

// IndividualPackage is the cheapest valid offer per lot, regardless of who
// made it.
type IndividualPackage struct {
	Total float64       `json:"total"`
	Lines []PackageLine `json:"lines"`
}

// BidderPackage is one participant's complete offer across every lot.
type BidderPackage struct {
	Participant  string  `json:"participant"`
	IsOwnCompany bool    `json:"is_own_company"`
	Total        float64 `json:"total"`
	LotsOffered  int     `json:"lots_offered"`
}

// BestIndividualPackage picks, for every lot of the tender, the lowest offer
// that passed phase A with a positive amount. Our own bid competes when we
// participate in the lot. Ties keep the offer seen first, our own bid
// before third parties.
func BestIndividualPackage(tender Tender) IndividualPackage {
	pkg := IndividualPackage{Lines: make([]PackageLine, 0, len(tender.Lots))}
	total := decimal.Zero

	for _, lot := range tender.Lots {
		lotID := strings.TrimSpace(lot.ID)
		if lotID == "" {
			continue
		}

		var best *PackageLine
		consider := func(line PackageLine) {
			if best == nil || line.Amount < best.Amount {
				best = &line
			}
		}

		if lot.Participating && lot.OurPhaseAPassed && validAmount(lot.OurBid) {
			consider(PackageLine{LotID: lotID, Participant: ownOfferName(lot), IsOwnCompany: true, Amount: lot.OurBid})
		}
		for _, bidder := range tender.Bidders {
			name := DisplayName(bidder.Name)
			if name == "" {
				continue
			}
			for _, o := range bidder.Offers {
				if strings.TrimSpace(o.LotID) != lotID || !o.PhaseAPassed || !validAmount(o.Amount) {
					continue
				}
				consider(PackageLine{LotID: lotID, Participant: name, Amount: o.Amount})
			}
		}

		if best != nil {
			pkg.Lines = append(pkg.Lines, *best)
			total = total.Add(decimal.NewFromFloat(best.Amount))
		}
	}

	slices.SortStableFunc(pkg.Lines, func(a, b PackageLine) int { return CompareLotIDs(a.LotID, b.LotID) })
	pkg.Total = roundMoney(total)
	return pkg
}

// BestBidderPackage returns the lowest-total package among participants that
// made a valid offer on every lot of the tender, or nil when nobody did. Our
// own bids form a package only when a single own company bid on all lots.
func BestBidderPackage(tender Tender) *BidderPackage {
	lotIDs := make(map[string]bool, len(tender.Lots))
	for _, lot := range tender.Lots {
		if id := strings.TrimSpace(lot.ID); id != "" {
			lotIDs[id] = true
		}
	}
	if len(lotIDs) == 0 {
		return nil
	}

	candidates := make([]BidderPackage, 0)

	if companies := ownCompaniesOf(tender); len(companies) == 1 {
		total := decimal.Zero
		offered := 0
		complete := true
		for _, lot := range tender.Lots {
			if !lotIDs[strings.TrimSpace(lot.ID)] {
				continue
			}
			switch {
			case lot.Participating && lot.OurPhaseAPassed && validAmount(lot.OurBid):
				total = total.Add(decimal.NewFromFloat(lot.OurBid))
				offered++
			case lot.Participating:
				complete = false
			}
		}
		if complete && offered == len(lotIDs) {
			candidates = append(candidates, BidderPackage{
				Participant:  companies[0],
				IsOwnCompany: true,
				Total:        roundMoney(total),
				LotsOffered:  offered,
			})
		}
	}

	for _, bidder := range tender.Bidders {
		name := DisplayName(bidder.Name)
		if name == "" {
			continue
		}
		total := decimal.Zero
		covered := make(map[string]bool, len(lotIDs))
		for _, o := range bidder.Offers {
			lotID := strings.TrimSpace(o.LotID)
			if !lotIDs[lotID] || covered[lotID] || !o.PhaseAPassed || !validAmount(o.Amount) {
				continue
			}
			covered[lotID] = true
			total = total.Add(decimal.NewFromFloat(o.Amount))
		}
		if len(covered) == len(lotIDs) {
			candidates = append(candidates, BidderPackage{
				Participant: name,
				Total:       roundMoney(total),
				LotsOffered: len(covered),
			})
		}
	}

	if len(candidates) == 0 {
		return nil
	}
	best := slices.MinFunc(candidates, func(a, b BidderPackage) int {
		if a.Total != b.Total {
			if a.Total < b.Total {
				return -1
			}
			return 1
		}
		return compareNames(a.Participant, b.Participant)
	})
	return &best
}

// PercentDifference compares our offered total with the lots' base amounts:
// (offered − base) / base × 100. With onlyParticipating, lots we neither
// participate in nor bid on are skipped. With usePersonalBase, a lot's
// PersonalBaseAmount replaces BaseAmount when set. Returns 0 when the base
// total is 0.
func PercentDifference(tender Tender, onlyParticipating, usePersonalBase bool) float64 {
	baseTotal := decimal.Zero
	offeredTotal := decimal.Zero
	for _, lot := range tender.Lots {
		if onlyParticipating && !lot.Participating && lot.OurBid <= 0 {
			continue
		}
		base := lot.BaseAmount
		if usePersonalBase && lot.PersonalBaseAmount > 0 {
			base = lot.PersonalBaseAmount
		}
		baseTotal = baseTotal.Add(decimal.NewFromFloat(base))
		offeredTotal = offeredTotal.Add(decimal.NewFromFloat(lot.OurBid))
	}
	if baseTotal.IsZero() {
		return 0
	}
	pct, _ := offeredTotal.Sub(baseTotal).Div(baseTotal).Mul(hundred).Round(scorePrecision).Float64()
	return pct
}

func ownOfferName(lot Lot) string {
	if name := DisplayName(lot.OurCompany); name != "" {
		return name
	}
	return DefaultOwnOfferName
}

// ownCompaniesOf lists our companies: those assigned on participating lots,
// or the tender's OwnCompanies when no lot names one.
func ownCompaniesOf(tender Tender) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	add := func(name string) {
		name = DisplayName(name)
		if name == "" || strings.EqualFold(name, "none") || seen[NameKey(name)] {
			return
		}
		seen[NameKey(name)] = true
		out = append(out, name)
	}
	for _, lot := range tender.Lots {
		if lot.Participating {
			add(lot.OurCompany)
		}
	}
	if len(out) == 0 {
		for _, name := range tender.OwnCompanies {
			add(name)
		}
	}
	slices.SortFunc(out, compareNames)
	return out
}

const monetaryPrecision int32 = 4 // 4 decimal places for currency totals

func roundMoney(d decimal.Decimal) float64 {
	f, _ := d.Round(monetaryPrecision).Float64()
	return f
}
