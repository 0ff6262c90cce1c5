package core

// offer is a compact way to write a third-party offer in tests.
type offer struct {
	bidder string
	lot    string
	amount float64
	passed bool
}

// buildTender groups offers by bidder, keeping first-seen bidder order.
func buildTender(lots []Lot, offers ...offer) Tender {
	tender := Tender{ID: "tender-test", Lots: lots}
	index := make(map[string]int)
	for _, o := range offers {
		i, ok := index[o.bidder]
		if !ok {
			i = len(tender.Bidders)
			index[o.bidder] = i
			tender.Bidders = append(tender.Bidders, Bidder{Name: o.bidder})
		}
		tender.Bidders[i].Offers = append(tender.Bidders[i].Offers, BidderOffer{
			LotID:        o.lot,
			Amount:       o.amount,
			PhaseAPassed: o.passed,
		})
	}
	return tender
}

func lotsNamed(ids ...string) []Lot {
	lots := make([]Lot, len(ids))
	for i, id := range ids {
		lots[i] = Lot{ID: id, Name: "Lote " + id}
	}
	return lots
}

func names(rows []RowResult) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Participant.Name
	}
	return out
}

func winnerName(rows []RowResult) string {
	if w, ok := Winner(rows); ok {
		return w.Participant.Name
	}
	return ""
}
