package core

import (
	"strings"
)

// OfferMatrix holds, per lot id, the offers in insertion order. Each
// participant appears at most once per lot.
type OfferMatrix map[string][]Offer

// BuildOfferMatrix merges the tender owner's own per-lot bids with every
// third-party offer. Every lot of the tender gets an entry, even without
// offers. When a participant appears twice in one lot the later write wins
// and the collision is reported in the returned duplicates.
func BuildOfferMatrix(tender Tender) (OfferMatrix, []DuplicateOffer) {
	matrix := make(OfferMatrix, len(tender.Lots))
	duplicates := make([]DuplicateOffer, 0)

	ownKeys := make(map[string]bool, len(tender.OwnCompanies))
	for _, name := range tender.OwnCompanies {
		if key := NameKey(name); key != "" {
			ownKeys[key] = true
		}
	}

	put := func(lotID string, offer Offer) {
		offers := matrix[lotID]
		key := offer.Participant.Key()
		for i := range offers {
			if offers[i].Participant.Key() != key {
				continue
			}
			duplicates = append(duplicates, DuplicateOffer{
				LotID:          lotID,
				Participant:    offer.Participant.Name,
				DiscardedValue: offers[i].Amount,
				KeptValue:      offer.Amount,
			})
			offer.Participant.IsOwnCompany = offer.Participant.IsOwnCompany || offers[i].Participant.IsOwnCompany
			offers[i] = offer
			return
		}
		matrix[lotID] = append(offers, offer)
	}

	for _, lot := range tender.Lots {
		lotID := strings.TrimSpace(lot.ID)
		if lotID == "" {
			continue
		}
		if _, ok := matrix[lotID]; !ok {
			matrix[lotID] = make([]Offer, 0)
		}
		if !lot.Participating || lot.OurBid <= 0 {
			continue
		}
		name := DisplayName(lot.OurCompany)
		if name == "" {
			name = DefaultOwnOfferName
		}
		put(lotID, Offer{
			Participant:  Participant{Name: name, IsOwnCompany: true},
			Amount:       lot.OurBid,
			PhaseAPassed: lot.OurPhaseAPassed,
		})
	}

	for _, bidder := range tender.Bidders {
		name := DisplayName(bidder.Name)
		if name == "" {
			continue
		}
		participant := Participant{Name: name, IsOwnCompany: ownKeys[NameKey(name)]}
		for _, o := range bidder.Offers {
			lotID := strings.TrimSpace(o.LotID)
			if lotID == "" {
				continue
			}
			put(lotID, Offer{
				Participant:  participant,
				Amount:       o.Amount,
				PhaseAPassed: o.PhaseAPassed,
			})
		}
	}

	return matrix, duplicates
}
