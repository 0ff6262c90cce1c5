package core

import (
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestBuildOfferMatrix(t *testing.T) {
	lots := []Lot{
		{ID: "1", Participating: true, OurBid: 100, OurPhaseAPassed: true},
		{ID: " 2 ", Participating: true, OurBid: 0, OurPhaseAPassed: true},
		{ID: "3"},
		{ID: ""},
	}
	tender := buildTender(lots,
		offer{"Acme", "1", 90, true},
		offer{"Acme", "2", 95, false},
		offer{"Beta", "9", 10, true},
		offer{"   ", "1", 10, true},
	)

	matrix, duplicates := BuildOfferMatrix(tender)
	check.Equal(t, 0, len(duplicates))

	assert.Equal(t, 2, len(matrix["1"]))
	check.Equal(t, DefaultOwnOfferName, matrix["1"][0].Participant.Name)
	check.True(t, matrix["1"][0].Participant.IsOwnCompany)
	check.Equal(t, "Acme", matrix["1"][1].Participant.Name)
	check.False(t, matrix["1"][1].Participant.IsOwnCompany)

	// Zero own bid is not an offer; the lot id is trimmed
	assert.Equal(t, 1, len(matrix["2"]))
	check.False(t, matrix["2"][0].PhaseAPassed)

	// Declared lot with no offers still has an entry
	rows, ok := matrix["3"]
	check.True(t, ok)
	check.Equal(t, 0, len(rows))

	// Offers on lots outside the tender still form their own entry
	check.Equal(t, 1, len(matrix["9"]))

	_, hasBlank := matrix[""]
	check.False(t, hasBlank)
}

func TestBuildOfferMatrix_OwnCompanies(t *testing.T) {
	lots := []Lot{{ID: "1", Participating: true, OurBid: 100, OurPhaseAPassed: true, OurCompany: "➡️ Norte SA"}}
	tender := buildTender(lots,
		offer{"Sur SA", "1", 95, true},
		offer{"Otra", "1", 90, true},
	)
	tender.OwnCompanies = []string{"sur sa"}

	matrix, duplicates := BuildOfferMatrix(tender)
	check.Equal(t, 0, len(duplicates))

	offers := matrix["1"]
	assert.Equal(t, 3, len(offers))
	check.Equal(t, "Norte SA", offers[0].Participant.Name)
	check.True(t, offers[0].Participant.IsOwnCompany)
	check.True(t, offers[1].Participant.IsOwnCompany)
	check.False(t, offers[2].Participant.IsOwnCompany)
}

func TestBuildOfferMatrix_DuplicateLaterWins(t *testing.T) {
	lots := []Lot{{ID: "1", Participating: true, OurBid: 100, OurPhaseAPassed: true, OurCompany: "Norte"}}
	tender := buildTender(lots,
		offer{"Acme", "1", 90, true},
		offer{"NORTE", "1", 80, false},
		offer{"acme", "1", 85, true},
	)

	matrix, duplicates := BuildOfferMatrix(tender)

	offers := matrix["1"]
	assert.Equal(t, 2, len(offers))

	// Position of the first write is kept, content is the later one
	check.Equal(t, "NORTE", offers[0].Participant.Name)
	check.Equal(t, 80.0, offers[0].Amount)
	check.False(t, offers[0].PhaseAPassed)
	check.True(t, offers[0].Participant.IsOwnCompany)
	check.Equal(t, "acme", offers[1].Participant.Name)
	check.Equal(t, 85.0, offers[1].Amount)

	assert.Equal(t, 2, len(duplicates))
	check.Equal(t, DuplicateOffer{LotID: "1", Participant: "NORTE", DiscardedValue: 100, KeptValue: 80}, duplicates[0])
	check.Equal(t, DuplicateOffer{LotID: "1", Participant: "acme", DiscardedValue: 90, KeptValue: 85}, duplicates[1])
}

func TestDisplayNameAndKey(t *testing.T) {
	tests := []struct {
		input   string
		display string
		key     string
	}{
		{"Acme", "Acme", "acme"},
		{"  Acme   Corp ", "Acme Corp", "acme corp"},
		{"➡️ Norte SA", "Norte SA", "norte sa"},
		{"➡Norte SA", "Norte SA", "norte sa"},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			check.Equal(t, tt.display, DisplayName(tt.input))
			check.Equal(t, tt.key, NameKey(tt.input))
		})
	}
}
