package core

// Lot is one independently awarded subdivision of a tender, together with the
// tender owner's own bid for it.
type Lot struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	BaseAmount         float64 `json:"base_amount"`
	PersonalBaseAmount float64 `json:"personal_base_amount,omitempty"`
	Participating      bool    `json:"participating"`
	OurBid             float64 `json:"our_bid"`
	OurPhaseAPassed    bool    `json:"our_phase_a_passed"`
	OurCompany         string  `json:"our_company,omitempty"`
}

// BidderOffer is a third-party bidder's offer on a single lot.
type BidderOffer struct {
	LotID        string  `json:"lot_id"`
	Amount       float64 `json:"amount"`
	PhaseAPassed bool    `json:"phase_a_passed"`
}

// Bidder is a competing third party and the offers it placed.
type Bidder struct {
	Name   string        `json:"name"`
	Offers []BidderOffer `json:"offers"`
}

// Tender is the input record supplied by the persistence layer.
type Tender struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Lots         []Lot    `json:"lots"`
	Bidders      []Bidder `json:"bidders"`
	OwnCompanies []string `json:"own_companies,omitempty"`
}

// Participant identifies whoever submitted an offer. Name keeps the display
// casing; comparisons go through Key.
type Participant struct {
	Name         string `json:"name"`
	IsOwnCompany bool   `json:"is_own_company"`
}

// Key returns the normalized comparison key for the participant.
func (p Participant) Key() string {
	return NameKey(p.Name)
}

// Offer is a single entry of the offer matrix.
type Offer struct {
	Participant  Participant `json:"participant"`
	Amount       float64     `json:"amount"`
	PhaseAPassed bool        `json:"phase_a_passed"`
}

// RowResult is one participant's evaluated line within a lot.
type RowResult struct {
	Participant    Participant `json:"participant"`
	Amount         float64     `json:"amount"`
	TechnicalScore float64     `json:"technical_score"`
	EconomicScore  float64     `json:"economic_score"`
	FinalScore     float64     `json:"final_score"`
	Qualifies      bool        `json:"qualifies"`
	IsWinner       bool        `json:"is_winner"`
}

// LotResults maps a lot id to its rows, best first.
type LotResults map[string][]RowResult

// DuplicateOffer reports a participant that appeared twice in the same lot
// while building the offer matrix. The later amount was kept.
type DuplicateOffer struct {
	LotID          string  `json:"lot_id"`
	Participant    string  `json:"participant"`
	DiscardedValue float64 `json:"discarded_amount"`
	KeptValue      float64 `json:"kept_amount"`
}

// Evaluation is the outcome of a single evaluation run.
type Evaluation struct {
	Method     Method           `json:"method"`
	Lots       LotResults       `json:"lots"`
	LotOrder   []string         `json:"lot_order"`
	Duplicates []DuplicateOffer `json:"duplicates,omitempty"`
}

// PhaseAFailure is a recorded failure of a participant during phase A.
// DocumentID -1 marks a manual disqualification rather than a missing document.
type PhaseAFailure struct {
	Participant string `json:"participant"`
	DocumentID  int    `json:"document_id"`
	Comment     string `json:"comment,omitempty"`
}
