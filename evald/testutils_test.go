package main

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/seal"
	"github.com/cloudx-io/opentender/tenderapi"
)

// twoLotTender has Acme cheapest on lot 1 and Beta cheapest on lot 2.
func twoLotTender() core.Tender {
	return core.Tender{
		ID:   "T-100",
		Name: "Road maintenance",
		Lots: []core.Lot{{ID: "1", BaseAmount: 150}, {ID: "2", BaseAmount: 150}},
		Bidders: []core.Bidder{
			{Name: "Acme", Offers: []core.BidderOffer{
				{LotID: "1", Amount: 100, PhaseAPassed: true},
				{LotID: "2", Amount: 120, PhaseAPassed: true},
			}},
			{Name: "Beta", Offers: []core.BidderOffer{
				{LotID: "1", Amount: 110, PhaseAPassed: true},
				{LotID: "2", Amount: 90, PhaseAPassed: true},
			}},
		},
	}
}

func lowestPriceRequest() tenderapi.EvaluationRequest {
	return tenderapi.EvaluationRequest{
		Type:       tenderapi.TypeEvaluationRequest,
		RequestID:  "req-1",
		Tender:     twoLotTender(),
		Parameters: core.RawParameters{Method: "lowest_price"},
		Timestamp:  time.Now(),
	}
}

func testConfig() *Config {
	return &Config{
		Listen:      ListenConfig{Network: networkTCP, Address: "127.0.0.1:0"},
		Workers:     WorkersConfig{Max: 2},
		ReadTimeout: 5 * time.Second,
		Log:         LogConfig{Level: "debug", Format: "console"},
	}
}

func newTestServer(t *testing.T, withKey bool) *EvaluationServer {
	t.Helper()
	s := &EvaluationServer{cfg: testConfig(), logger: zap.NewNop(), metrics: newServerMetrics()}
	if withKey {
		km, err := seal.NewKeyManager()
		if err != nil {
			t.Fatalf("NewKeyManager: %v", err)
		}
		s.keyManager = km
	}
	return s
}

// roundTrip runs one request through handleConnection over an in-memory pipe
// and returns the raw response.
func roundTrip(t *testing.T, s *EvaluationServer, request []byte) []byte {
	t.Helper()

	client, server := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.handleConnection(server)
	}()
	go func() { _, _ = client.Write(request) }()

	_ = client.SetReadDeadline(time.Now().Add(10 * time.Second))
	var raw json.RawMessage
	if err := json.NewDecoder(client).Decode(&raw); err != nil {
		t.Fatalf("read response: %v", err)
	}
	<-done
	return raw
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}
