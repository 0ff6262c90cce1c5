package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cloudx-io/opentender/seal"
	"github.com/cloudx-io/opentender/tenderapi"
)

func TestHandleConnection_Ping(t *testing.T) {
	s := newTestServer(t, false)

	raw := roundTrip(t, s, []byte(`{"type":"ping"}`))

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(raw, &resp))
	check.Equal(t, tenderapi.TypePong, resp["type"])
	check.Equal(t, 1.0, testutil.ToFloat64(s.metrics.requests.WithLabelValues("ping")))
}

func TestHandleConnection_KeyRequest(t *testing.T) {
	s := newTestServer(t, true)

	raw := roundTrip(t, s, []byte(`{"type":"key_request"}`))

	var resp tenderapi.KeyResponse
	assert.NoError(t, json.Unmarshal(raw, &resp))
	check.Equal(t, tenderapi.TypeKeyResponse, resp.Type)

	pub, err := seal.ParsePublicKeyPEM([]byte(resp.PublicKey))
	assert.NoError(t, err)
	check.True(t, pub.Equal(s.keyManager.PublicKey))
}

func TestHandleConnection_KeyRequestWithoutSealing(t *testing.T) {
	s := newTestServer(t, false)

	raw := roundTrip(t, s, []byte(`{"type":"key_request"}`))

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(raw, &resp))
	check.Equal(t, tenderapi.TypeError, resp["type"])
}

func TestHandleConnection_Evaluation(t *testing.T) {
	s := newTestServer(t, true)
	req := lowestPriceRequest()
	req.Seal = true

	raw := roundTrip(t, s, mustJSON(t, req))

	var resp tenderapi.EvaluationResponse
	assert.NoError(t, json.Unmarshal(raw, &resp))
	assert.True(t, resp.Success)
	check.Equal(t, map[string]string{"1": "Acme", "2": "Beta"}, resp.Winners)

	sealed, err := resp.SealedRecord.Decode()
	assert.NoError(t, err)
	result, err := seal.Verify(sealed, s.keyManager.PublicKey, resp.Lots)
	assert.NoError(t, err)
	check.True(t, result.IsValid())

	check.Equal(t, 1.0, testutil.ToFloat64(s.metrics.evaluations.WithLabelValues("success")))
	check.Equal(t, 1, testutil.CollectAndCount(s.metrics.evaluationSeconds))
}

func TestHandleConnection_MalformedEvaluation(t *testing.T) {
	s := newTestServer(t, false)

	raw := roundTrip(t, s, []byte(`{"type":"evaluation_request","tender":{"lots":"nope"}}`))

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(raw, &resp))
	check.Equal(t, tenderapi.TypeError, resp["type"])
	check.True(t, strings.Contains(resp["message"].(string), "Invalid evaluation request"))
	check.Equal(t, 1.0, testutil.ToFloat64(s.metrics.evaluations.WithLabelValues("failure")))
}

func TestHandleConnection_UndecodableEvaluation(t *testing.T) {
	s := newTestServer(t, false)

	// Passes the schema, but the timestamp is not RFC 3339.
	doc := `{"type":"evaluation_request","timestamp":"yesterday","tender":{"lots":[]},"parameters":{"method":"lowest_price"}}`
	raw := roundTrip(t, s, []byte(doc))

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(raw, &resp))
	check.Equal(t, tenderapi.TypeError, resp["type"])
	check.True(t, strings.Contains(resp["message"].(string), "decode evaluation request"))
}

func TestHandleConnection_UnknownType(t *testing.T) {
	s := newTestServer(t, false)

	raw := roundTrip(t, s, []byte(`{"type":"auction_request"}`))

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(raw, &resp))
	check.Equal(t, tenderapi.TypeError, resp["type"])
	check.Equal(t, "Unknown request type: auction_request", resp["message"])
	check.Equal(t, 1.0, testutil.ToFloat64(s.metrics.requests.WithLabelValues("unknown")))
}

func TestHandleConnection_InvalidJSONClosesConnection(t *testing.T) {
	s := newTestServer(t, false)

	client, server := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.handleConnection(server)
	}()
	go func() { _, _ = client.Write([]byte("not json")) }()

	_ = client.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, err := client.Read(make([]byte, 1))
	check.True(t, errors.Is(err, io.EOF))
	<-done
}

func TestServe(t *testing.T) {
	s := newTestServer(t, false)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, listener) }()

	conn, err := net.Dial("tcp", listener.Addr().String())
	assert.NoError(t, err)
	defer conn.Close()

	assert.NoError(t, json.NewEncoder(conn).Encode(map[string]string{"type": "ping"}))
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var resp map[string]any
	assert.NoError(t, json.NewDecoder(conn).Decode(&resp))
	check.Equal(t, tenderapi.TypePong, resp["type"])

	cancel()
	select {
	case err := <-served:
		check.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServe_RejectsWhenPoolFull(t *testing.T) {
	s := newTestServer(t, false)
	s.cfg.Workers.Max = 1

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, listener) }()

	// Occupies the only worker: nothing is sent, so the handler waits on its read.
	busy, err := net.Dial("tcp", listener.Addr().String())
	assert.NoError(t, err)

	rejected, err := net.Dial("tcp", listener.Addr().String())
	assert.NoError(t, err)
	defer rejected.Close()

	_ = rejected.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err = rejected.Read(make([]byte, 1))
	check.True(t, errors.Is(err, io.EOF))
	check.Equal(t, 1.0, testutil.ToFloat64(s.metrics.rejected))

	assert.NoError(t, busy.Close())
	cancel()
	select {
	case err := <-served:
		check.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
