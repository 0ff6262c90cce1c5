package main

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/seal"
	"github.com/cloudx-io/opentender/tenderapi"
)

// startServer runs s on a loopback listener for the duration of the test.
func startServer(t *testing.T, s *EvaluationServer) *tenderapi.Client {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, listener) }()
	t.Cleanup(func() {
		cancel()
		<-served
	})

	return tenderapi.NewTCPClient(listener.Addr().String(), 10*time.Second)
}

func TestE2E_SealedEvaluation(t *testing.T) {
	client := startServer(t, newTestServer(t, true))
	ctx := context.Background()

	assert.NoError(t, client.Ping(ctx))

	keyResp, err := client.PublicKey(ctx)
	assert.NoError(t, err)
	check.Equal(t, seal.KeyAlgorithm, keyResp.KeyAlgorithm)
	publicKey, err := seal.ParsePublicKeyPEM([]byte(keyResp.PublicKey))
	assert.NoError(t, err)

	req := lowestPriceRequest()
	req.Seal = true
	resp, err := client.Evaluate(ctx, req)
	assert.NoError(t, err)
	assert.True(t, resp.Success)
	check.Equal(t, map[string]string{"1": "Acme", "2": "Beta"}, resp.Winners)

	// The record verifies against the key fetched over the wire and the
	// results the client received.
	sealed, err := resp.SealedRecord.Decode()
	assert.NoError(t, err)
	result, err := seal.Verify(sealed, publicKey, resp.Lots)
	assert.NoError(t, err)
	check.True(t, result.IsValid())
	check.Equal(t, resp.EvaluationID, result.Record.EvaluationID)

	// Tampering with a received row breaks the digest match.
	tampered := core.LotResults{}
	for lotID, rows := range resp.Lots {
		tampered[lotID] = append([]core.RowResult(nil), rows...)
	}
	tampered["1"][0].Amount += 1
	result, err = seal.Verify(sealed, publicKey, tampered)
	assert.NoError(t, err)
	check.True(t, result.SignatureValid)
	check.False(t, result.DigestMatch)
	check.False(t, result.IsValid())
}

func TestE2E_WithoutSealing(t *testing.T) {
	client := startServer(t, newTestServer(t, false))
	ctx := context.Background()

	_, err := client.PublicKey(ctx)
	var serverErr *tenderapi.ServerError
	check.True(t, errors.As(err, &serverErr))

	resp, err := client.Evaluate(ctx, lowestPriceRequest())
	assert.NoError(t, err)
	check.True(t, resp.Success)
	check.Equal(t, tenderapi.SealedRecordBase64(""), resp.SealedRecord)

	req := lowestPriceRequest()
	req.Seal = true
	resp, err = client.Evaluate(ctx, req)
	assert.NoError(t, err)
	check.False(t, resp.Success)
}

func TestE2E_InvalidRequestIsServerError(t *testing.T) {
	client := startServer(t, newTestServer(t, false))

	req := lowestPriceRequest()
	req.Parameters.Method = ""
	_, err := client.Evaluate(context.Background(), req)

	var serverErr *tenderapi.ServerError
	assert.True(t, errors.As(err, &serverErr))
	check.True(t, len(serverErr.Message) > 0)
}
