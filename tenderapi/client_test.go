package tenderapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

// fakeService answers every connection with reply(request).
func fakeService(t *testing.T, reply func(req map[string]any) any) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				var req map[string]any
				if err := json.NewDecoder(c).Decode(&req); err != nil {
					return
				}
				if resp := reply(req); resp != nil {
					_ = json.NewEncoder(c).Encode(resp)
				}
			}(conn)
		}
	}()
	return listener.Addr().String()
}

func TestClient_Ping(t *testing.T) {
	addr := fakeService(t, func(req map[string]any) any {
		if req["type"] != TypePing {
			return map[string]any{"type": TypeError, "message": "bad"}
		}
		return map[string]any{"type": TypePong}
	})

	client := NewTCPClient(addr, 5*time.Second)
	check.NoError(t, client.Ping(context.Background()))
}

func TestClient_PublicKey(t *testing.T) {
	addr := fakeService(t, func(map[string]any) any {
		return KeyResponse{Type: TypeKeyResponse, KeyAlgorithm: "ECDSA-P256", PublicKey: "-----BEGIN PUBLIC KEY-----"}
	})

	resp, err := NewTCPClient(addr, 5*time.Second).PublicKey(context.Background())
	assert.NoError(t, err)
	check.Equal(t, "ECDSA-P256", resp.KeyAlgorithm)
	check.Equal(t, "-----BEGIN PUBLIC KEY-----", resp.PublicKey)
}

func TestClient_Evaluate(t *testing.T) {
	requests := make(chan map[string]any, 1)
	addr := fakeService(t, func(req map[string]any) any {
		requests <- req
		return EvaluationResponse{
			Type:         TypeEvaluationResponse,
			Success:      true,
			EvaluationID: "ev-1",
			Winners:      map[string]string{"1": "Acme"},
		}
	})

	resp, err := NewTCPClient(addr, 5*time.Second).Evaluate(context.Background(), EvaluationRequest{RequestID: "r-1", Seal: true})
	assert.NoError(t, err)
	check.True(t, resp.Success)
	check.Equal(t, "ev-1", resp.EvaluationID)
	check.Equal(t, map[string]string{"1": "Acme"}, resp.Winners)

	seen := <-requests
	check.Equal(t, TypeEvaluationRequest, seen["type"])
	check.Equal(t, "r-1", seen["request_id"])
	check.Equal(t, true, seen["seal"])
	check.True(t, seen["timestamp"] != "0001-01-01T00:00:00Z")
}

func TestClient_ServerError(t *testing.T) {
	addr := fakeService(t, func(map[string]any) any {
		return map[string]any{"type": TypeError, "message": "Key request failed: sealing is disabled"}
	})

	_, err := NewTCPClient(addr, 5*time.Second).PublicKey(context.Background())
	var serverErr *ServerError
	assert.True(t, errors.As(err, &serverErr))
	check.Equal(t, "Key request failed: sealing is disabled", serverErr.Message)
}

func TestClient_UnexpectedType(t *testing.T) {
	addr := fakeService(t, func(map[string]any) any {
		return map[string]any{"type": TypePong}
	})

	_, err := NewTCPClient(addr, 5*time.Second).PublicKey(context.Background())
	check.Error(t, err)
}

func TestClient_ConnectionClosedWithoutResponse(t *testing.T) {
	addr := fakeService(t, func(map[string]any) any { return nil })

	err := NewTCPClient(addr, 5*time.Second).Ping(context.Background())
	check.Error(t, err)
}

func TestClient_DialError(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	addr := listener.Addr().String()
	assert.NoError(t, listener.Close())

	err = NewTCPClient(addr, time.Second).Ping(context.Background())
	check.Error(t, err)
}
