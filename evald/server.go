package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/mdlayher/vsock"
	"go.uber.org/zap"

	"github.com/cloudx-io/opentender/seal"
	"github.com/cloudx-io/opentender/tenderapi"
)

// maxRequestBytes bounds a single request document.
const maxRequestBytes = 64 << 20

type EvaluationServer struct {
	cfg        *Config
	logger     *zap.Logger
	metrics    *serverMetrics
	keyManager *seal.KeyManager // nil when sealing is disabled
}

// NewEvaluationServer builds a server from cfg, loading or generating the
// sealing key when sealing is enabled.
func NewEvaluationServer(cfg *Config, logger *zap.Logger) (*EvaluationServer, error) {
	s := &EvaluationServer{cfg: cfg, logger: logger, metrics: newServerMetrics()}
	if !cfg.Seal.Enabled {
		logger.Warn("sealing disabled, evaluation records will not be signed")
		return s, nil
	}

	keyManager, err := loadKeyManager(cfg.Seal.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key manager: %w", err)
	}
	s.keyManager = keyManager
	logger.Info("key manager initialized",
		zap.String("algorithm", seal.KeyAlgorithm),
		zap.Bool("from_file", cfg.Seal.KeyFile != ""))
	return s, nil
}

// Start listens on the configured socket and serves until ctx is done.
func (s *EvaluationServer) Start(ctx context.Context) error {
	listener, err := s.listen()
	if err != nil {
		return err
	}
	if s.cfg.Metrics.Address != "" {
		go s.metrics.serveMetrics(ctx, s.cfg.Metrics.Address, s.logger)
	}
	return s.Serve(ctx, listener)
}

func (s *EvaluationServer) listen() (net.Listener, error) {
	switch s.cfg.Listen.Network {
	case networkVsock:
		listener, err := vsock.Listen(s.cfg.Listen.VsockPort, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create vsock listener: %w", err)
		}
		s.logger.Info("evaluation server listening", zap.String("network", networkVsock), zap.Uint32("port", s.cfg.Listen.VsockPort))
		return listener, nil
	case networkTCP:
		listener, err := net.Listen("tcp", s.cfg.Listen.Address)
		if err != nil {
			return nil, fmt.Errorf("failed to create tcp listener: %w", err)
		}
		s.logger.Info("evaluation server listening", zap.String("network", networkTCP), zap.String("address", listener.Addr().String()))
		return listener, nil
	default:
		return nil, fmt.Errorf("unsupported network %q", s.cfg.Listen.Network)
	}
}

// Serve accepts connections on listener until ctx is done, then waits for
// in-flight requests. Connections arriving while every worker is busy are
// closed immediately.
func (s *EvaluationServer) Serve(ctx context.Context, listener net.Listener) error {
	maxWorkers := s.cfg.Workers.Max
	semaphore := make(chan struct{}, maxWorkers)
	s.logger.Info("worker pool initialized", zap.Int("max_workers", maxWorkers))

	var wg sync.WaitGroup
	defer wg.Wait()

	stop := context.AfterFunc(ctx, func() {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("failed to close listener", zap.Error(err))
		}
	})
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("evaluation server stopped")
				return nil
			}
			s.logger.Error("failed to accept connection", zap.Error(err))
			continue
		}

		select {
		case semaphore <- struct{}{}:
			wg.Add(1)
			s.metrics.activeWorkers.Inc()
			go func(c net.Conn) {
				defer wg.Done()
				defer func() {
					s.metrics.activeWorkers.Dec()
					<-semaphore
				}()
				s.handleConnection(c)
			}(conn)
		default:
			s.metrics.rejected.Inc()
			s.logger.Warn("no workers available, rejecting connection")
			if err := conn.Close(); err != nil {
				s.logger.Error("failed to close rejected connection", zap.Error(err))
			}
		}
	}
}

func (s *EvaluationServer) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic recovered in handleConnection", zap.Any("panic", r))
		}
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("failed to close connection", zap.Error(err))
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

	var raw json.RawMessage
	if err := json.NewDecoder(io.LimitReader(conn, maxRequestBytes)).Decode(&raw); err != nil {
		s.logger.Error("failed to read request", zap.Error(err))
		return
	}

	var baseReq struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &baseReq); err != nil {
		s.logger.Error("failed to decode base request", zap.Error(err))
		return
	}

	s.logger.Info("received request", zap.String("type", baseReq.Type))
	s.metrics.requests.WithLabelValues(requestTypeLabel(baseReq.Type)).Inc()

	var response any

	switch baseReq.Type {
	case tenderapi.TypePing:
		response = map[string]any{
			"type":      tenderapi.TypePong,
			"message":   "evaluation server is healthy",
			"timestamp": time.Now().Unix(),
		}

	case tenderapi.TypeKeyRequest:
		keyResp, err := HandleKeyRequest(s.keyManager)
		if err != nil {
			response = errorResponse("Key request failed: %v", err)
			s.logger.Error("key request failed", zap.Error(err))
		} else {
			response = keyResp
		}

	case tenderapi.TypeEvaluationRequest:
		response = s.handleEvaluation(raw)

	default:
		response = errorResponse("Unknown request type: %s", baseReq.Type)
	}

	if err := json.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		return
	}
	s.logger.Debug("response sent", zap.String("type", baseReq.Type))
}

func (s *EvaluationServer) handleEvaluation(raw []byte) any {
	start := time.Now()

	if err := tenderapi.ValidateEvaluationRequest(raw); err != nil {
		s.logger.Error("evaluation request rejected", zap.Error(err))
		s.metrics.observeEvaluation(false, time.Since(start))
		return errorResponse("Invalid evaluation request: %v", err)
	}

	var req tenderapi.EvaluationRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.logger.Error("failed to decode evaluation request", zap.Error(err))
		s.metrics.observeEvaluation(false, time.Since(start))
		return errorResponse("Failed to decode evaluation request: %v", err)
	}

	resp := ProcessEvaluation(s.sealer(), req, s.logger)
	s.metrics.observeEvaluation(resp.Success, time.Since(start))
	return resp
}

// sealer avoids handing ProcessEvaluation a non-nil interface around a nil key manager.
func (s *EvaluationServer) sealer() seal.Sealer {
	if s.keyManager == nil {
		return nil
	}
	return s.keyManager
}

// requestTypeLabel keeps arbitrary client-supplied types out of metric labels.
func requestTypeLabel(t string) string {
	switch t {
	case tenderapi.TypePing, tenderapi.TypeKeyRequest, tenderapi.TypeEvaluationRequest:
		return t
	default:
		return "unknown"
	}
}

func errorResponse(format string, args ...any) map[string]any {
	return map[string]any{
		"type":    tenderapi.TypeError,
		"message": fmt.Sprintf(format, args...),
	}
}
