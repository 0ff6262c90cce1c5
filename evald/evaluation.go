package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/logging"
	"github.com/cloudx-io/opentender/seal"
	"github.com/cloudx-io/opentender/tenderapi"
)

// ProcessEvaluation runs one evaluation request end to end: parameter
// parsing, evaluation, digest and, when requested, sealing. sealer may be nil
// when sealing is disabled; requests asking for a seal then fail.
func ProcessEvaluation(sealer seal.Sealer, req tenderapi.EvaluationRequest, logger *zap.Logger) tenderapi.EvaluationResponse {
	startTime := time.Now()
	logger = logger.With(zap.String("request_id", req.RequestID), zap.String("tender_id", req.Tender.ID))
	logger.Info("processing evaluation",
		zap.Int("lots", len(req.Tender.Lots)),
		zap.Int("bidders", len(req.Tender.Bidders)))

	fail := func(msg string, err error) tenderapi.EvaluationResponse {
		logger.Error(msg, zap.Error(err))
		return tenderapi.EvaluationResponse{
			Type:           tenderapi.TypeEvaluationResponse,
			Success:        false,
			Message:        fmt.Sprintf("%s: %v", msg, err),
			ProcessingTime: time.Since(startTime).Milliseconds(),
		}
	}

	if req.Seal && sealer == nil {
		return fail("sealing unavailable", fmt.Errorf("sealing is disabled on this server"))
	}

	ev, params, err := core.EvaluateRaw(req.Tender, req.Parameters, req.PhaseAFailures)
	if err != nil {
		return fail("invalid evaluation parameters", err)
	}
	logging.Evaluation(logger, params, ev)

	evaluationID := uuid.NewString()
	winners := ev.Lots.Winners()
	response := tenderapi.EvaluationResponse{
		Type:             tenderapi.TypeEvaluationResponse,
		Success:          true,
		EvaluationID:     evaluationID,
		Method:           params.Method.String(),
		Lots:             ev.Lots,
		LotOrder:         ev.LotOrder,
		Winners:          winners,
		Duplicates:       ev.Duplicates,
		ResultsDigest:    core.ComputeResultsDigest(ev.Lots),
		ParametersDigest: core.ComputeParametersDigest(params),
	}

	if req.Seal {
		record := seal.NewRecord(evaluationID, req.Tender.ID, params, ev, time.Now())
		sealed, err := sealer.Seal(record)
		if err != nil {
			return fail("sealing failed", err)
		}
		response.SealedRecord = sealed.EncodeBase64()
		logger.Info("evaluation record sealed", zap.Int("bytes", len(sealed)))
	}

	response.ProcessingTime = time.Since(startTime).Milliseconds()
	response.Message = fmt.Sprintf("Evaluated %d lots, %d awarded", len(ev.Lots), len(winners))

	logger.Info("evaluation complete",
		zap.String("evaluation_id", evaluationID),
		zap.String("method", response.Method),
		zap.Int("lots", len(ev.Lots)),
		zap.Int("winners", len(winners)),
		zap.Int("duplicates", len(ev.Duplicates)),
		zap.Int64("processing_ms", response.ProcessingTime))

	return response
}

// HandleKeyRequest returns the public half of the sealing key.
func HandleKeyRequest(keyManager *seal.KeyManager) (*tenderapi.KeyResponse, error) {
	if keyManager == nil {
		return nil, fmt.Errorf("sealing is disabled on this server")
	}

	publicKeyPEM, err := keyManager.PublicKeyPEM()
	if err != nil {
		return nil, fmt.Errorf("failed to export public key: %w", err)
	}

	return &tenderapi.KeyResponse{
		Type:         tenderapi.TypeKeyResponse,
		KeyAlgorithm: seal.KeyAlgorithm,
		PublicKey:    publicKeyPEM,
	}, nil
}
