package logging

import (
	"go.uber.org/zap"

	"github.com/cloudx-io/opentender/core"
)

// Evaluation logs the diagnostics of a finished evaluation: the participants
// excluded by hand and every duplicate offer the matrix discarded.
func Evaluation(logger *zap.Logger, params core.EvaluationParameters, ev *core.Evaluation) {
	if ev == nil {
		return
	}
	if len(params.Disqualified) > 0 {
		logger.Info("participants disqualified", zap.Strings("participants", params.Disqualified))
	}
	for _, d := range ev.Duplicates {
		logger.Warn("duplicate offer discarded",
			zap.String("lot_id", d.LotID),
			zap.String("participant", d.Participant),
			zap.Float64("discarded_amount", d.DiscardedValue),
			zap.Float64("kept_amount", d.KeptValue))
	}
}
