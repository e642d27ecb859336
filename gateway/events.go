package gateway

import (
	"log/slog"
	"strconv"

	"yieldnet/core/events"
	"yieldnet/core/types"
	"yieldnet/native/distribution"
	"yieldnet/observability/metrics"
)

// EventRecorder bridges engine events into structured logs and the metrics
// registry. Engines emit through it via their SetEmitter hooks.
type EventRecorder struct {
	logger  *slog.Logger
	metrics *metrics.EngineMetrics
}

// NewEventRecorder constructs a recorder writing to the supplied logger.
func NewEventRecorder(logger *slog.Logger) *EventRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventRecorder{logger: logger, metrics: metrics.Engine()}
}

type eventCarrier interface {
	Event() *types.Event
}

// Emit implements the events.Emitter interface.
func (r *EventRecorder) Emit(evt events.Event) {
	if r == nil || evt == nil {
		return
	}
	carrier, ok := evt.(eventCarrier)
	if !ok {
		r.logger.Info("engine event", "type", evt.EventType())
		return
	}
	payload := carrier.Event()
	if payload == nil {
		return
	}

	args := make([]any, 0, 2+2*len(payload.Attributes))
	args = append(args, "type", payload.Type)
	for key, value := range payload.Attributes {
		args = append(args, key, value)
	}
	r.logger.Info("engine event", args...)

	if payload.Type == distribution.EventTypeDistributed {
		r.recordDistribution(payload)
	}
}

func (r *EventRecorder) recordDistribution(payload *types.Event) {
	agreementID, err := strconv.ParseUint(payload.Attributes["agreementId"], 10, 64)
	if err != nil {
		return
	}
	remainder := float64(0)
	if raw, ok := payload.Attributes["remainder"]; ok {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			remainder = parsed
		}
	}
	r.metrics.ObserveDistribution(agreementID, remainder)
}
