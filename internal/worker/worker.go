package worker

import (
	"context"

	"provenance-relay/internal/broker"
	"provenance-relay/internal/service"
	"provenance-relay/internal/util"

	"go.uber.org/zap"
)

// AuditWorker consumes relay notifications and audits cache drift
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, auditor *service.DriftAuditor) *AuditWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnTopicCreated(auditor.HandleTopicCreated)
	eventHandler.OnEventSubmitted(auditor.HandleEventSubmitted)

	return &AuditWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker")
	return w.consumer.Close()
}
