// Package receipts turns purchase events into stored JSON receipts.
package receipts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qenty/academy/internal/metrics"
	"github.com/qenty/academy/internal/mq"
	"github.com/qenty/academy/internal/storage"
	"github.com/qenty/academy/types"
)

// Receipt is the document written for every purchase.
type Receipt struct {
	types.PurchaseEvent
	IssuedAt time.Time `json:"issued_at"`
}

// Key is the object key of the receipt for event.
func Key(event types.PurchaseEvent) string {
	return fmt.Sprintf("receipts/%d/%s.json", event.UserID, event.ID)
}

type Worker struct {
	objects *storage.Storage
	logger  logrus.FieldLogger
	channel string
}

// NewWorker builds a worker for channel. objects may be nil, in which case
// events are only logged.
func NewWorker(objects *storage.Storage, channel string, logger logrus.FieldLogger) *Worker {
	return &Worker{objects: objects, logger: logger, channel: channel}
}

// Run consumes the purchase channel until ctx is done.
func (w *Worker) Run(ctx context.Context, queue *mq.MQ) error {
	w.logger.WithField("channel", w.channel).Info("receipt worker started")
	return queue.Subscribe(ctx, w.channel, w.Handle)
}

// Handle stores one receipt. Malformed payloads are dropped; storage errors
// are returned so the broker redelivers.
func (w *Worker) Handle(ctx context.Context, msg mq.Message) error {
	var event types.PurchaseEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil || event.ID == "" {
		w.logger.WithField("message_id", msg.ID).Warn("dropping malformed purchase event")
		metrics.RecordMessage(w.channel, "consume", fmt.Errorf("malformed event"))
		return nil
	}

	logger := w.logger.WithFields(logrus.Fields{
		"event_id":  event.ID,
		"user_id":   event.UserID,
		"course_id": event.CourseID,
	})
	if w.objects == nil {
		logger.Info("purchase received, no storage configured for receipts")
		metrics.RecordMessage(w.channel, "consume", nil)
		return nil
	}

	err := w.objects.PutJSON(ctx, Key(event), Receipt{PurchaseEvent: event, IssuedAt: time.Now().UTC()})
	metrics.RecordMessage(w.channel, "consume", err)
	if err != nil {
		logger.WithError(err).Error("failed to store receipt")
		return err
	}
	logger.WithField("key", Key(event)).Info("receipt stored")
	return nil
}
