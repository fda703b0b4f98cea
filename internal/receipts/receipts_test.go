package receipts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qenty/academy/internal/logging"
	"github.com/qenty/academy/internal/mq"
	"github.com/qenty/academy/internal/storage"
	"github.com/qenty/academy/types"
)

type failingBackend struct {
	*storage.MemoryBackend
}

func (failingBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return errors.New("bucket unavailable")
}

func purchaseMessage(t *testing.T) (types.PurchaseEvent, mq.Message) {
	t.Helper()
	event := types.PurchaseEvent{
		ID:          "evt-1",
		UserID:      2,
		UserEmail:   "ana@x.com",
		CourseID:    1,
		CourseName:  "Tarot Evolutivo",
		Price:       45000,
		Currency:    "ARS",
		PurchasedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return event, mq.Message{ID: "m-1", Data: data}
}

func TestHandleStoresReceipt(t *testing.T) {
	backend := storage.NewMemoryBackend()
	worker := NewWorker(storage.NewStorage(backend), "course-purchases", logging.Discard())
	event, msg := purchaseMessage(t)

	require.NoError(t, worker.Handle(context.Background(), msg))
	require.Equal(t, []string{"receipts/2/evt-1.json"}, backend.Keys())

	rc, err := backend.Get(context.Background(), Key(event))
	require.NoError(t, err)
	defer rc.Close()
	var receipt Receipt
	require.NoError(t, json.NewDecoder(rc).Decode(&receipt))
	require.Equal(t, event.CourseName, receipt.CourseName)
	require.Equal(t, int64(45000), receipt.Price)
	require.False(t, receipt.IssuedAt.IsZero())
}

func TestHandleDropsMalformedPayload(t *testing.T) {
	backend := storage.NewMemoryBackend()
	worker := NewWorker(storage.NewStorage(backend), "course-purchases", logging.Discard())

	require.NoError(t, worker.Handle(context.Background(), mq.Message{ID: "m-2", Data: []byte("{")}))
	require.Empty(t, backend.Keys())
}

func TestHandleWithoutStorage(t *testing.T) {
	worker := NewWorker(nil, "course-purchases", logging.Discard())
	_, msg := purchaseMessage(t)
	require.NoError(t, worker.Handle(context.Background(), msg))
}

func TestHandleReturnsStorageErrors(t *testing.T) {
	worker := NewWorker(storage.NewStorage(failingBackend{storage.NewMemoryBackend()}), "course-purchases", logging.Discard())
	_, msg := purchaseMessage(t)
	require.Error(t, worker.Handle(context.Background(), msg))
}

func TestRunConsumesPublishedEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	backend := storage.NewMemoryBackend()
	worker := NewWorker(storage.NewStorage(backend), "course-purchases", logging.Discard())
	queue := mq.NewMQ(mq.NewMemoryBroker())

	_, msg := purchaseMessage(t)
	_, err := queue.Publish(ctx, "course-purchases", msg.Data, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx, queue) }()

	require.Eventually(t, func() bool { return len(backend.Keys()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
