package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrBufferFull is returned when a memory channel already holds
// memoryBuffer undelivered messages.
var ErrBufferFull = errors.New("memory broker buffer full")

// MemoryBroker delivers messages between goroutines of one process. A
// message published before anyone subscribes waits in the channel buffer;
// once the buffer is full, publishing fails instead of waiting.
type MemoryBroker struct {
	mu       sync.Mutex
	channels map[string]chan Message
	closed   bool
}

const memoryBuffer = 256

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{channels: make(map[string]chan Message)}
}

func (b *MemoryBroker) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ch, err := b.queue(channel)
	if err != nil {
		return "", err
	}
	msg := Message{ID: uuid.NewString(), Data: append([]byte(nil), data...), Attributes: attrs}
	select {
	case ch <- msg:
		return msg.ID, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrBufferFull, channel)
	}
}

// Subscribe blocks until ctx is done. A failed message is put back on the
// channel; if the channel filled up meanwhile, Subscribe returns the
// handler error.
func (b *MemoryBroker) Subscribe(ctx context.Context, channel string, handler Handler) error {
	ch, err := b.queue(channel)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			if err := handler(ctx, msg); err != nil {
				select {
				case ch <- msg:
				default:
					return fmt.Errorf("requeue %s: %w: %w", msg.ID, ErrBufferFull, err)
				}
			}
		}
	}
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *MemoryBroker) queue(name string) (chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("memory broker closed")
	}
	ch, ok := b.channels[name]
	if !ok {
		ch = make(chan Message, memoryBuffer)
		b.channels[name] = ch
	}
	return ch, nil
}
