package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
)

// Bus is an in-process transport for tests and single-binary demos.
// Delivery happens on a fresh goroutine per message, mirroring the
// fire-and-forget behavior of the HTTP transport.
type Bus struct {
	mu       sync.RWMutex
	handlers map[protocol.PartyRef]HandlerFunc
	wg       sync.WaitGroup
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[protocol.PartyRef]HandlerFunc)}
}

// Register attaches a party's inbound handler.
func (b *Bus) Register(ref protocol.PartyRef, h HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[ref] = h
}

func (b *Bus) Send(ctx context.Context, to protocol.PartyRef, env protocol.Envelope) error {
	b.mu.RLock()
	h, ok := b.handlers[to]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParty, to)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		h(context.WithoutCancel(ctx), env)
	}()
	return nil
}

// Drain blocks until all in-flight deliveries finish.
func (b *Bus) Drain() {
	b.wg.Wait()
}
