package channel

import (
	"sync"

	"chat-sync/contract"
	"chat-sync/domain/event"
)

// dispatcher is the handler registry. Every registration returns an
// explicit unsubscribe closure so owners can release on teardown and
// rapid view churn cannot leak handlers.
type dispatcher struct {
	mu        sync.RWMutex
	nextID    int
	onMessage map[int]func(event.MessageReceived)
	onDeleted map[int]func(event.MessageDeleted)
	onState   map[int]func(contract.ConnectionState)
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		onMessage: make(map[int]func(event.MessageReceived)),
		onDeleted: make(map[int]func(event.MessageDeleted)),
		onState:   make(map[int]func(contract.ConnectionState)),
	}
}

func (d *dispatcher) addMessage(h func(event.MessageReceived)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.onMessage[id] = h
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.onMessage, id)
	}
}

func (d *dispatcher) addDeleted(h func(event.MessageDeleted)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.onDeleted[id] = h
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.onDeleted, id)
	}
}

func (d *dispatcher) addState(h func(contract.ConnectionState)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.onState[id] = h
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.onState, id)
	}
}

// emit* deliver synchronously on the read loop goroutine: inbound
// events for one room must reach the store in arrival order.

func (d *dispatcher) emitMessage(e event.MessageReceived) {
	d.mu.RLock()
	handlers := make([]func(event.MessageReceived), 0, len(d.onMessage))
	for _, h := range d.onMessage {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}

func (d *dispatcher) emitDeleted(e event.MessageDeleted) {
	d.mu.RLock()
	handlers := make([]func(event.MessageDeleted), 0, len(d.onDeleted))
	for _, h := range d.onDeleted {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}

func (d *dispatcher) emitState(s contract.ConnectionState) {
	d.mu.RLock()
	handlers := make([]func(contract.ConnectionState), 0, len(d.onState))
	for _, h := range d.onState {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()
	for _, h := range handlers {
		h(s)
	}
}
