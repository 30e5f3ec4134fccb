// Package telemetry exports loop status and events over UDP datagrams or
// MQTT. Everything is fire-and-forget: the exporter buffers, drops when the
// transport is slow, and never back-pressures the control loop.
package telemetry

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"auv-ng/internal/control"
)

// Transport delivers one encoded message. UDP ignores the topic (the
// payload carries a type field); MQTT maps it under the topic prefix.
type Transport interface {
	Publish(topic string, payload []byte) error
	Close() error
}

type statusMsg struct {
	Type string `json:"type"`
	control.Snapshot
}

type eventMsg struct {
	Type      string            `json:"type"`
	SessionID string            `json:"session_id"`
	At        time.Time         `json:"at_utc"`
	Kind      string            `json:"kind"`
	Detail    string            `json:"detail,omitempty"`
	Stats     *control.RunStats `json:"stats,omitempty"`
}

type message struct {
	topic   string
	payload []byte
}

type Publisher struct {
	tr       Transport
	interval time.Duration
	snap     func() control.Snapshot

	ch      chan message
	dropped atomic.Uint64
	failing bool // run goroutine only

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
	closeErr error
}

// New wires a publisher to a transport. snap is polled every interval for
// the periodic status message; events arrive via Record.
func New(tr Transport, interval time.Duration, snap func() control.Snapshot) *Publisher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Publisher{
		tr:       tr,
		interval: interval,
		snap:     snap,
		ch:       make(chan message, 64),
		stopCh:   make(chan struct{}),
	}
}

func (p *Publisher) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = p.Close()
			case <-p.stopCh:
			}
		}()
	}
}

// Record queues an event for export. Never blocks.
func (p *Publisher) Record(ev control.Event) {
	b, err := json.Marshal(eventMsg{
		Type:      "event",
		SessionID: ev.SessionID,
		At:        ev.At.UTC(),
		Kind:      ev.Kind,
		Detail:    ev.Detail,
		Stats:     ev.Stats,
	})
	if err != nil {
		return
	}
	select {
	case p.ch <- message{topic: "event", payload: b}:
	default:
		p.dropped.Add(1)
	}
}

// Dropped reports messages discarded because the queue was full or the
// transport failed.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

func (p *Publisher) Close() error {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()
		p.closeErr = p.tr.Close()
	})
	return p.closeErr
}

func (p *Publisher) run() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case m := <-p.ch:
			p.send(m)
		case <-ticker.C:
			p.publishStatus()
		}
	}
}

func (p *Publisher) publishStatus() {
	if p.snap == nil {
		return
	}
	b, err := json.Marshal(statusMsg{Type: "status", Snapshot: p.snap()})
	if err != nil {
		log.Printf("telemetry: marshal status: %v", err)
		return
	}
	p.send(message{topic: "status", payload: b})
}

// send logs on the first failure and on recovery, not on every miss.
func (p *Publisher) send(m message) {
	err := p.tr.Publish(m.topic, m.payload)
	switch {
	case err != nil && !p.failing:
		log.Printf("telemetry: publish %s: %v", m.topic, err)
		p.failing = true
	case err == nil && p.failing:
		log.Printf("telemetry: publishing again")
		p.failing = false
	}
	if err != nil {
		p.dropped.Add(1)
	}
}
