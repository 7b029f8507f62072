package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event topics published after a settlement commits
const (
	TopicOrderUpdate = "order:update"
	TopicBillStatus  = "bill:status"
	TopicTableUpdate = "table:update"
	TopicKOTUpdate   = "kot:update"
)

// EventPayload is the body of a post-commit event.
type EventPayload struct {
	OutletID int         `json:"outletId"`
	OrderID  int         `json:"orderId"`
	Entity   string      `json:"entity"`
	Data     interface{} `json:"data"`
}

// ReceiptInvoice is the invoice snapshot sent with a receipt.
type ReceiptInvoice struct {
	InvoiceNumber string      `json:"invoiceNumber"`
	OrderID       int         `json:"orderId"`
	OrderNumber   string      `json:"orderNumber"`
	GrandTotal    string      `json:"grandTotal"`
	PaidAmount    string      `json:"paidAmount"`
	PaymentNumber string      `json:"paymentNumber"`
	PaymentMode   string      `json:"paymentMode"`
	PaidAt        time.Time   `json:"paidAt"`
	Lines         interface{} `json:"lines,omitempty"`
}

// ReceiptOutlet is the outlet snapshot sent with a receipt.
type ReceiptOutlet struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
}

// Publisher delivers an event to subscribers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload EventPayload) error
}

// ReceiptSender delivers a receipt to a customer.
type ReceiptSender interface {
	SendReceipt(ctx context.Context, phone string, invoice ReceiptInvoice, outlet ReceiptOutlet) error
}

// DispatcherConfig tunes the notification queue.
type DispatcherConfig struct {
	Workers       int
	QueueSize     int
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
}

type task struct {
	id   string
	name string
	run  func(ctx context.Context) error
}

// Dispatcher runs post-commit notifications on a bounded queue with
// per-task retry. Nothing it runs can affect committed settlement state.
type Dispatcher struct {
	publisher Publisher
	receipts  ReceiptSender
	cfg       DispatcherConfig

	queue  chan task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	closed  bool
	started bool
}

// NewDispatcher builds a Dispatcher. Call Start before enqueueing.
func NewDispatcher(publisher Publisher, receipts ReceiptSender, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 64
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.RetryMaxDelay < cfg.RetryBackoff {
		cfg.RetryMaxDelay = cfg.RetryBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		publisher: publisher,
		receipts:  receipts,
		cfg:       cfg,
		queue:     make(chan task, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the workers.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	log.Printf("[dispatcher] started %d workers (queue %d)", d.cfg.Workers, d.cfg.QueueSize)
}

// Stop refuses new tasks and waits for queued ones until ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		log.Println("[dispatcher] drained")
		return nil
	case <-ctx.Done():
		d.cancel()
		return fmt.Errorf("dispatcher stop: %w", ctx.Err())
	}
}

// PublishAsync queues an event. It never blocks.
func (d *Dispatcher) PublishAsync(topic string, payload EventPayload) bool {
	return d.enqueue(task{
		id:   uuid.NewString(),
		name: "publish " + topic,
		run: func(ctx context.Context) error {
			return d.publisher.Publish(ctx, topic, payload)
		},
	})
}

// SendReceiptAsync queues a receipt delivery. It never blocks.
func (d *Dispatcher) SendReceiptAsync(phone string, invoice ReceiptInvoice, outlet ReceiptOutlet) bool {
	return d.enqueue(task{
		id:   uuid.NewString(),
		name: "receipt " + invoice.InvoiceNumber,
		run: func(ctx context.Context) error {
			return d.receipts.SendReceipt(ctx, phone, invoice, outlet)
		},
	})
}

func (d *Dispatcher) enqueue(t task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.Printf("[dispatcher] dropped %s (%s): dispatcher stopped", t.name, t.id)
		return false
	}

	select {
	case d.queue <- t:
		return true
	default:
		log.Printf("[dispatcher] dropped %s (%s): queue full", t.name, t.id)
		return false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.queue {
		d.run(t)
	}
}

func (d *Dispatcher) run(t task) {
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		err := d.safeRun(t)
		if err == nil {
			return
		}
		if attempt == d.cfg.MaxAttempts {
			log.Printf("[dispatcher] giving up on %s (%s) after %d attempts: %v", t.name, t.id, attempt, err)
			return
		}

		delay := retryDelay(d.cfg.RetryBackoff, d.cfg.RetryMaxDelay, attempt)
		log.Printf("[dispatcher] %s (%s) failed attempt %d, retrying in %s: %v", t.name, t.id, attempt, delay, err)

		select {
		case <-d.ctx.Done():
			log.Printf("[dispatcher] abandoning %s (%s): shutting down", t.name, t.id)
			return
		case <-time.After(delay):
		}
	}
}

func (d *Dispatcher) safeRun(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.run(d.ctx)
}

// retryDelay doubles base per attempt and caps it at max.
func retryDelay(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	if attempt > 30 {
		return max
	}
	delay := base << (attempt - 1)
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}
