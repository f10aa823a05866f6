package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"login-service/internal/bucketing"
	"login-service/internal/config"
	"login-service/internal/models"
	"login-service/internal/util"
)

const (
	maxBatch     = 64
	writeTimeout = 5 * time.Second
)

// Dispatcher stamps events and forwards them to a sink from a single background
// goroutine. Batches are formed from whatever is already queued; nothing waits to fill one.
type Dispatcher struct {
	cfg       config.AuditConfig
	sink      Sink
	buckets   *bucketing.BucketingManager
	ch        chan models.SecurityEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	closeOnce sync.Once

	// held for reading across every send so Close cannot close done between the
	// closed check and the send
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(cfg config.AuditConfig, sink Sink, buckets *bucketing.BucketingManager) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		buckets: buckets,
		ch:      make(chan models.SecurityEvent, cfg.BufferSize),
		done:    make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	batch := make([]models.SecurityEvent, 0, maxBatch)
	for {
		select {
		case event := <-d.ch:
			batch = append(batch[:0], event)
			batch = d.collect(batch)
			d.flush(batch)
		case <-d.done:
			for {
				batch = d.collect(batch[:0])
				if len(batch) == 0 {
					return
				}
				d.flush(batch)
			}
		}
	}
}

// collect appends queued events without blocking until the batch is full.
func (d *Dispatcher) collect(batch []models.SecurityEvent) []models.SecurityEvent {
	for len(batch) < maxBatch {
		select {
		case event := <-d.ch:
			batch = append(batch, event)
		default:
			return batch
		}
	}
	return batch
}

func (d *Dispatcher) flush(batch []models.SecurityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := d.sink.Write(ctx, batch); err != nil {
		d.failed.Add(uint64(len(batch)))
		util.Warn("Audit sink write failed",
			util.String("sink", d.sink.Name()),
			util.Int("events", len(batch)),
			util.ErrorField(err))
	}
}

// Emit stamps event and queues it. With DropIfFull a full buffer drops the event,
// otherwise Emit waits for room or for ctx to end. Events emitted after Close count as dropped.
func (d *Dispatcher) Emit(ctx context.Context, event models.SecurityEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.stamp(&event)

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

func (d *Dispatcher) stamp(event *models.SecurityEvent) {
	if event.EventTime.IsZero() {
		event.EventTime = time.Now().UTC()
	}
	if event.EventID == "" {
		event.EventID = ulid.MustNew(ulid.Timestamp(event.EventTime), ulid.DefaultEntropy()).String()
	}
	if d.buckets != nil {
		key := event.AccountID
		if key == "" {
			key = event.SessionRef
		}
		a := d.buckets.Assign(key, event.EventTime)
		event.EventBucket = a.EventBucket
		event.EventDate = a.DateBucket
	}
}

// Close stops accepting events and returns once everything queued has been written.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.done)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Failed counts events in batches the sink rejected.
func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
