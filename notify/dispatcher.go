package notify

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"kanban-api/domain"
)

// Sink persists a notification record and hands it to the delivery queue.
type Sink interface {
	InsertNotification(ctx context.Context, n domain.Notification) error
	EnqueueNotification(ctx context.Context, n domain.Notification) error
}

// Options tune the dispatcher worker pool.
type Options struct {
	Workers        int
	Buffer         int
	DeliverTimeout time.Duration
	HandoffTimeout time.Duration
}

// Dispatcher delivers notifications off the request path. Delivery is best
// effort: a mutation that already committed never fails or blocks because a
// notification could not be handed off, so a saturated buffer drops the
// record after a short handoff wait and logs the loss.
type Dispatcher struct {
	sink   Sink
	logger *log.Logger
	opts   Options

	jobs     chan domain.Notification
	stopCh   chan struct{}
	workerWG sync.WaitGroup

	mu      sync.Mutex
	closing bool
}

// NewDispatcher starts the worker pool and returns the running dispatcher.
func NewDispatcher(sink Sink, logger *log.Logger, opts Options) *Dispatcher {
	if sink == nil {
		panic("notify.NewDispatcher: sink is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	if opts.DeliverTimeout <= 0 {
		opts.DeliverTimeout = 30 * time.Second
	}

	d := &Dispatcher{
		sink:   sink,
		logger: logger,
		opts:   opts,
		jobs:   make(chan domain.Notification, opts.Buffer),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < opts.Workers; i++ {
		d.workerWG.Add(1)
		go d.worker(i)
	}
	logger.Infof("notification dispatcher started, workers: %d, buffer: %d, timeout: %v, handoff: %v",
		opts.Workers, opts.Buffer, opts.DeliverTimeout, opts.HandoffTimeout)
	return d
}

// Notify hands the record to the worker pool. It never returns an error;
// delivery failures are logged by the workers.
func (d *Dispatcher) Notify(n domain.Notification) {
	select {
	case d.jobs <- n:
		return
	case <-d.stopCh:
		d.logger.Warnf("notification dropped during shutdown, recipient: %s", n.RecipientID)
		return
	default:
	}

	if d.opts.HandoffTimeout <= 0 {
		d.logger.Warnf("notification dropped, buffer full, recipient: %s", n.RecipientID)
		return
	}

	timer := time.NewTimer(d.opts.HandoffTimeout)
	defer timer.Stop()
	select {
	case d.jobs <- n:
	case <-timer.C:
		d.logger.Warnf("notification dropped, handoff timed out, recipient: %s", n.RecipientID)
	case <-d.stopCh:
		d.logger.Warnf("notification dropped during shutdown, recipient: %s", n.RecipientID)
	}
}

// Shutdown stops accepting new records, drains the buffer and waits for the
// workers to finish. The jobs channel is never closed so a concurrent Notify
// cannot panic; records that race past the stop signal are simply dropped.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		return
	}
	d.closing = true
	close(d.stopCh)
	d.mu.Unlock()

	d.workerWG.Wait()
}

func (d *Dispatcher) worker(id int) {
	defer d.workerWG.Done()
	for {
		select {
		case n := <-d.jobs:
			d.deliver(n, id)
		case <-d.stopCh:
			for {
				select {
				case n := <-d.jobs:
					d.deliver(n, id)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(n domain.Notification, workerID int) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.DeliverTimeout)
	defer cancel()

	if err := d.sink.InsertNotification(ctx, n); err != nil {
		d.logger.Errorf("notification insert failed, err: %v, recipient: %s, worker: %d", err, n.RecipientID, workerID)
		return
	}
	if err := d.sink.EnqueueNotification(ctx, n); err != nil {
		// The stored record survives; only the push channel misses out.
		d.logger.Errorf("notification enqueue failed, err: %v, recipient: %s, worker: %d", err, n.RecipientID, workerID)
	}
}
