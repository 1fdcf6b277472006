package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/printerbridge/internal/config"
	"github.com/Lllllllleong/printerbridge/internal/models"
)

type OrderSubscriber interface {
	Subscribe(ctx context.Context) (<-chan models.ChangeBatch, <-chan error)
}

type OrderProcessor interface {
	Process(ctx context.Context, id string, order models.Order) Outcome
}

// Dispatcher turns change batches into processor runs. Each eligible order
// gets its own goroutine; the dispatch loop never waits on one.
type Dispatcher struct {
	subscriber OrderSubscriber
	processor  OrderProcessor
	autoPrint  config.AutoPrintConfig
	limited    bool

	group    errgroup.Group
	mu       sync.Mutex
	claimed  map[string]struct{}
	inFlight atomic.Int64
}

// NewDispatcher builds a Dispatcher. maxConcurrent <= 0 leaves the number of
// simultaneous processor runs unbounded.
func NewDispatcher(subscriber OrderSubscriber, processor OrderProcessor, autoPrint config.AutoPrintConfig, maxConcurrent int) *Dispatcher {
	d := &Dispatcher{
		subscriber: subscriber,
		processor:  processor,
		autoPrint:  autoPrint.Clone(),
		claimed:    make(map[string]struct{}),
	}
	if maxConcurrent > 0 {
		d.group.SetLimit(maxConcurrent)
		d.limited = true
	}
	return d
}

// Run consumes the subscription until it ends. It returns the listener error,
// if any; cancellation of ctx is a clean stop.
func (d *Dispatcher) Run(ctx context.Context) error {
	batches, errc := d.subscriber.Subscribe(ctx)
	slog.Info("Watching for new 'Paid' orders.",
		"autoPrintEnabled", d.autoPrint.Enabled, "autoPrintTypes", d.autoPrint.Types)

	for batch := range batches {
		d.HandleBatch(ctx, batch)
	}

	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}

// HandleBatch applies the Paid filter and eligibility gate to every change,
// in order, and launches a processor for each eligible order.
func (d *Dispatcher) HandleBatch(ctx context.Context, batch models.ChangeBatch) {
	for _, change := range batch.Changes {
		if change.Kind != models.ChangeAdded {
			continue
		}
		if change.Order.Status != models.StatusPaid {
			continue
		}

		paperType := change.Order.PaperTypeOrDefault()
		logCtx := slog.With("orderId", change.ID, "paperType", paperType)

		if !d.autoPrint.Enabled {
			logCtx.Info("Order received, but Auto-Print is OFF. Pending manual action.")
			continue
		}
		if !IsAutoPrintEligible(paperType, d.autoPrint) {
			logCtx.Info("Skipping order: paper type not auto-printable. Waiting for manual processing.")
			continue
		}

		d.launch(ctx, logCtx, change.ID, change.Order)
	}
}

func (d *Dispatcher) launch(ctx context.Context, logCtx *slog.Logger, id string, order models.Order) {
	if !d.claim(id) {
		logCtx.Info("Order already being processed. Ignoring duplicate event.")
		return
	}

	// Runs outlive the subscription so shutdown can wait for them.
	runCtx := context.WithoutCancel(ctx)
	run := func() error {
		defer d.release(id)
		defer d.inFlight.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				logCtx.Error("Order processing panicked.", "panic", r)
			}
		}()

		outcome := d.processor.Process(runCtx, id, order)
		logCtx.Info("Order processing finished.", "outcome", outcome)
		return nil
	}

	d.inFlight.Add(1)
	if !d.limited {
		logCtx.Info("Auto-printing order.")
		d.group.Go(run)
		return
	}
	if !d.group.TryGo(run) {
		d.inFlight.Add(-1)
		d.release(id)
		logCtx.Warn("At concurrency limit. Order stays Paid.")
		return
	}
	logCtx.Info("Auto-printing order.")
}

func (d *Dispatcher) claim(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.claimed[id]; ok {
		return false
	}
	d.claimed[id] = struct{}{}
	return true
}

func (d *Dispatcher) release(id string) {
	d.mu.Lock()
	delete(d.claimed, id)
	d.mu.Unlock()
}

// Wait blocks until every launched processor run has returned.
func (d *Dispatcher) Wait() {
	_ = d.group.Wait()
}

// InFlight reports the number of processor runs currently executing.
func (d *Dispatcher) InFlight() int {
	return int(d.inFlight.Load())
}

// AutoPrint returns the configuration the dispatcher was built with.
func (d *Dispatcher) AutoPrint() config.AutoPrintConfig {
	return d.autoPrint.Clone()
}
