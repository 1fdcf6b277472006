package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Lllllllleong/printerbridge/internal/models"
)

// OrderStore is the subset of the order store the processor writes through.
// Every status write goes through Transition so the table is enforced by the
// store itself.
type OrderStore interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	Transition(ctx context.Context, id string, from, to models.Status, fields map[string]any) error
}

type FileFetcher interface {
	Fetch(ctx context.Context, url, destPath string) (bool, error)
}

type Printer interface {
	Print(ctx context.Context, filePath, printerName string) (bool, string)
}

// Outcome summarizes how one Process call ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	// OutcomeStalled means the order was left at Paid without a status write.
	OutcomeStalled Outcome = "stalled"
	// OutcomeSkipped means the order was no longer Paid when the run started.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeUnrecorded means the file was sent to the printer but the order
	// never reached Printing, so no terminal status could be written.
	OutcomeUnrecorded Outcome = "unrecorded"
)

type ProcessorConfig struct {
	DownloadFolder   string
	PrinterName      string
	CleanupDownloads bool
}

// Processor runs one order through download, print and status write-back.
// It keeps no per-order state, so concurrent calls for different orders are
// independent.
type Processor struct {
	store    OrderStore
	fetcher  FileFetcher
	printer  Printer
	notifier Notifier
	config   ProcessorConfig
	now      func() time.Time
}

func NewProcessor(store OrderStore, fetcher FileFetcher, printer Printer, notifier Notifier, cfg ProcessorConfig) *Processor {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Processor{
		store:    store,
		fetcher:  fetcher,
		printer:  printer,
		notifier: notifier,
		config:   cfg,
		now:      time.Now,
	}
}

// LocalPath is the download location for an order. Only the base of fileName
// is used so a crafted name cannot escape the download folder.
func (p *Processor) LocalPath(id, fileName string) string {
	return filepath.Join(p.config.DownloadFolder, fmt.Sprintf("%s_%s", id, filepath.Base(fileName)))
}

// Process downloads and prints one Paid order and records the result.
func (p *Processor) Process(ctx context.Context, id string, order models.Order) Outcome {
	fileName := order.FileNameOrDefault(id)
	logCtx := slog.With("orderId", id, "fileName", fileName)
	logCtx.Info("Processing order.")

	current, err := p.store.Get(ctx, id)
	if err != nil {
		logCtx.Error("Failed to re-read order; leaving it untouched.", "error", err)
		return OutcomeStalled
	}
	if current.Status != models.StatusPaid {
		logCtx.Info("Order is no longer Paid. Skipping.", "status", current.Status)
		return OutcomeSkipped
	}

	if order.FileURL == "" {
		logCtx.Warn("No file URL found. Order stays Paid.")
		return OutcomeStalled
	}

	localPath := p.LocalPath(id, fileName)
	logCtx.Info("Downloading file.", "url", order.FileURL, "path", localPath)
	if _, err := p.fetcher.Fetch(ctx, order.FileURL, localPath); err != nil {
		logCtx.Warn("Download failed. Order stays Paid.", "error", err)
		return OutcomeStalled
	}
	logCtx.Info("Downloaded file.")
	if p.config.CleanupDownloads {
		defer func() {
			if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
				logCtx.Warn("Failed to remove downloaded file.", "path", localPath, "error", err)
			}
		}()
	}

	claimed := true
	err = p.store.Transition(ctx, id, models.StatusPaid, models.StatusPrinting, nil)
	switch {
	case errors.Is(err, models.ErrStatusMismatch), errors.Is(err, models.ErrOrderNotFound):
		logCtx.Info("Order was claimed or removed elsewhere. Not printing.", "error", err)
		p.discard(logCtx, localPath)
		return OutcomeSkipped
	case err != nil:
		// The print still goes ahead; a dashboard simply won't show Printing.
		logCtx.Error("Failed to update status to Printing", "error", err)
		claimed = false
	default:
		p.notify(ctx, id, order, models.StatusPrinting, "", time.Time{})
	}

	logCtx.Info("Printing.", "printer", p.printerLabel())
	ok, detail := p.printer.Print(ctx, localPath, p.config.PrinterName)

	to, outcome := models.StatusCompleted, OutcomeCompleted
	fields := map[string]any{}
	var errorMsg string
	var printedAt time.Time
	if ok {
		printedAt = p.now()
		fields[models.FieldPrintedAt] = printedAt
		logCtx.Info("Sent to printer.", "detail", detail)
	} else {
		to, outcome = models.StatusFailed, OutcomeFailed
		errorMsg = detail
		fields[models.FieldErrorMsg] = errorMsg
		logCtx.Warn("Print failed.", "detail", detail)
	}

	err = p.store.Transition(ctx, id, models.StatusPrinting, to, fields)
	switch {
	case err == nil:
		p.notify(ctx, id, order, to, errorMsg, printedAt)
	case !claimed && errors.Is(err, models.ErrStatusMismatch):
		// The Printing write was lost, so Printing -> terminal cannot apply and
		// Paid -> terminal is not a legal move.
		logCtx.Error("CRITICAL: Order was printed but never reached Printing; terminal status not recorded.",
			"status", to, "printOK", ok, "error", err)
		return OutcomeUnrecorded
	default:
		logCtx.Error("CRITICAL: Failed to write terminal status.", "status", to, "error", err)
	}
	return outcome
}

// discard removes a download for an order this run does not own.
func (p *Processor) discard(logCtx *slog.Logger, localPath string) {
	if p.config.CleanupDownloads {
		return
	}
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		logCtx.Warn("Failed to remove downloaded file.", "path", localPath, "error", err)
	}
}

func (p *Processor) notify(ctx context.Context, id string, order models.Order, status models.Status, errorMsg string, printedAt time.Time) {
	p.notifier.Notify(ctx, models.StatusEvent{
		OrderID:   id,
		Status:    status,
		FileName:  order.FileNameOrDefault(id),
		PaperType: order.PaperTypeOrDefault(),
		ErrorMsg:  errorMsg,
		PrintedAt: printedAt,
	})
}

func (p *Processor) printerLabel() string {
	if p.config.PrinterName == "" {
		return "system default"
	}
	return p.config.PrinterName
}
