package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/printerbridge/internal/config"
	"github.com/Lllllllleong/printerbridge/internal/gcp"
	"github.com/Lllllllleong/printerbridge/internal/models"
	"github.com/Lllllllleong/printerbridge/internal/printer"
	"github.com/Lllllllleong/printerbridge/internal/services"
)

var (
	cfg        *config.Config
	dispatcher *services.Dispatcher
)

func init() {
	// Served only when STATUS_PORT is set.
	functions.HTTP("BridgeStatus", bridgeStatus)
}

func main() {
	os.Exit(run())
}

// run starts the bridge and blocks until shutdown. It returns the process exit
// code so deferred closes run before main exits.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	cfg, err = config.Load(gcp.GetEnv("CONFIG_PATH", "printer-bridge.yaml"))
	if err != nil {
		return fail("Failed to load configuration", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if _, statErr := os.Stat(cfg.CredentialPath); statErr != nil {
		slog.Error("Service account key not found. Download it from the Firebase console and set CREDENTIAL_PATH.",
			"credentialPath", cfg.CredentialPath)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		return fail("Invalid configuration", err)
	}
	if err := os.MkdirAll(cfg.DownloadFolder, 0o755); err != nil {
		return fail("Failed to create download folder", err)
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID, cfg.CredentialPath)
	if err != nil {
		return fail("Failed to connect to Firestore", err)
	}
	defer firestoreClient.Close()
	if err := ping(ctx, firestoreClient, cfg.Collection); err != nil {
		return fail("Failed to connect to Firestore", err)
	}
	slog.Info("Connected to Firestore.", "collection", cfg.Collection)

	storageClient, err := gcp.NewStorageClient(ctx, cfg.CredentialPath)
	if err != nil {
		return fail("Failed to create storage client", err)
	}
	defer storageClient.Close()

	var notifier services.Notifier
	if cfg.NotifySinkURL != "" {
		n, err := services.NewCloudEventNotifier(cfg.NotifySinkURL)
		if err != nil {
			return fail("Failed to create status notifier", err)
		}
		notifier = n
	}

	store := gcp.NewOrderStore(firestoreClient, cfg.Collection)
	processor := services.NewProcessor(
		store,
		services.NewFetcher(nil, storageClient),
		printer.New(),
		notifier,
		services.ProcessorConfig{
			DownloadFolder:   cfg.DownloadFolder,
			PrinterName:      cfg.PrinterName,
			CleanupDownloads: cfg.CleanupDownloads,
		},
	)
	dispatcher = services.NewDispatcher(store, processor, cfg.AutoPrint, cfg.MaxConcurrent)

	if cfg.StatusPort != "" {
		go func() {
			if err := funcframework.StartHostPort("", cfg.StatusPort); err != nil {
				slog.Error("Status endpoint stopped", "error", err)
			}
		}()
		slog.Info("Status endpoint listening.", "port", cfg.StatusPort)
	}

	runErr := dispatcher.Run(ctx)

	slog.Info("Waiting for in-flight orders to finish.", "inFlight", dispatcher.InFlight())
	dispatcher.Wait()

	if runErr != nil {
		return fail("Order listener stopped", runErr)
	}
	slog.Info("Printer bridge stopped.")
	return 0
}

// ping performs one cheap read so bad credentials fail at startup rather
// than inside the listener.
func ping(ctx context.Context, client *firestore.Client, collection string) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if _, err := client.Collection(collection).Limit(1).Documents(ctx).GetAll(); err != nil {
		return fmt.Errorf("read %s: %w", collection, err)
	}
	return nil
}

// bridgeStatus reports the auto-print configuration and in-flight orders.
func bridgeStatus(w http.ResponseWriter, r *http.Request) {
	if dispatcher == nil {
		http.Error(w, "Service Unavailable: bridge not started", http.StatusServiceUnavailable)
		return
	}
	autoPrint := dispatcher.AutoPrint()
	res := models.BridgeStatusResponse{
		AutoPrintEnabled: autoPrint.Enabled,
		AutoPrintTypes:   autoPrint.Types,
		PrinterName:      cfg.PrinterName,
		InFlight:         dispatcher.InFlight(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write status response", "error", err)
	}
}

func fail(msg string, err error) int {
	slog.Error(msg, "error", err)
	return 1
}
