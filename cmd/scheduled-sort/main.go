package main

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/Lllllllleong/boxdocumentsorter/internal/services"
)

var (
	scheduledSortInstance *services.ScheduledSortFunction
	once                  sync.Once
	initErr               error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("ScheduledSort", scheduledSort)
}

// main is required by the Go Functions Framework.
func main() {}

// scheduledSort runs a sort for the user and folder named in the Pub/Sub message.
// Returning an error makes Pub/Sub redeliver the message.
func scheduledSort(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		scheduledSortInstance, initErr = services.NewScheduledSort(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	return scheduledSortInstance.HandleEvent(ctx, e.ID(), e.Data())
}
