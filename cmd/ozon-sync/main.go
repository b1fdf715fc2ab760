package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/marketsync_backend/config"
	"bitbucket.org/mmdatafocus/marketsync_backend/models"
	"bitbucket.org/mmdatafocus/marketsync_backend/ozonsync"
	"bitbucket.org/mmdatafocus/marketsync_backend/store"
	"github.com/sirupsen/logrus"
)

// One-shot sync of yesterday's window for every connected cabinet. Meant to
// run from cron; the service binary handles on-demand and pubsub runs.
func main() {
	clientID := flag.String("client-id", "", "Optional: sync only one cabinet. If empty, syncs all connected Ozon cabinets.")
	date := flag.String("date", "", "Optional: sync the window for this date (YYYY-MM-DD) instead of yesterday.")
	flag.Parse()

	logger := config.GetLogger()
	ctx := context.Background()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	from, to := ozonsync.YesterdayWindow(time.Now())
	if strings.TrimSpace(*date) != "" {
		day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(*date), time.UTC)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -date: %v\n", err)
			os.Exit(1)
		}
		from = day
		to = day.Add(24*time.Hour - time.Millisecond)
	}

	var clients []models.Client
	var err error
	if strings.TrimSpace(*clientID) != "" {
		client, lookupErr := models.GetClientByClientId(ctx, strings.TrimSpace(*clientID))
		if lookupErr != nil {
			fmt.Fprintf(os.Stderr, "failed to load client: %v\n", lookupErr)
			os.Exit(1)
		}
		if client == nil {
			fmt.Fprintf(os.Stderr, "client %s not found\n", *clientID)
			os.Exit(1)
		}
		clients = []models.Client{*client}
	} else {
		clients, err = models.GetClients(ctx, models.MarketplaceOzon)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list clients: %v\n", err)
			os.Exit(1)
		}
	}

	worker := ozonsync.NewWorker(
		store.New(db, store.DefaultRetryPolicy(), logger),
		ozonsync.NewOzonClient,
		logger,
		ozonsync.DefaultCycleRetry(),
	)

	failed := 0
	for _, client := range clients {
		logger.WithFields(logrus.Fields{
			"client_id":    client.ClientId,
			"name_company": client.NameCompany,
			"from":         from.Format(time.RFC3339),
			"to":           to.Format(time.RFC3339),
		}).Info("syncing client window")

		added, err := worker.SyncClient(ctx, client, from, to)
		if err != nil {
			failed++
			config.LogError(logger, "ozon-sync", "main", "Client sync failed", client.ClientId, err)
			continue
		}
		logger.WithFields(logrus.Fields{
			"client_id": client.ClientId,
			"added":     added,
		}).Info("client window synced")
	}

	if failed > 0 {
		os.Exit(1)
	}
}
