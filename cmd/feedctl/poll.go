package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"feedwatch/internal/infra/fetcher"
	workerPkg "feedwatch/internal/infra/worker"
	"feedwatch/internal/observability/logging"
	"feedwatch/internal/usecase/feed"
	"feedwatch/internal/usecase/notify"
	"feedwatch/internal/usecase/outage"
	"feedwatch/internal/usecase/poll"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll one publisher now",
	Long: `Poll fetches a publisher's feed in the foreground and follows
continuation pages until the chain stops. Notifications and outages are
handled exactly as the worker would.`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().Int64P("publisher", "p", 0, "Publisher ID (required)")
	pollCmd.Flags().String("url", "", "Page URL to start from (defaults to the publisher endpoint)")
	pollCmd.Flags().Bool("no-notify", false, "Skip event processing and notifications")
	_ = pollCmd.MarkFlagRequired("publisher")
}

func runPoll(cmd *cobra.Command, args []string) error {
	publisherID, _ := cmd.Flags().GetInt64("publisher")
	startURL, _ := cmd.Flags().GetString("url")
	noNotify, _ := cmd.Flags().GetBool("no-notify")

	logger := newLogger()
	ctx := logging.ContextWithRequestID(cmd.Context(), logging.NewRequestID())

	store, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	fetchConfig, warnings := fetcher.LoadConfigFromEnv()
	for _, w := range warnings {
		logger.Warn("Configuration fallback applied", slog.String("warning", w))
	}
	defaults := workerPkg.DefaultConfig()

	dispatcher := notify.NewDispatcher(notify.LoadChannelsFromEnv(logger), store.Credentials, store.Subscriptions, logger)
	processor := feed.NewProcessor(store.Events, store.Subscriptions, dispatcher, defaults.NotifyMaxConcurrent, logger)

	queue := &poll.SyncQueue{}
	poller := poll.NewPoller(
		store.Publishers,
		fetcher.NewPageFetcher(fetchConfig),
		processor,
		outage.NewTracker(store.Publishers, logger),
		queue,
		poll.Config{NotificationsEnabled: !noNotify},
		logger,
	)

	job := poll.Job{PublisherID: publisherID, URL: startURL, PageNumber: 1}
	pages := 0
	for {
		if err := poller.Poll(ctx, job); err != nil {
			return fmt.Errorf("poll page %d: %w", job.PageNumber, err)
		}
		pages++
		next, ok := queue.Next()
		if !ok {
			break
		}
		job = next
	}

	fmt.Fprintf(cmd.OutOrStdout(), "polled %d page(s) for publisher %d\n", pages, publisherID)
	return nil
}
