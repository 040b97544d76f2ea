package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"feedwatch/internal/domain/entity"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load publisher fixtures from a YAML file",
	Long: `Seed inserts every publisher in the file along with its subscriptions.
Channel credentials are upserted per publisher and channel.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringP("file", "f", "", "Path to fixtures YAML (required)")
	_ = seedCmd.MarkFlagRequired("file")
}

func runSeed(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")

	fixtures, err := LoadFixtures(path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := newLogger()
	store, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	for _, pf := range fixtures.Publishers {
		pub := pf.publisher()
		if err := store.Publishers.Create(ctx, pub); err != nil {
			return fmt.Errorf("create publisher %q: %w", pf.Title, err)
		}
		for _, sf := range pf.Subscriptions {
			sub := &entity.Subscription{PublisherID: pub.ID, Channel: sf.Channel, Address: sf.Address}
			if err := store.Subscriptions.Create(ctx, sub); err != nil {
				return fmt.Errorf("create subscription for %q: %w", pf.Title, err)
			}
		}
		for _, cf := range pf.Credentials {
			creds := &entity.ChannelCredentials{
				PublisherID: pub.ID,
				Channel:     cf.Channel,
				AccountSID:  cf.AccountSID,
				AuthToken:   cf.AuthToken,
				FromNumber:  cf.FromNumber,
			}
			if err := store.Credentials.Upsert(ctx, creds); err != nil {
				return fmt.Errorf("store credentials for %q: %w", pf.Title, err)
			}
		}
		logger.Info("publisher seeded",
			slog.Int64("publisher_id", pub.ID),
			slog.Int("subscriptions", len(pf.Subscriptions)),
			slog.Int("credentials", len(pf.Credentials)))
		fmt.Fprintf(out, "%d\t%s\n", pub.ID, pub.DisplayName())
	}
	return nil
}
