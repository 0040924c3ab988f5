package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eaur/qbsync/internal/records"
)

var syncCmd = &cobra.Command{
	Use:   "sync [kind...]",
	Short: "Run one sync pass and exit",
	Long: `Run one sync pass over the given entity kinds and exit. With no
arguments the kinds from the configuration file are used. Useful from cron or
for a manual push after fixing failed records.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	syncCmd.Flags().Int("batch-size", 0, "Records claimed per batch (overrides config)")
	syncCmd.Flags().Int("max-batches", 0, "Batch bound per kind (overrides config)")

	if err := syncCmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	svcs, err := buildServices(ctx, configPath)
	if err != nil {
		return err
	}
	defer svcs.close()

	if svcs.cfg.QuickBooks.RealmID == "" {
		return fmt.Errorf("no realm id configured, connect the company first")
	}

	kinds := svcs.cfg.EntityKinds()
	if len(args) > 0 {
		kinds = kinds[:0]
		for _, arg := range args {
			kind, err := records.ParseEntityKind(arg)
			if err != nil {
				return err
			}
			kinds = append(kinds, kind)
		}
	}

	batchSize := svcs.cfg.Sync.GetBatchSize()
	if v, _ := cmd.Flags().GetInt("batch-size"); v > 0 {
		batchSize = v
	}
	maxBatches := svcs.cfg.Sync.GetMaxBatches()
	if v, _ := cmd.Flags().GetInt("max-batches"); v > 0 {
		maxBatches = v
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	var failed bool
	for _, kind := range kinds {
		outcome, err := svcs.engine.RunAll(ctx, kind, batchSize, maxBatches)
		if outcome != nil {
			if encodeErr := encoder.Encode(outcome); encodeErr != nil {
				return encodeErr
			}
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "sync %s aborted: %v\n", kind, err)
			failed = true
		}
	}

	if failed {
		return fmt.Errorf("one or more kinds failed to sync")
	}
	return nil
}
