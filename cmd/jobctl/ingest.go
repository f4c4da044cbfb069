package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/H3199/duunikanban/internal/config"
	"github.com/H3199/duunikanban/internal/ingest"
	"github.com/H3199/duunikanban/internal/model"
	"github.com/H3199/duunikanban/internal/scraper"
)

var (
	ingestRegion  string
	ingestWorkers int
	scrapeSources []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Reconcile a JSON array of job records into the store",
	Long: "Reads a JSON array of records (external_id, title, company, url, ...) and " +
		"reconciles them into the store. Re-running the same file changes nothing.",
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one discovery cycle now",
	Args:  cobra.NoArgs,
	RunE:  runScrape,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestRegion, "region", string(model.RegionUnspecified), "Region to tag the records with (FI, EMEA, unspecified)")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 4, "Concurrent upserts")
	scrapeCmd.Flags().StringSliceVar(&scrapeSources, "source", nil, "Sources to run (default $DISCOVERY_SOURCES)")
	rootCmd.AddCommand(ingestCmd, scrapeCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	region, err := model.ParseRegion(ingestRegion)
	if err != nil {
		return err
	}
	records, undecodable, err := readRecords(args[0])
	if err != nil {
		return err
	}

	s, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := ingest.NewReconciler(s, ingest.WithWorkers(ingestWorkers)).Reconcile(cmd.Context(), region, records)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	res.Malformed += undecodable
	return printJSON(cmd, res)
}

// readRecords reads a JSON array of records. Elements that do not decode
// into a Record are counted and dropped; only an unreadable file or a
// top-level value that is not an array fails the call.
func readRecords(path string) ([]model.Record, int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read records: %w", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, 0, fmt.Errorf("parse records %s: %w", path, err)
	}

	records := make([]model.Record, 0, len(raw))
	undecodable := 0
	for i, elem := range raw {
		var rec model.Record
		if err := json.Unmarshal(elem, &rec); err != nil {
			slog.Warn("skipping malformed record", "index", i, "err", err)
			undecodable++
			continue
		}
		records = append(records, rec)
	}
	return records, undecodable, nil
}

func runScrape(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	if len(scrapeSources) > 0 {
		cfg.Sources = scrapeSources
	}

	sources, err := scraper.SourcesFromConfig(cfg, scraper.NewTheirStackFetcher(cfg.TheirStackAPIKey, ""))
	if err != nil && len(sources) == 0 {
		return err
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}

	s, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	w := scraper.NewWorker(ingest.NewReconciler(s, ingest.WithWorkers(cfg.IngestWorkers)), nil, nil)
	results := make(map[string]ingest.Result, len(sources))
	for _, src := range sources {
		res, err := w.Run(cmd.Context(), src)
		if err != nil {
			return err
		}
		results[src.Name()] = res
	}
	return printJSON(cmd, results)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
