package commands

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/fortuna/cricstats/internal/ingest"
	"github.com/fortuna/cricstats/internal/jobs"
)

var (
	scrapeResume bool
	scrapeReset  bool
	scrapePoll   time.Duration
	scrapeOutput string
	scrapeNoCSV  bool
)

func init() {
	scrapeCmd.Flags().BoolVar(&scrapeResume, "resume", false, "Skip items an earlier interrupted run already stored (needs REDIS_URL)")
	scrapeCmd.Flags().BoolVar(&scrapeReset, "reset", false, "Forget resume state before scraping")
	scrapeCmd.Flags().DurationVar(&scrapePoll, "poll", 0, "Repeat the scrape at this interval until interrupted")
	scrapeCmd.Flags().StringVarP(&scrapeOutput, "output", "o", "", "Directory for CSV files (overrides config)")
	scrapeCmd.Flags().BoolVar(&scrapeNoCSV, "no-csv", false, "Do not write CSV files")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [batting|bowling|summary|roster|all]",
	Short: "Runs one scrape, or all of them, and writes the records to every enabled sink.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := ingest.KindAll
		if len(args) == 1 {
			k, err := ingest.ParseKind(args[0])
			if err != nil {
				return err
			}
			kind = k
		}

		if scrapeOutput != "" {
			cfg.OutputDir = scrapeOutput
		}
		if scrapeNoCSV {
			cfg.Sinks.CSV = false
		}

		ctx := cmd.Context()
		a, err := openApp(ctx, cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		if scrapeReset {
			if err := a.resetSeen(ctx, kind); err != nil {
				return err
			}
			log.Printf("✓ Resume state cleared for %s", kind)
		}

		if scrapeResume {
			a.logResume(ctx, kind)
		}

		if scrapePoll > 0 {
			r, err := a.runner(scrapeResume)
			if err != nil {
				return err
			}
			r.Poll(ctx, kind, scrapePoll, func(summaries []ingest.RunSummary, _ error) {
				printSummaries(cmd.OutOrStdout(), summaries)
			})
			return nil
		}

		runner := jobs.NewRunner(a.scraper())
		job := &jobs.Job{Kind: kind, Resume: scrapeResume}
		summaries, err := runner.Run(ctx, job, &consoleReporter{})
		printSummaries(cmd.OutOrStdout(), summaries)
		return err
	},
}

// printSummaries renders one row per scrape
func printSummaries(w io.Writer, summaries []ingest.RunSummary) {
	if len(summaries) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Scrape", "Passes", "Items", "Processed", "Failed", "Duplicates", "Records", "Sink failures", "Duration", "Error"})

	var records int
	for _, s := range summaries {
		records += s.Records
		t.AppendRow(table.Row{
			s.Kind,
			s.Stats.Passes,
			s.Stats.Seen,
			s.Stats.Processed,
			s.Stats.Failed,
			s.Stats.Duplicates,
			s.Records,
			s.SinkFailures,
			s.Duration.Round(time.Second),
			s.Error,
		})
	}
	t.AppendFooter(table.Row{"Total", "", "", "", "", "", records})
	t.Render()
}

type consoleReporter struct{}

func (c *consoleReporter) OnJobStart(job *jobs.Job) {
	log.Printf("Starting %s scrape (resume=%v)", job.Kind, job.Resume)
}

func (c *consoleReporter) OnScrapeStart(kind ingest.Kind, index int, total int) {
	log.Printf("[%d/%d] %s", index+1, total, kind)
}

func (c *consoleReporter) OnScrapeComplete(summary ingest.RunSummary, index int, total int) {
	log.Printf("[%d/%d] %s done: %d records", index+1, total, summary.Kind, summary.Records)
}

func (c *consoleReporter) OnJobComplete() {
	log.Println("✓ Scrape complete")
}

func (c *consoleReporter) OnJobError(err error) {
	fmt.Fprintf(os.Stderr, "❌ %v\n", err)
}
