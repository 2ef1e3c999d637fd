package commands

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/fortuna/cricstats/internal/api/rest"
	"github.com/fortuna/cricstats/internal/jobs"
	"github.com/fortuna/cricstats/internal/scheduler"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the REST API, the live record feed and the scrape job queue.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := openApp(ctx, cfg, appOptions{websocket: true})
		if err != nil {
			return err
		}
		defer a.Close()

		jobService := jobs.NewService(a.jobRepository(), jobs.NewRunner(a.scraper()), nil)
		jobService.Start()
		log.Println("✓ Job service started")

		sched := scheduler.NewOrchestrator(jobService, cfg.SchedulerConfig(), nil)
		sched.Start(ctx)

		checks := map[string]rest.HealthChecker{}
		var recordStore rest.RecordStore
		if a.db != nil {
			checks["postgres"] = a.db
			recordStore = a.records
		}
		if a.redis != nil {
			checks["redis"] = a.redis
		}

		restServer := rest.NewServer(cfg.RESTPort, recordStore, jobService, checks)
		go func() {
			log.Printf("Starting REST API server on port %s", cfg.RESTPort)
			if err := restServer.Start(); err != nil {
				log.Printf("REST server error: %v", err)
			}
		}()

		if a.ws != nil {
			go func() {
				if err := a.ws.Start(cfg.WSPort); err != nil {
					log.Printf("WebSocket server error: %v", err)
				}
			}()
		}

		log.Printf("✓ cricstats started")
		log.Printf("  REST API: http://0.0.0.0:%s", cfg.RESTPort)
		if a.ws != nil {
			log.Printf("  WebSocket: ws://0.0.0.0:%s/ws/records", cfg.WSPort)
		}

		<-ctx.Done()
		log.Println("Shutting down cricstats gracefully...")

		sched.Stop()

		shutdownCtx, cancel := shutdownContext()
		defer cancel()

		if err := jobService.Shutdown(shutdownCtx); err != nil {
			log.Printf("Job service shutdown error: %v", err)
		}
		if err := restServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("REST API server shutdown error: %v", err)
		}
		if a.ws != nil {
			if err := a.ws.Shutdown(shutdownCtx); err != nil {
				log.Printf("WebSocket server shutdown error: %v", err)
			}
		}

		log.Println("cricstats stopped")
		return nil
	},
}
