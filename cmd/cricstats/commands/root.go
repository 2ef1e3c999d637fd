package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fortuna/cricstats/internal/config"
)

var (
	// Global flags
	configPath string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cricstats",
	Short: "cricstats scrapes T20 World Cup batting, bowling, match and squad data.",
	Long: `cricstats drives a headless browser through the ESPNcricinfo and Cricbuzz
result listings and writes batting, bowling, match summary and player records to
CSV files, Postgres and Redis streams.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// ExecuteContext runs the command line against ctx
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default "+config.DefaultPath+")")
}
