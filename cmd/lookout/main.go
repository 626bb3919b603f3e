package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/lookout/pkg/client"
	"github.com/cuemby/lookout/pkg/config"
	"github.com/cuemby/lookout/pkg/log"
	"github.com/cuemby/lookout/pkg/metrics"
	"github.com/cuemby/lookout/pkg/storage"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// cfg is loaded once by the root command before any subcommand runs
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lookout",
	Short: "Lookout - supervisor for remote detection sessions",
	Long: `Lookout starts, stops, and watches a detection session running on a
remote worker. It confirms that a session actually came up, keeps polling
the worker while it runs, and raises an alert once when detection stops
without being asked to.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("worker") {
			loaded.Worker.URL, _ = cmd.Flags().GetString("worker")
		}
		if cmd.Flags().Changed("worker-token") {
			loaded.Worker.Token, _ = cmd.Flags().GetString("worker-token")
		}
		if cmd.Flags().Changed("data-dir") {
			loaded.DataDir, _ = cmd.Flags().GetString("data-dir")
		}
		if cmd.Flags().Changed("log-level") {
			level, _ := cmd.Flags().GetString("log-level")
			loaded.Log.Level = log.Level(level)
		}
		if cmd.Flags().Changed("log-json") {
			loaded.Log.JSONOutput, _ = cmd.Flags().GetBool("log-json")
		}
		if err := loaded.Validate(); err != nil {
			return err
		}

		log.Init(loaded.Log)
		metrics.SetVersion(Version)
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Lookout version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default $"+config.EnvConfig+" or the user config dir)")
	flags.String("worker", "", "Worker control endpoint URL")
	flags.String("worker-token", "", "Bearer token sent to the worker")
	flags.String("data-dir", "", "Directory holding the profile and event store")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Emit JSON logs")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(testCameraCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(historyCmd)
}

// newWorkerClient builds the worker client from the loaded config
func newWorkerClient() *client.Client {
	var opts []client.Option
	if cfg.Worker.Token != "" {
		opts = append(opts, client.WithBearerToken(cfg.Worker.Token))
	}
	return client.NewClient(cfg.Worker.URL, opts...)
}

// openStore opens the profile and event store in the data directory
func openStore() (*storage.BoltStore, error) {
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store in %s (is `lookout watch` running?): %w", cfg.DataDir, err)
	}
	return store, nil
}
