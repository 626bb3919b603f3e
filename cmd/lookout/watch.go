package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/cuemby/lookout/pkg/api"
	"github.com/cuemby/lookout/pkg/events"
	"github.com/cuemby/lookout/pkg/log"
	"github.com/cuemby/lookout/pkg/metrics"
	"github.com/cuemby/lookout/pkg/notify"
	"github.com/cuemby/lookout/pkg/storage"
	"github.com/cuemby/lookout/pkg/supervisor"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Supervise the detection session until interrupted",
	Long: `Run the supervisor in the foreground.

Watch adopts a session already running on the worker, keeps polling it,
records every event in the local store, sends alerts to ntfy when a topic
is configured, and serves a local HTTP API for status, control, and a
websocket event stream.

Examples:
  # Adopt whatever the worker is doing and alert on ntfy
  lookout watch --ntfy-topic porch-alerts

  # Start a saved profile and expose a read-only API
  lookout watch --profile porch --read-only`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Bool("attach", true, "Adopt a session already running on the worker")
	watchCmd.Flags().String("profile", "", "Start a saved profile once watching")
	watchCmd.Flags().String("api-addr", "", "Local API listen address (default from config)")
	watchCmd.Flags().Bool("no-api", false, "Do not serve the local API")
	watchCmd.Flags().Bool("read-only", false, "Reject API requests that change the session")
	watchCmd.Flags().String("api-token", "", "Bearer token required by the local API (default from config)")
	watchCmd.Flags().String("ntfy-topic", "", "ntfy topic for alerts (default from config)")
	watchCmd.Flags().Int("keep-events", 1000, "Events kept in the store on exit (0 keeps all)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	attach, _ := cmd.Flags().GetBool("attach")
	profileName, _ := cmd.Flags().GetString("profile")
	noAPI, _ := cmd.Flags().GetBool("no-api")
	readOnly, _ := cmd.Flags().GetBool("read-only")
	apiToken := cfg.API.Token
	if cmd.Flags().Changed("api-token") {
		apiToken, _ = cmd.Flags().GetString("api-token")
	}
	keepEvents, _ := cmd.Flags().GetInt("keep-events")

	apiAddr := cfg.API.Addr
	if cmd.Flags().Changed("api-addr") {
		apiAddr, _ = cmd.Flags().GetString("api-addr")
	}
	notifyCfg := cfg.Notify
	if cmd.Flags().Changed("ntfy-topic") {
		notifyCfg.Topic, _ = cmd.Flags().GetString("ntfy-topic")
	}

	logger := log.WithComponent("watch")

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	store, err := openStore()
	if err != nil {
		return err
	}

	broker := events.NewBroker()
	broker.Start()

	var wg sync.WaitGroup

	// Every event is recorded
	recorder := storage.NewRecorder(store, func(err error) {
		logger.Warn().Err(err).Msg("Failed to record event")
	})
	recordSub := broker.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range recordSub {
			recorder.Publish(ev)
		}
	}()

	// Alerts go to ntfy
	notifyCtx, stopNotify := context.WithCancel(context.Background())
	var notifySub events.Subscriber
	if notifyCfg.Enabled() {
		notifier := notify.New(notifyCfg, nil)
		metrics.RegisterComponent(metrics.ComponentNotifier, true, "")
		notifySub = broker.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			notifier.Run(notifyCtx, notifySub)
		}()
		fmt.Printf("✓ Alerts go to %s\n", notifyCfg.URL())
	}

	metrics.SetCriticalComponents(metrics.ComponentSupervisor, metrics.ComponentWorker)
	sup := supervisor.New(newWorkerClient(), broker,
		supervisor.WithPolicy(cfg.Policy),
		supervisor.WithLogger(log.WithComponent("supervisor")),
	)

	var apiServer *api.Server
	errCh := make(chan error, 1)
	if !noAPI {
		apiServer = api.NewServer(sup, broker, api.Options{
			ReadOnly:     readOnly,
			Token:        apiToken,
			Version:      Version,
			AllowedIPs:   cfg.API.AllowedIPs,
			CommandRate:  cfg.API.CommandRate,
			CommandBurst: cfg.API.CommandBurst,
		})
		go func() {
			if err := apiServer.Start(apiAddr); err != nil {
				errCh <- fmt.Errorf("API server error: %w", err)
			}
		}()
		fmt.Printf("✓ API listening on http://%s\n", apiAddr)
	}

	if attach {
		if err := sup.Attach(ctx); err != nil {
			logger.Warn().Err(err).Msg("Could not attach to the worker")
		} else {
			fmt.Printf("✓ Attached: session %s\n", sup.CurrentState())
		}
	}

	if profileName != "" {
		profile, err := store.GetProfile(profileName)
		if err != nil {
			logger.Error().Err(err).Str("profile", profileName).Msg("Cannot start profile")
		} else if err := sup.Start(ctx, profile.Config); err != nil {
			logger.Error().Err(err).Str("profile", profileName).Msg("Failed to start session")
		} else {
			fmt.Printf("✓ Starting profile %q\n", profileName)
		}
	}

	fmt.Println()
	fmt.Println("Watching. Press Ctrl+C to stop.")

	var runErr error
	select {
	case <-ctx.Done():
		fmt.Println("\nShutting down...")
	case runErr = <-errCh:
		fmt.Fprintf(os.Stderr, "\nError: %v\n", runErr)
	}

	// Shutdown in dependency order: producers first, then consumers
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	var errs error
	if apiServer != nil {
		errs = multierr.Append(errs, apiServer.Shutdown(shutdownCtx))
	}
	errs = multierr.Append(errs, sup.Close())

	stopNotify()
	broker.Unsubscribe(recordSub)
	if notifySub != nil {
		broker.Unsubscribe(notifySub)
	}
	broker.Stop()
	wg.Wait()

	if keepEvents > 0 {
		pruned, err := store.PruneEvents(keepEvents)
		errs = multierr.Append(errs, err)
		if pruned > 0 {
			logger.Debug().Int("pruned", pruned).Msg("Pruned event history")
		}
	}
	errs = multierr.Append(errs, store.Close())

	if errs != nil {
		return fmt.Errorf("shutdown: %w", errs)
	}
	if runErr != nil {
		return runErr
	}

	fmt.Println("✓ Shutdown complete")
	return nil
}
