package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/lookout/pkg/events"
	"github.com/cuemby/lookout/pkg/supervisor"
	"github.com/cuemby/lookout/pkg/types"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a detection session on the worker",
	Long: `Start a detection session and wait for the worker to confirm it.

The session config comes from a saved profile, from flags, or both (flags
override the profile).

Examples:
  # Start from flags
  lookout start --camera-url rtsp://10.0.0.12/stream --person-detection

  # Start from a saved profile and keep the flags for next time
  lookout start --profile porch --save-as porch`,
	RunE: runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the detection session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		sup := supervisor.New(newWorkerClient(), nil, supervisor.WithPolicy(cfg.Policy))
		defer sup.Close()

		if err := sup.Stop(ctx); err != nil {
			return err
		}
		fmt.Println("✓ Detection stopped")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the worker's detection status",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		c := newWorkerClient()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Policy.HealthTimeout)
		defer cancel()

		snap, err := c.Health(ctx)
		if err != nil {
			return err
		}
		status, err := c.Status(ctx)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Health types.HealthSnapshot `json:"health"`
				Model  bool                 `json:"model_loaded"`
			}{snap, status.ModelLoaded})
		}

		fmt.Printf("Worker:            %s\n", c.BaseURL())
		fmt.Printf("Detection active:  %t\n", snap.DetectionActive)
		fmt.Printf("Monitoring active: %t\n", snap.MonitoringActive)
		fmt.Printf("Model loaded:      %t\n", status.ModelLoaded)
		if age, ok := snap.Heartbeat(); ok {
			fmt.Printf("Heartbeat age:     %s\n", age.Round(100*time.Millisecond))
		}
		return nil
	},
}

var testCameraCmd = &cobra.Command{
	Use:   "test-camera URL",
	Short: "Ask the worker to test a camera connection",
	Long: `Ask the worker to open a camera and report whether it answered.

The URL is passed to the worker as given (webcam://0, rtsp://, rtmp://,
srt://, or a bare host). It never changes the session state.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		sup := supervisor.New(newWorkerClient(), nil, supervisor.WithPolicy(cfg.Policy))
		defer sup.Close()

		ok, err := sup.TestConnection(cmd.Context(), args[0], port)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("camera connection test failed")
		}
		fmt.Println("✓ Camera connection successful")
		return nil
	},
}

func init() {
	startCmd.Flags().String("profile", "", "Saved profile to start from")
	startCmd.Flags().String("save-as", "", "Save the resulting config as a profile")
	startCmd.Flags().Bool("wait", true, "Wait for the worker to confirm the session")
	addSessionFlags(startCmd)

	statusCmd.Flags().Bool("json", false, "Print JSON")

	testCameraCmd.Flags().String("port", "", "Camera port")
}

// addSessionFlags registers the SessionConfig flags shared by start and
// profile save
func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().String("camera-url", "", "Camera URL (webcam://N, rtsp://, rtmp://, srt://, host)")
	cmd.Flags().String("camera-port", "", "Camera port")
	cmd.Flags().String("ntfy-topic", "", "ntfy topic the worker notifies")
	cmd.Flags().String("ntfy-priority", "", "ntfy priority the worker uses")
	cmd.Flags().Bool("person-detection", false, "Enable person detection")
	cmd.Flags().Bool("logging", false, "Enable detection logging on the worker")
}

// sessionConfigFromFlags overlays changed flags onto base
func sessionConfigFromFlags(cmd *cobra.Command, base types.SessionConfig) types.SessionConfig {
	flags := cmd.Flags()
	if flags.Changed("camera-url") {
		base.CameraURL, _ = flags.GetString("camera-url")
	}
	if flags.Changed("camera-port") {
		base.CameraPort, _ = flags.GetString("camera-port")
	}
	if flags.Changed("ntfy-topic") {
		base.NotifyTopic, _ = flags.GetString("ntfy-topic")
	}
	if flags.Changed("ntfy-priority") {
		base.NotifyPriority, _ = flags.GetString("ntfy-priority")
	}
	if flags.Changed("person-detection") {
		base.EnablePersonDetection, _ = flags.GetBool("person-detection")
	}
	if flags.Changed("logging") {
		base.EnableLogging, _ = flags.GetBool("logging")
	}
	return base
}

func runStart(cmd *cobra.Command, args []string) error {
	profileName, _ := cmd.Flags().GetString("profile")
	saveAs, _ := cmd.Flags().GetString("save-as")
	wait, _ := cmd.Flags().GetBool("wait")

	var base types.SessionConfig
	if profileName != "" || saveAs != "" {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if profileName != "" {
			profile, err := store.GetProfile(profileName)
			if err != nil {
				return err
			}
			base = profile.Config
		}

		sessionCfg := sessionConfigFromFlags(cmd, base)
		if saveAs != "" {
			if err := store.SaveProfile(&types.Profile{Name: saveAs, Config: sessionCfg}); err != nil {
				return fmt.Errorf("failed to save profile: %w", err)
			}
			fmt.Printf("✓ Saved profile %q\n", saveAs)
		}
		base = sessionCfg
	} else {
		base = sessionConfigFromFlags(cmd, base)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	settled := make(chan *events.Event, 1)
	sink := events.SinkFunc(func(ev *events.Event) {
		switch ev.Type {
		case events.EventSessionRunning, events.EventSessionStopped, events.EventSessionFailed:
			select {
			case settled <- ev:
			default:
			}
		}
	})

	sup := supervisor.New(newWorkerClient(), sink, supervisor.WithPolicy(cfg.Policy))
	defer sup.Close()

	fmt.Printf("Starting detection on %s...\n", base.Endpoint())
	if err := sup.Start(ctx, base); err != nil {
		return err
	}
	if !wait {
		fmt.Println("✓ Start accepted by the worker")
		return nil
	}

	p := sup.Policy()
	deadline := time.Duration(p.RapidTicks)*p.RapidInterval + p.HealthTimeout + time.Second

	select {
	case ev := <-settled:
		switch ev.Type {
		case events.EventSessionRunning:
			fmt.Println("✓ Detection running")
			return nil
		case events.EventSessionFailed:
			return errors.New("detection failed shortly after starting")
		default:
			return errors.New("worker never reported detection as active")
		}
	case <-time.After(deadline):
		return fmt.Errorf("session still %s after %s", sup.CurrentState(), deadline)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
