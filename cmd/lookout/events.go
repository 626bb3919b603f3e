package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/cuemby/lookout/pkg/events"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Stream live events from a running `lookout watch`",
	RunE: func(cmd *cobra.Command, args []string) error {
		apiAddr := cfg.API.Addr
		if cmd.Flags().Changed("api-addr") {
			apiAddr, _ = cmd.Flags().GetString("api-addr")
		}
		apiToken := cfg.API.Token
		if cmd.Flags().Changed("api-token") {
			apiToken, _ = cmd.Flags().GetString("api-token")
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		u := url.URL{Scheme: "ws", Host: apiAddr, Path: "/events"}
		header := http.Header{}
		if apiToken != "" {
			header.Set("Authorization", "Bearer "+apiToken)
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
		if err != nil {
			return fmt.Errorf("failed to connect to %s (is `lookout watch` running?): %w", u.String(), err)
		}
		defer conn.Close()

		// Unblock the read loop on interrupt
		go func() {
			<-ctx.Done()
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			conn.Close()
		}()

		for {
			var ev events.Event
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return err
			}
			if err := printEvent(&ev, asJSON); err != nil {
				return err
			}
		}
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.ListEvents(limit)
		if err != nil {
			return err
		}
		if len(list) == 0 && !asJSON {
			fmt.Println("No events recorded")
			return nil
		}
		for _, ev := range list {
			if err := printEvent(ev, asJSON); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().String("api-addr", "", "Address of the watch API (default from config)")
	eventsCmd.Flags().String("api-token", "", "Bearer token for the watch API")
	eventsCmd.Flags().Bool("json", false, "Print raw JSON events")

	historyCmd.Flags().Int("limit", 50, "Number of most recent events")
	historyCmd.Flags().Bool("json", false, "Print raw JSON events")
}

func printEvent(ev *events.Event, asJSON bool) error {
	if ev == nil {
		return errors.New("empty event")
	}
	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(ev)
	}

	marker := " "
	if ev.Type.IsAlert() || ev.Type == events.EventCommandFailed {
		marker = "!"
	}
	fmt.Printf("%s %s  %-22s %s\n", marker, ev.Timestamp.Local().Format("2006-01-02 15:04:05"), ev.Type, ev.Message)
	return nil
}
