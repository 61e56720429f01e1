package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/artpar/wspanel/internal/app"
	"github.com/artpar/wspanel/internal/core"
	"github.com/artpar/wspanel/internal/interfaces"
	"github.com/artpar/wspanel/internal/protocol/websocket"
	"github.com/artpar/wspanel/internal/script"
	"github.com/spf13/cobra"
)

// SendOptions holds options for the send command.
type SendOptions struct {
	Headers      []string
	Subprotocols []string
	Filter       string
	JSON         bool
	Wait         time.Duration
	Timeout      time.Duration
}

// NewSendCommand creates the send command.
func NewSendCommand() *cobra.Command {
	opts := &SendOptions{}

	cmd := &cobra.Command{
		Use:   "send URL [MESSAGE...]",
		Short: "Send WebSocket messages without the panel",
		Long: "Connect to URL, send each MESSAGE as a text frame, collect replies " +
			"for --wait and print the conversation.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, args[0], args[1:], opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Headers, "header", "H", nil, "Handshake headers (format: Key:Value)")
	cmd.Flags().StringArrayVar(&opts.Subprotocols, "subprotocol", nil, "Subprotocols to offer")
	cmd.Flags().StringVarP(&opts.Filter, "filter", "f", "", "JavaScript message filter file")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output messages as JSON")
	cmd.Flags().DurationVarP(&opts.Wait, "wait", "w", 2*time.Second, "How long to collect replies after sending")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Handshake timeout (default websocket.connect_timeout)")

	return cmd
}

func runSend(cmd *cobra.Command, url string, payloads []string, opts *SendOptions) error {
	if err := core.ValidateEndpoint(url); err != nil {
		return err
	}

	var filter *script.Filter
	if opts.Filter != "" {
		data, err := os.ReadFile(opts.Filter)
		if err != nil {
			return fmt.Errorf("failed to read filter: %w", err)
		}
		if filter, err = script.NewFilter(string(data)); err != nil {
			return fmt.Errorf("invalid filter: %w", err)
		}
	}

	var messages []*core.WebSocketMessage
	err := withApp(cmd, func(ctx context.Context, application *app.App) error {
		conn, err := application.Client().Dial(url, interfaces.ConnectionOptions{
			Headers:      parseHeaders(opts.Headers),
			Subprotocols: opts.Subprotocols,
			Timeout:      opts.Timeout,
		})
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := conn.Connect(ctx); err != nil {
			return err
		}
		for _, payload := range payloads {
			if err := conn.Send(ctx, []byte(payload)); err != nil {
				return fmt.Errorf("send failed: %w", err)
			}
		}
		messages = collectMessages(conn, opts.Wait)
		return nil
	})
	if err != nil {
		return err
	}

	if filter != nil {
		var ferr error
		messages, ferr = filter.Apply(messages)
		if ferr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "filter: %v\n", ferr)
		}
	}

	if opts.JSON {
		return outputMessagesJSON(cmd, messages)
	}
	return outputMessagesHuman(cmd, messages)
}

// collectMessages drains conn until wait elapses or the connection ends.
func collectMessages(conn *websocket.Connection, wait time.Duration) []*core.WebSocketMessage {
	var messages []*core.WebSocketMessage
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-conn.Events():
			if !ok {
				return messages
			}
			if m := websocket.ToMessage(conn.ID(), ev); m != nil {
				messages = append(messages, m)
			}
		case <-timer.C:
			return messages
		}
	}
}

func outputMessagesJSON(cmd *cobra.Command, messages []*core.WebSocketMessage) error {
	if messages == nil {
		messages = []*core.WebSocketMessage{}
	}
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(messages)
}

func outputMessagesHuman(cmd *cobra.Command, messages []*core.WebSocketMessage) error {
	out := cmd.OutOrStdout()
	for _, m := range messages {
		stamp := m.Timestamp.Format("15:04:05.000")
		switch {
		case m.Error != "":
			fmt.Fprintf(out, "%s ✗ %s\n", stamp, m.Error)
		case m.IsSent():
			fmt.Fprintf(out, "%s → %s\n", stamp, m.Content)
		default:
			fmt.Fprintf(out, "%s ← %s\n", stamp, m.Content)
		}
	}
	return nil
}

// parseHeaders converts header strings to a map.
func parseHeaders(headerStrs []string) map[string]string {
	headers := make(map[string]string)
	for _, h := range headerStrs {
		idx := strings.Index(h, ":")
		if idx == -1 {
			continue
		}
		key := strings.TrimSpace(h[:idx])
		value := strings.TrimSpace(h[idx+1:])
		headers[key] = value
	}
	return headers
}
