package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/artpar/wspanel/internal/app"
	"github.com/artpar/wspanel/internal/cookies"
	"github.com/spf13/cobra"
)

var errCookiesDisabled = errors.New("cookie persistence is disabled (websocket.persist_cookies)")

// NewCookiesCommand creates the cookies command and its subcommands.
func NewCookiesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cookies",
		Short: "Manage persisted handshake cookies",
	}
	cmd.AddCommand(newCookiesListCommand())
	cmd.AddCommand(newCookiesClearCommand())
	return cmd
}

func newCookiesListCommand() *cobra.Command {
	var domain string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored cookies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, application *app.App) error {
				jar := application.Cookies()
				if jar == nil {
					return errCookiesDisabled
				}
				list, err := jar.List(ctx, cookies.QueryOptions{Domain: domain})
				if err != nil {
					return fmt.Errorf("failed to list cookies: %w", err)
				}
				if asJSON {
					if list == nil {
						list = []cookies.Cookie{}
					}
					encoder := json.NewEncoder(cmd.OutOrStdout())
					encoder.SetIndent("", "  ")
					return encoder.Encode(list)
				}
				return outputCookiesHuman(cmd, list)
			})
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "", "Only cookies for this domain")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newCookiesClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored cookie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, application *app.App) error {
				jar := application.Cookies()
				if jar == nil {
					return errCookiesDisabled
				}
				if err := jar.Clear(ctx); err != nil {
					return fmt.Errorf("failed to clear cookies: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cookies cleared")
				return nil
			})
		},
	}
}

func outputCookiesHuman(cmd *cobra.Command, list []cookies.Cookie) error {
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No cookies")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOMAIN\tPATH\tNAME\tVALUE\tEXPIRES")
	for _, c := range list {
		expires := "session"
		if !c.Session() {
			expires = c.Expires.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Domain, c.Path, c.Name, c.Value, expires)
	}
	return w.Flush()
}
