package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/artpar/wspanel/internal/app"
	"github.com/artpar/wspanel/internal/config"
	"github.com/artpar/wspanel/internal/core"
	"github.com/artpar/wspanel/internal/logging"
	"github.com/artpar/wspanel/internal/script"
	"github.com/artpar/wspanel/internal/tui/views"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootOptions holds flags for the panel itself.
type RootOptions struct {
	Definition string
	Filter     string
}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "wspanel [url]",
		Short: "wspanel - a terminal WebSocket testing panel",
		Long: "wspanel connects to a WebSocket endpoint, sends messages and shows the " +
			"conversation. Without messages it lists recently used URLs.",
		Version:      version,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			url := ""
			if len(args) == 1 {
				url = args[0]
			}
			return runTUI(cmd.Context(), cfg, opts, url)
		},
	}

	cmd.PersistentFlags().String("config", "", "Config file (default $WSPANEL_CONFIG or <data_dir>/config.yaml)")
	cmd.Flags().StringVarP(&opts.Definition, "definition", "d", "", "WebSocket definition file (YAML)")
	cmd.Flags().StringVarP(&opts.Filter, "filter", "f", "", "JavaScript message filter file")

	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewSendCommand())
	cmd.AddCommand(NewCookiesCommand())

	return cmd
}

// loadConfig reads the config named by the --config flag, which may be
// inherited from the root command.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := ""
	if f := cmd.Flag("config"); f != nil {
		path = f.Value.String()
	}
	return config.Load(path)
}

// tuiModel wraps the WebSocketView for bubbletea
type tuiModel struct {
	view *views.WebSocketView
}

func (m tuiModel) Init() tea.Cmd {
	return m.view.Init()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	updated, cmd := m.view.Update(msg)
	m.view = updated.(*views.WebSocketView)
	return m, cmd
}

func (m tuiModel) View() string {
	return m.view.View()
}

// runTUI starts the TUI application
func runTUI(ctx context.Context, cfg config.Config, opts *RootOptions, url string) error {
	logCloser, err := logging.Setup(cfg.Log.Level, cfg.LogPath())
	if err != nil {
		return err
	}
	defer logCloser.Close()

	application := app.New(app.WithConfig(cfg))
	defer application.Close()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := application.Open(ctx); err != nil {
		return err
	}

	view, err := BuildView(application, opts, url)
	if err != nil {
		return err
	}
	defer view.Close()

	logrus.WithField("url", url).Info("starting panel")
	p := tea.NewProgram(tuiModel{view: view}, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		return err
	}
	return nil
}

// BuildView assembles the panel from the application and flags. A url
// argument wins over the definition endpoint and is connected on start.
func BuildView(application *app.App, opts *RootOptions, url string) (*views.WebSocketView, error) {
	cfg := application.Config()
	view := views.NewWebSocketView(application.Client(), application.History())
	view.SetNarrowWidth(cfg.UI.NarrowWidth)
	view.SetHistoryLimit(cfg.History.Limit)

	filterSource := ""
	if opts.Definition != "" {
		def, err := core.LoadWebSocketDefinition(opts.Definition)
		if err != nil {
			return nil, fmt.Errorf("failed to load definition: %w", err)
		}
		view.SetDefinition(def)
		filterSource = def.FilterScript
	}

	if opts.Filter != "" {
		data, err := os.ReadFile(opts.Filter)
		if err != nil {
			return nil, fmt.Errorf("failed to read filter: %w", err)
		}
		filterSource = string(data)
	}
	if filterSource != "" {
		filter, err := script.NewFilter(filterSource)
		if err != nil {
			return nil, fmt.Errorf("invalid filter: %w", err)
		}
		view.SetFilter(filter)
	}

	if url != "" {
		if !strings.Contains(url, "{{") {
			if err := core.ValidateEndpoint(url); err != nil {
				return nil, err
			}
		}
		view.SetURL(url)
		view.ConnectOnStart()
	}
	return view, nil
}
