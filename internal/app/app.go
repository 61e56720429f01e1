// Package app wires configuration, the transport and the history store
// together for the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/artpar/wspanel/internal/config"
	"github.com/artpar/wspanel/internal/cookies"
	cookiesqlite "github.com/artpar/wspanel/internal/cookies/sqlite"
	"github.com/artpar/wspanel/internal/history"
	"github.com/artpar/wspanel/internal/history/sqlite"
	"github.com/artpar/wspanel/internal/protocol/websocket"
	"github.com/sirupsen/logrus"
)

// App is the application container with dependency injection.
type App struct {
	config config.Config
	client *websocket.Client
	store  history.Store

	cookieStore cookies.Store
	jar         *cookies.Jar

	closers   []io.Closer
	closeOnce sync.Once
	log       *logrus.Entry
}

// Option is a function that configures the App.
type Option func(*App)

// WithConfig sets the application configuration.
func WithConfig(cfg config.Config) Option {
	return func(a *App) {
		a.config = cfg
	}
}

// WithClient sets the WebSocket client instead of building one from config.
func WithClient(client *websocket.Client) Option {
	return func(a *App) {
		a.client = client
	}
}

// WithHistoryStore sets the history store instead of opening the database.
// The App does not close a store it was given.
func WithHistoryStore(store history.Store) Option {
	return func(a *App) {
		a.store = store
	}
}

// WithCookieStore sets the store behind the persistent cookie jar. It is
// used only when websocket.persist_cookies is on, and is not closed by the
// App.
func WithCookieStore(store cookies.Store) Option {
	return func(a *App) {
		a.cookieStore = store
	}
}

// New creates an App. Anything not supplied through options is built from
// the configuration: the client immediately, the store by Open.
func New(opts ...Option) *App {
	a := &App{log: logrus.WithField("component", "app")}
	for _, opt := range opts {
		opt(a)
	}
	if a.client == nil {
		a.client = websocket.NewClient(a.config.ClientConfig())
	}
	return a
}

// Open makes sure the stores are ready, trims history to the configured
// size and installs the persistent cookie jar.
func (a *App) Open(ctx context.Context) error {
	if err := a.openHistory(ctx); err != nil {
		return err
	}
	if a.config.WebSocket.PersistCookies {
		return a.openCookies()
	}
	return nil
}

func (a *App) openHistory(ctx context.Context) error {
	if a.store == nil {
		if err := a.config.EnsureDataDir(); err != nil {
			return err
		}
		store, err := sqlite.New(a.config.HistoryPath())
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store)
	}

	if keep := a.config.History.KeepLast; keep > 0 {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		n, err := a.store.Prune(ctx, history.PruneOptions{KeepLast: keep})
		if err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
		if n > 0 {
			a.log.WithField("removed", n).Info("pruned history")
		}
	}
	return nil
}

func (a *App) openCookies() error {
	if a.cookieStore == nil {
		if err := a.config.EnsureDataDir(); err != nil {
			return err
		}
		store, err := cookiesqlite.New(a.config.CookiesPath())
		if err != nil {
			return fmt.Errorf("open cookies: %w", err)
		}
		a.cookieStore = store
		a.closers = append(a.closers, store)
	}

	jar, err := cookies.NewJar(a.cookieStore)
	if err != nil {
		return fmt.Errorf("load cookies: %w", err)
	}
	a.jar = jar
	a.client.SetCookieJar(jar)
	return nil
}

// Config returns the application configuration.
func (a *App) Config() config.Config {
	return a.config
}

// Client returns the WebSocket client.
func (a *App) Client() *websocket.Client {
	return a.client
}

// History returns the history store. It is nil until Open succeeds unless
// one was supplied.
func (a *App) History() history.Store {
	return a.store
}

// Cookies returns the persistent cookie jar, or nil when cookies are kept
// in memory only.
func (a *App) Cookies() *cookies.Jar {
	return a.jar
}

// AddCloser registers c to be closed by Close, before the store.
func (a *App) AddCloser(c io.Closer) {
	a.closers = append([]io.Closer{c}, a.closers...)
}

// Close drops all connections and releases what the App opened.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		a.client.CloseAll()
		for _, c := range a.closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
