package cookies

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
)

const storeTimeout = 5 * time.Second

// Jar is an http.CookieJar that writes through to a Store. Matching rules
// come from net/http/cookiejar; the store is only read on start.
type Jar struct {
	mu    sync.RWMutex
	jar   *cookiejar.Jar
	store Store
	now   func() time.Time
	log   *logrus.Entry
}

// NewJar creates a jar holding the unexpired cookies of store.
func NewJar(store Store) (*Jar, error) {
	j := &Jar{
		store: store,
		now:   time.Now,
		log:   logrus.WithField("component", "cookies"),
	}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

func newMemoryJar() *cookiejar.Jar {
	// cookiejar.New never returns an error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

func (j *Jar) load() error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if _, err := j.store.RemoveExpired(ctx, j.now()); err != nil {
		return err
	}
	stored, err := j.store.List(ctx, QueryOptions{})
	if err != nil {
		return err
	}

	jar := newMemoryJar()
	for _, c := range stored {
		jar.SetCookies(c.URL(), []*http.Cookie{c.HTTPCookie()})
	}
	j.jar = jar
	return nil
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	now := j.now()
	for _, hc := range cookies {
		c := FromHTTPCookie(u, hc, now)
		var err error
		if c.ExpiredAt(now) {
			err = j.store.Remove(ctx, c.Domain, c.Path, c.Name)
		} else {
			err = j.store.Save(ctx, c)
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			j.log.WithError(err).WithField("name", c.Name).Warn("failed to persist cookie")
		}
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

// List returns the persisted cookies.
func (j *Jar) List(ctx context.Context, opts QueryOptions) ([]Cookie, error) {
	return j.store.List(ctx, opts)
}

// Clear forgets every cookie.
func (j *Jar) Clear(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.store.Clear(ctx); err != nil {
		return err
	}
	j.jar = newMemoryJar()
	return nil
}
