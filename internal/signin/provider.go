// Package signin hosts the Google Identity Services widget on a loopback page
// and hands the resulting credential to the auth controller.
package signin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"qroll/internal/handlers"
	"qroll/internal/router"
)

var (
	ErrMissingClientID = errors.New("GOOGLE_CLIENT_ID is not set")
	ErrNotLoaded       = errors.New("sign-in page is not running")
)

// Provider serves the sign-in page. The listener is started once, on the
// first Load.
type Provider struct {
	addr     string
	clientID string

	once    sync.Once
	loadErr error

	mu            sync.Mutex
	srv           *http.Server
	url           string
	onCredential  func(string) error
	autoSelectOff bool

	// Opener, when set, is called with the page URL each time sign-in is shown.
	Opener func(url string) error
}

func New(addr, clientID string) *Provider {
	return &Provider{addr: addr, clientID: clientID}
}

func (p *Provider) Load(ctx context.Context) error {
	p.once.Do(func() {
		p.loadErr = p.start(ctx)
	})
	return p.loadErr
}

func (p *Provider) start(ctx context.Context) error {
	if p.clientID == "" {
		return ErrMissingClientID
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("sign-in page: %w", err)
	}

	srv := &http.Server{
		Handler:           router.SignIn(handlers.NewSignInHandler(p)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	p.mu.Lock()
	p.srv = srv
	p.url = "http://" + ln.Addr().String() + "/"
	p.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("✗ sign-in page stopped: %v", err)
		}
	}()

	log.Printf("✓ Sign-in page listening on %s", p.URL())
	return nil
}

func (p *Provider) RenderSignIn(ctx context.Context, onCredential func(string) error) error {
	p.mu.Lock()
	if p.srv == nil {
		p.mu.Unlock()
		return ErrNotLoaded
	}
	p.onCredential = onCredential
	url, opener := p.url, p.Opener
	p.mu.Unlock()

	log.Printf("Open %s to sign in with Google", url)
	if opener != nil {
		if err := opener(url); err != nil {
			log.Printf("could not open browser: %v", err)
		}
	}
	return nil
}

func (p *Provider) DisableAutoSelect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.autoSelectOff = true
}

// URL is the page address once loaded, or "".
func (p *Provider) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	srv := p.srv
	p.srv = nil
	p.onCredential = nil
	p.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (p *Provider) ClientID() string {
	return p.clientID
}

func (p *Provider) TakeAutoSelectDisabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	off := p.autoSelectOff
	p.autoSelectOff = false
	return off
}

// Deliver passes credential to the callback registered by RenderSignIn. The
// callback stays registered so a failed attempt can be retried from the page.
func (p *Provider) Deliver(credential string) error {
	p.mu.Lock()
	fn := p.onCredential
	p.mu.Unlock()

	if fn == nil {
		return handlers.ErrNotWaiting
	}
	return fn(credential)
}
