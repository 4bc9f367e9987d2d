package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/api/idtoken"

	"qroll/internal/api"
	"qroll/internal/models"
	"qroll/internal/storage"
)

type AuthState string

const (
	StateLoading         AuthState = "loading"
	StateUnauthenticated AuthState = "unauthenticated"
	StateRolePending     AuthState = "role-pending"
	StateReady           AuthState = "ready"
)

const (
	msgLoadingSignIn  = "Loading Google Sign-In…"
	msgSessionExpired = "Session expired. Please sign in again."
)

// IdentityProvider is the Google sign-in widget.
type IdentityProvider interface {
	// Load prepares the widget. Repeated calls return the first result.
	Load(ctx context.Context) error
	// RenderSignIn shows the sign-in affordance; onCredential receives the
	// Google ID token credential and reports whether sign-in succeeded.
	RenderSignIn(ctx context.Context, onCredential func(credential string) error) error
	// DisableAutoSelect makes the widget forget the auto-selected account.
	DisableAutoSelect()
}

type AuthAPI interface {
	GoogleLogin(ctx context.Context, credential string) api.AuthResult
	Profile(ctx context.Context) api.AuthResult
	SetRole(ctx context.Context, role models.Role) api.AuthResult
	Logout(ctx context.Context) api.AuthResult
}

// CredentialVerifier checks a Google credential locally before it is sent on.
type CredentialVerifier interface {
	Verify(ctx context.Context, credential string) error
}

// GoogleVerifier validates the credential signature and audience against the
// configured client id.
type GoogleVerifier struct {
	ClientID string
}

func (v GoogleVerifier) Verify(ctx context.Context, credential string) error {
	payload, err := idtoken.Validate(ctx, credential, v.ClientID)
	if err != nil {
		return err
	}
	if email, _ := payload.Claims["email"].(string); email == "" {
		return errors.New("Google account missing email")
	}
	return nil
}

// AuthController drives startup authentication: restore, sign in, pick a role,
// sign out.
type AuthController struct {
	api      AuthAPI
	store    *storage.SessionStore
	idp      IdentityProvider
	notices  *Notices
	verifier CredentialVerifier
	now      func() time.Time

	mu        sync.Mutex
	state     AuthState
	user      *models.User
	idpLoaded bool
	changed   chan struct{}

	inFlight atomic.Bool
}

func NewAuthController(authAPI AuthAPI, store *storage.SessionStore, idp IdentityProvider, notices *Notices) *AuthController {
	return &AuthController{
		api:     authAPI,
		store:   store,
		idp:     idp,
		notices: notices,
		now:     time.Now,
		state:   StateLoading,
		changed: make(chan struct{}),
	}
}

// WithVerifier enables local credential verification.
func (c *AuthController) WithVerifier(v CredentialVerifier) *AuthController {
	c.verifier = v
	return c
}

// Start runs the bootstrap sequence once. It never fails: every outcome is a state.
func (c *AuthController) Start(ctx context.Context) AuthState {
	if err := c.idp.Load(ctx); err != nil {
		log.Printf("✗ Google Sign-In failed to load: %v", err)
	} else {
		c.mu.Lock()
		c.idpLoaded = true
		c.mu.Unlock()
	}

	if !c.store.IsAuthenticated() {
		c.toUnauthenticated(ctx)
		return c.State()
	}

	if exp, ok := c.store.TokenExpiry(); ok && !exp.After(c.now()) {
		c.expire(ctx)
		return c.State()
	}

	res := c.api.Profile(ctx)
	if !res.Success {
		log.Printf("session restore failed: %s", res.Error)
		c.expire(ctx)
		return c.State()
	}
	c.signedIn(res.User)
	return c.State()
}

// HandleCredential is the identity provider callback.
func (c *AuthController) HandleCredential(ctx context.Context, credential string) error {
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.inFlight.Store(false)

	if c.verifier != nil {
		if err := c.verifier.Verify(ctx, credential); err != nil {
			c.notices.Error("Google sign-in could not be verified")
			return err
		}
	}

	res := c.api.GoogleLogin(ctx, credential)
	if !res.Success {
		c.notices.Error(res.Error)
		return errors.New(res.Error)
	}
	c.signedIn(res.User)
	c.notices.Success("Signed in as " + res.User.Email)
	return nil
}

func (c *AuthController) SelectRole(ctx context.Context, role models.Role) error {
	if !role.Valid() {
		return newValidationError("role", "must be teacher or student")
	}
	if c.State() != StateRolePending {
		return ErrInvalidState
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.inFlight.Store(false)

	res := c.api.SetRole(ctx, role)
	if !res.Success {
		c.notices.Error(res.Error)
		return errors.New(res.Error)
	}
	c.signedIn(res.User)
	return nil
}

func (c *AuthController) Logout(ctx context.Context) error {
	if s := c.State(); s != StateReady && s != StateRolePending {
		return ErrInvalidState
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.inFlight.Store(false)

	if res := c.api.Logout(ctx); !res.Success {
		log.Printf("logout: %s", res.Error)
	}
	if err := c.store.Clear(); err != nil {
		log.Printf("logout: failed to clear storage: %v", err)
	}
	c.idp.DisableAutoSelect()
	c.notices.Info("Signed out")
	c.toUnauthenticated(ctx)
	return nil
}

// Busy reports whether role selection and logout are currently disabled.
func (c *AuthController) Busy() bool {
	return c.inFlight.Load()
}

func (c *AuthController) State() AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *AuthController) User() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// Status is the text shown on the sign-in screen.
func (c *AuthController) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state == StateUnauthenticated && !c.idpLoaded:
		return msgLoadingSignIn
	case c.state == StateUnauthenticated:
		return "Sign in with Google to continue"
	case c.state == StateLoading:
		return "Loading…"
	default:
		return ""
	}
}

// Wait blocks until the controller is in one of the given states.
func (c *AuthController) Wait(ctx context.Context, states ...AuthState) (AuthState, error) {
	for {
		c.mu.Lock()
		current, ch := c.state, c.changed
		c.mu.Unlock()

		for _, s := range states {
			if s == current {
				return current, nil
			}
		}
		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-ch:
		}
	}
}

func (c *AuthController) signedIn(user *models.User) {
	if user.HasRole() {
		c.setState(StateReady, user)
	} else {
		c.setState(StateRolePending, user)
	}
}

func (c *AuthController) expire(ctx context.Context) {
	if err := c.store.Clear(); err != nil {
		log.Printf("failed to clear expired session: %v", err)
	}
	c.notices.Error(msgSessionExpired)
	c.toUnauthenticated(ctx)
}

func (c *AuthController) toUnauthenticated(ctx context.Context) {
	c.setState(StateUnauthenticated, nil)

	c.mu.Lock()
	loaded := c.idpLoaded
	c.mu.Unlock()
	if !loaded {
		return
	}
	err := c.idp.RenderSignIn(ctx, func(credential string) error {
		err := c.HandleCredential(context.Background(), credential)
		if err != nil {
			log.Printf("sign-in: %v", err)
		}
		return err
	})
	if err != nil {
		log.Printf("✗ failed to render Google Sign-In: %v", err)
	}
}

func (c *AuthController) setState(state AuthState, user *models.User) {
	c.mu.Lock()
	c.state = state
	c.user = user
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
}
