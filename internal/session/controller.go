// Package session orchestrates the authentication lifecycle: login,
// registration, token renewal, logout and session resumption. It owns the
// session state machine; only the authenticated phase permits conversation
// operations.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/pokedex-chat/console/internal/apierr"
	"github.com/pokedex-chat/console/internal/interfaces"
	"github.com/pokedex-chat/console/internal/logging"
	"github.com/pokedex-chat/console/internal/transport"
)

// tokenResponse matches the backend's login and refresh payloads.
type tokenResponse struct {
	AccessToken string                  `json:"access_token"`
	TokenType   string                  `json:"token_type"`
	User        *interfaces.UserProfile `json:"user,omitempty"`
}

// registerResponse matches the backend's registration payload.
type registerResponse struct {
	Message string                 `json:"message"`
	User    interfaces.UserProfile `json:"user"`
}

// Controller implements interfaces.SessionManager. Login, registration and
// renewal go straight to the transport: they are the calls that establish or
// repair the session, so they never pass through the interceptor they feed.
type Controller struct {
	transport interfaces.Transport
	store     interfaces.CredentialStore
	logger    *logging.Logger

	mu       sync.RWMutex
	phase    interfaces.SessionPhase
	user     *interfaces.UserProfile
	onLogout []func()
}

// NewController creates a session controller in the anonymous phase.
func NewController(tr interfaces.Transport, store interfaces.CredentialStore) *Controller {
	return &Controller{
		transport: tr,
		store:     store,
		logger:    logging.GetSessionLogger(),
		phase:     interfaces.PhaseAnonymous,
	}
}

// OnLogout registers a hook run whenever the session ends, by explicit
// logout or by expiry. The conversation client registers its cache reset
// here.
func (c *Controller) OnLogout(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLogout = append(c.onLogout, fn)
}

// Phase returns the current session phase.
func (c *Controller) Phase() interfaces.SessionPhase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// CurrentUser returns the authenticated user's profile, if any.
func (c *Controller) CurrentUser() (*interfaces.UserProfile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil, false
	}
	profile := *c.user
	return &profile, true
}

// Login authenticates with the backend, stores the issued credential and
// hydrates the user profile.
func (c *Controller) Login(ctx context.Context, username, password string) (*interfaces.UserProfile, error) {
	c.setPhase(interfaces.PhaseAuthenticating)
	c.logger.LogAuthOperation("login", username)

	resp, err := c.transport.Execute(ctx, interfaces.RequestDescriptor{
		Method: http.MethodPost,
		Path:   transport.EndpointLogin,
		Body: map[string]string{
			"username": username,
			"password": password,
		},
		Exempt: true,
	})
	if err != nil {
		c.setPhase(interfaces.PhaseAnonymous)
		return nil, rejectOnUnauthorized(err)
	}

	var token tokenResponse
	if err := json.Unmarshal(resp.Body, &token); err != nil {
		c.setPhase(interfaces.PhaseAnonymous)
		return nil, fmt.Errorf("parsing login response: %w", err)
	}
	if token.AccessToken == "" {
		c.setPhase(interfaces.PhaseAnonymous)
		return nil, fmt.Errorf("login response carried no access token")
	}

	cred := interfaces.Credential{AccessToken: token.AccessToken, TokenType: token.TokenType}
	c.store.Set(cred)

	profile, err := c.fetchProfile(ctx, cred)
	if err != nil {
		c.store.Clear()
		c.setPhase(interfaces.PhaseAnonymous)
		return nil, fmt.Errorf("fetching user profile after login: %w", err)
	}

	c.mu.Lock()
	c.user = profile
	c.phase = interfaces.PhaseAuthenticated
	c.mu.Unlock()

	return profile, nil
}

// Register creates a new account. It does not log the new user in; callers
// follow up with Login.
func (c *Controller) Register(ctx context.Context, username, email, password string) (*interfaces.UserProfile, error) {
	c.logger.LogAuthOperation("register", username)

	body := map[string]string{
		"username": username,
		"password": password,
	}
	if email != "" {
		body["email"] = email
	}

	resp, err := c.transport.Execute(ctx, interfaces.RequestDescriptor{
		Method: http.MethodPost,
		Path:   transport.EndpointRegister,
		Body:   body,
		Exempt: true,
	})
	if err != nil {
		return nil, rejectOnUnauthorized(err)
	}

	var reg registerResponse
	if err := json.Unmarshal(resp.Body, &reg); err != nil {
		return nil, fmt.Errorf("parsing registration response: %w", err)
	}
	return &reg.User, nil
}

// Renew exchanges the stale credential for a fresh one. The interceptor's
// single-flight gate guarantees at most one concurrent invocation; this
// method itself holds no renewal state.
func (c *Controller) Renew(ctx context.Context, stale interfaces.Credential) (interfaces.Credential, error) {
	c.setPhase(interfaces.PhaseRenewalPending)

	header := make(http.Header)
	header.Set("Authorization", stale.AuthorizationValue())

	resp, err := c.transport.Execute(ctx, interfaces.RequestDescriptor{
		Method: http.MethodPost,
		Path:   transport.EndpointRefresh,
		Header: header,
		Exempt: true,
	})
	if err != nil {
		return interfaces.Credential{}, rejectOnUnauthorized(err)
	}

	var token tokenResponse
	if err := json.Unmarshal(resp.Body, &token); err != nil {
		return interfaces.Credential{}, fmt.Errorf("parsing refresh response: %w", err)
	}
	if token.AccessToken == "" {
		return interfaces.Credential{}, fmt.Errorf("refresh response carried no access token")
	}

	c.setPhase(interfaces.PhaseAuthenticated)
	return interfaces.Credential{AccessToken: token.AccessToken, TokenType: token.TokenType}, nil
}

// Hydrate resumes a previously persisted session by validating the stored
// token against /auth/me. A rejected token clears the session silently; the
// user simply starts anonymous.
func (c *Controller) Hydrate(ctx context.Context) (*interfaces.UserProfile, error) {
	cred, ok := c.store.Get()
	if !ok {
		return nil, nil
	}

	profile, err := c.fetchProfile(ctx, cred)
	if err != nil {
		c.store.Clear()
		c.setPhase(interfaces.PhaseAnonymous)
		return nil, err
	}

	c.mu.Lock()
	c.user = profile
	c.phase = interfaces.PhaseAuthenticated
	c.mu.Unlock()

	return profile, nil
}

// Logout ends the session: credential cleared, caches reset, phase back to
// anonymous.
func (c *Controller) Logout() {
	c.store.Clear()

	c.mu.Lock()
	c.user = nil
	c.phase = interfaces.PhaseAnonymous
	hooks := append([]func(){}, c.onLogout...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// ExpiryHandler returns the callback the interceptor invokes when renewal
// fails. The credential store is already cleared by then; this transitions
// the state machine and resets dependent caches so the application can route
// to the login view.
func (c *Controller) ExpiryHandler() func() {
	return func() {
		c.mu.Lock()
		c.user = nil
		c.phase = interfaces.PhaseExpired
		hooks := append([]func(){}, c.onLogout...)
		c.mu.Unlock()

		c.logger.Warn("Session expired, forcing logout")
		for _, fn := range hooks {
			fn()
		}
	}
}

func (c *Controller) fetchProfile(ctx context.Context, cred interfaces.Credential) (*interfaces.UserProfile, error) {
	header := make(http.Header)
	header.Set("Authorization", cred.AuthorizationValue())

	resp, err := c.transport.Execute(ctx, interfaces.RequestDescriptor{
		Method: http.MethodGet,
		Path:   transport.EndpointMe,
		Header: header,
		Exempt: true,
	})
	if err != nil {
		return nil, rejectOnUnauthorized(err)
	}

	var profile interfaces.UserProfile
	if err := json.Unmarshal(resp.Body, &profile); err != nil {
		return nil, fmt.Errorf("parsing profile response: %w", err)
	}
	return &profile, nil
}

func (c *Controller) setPhase(phase interfaces.SessionPhase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = phase
}

// rejectOnUnauthorized maps a 401 on an unauthenticated call to
// AuthRejected: there is no session behind these calls to renew.
func rejectOnUnauthorized(err error) error {
	if apierr.IsUnauthorized(err) {
		var se *apierr.ServerError
		errors.As(err, &se)
		return &apierr.AuthRejected{Detail: se.Detail}
	}
	return err
}
