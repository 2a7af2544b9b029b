// Package auth implements the authentication interceptor that sits between
// the conversation client and the transport. It attaches the current bearer
// token to every outbound call, detects authorization failure, coordinates a
// single token renewal across arbitrarily many concurrent callers and
// replays every call that was blocked on that renewal.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pokedex-chat/console/internal/apierr"
	"github.com/pokedex-chat/console/internal/interfaces"
	"github.com/pokedex-chat/console/internal/logging"
)

// DefaultRenewalTimeout bounds the renewal round trip so queued calls can
// never be blocked indefinitely. A renewal that exceeds it is treated as a
// renewal failure.
const DefaultRenewalTimeout = 15 * time.Second

// replayOutcome is the settled result of one queued call.
type replayOutcome struct {
	resp *interfaces.Response
	err  error
}

// pendingRequest is a call that hit 401 while a renewal was already in
// flight. It is resolved or rejected exactly once when the renewal settles.
type pendingRequest struct {
	ctx  context.Context
	desc interfaces.RequestDescriptor
	done chan replayOutcome
}

// Interceptor implements interfaces.Caller with transparent token renewal.
type Interceptor struct {
	transport interfaces.Transport
	store     interfaces.CredentialStore
	renewer   interfaces.Renewer

	renewalTimeout time.Duration
	onExpired      func()
	logger         *logging.Logger

	// mu guards renewing and queue; "check renewing, then enqueue or start
	// renewal" must be a single atomic step.
	mu       sync.Mutex
	renewing bool
	queue    []*pendingRequest
}

// Option customizes an interceptor at construction time.
type Option func(*Interceptor)

// WithRenewalTimeout overrides the bound on the renewal round trip.
func WithRenewalTimeout(d time.Duration) Option {
	return func(i *Interceptor) { i.renewalTimeout = d }
}

// WithExpiryHandler registers the callback invoked when renewal fails and
// the session ends. The surrounding application uses it to route back to the
// login view.
func WithExpiryHandler(fn func()) Option {
	return func(i *Interceptor) { i.onExpired = fn }
}

// NewInterceptor wires the interceptor to its collaborators.
func NewInterceptor(tr interfaces.Transport, store interfaces.CredentialStore, renewer interfaces.Renewer, opts ...Option) *Interceptor {
	i := &Interceptor{
		transport:      tr,
		store:          store,
		renewer:        renewer,
		renewalTimeout: DefaultRenewalTimeout,
		logger:         logging.GetAuthLogger(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Do executes desc with the current credential attached. On a genuine 401 it
// renews the token once and replays the call; a 401 on the replay is a hard
// failure, never re-queued.
func (i *Interceptor) Do(ctx context.Context, desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
	resp, err := i.execute(ctx, desc)
	if !apierr.IsUnauthorized(err) {
		return resp, err
	}

	if desc.Exempt {
		// Login, registration and refresh calls carry no renewable session:
		// a 401 means the presented credentials themselves were rejected.
		var se *apierr.ServerError
		errors.As(err, &se)
		return nil, &apierr.AuthRejected{Detail: se.Detail}
	}

	return i.handleUnauthorized(ctx, desc)
}

// execute attaches the current credential and performs a single transport
// call. It never retries.
func (i *Interceptor) execute(ctx context.Context, desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
	if cred, ok := i.store.Get(); ok {
		desc.Header = cloneHeader(desc.Header)
		desc.Header.Set("Authorization", cred.AuthorizationValue())
	}
	return i.transport.Execute(ctx, desc)
}

// handleUnauthorized coordinates the single-flight renewal. Exactly one
// caller performs the renewal; every other caller that hits 401 meanwhile is
// queued and settled, in FIFO order, when the renewal completes.
func (i *Interceptor) handleUnauthorized(ctx context.Context, desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
	i.mu.Lock()
	if i.renewing {
		pending := &pendingRequest{ctx: ctx, desc: desc, done: make(chan replayOutcome, 1)}
		i.queue = append(i.queue, pending)
		i.mu.Unlock()

		select {
		case out := <-pending.done:
			return out.resp, out.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	i.renewing = true
	i.mu.Unlock()

	return i.renewAndReplay(ctx, desc)
}

// renewAndReplay runs the single renewal attempt, settles the queue and
// replays the triggering call.
func (i *Interceptor) renewAndReplay(ctx context.Context, desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
	start := time.Now()
	i.logger.LogRenewalStart()

	stale, hasCred := i.store.Get()

	var (
		fresh    interfaces.Credential
		renewErr error
	)
	if !hasCred {
		renewErr = errors.New("no credential available to renew")
	} else {
		// The renewal outlives the triggering caller: queued calls depend on
		// it even if that one caller gives up.
		renewCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.renewalTimeout)
		fresh, renewErr = i.renewer.Renew(renewCtx, stale)
		cancel()
	}

	if renewErr == nil {
		// The new credential must be visible before any replay reads it.
		i.store.Set(fresh)
	} else {
		i.store.Clear()
	}

	// Reset the gate and take ownership of the queue in one critical
	// section, so a renewal started immediately afterward begins empty.
	i.mu.Lock()
	queue := i.queue
	i.queue = nil
	i.renewing = false
	i.mu.Unlock()

	i.logger.LogRenewalResult(renewErr, len(queue), time.Since(start))

	if renewErr != nil {
		expired := &apierr.SessionExpired{Cause: renewErr}
		for _, pending := range queue {
			pending.done <- replayOutcome{err: expired}
		}
		if i.onExpired != nil {
			i.onExpired()
		}
		return nil, expired
	}

	go i.drainQueue(queue)

	// Replay the triggering call once with the fresh token. Whatever comes
	// back, including another 401, is final.
	return i.execute(ctx, desc)
}

// drainQueue replays queued calls with the fresh token, strictly in enqueue
// order, settling each one independently.
func (i *Interceptor) drainQueue(queue []*pendingRequest) {
	for _, pending := range queue {
		resp, err := i.execute(pending.ctx, pending.desc)
		pending.done <- replayOutcome{resp: resp, err: err}
	}
}

// isRenewing and queueLen expose interceptor state for tests.
func (i *Interceptor) isRenewing() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.renewing
}

func (i *Interceptor) queueLen() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.queue)
}

func cloneHeader(h map[string][]string) map[string][]string {
	cloned := make(map[string][]string, len(h)+1)
	for k, v := range h {
		cloned[k] = append([]string(nil), v...)
	}
	return cloned
}
