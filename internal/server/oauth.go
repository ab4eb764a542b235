package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogx/internal/shared"
	"golang.org/x/oauth2"
)

// CallbackPath is where the provider redirects after authorization.
const CallbackPath = "/callback"

const successPage = `<!DOCTYPE html>
<html>
<head><title>Authorization Successful</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh">
    <h1 style="color: #1DB954">Authorization Successful</h1>
    <p>You can close this window and return to the terminal.</p>
</body>
</html>
`

// Exchanger trades an authorization code for a token. services.SpotifyService implements it.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles the authorization code callback.
//
// It validates the state parameter, exchanges the code and sends exactly one result.
// Later callbacks are rejected.
type OAuthHandler struct {
	exchanger   Exchanger
	state       string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a new OAuth handler for the given exchanger and state token.
func NewOAuthHandler(exchanger Exchanger, state string) *OAuthHandler {
	return &OAuthHandler{
		exchanger:  exchanger,
		state:      state,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{CallbackPath}
}

// ServeHTTP handles the OAuth callback request.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	query := r.URL.Query()
	if query.Get("state") != h.state {
		h.Send(OAuthResult{err: fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, query.Get("error"), query.Get("error_description"))
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		h.Send(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.Send(OAuthResult{Token: token})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the channel that receives exactly one result and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

// CallbackServer serves an [OAuthHandler] until it yields a result.
type CallbackServer struct {
	handler  *OAuthHandler
	listener net.Listener
	server   *http.Server
	logger   *log.Logger
}

// Listen binds addr and prepares to serve handler. Use port 0 to pick a free port.
func Listen(addr string, handler *OAuthHandler, logger *log.Logger) (*CallbackServer, error) {
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	router := NewBasicRouter()
	router.Use(RequestLogger(logger))
	router.Handler(handler)

	return &CallbackServer{
		handler:  handler,
		listener: ln,
		server:   &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second},
		logger:   logger,
	}, nil
}

// Addr is the bound listen address.
func (s *CallbackServer) Addr() string {
	return s.listener.Addr().String()
}

// Wait serves until the callback arrives, ctx ends or timeout elapses, then shuts the server down.
func (s *CallbackServer) Wait(ctx context.Context, timeout time.Duration) (*oauth2.Token, error) {
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("waiting for OAuth callback", "addr", s.Addr())
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer s.shutdown()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result OAuthResult
	select {
	case result = <-s.handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("callback server error: %w", err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, result.Error()
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}

func (s *CallbackServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("error shutting down callback server", "error", err)
	}
}
