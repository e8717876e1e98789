package google

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/djwarf/shellcal/internal/log"
)

// OAuthCallbackServer receives the OAuth redirect on a loopback port.
type OAuthCallbackServer struct {
	server   *http.Server
	listener net.Listener
	state    string
	result   chan callbackResult
	once     sync.Once
}

type callbackResult struct {
	code string
	err  error
}

// NewOAuthCallbackServer listens on a random localhost port.
func NewOAuthCallbackServer() (*OAuthCallbackServer, error) {
	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	state := make([]byte, 16)
	if _, err := rand.Read(state); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to create state: %w", err)
	}

	s := &OAuthCallbackServer{
		listener: listener,
		state:    hex.EncodeToString(state),
		result:   make(chan callbackResult, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Start serves callbacks in the background.
func (s *OAuthCallbackServer) Start() {
	go func() {
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("OAuth callback server stopped", err)
		}
	}()
}

// Stop shuts the server down.
func (s *OAuthCallbackServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.server.Shutdown(ctx)
}

// RedirectURL returns the callback URL to register with the OAuth config.
func (s *OAuthCallbackServer) RedirectURL() string {
	return fmt.Sprintf("http://localhost:%d/callback", s.listener.Addr().(*net.TCPAddr).Port)
}

// State is the anti-forgery value to pass to GetAuthURL.
func (s *OAuthCallbackServer) State() string {
	return s.state
}

// WaitForCode blocks until the first callback arrives or ctx ends.
func (s *OAuthCallbackServer) WaitForCode(ctx context.Context) (string, error) {
	select {
	case r := <-s.result:
		return r.code, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *OAuthCallbackServer) finish(r callbackResult) {
	s.once.Do(func() { s.result <- r })
}

func (s *OAuthCallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("state") != s.state {
		http.Error(w, "Unexpected state", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		msg := q.Get("error")
		if msg == "" {
			msg = "no authorization code received"
		}
		s.finish(callbackResult{err: fmt.Errorf("OAuth error: %s", msg)})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	s.finish(callbackResult{code: code})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>shellcal</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh">
	<h1>Calendar connected</h1>
	<p>You can close this window. The calendar server will sync shortly.</p>
</body>
</html>
`)
}
