package cmd

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samsaffron/workbench/internal/config"
	"github.com/samsaffron/workbench/internal/llm"
	"github.com/samsaffron/workbench/internal/signal"
	"github.com/samsaffron/workbench/internal/tools"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
)

var (
	serveHost        string
	servePort        int
	serveToken       string
	serveAllowNoAuth bool
	serveCORSOrigins []string
	serveWorkspace   string
	serveMock        bool
	serveMaxConns    int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workspace tool and chat streaming HTTP server",
	Long: `Run an HTTP server exposing the workspace tools and a streaming chat relay.

Endpoints:
  GET  /healthz
  GET  /v1/status
  GET  /v1/tools
  POST /v1/tools/invoke
  POST /v1/chat/stream     (text/event-stream)

Use --mock to stream canned replies without a model backend.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind host (default from config, 127.0.0.1)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Bind port (default from config, 8765)")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "Bearer token for API auth (auto-generated if omitted)")
	serveCmd.Flags().BoolVar(&serveAllowNoAuth, "allow-no-auth", false, "Disable auth (only allowed on loopback host)")
	serveCmd.Flags().StringArrayVar(&serveCORSOrigins, "cors-origin", nil, "Allowed CORS origin (repeatable, or '*' for all)")
	serveCmd.Flags().BoolVar(&serveMock, "mock", false, "Use a canned backend instead of the configured model")
	serveCmd.Flags().IntVar(&serveMaxConns, "max-conns", 0, "Maximum concurrent connections, 0 for unlimited (default from config)")
	AddWorkspaceFlag(serveCmd, &serveWorkspace)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyWorkspaceOverride(cfg, serveWorkspace)
	applyServeOverrides(cmd, cfg)

	if cfg.Serve.Port <= 0 || cfg.Serve.Port > 65535 {
		return fmt.Errorf("invalid --port %d (must be 1-65535)", cfg.Serve.Port)
	}

	requireAuth := !serveAllowNoAuth
	if !requireAuth && !isLoopbackHost(cfg.Serve.Host) {
		return fmt.Errorf("--allow-no-auth is only allowed on loopback hosts (got %q)", cfg.Serve.Host)
	}

	token := strings.TrimSpace(cfg.Serve.Token)
	if requireAuth && token == "" {
		generated, err := generateServeToken()
		if err != nil {
			return fmt.Errorf("generate auth token: %w", err)
		}
		token = generated
	}

	registry, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	proxy, err := newProxy(cfg, serveMock)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context())
	defer stop()

	s := newServeServer(serveServerConfig{
		host:        cfg.Serve.Host,
		port:        cfg.Serve.Port,
		requireAuth: requireAuth,
		token:       token,
		corsOrigins: cfg.Serve.CORSOrigins,
		backendURL:  cfg.Backend.BaseURL,
		maxConns:    cfg.Serve.MaxConns,
	}, registry, proxy)

	if err := s.Start(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "workbench serve listening on http://%s\n", s.Addr())
	fmt.Fprintf(cmd.ErrOrStderr(), "workspace: %s\n", registry.Workspace().Root())
	fmt.Fprintf(cmd.ErrOrStderr(), "backend: %s (model %s)\n", proxy.Backend().Name(), proxy.Model())
	fmt.Fprintf(cmd.ErrOrStderr(), "auth: %s\n", authSummary(requireAuth))
	if requireAuth {
		fmt.Fprintf(cmd.ErrOrStderr(), "token: %s\n", token)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// applyServeOverrides lets explicit flags win over config values.
func applyServeOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Serve.Host = serveHost
	}
	if flags.Changed("port") {
		cfg.Serve.Port = servePort
	}
	if flags.Changed("token") {
		cfg.Serve.Token = serveToken
	}
	if flags.Changed("max-conns") {
		cfg.Serve.MaxConns = serveMaxConns
	}
	if flags.Changed("cors-origin") {
		cfg.Serve.CORSOrigins = append([]string(nil), serveCORSOrigins...)
	}
}

func authSummary(required bool) string {
	if required {
		return "bearer required"
	}
	return "disabled"
}

func isLoopbackHost(host string) bool {
	h := strings.TrimSpace(strings.ToLower(host))
	return h == "127.0.0.1" || h == "localhost" || h == "::1"
}

func generateServeToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

type serveServerConfig struct {
	host        string
	port        int
	requireAuth bool
	token       string
	corsOrigins []string
	backendURL  string
	maxConns    int // 0 means unlimited
}

type serveServer struct {
	cfg      serveServerConfig
	registry *tools.Registry
	proxy    *llm.Proxy
	server   *http.Server
	listener net.Listener
}

func newServeServer(cfg serveServerConfig, registry *tools.Registry, proxy *llm.Proxy) *serveServer {
	return &serveServer{cfg: cfg, registry: registry, proxy: proxy}
}

func (s *serveServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.auth(s.cors(s.handleStatus)))
	mux.HandleFunc("/v1/tools", s.auth(s.cors(s.handleTools)))
	mux.HandleFunc("/v1/tools/invoke", s.auth(s.cors(s.handleInvoke)))
	mux.HandleFunc("/v1/chat/stream", s.auth(s.cors(s.handleChatStream)))

	return logRequests(mux)
}

func (s *serveServer) Start() error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.host, fmt.Sprint(s.cfg.port)))
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	if s.cfg.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.maxConns)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("serve stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, resolving port 0.
func (s *serveServer) Addr() string {
	if s.listener == nil {
		return net.JoinHostPort(s.cfg.host, fmt.Sprint(s.cfg.port))
	}
	return s.listener.Addr().String()
}

func (s *serveServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *serveServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeAPIError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *serveServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeAPIError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   Version,
		"workspace": s.registry.Workspace().Root(),
		"backend": map[string]any{
			"name":     s.proxy.Backend().Name(),
			"base_url": s.cfg.backendURL,
			"model":    s.proxy.Model(),
		},
		"tools": s.registry.Names(),
	})
}

func (s *serveServer) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeAPIError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.registry.Specs()})
}

type invokeRequest struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// handleInvoke always answers with an envelope. Tool failures are 200; only a
// request that cannot be decoded is a 400.
func (s *serveServer) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeAPIError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}
	if err := requireJSONContentType(r); err != nil {
		writeJSON(w, http.StatusBadRequest, tools.Failure(tools.NewToolError(tools.ErrInvalidArguments, err.Error())))
		return
	}
	var req invokeRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, tools.Failure(tools.NewToolErrorf(tools.ErrInvalidArguments, "invalid request body: %v", err)))
		return
	}

	env := s.registry.Invoke(r.Context(), req.Name, req.Args)
	writeJSON(w, http.StatusOK, env)
}

func (s *serveServer) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeAPIError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}
	if err := requireJSONContentType(r); err != nil {
		writeStreamError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", llm.ErrInvalidRequest, err))
		return
	}
	var req llm.ChatRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeStreamError(w, http.StatusBadRequest, fmt.Errorf("%w: invalid request body: %v", llm.ErrInvalidRequest, err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeStreamError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}

	ctx := r.Context()
	events, err := s.proxy.Stream(ctx, req)
	if err != nil {
		writeStreamError(w, http.StatusBadRequest, err)
		return
	}

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		if err := writeSSEEvent(w, string(ev.Type), streamEventPayload(ev)); err != nil {
			// Client went away. Returning cancels ctx, which stops the producer.
			slog.Debug("chat stream write failed", "request_id", w.Header().Get("X-Request-ID"), "error", err)
			return
		}
		flusher.Flush()
	}
}

func streamEventPayload(ev llm.StreamEvent) map[string]string {
	switch ev.Type {
	case llm.EventToken:
		return map[string]string{"content": ev.Text}
	case llm.EventDone:
		return map[string]string{"message": ev.Text}
	default:
		return map[string]string{"error": ev.Text}
	}
}

func (s *serveServer) auth(next http.HandlerFunc) http.HandlerFunc {
	if !s.cfg.requireAuth {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next(w, r)
			return
		}
		const prefix = "Bearer "
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, prefix) {
			writeAPIError(w, http.StatusUnauthorized, "invalid_api_key", "invalid authentication credentials")
			return
		}
		gotToken := strings.TrimSpace(strings.TrimPrefix(auth, prefix))
		if subtle.ConstantTimeCompare([]byte(gotToken), []byte(s.cfg.token)) != 1 {
			writeAPIError(w, http.StatusUnauthorized, "invalid_api_key", "invalid authentication credentials")
			return
		}
		next(w, r)
	}
}

func (s *serveServer) cors(next http.HandlerFunc) http.HandlerFunc {
	allowed := make(map[string]struct{}, len(s.cfg.corsOrigins))
	allowAll := false
	for _, origin := range s.cfg.corsOrigins {
		o := strings.TrimSpace(origin)
		if o == "" {
			continue
		}
		if o == "*" {
			allowAll = true
			continue
		}
		allowed[o] = struct{}{}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// statusRecorder captures the response status for request logs. It forwards
// Flush so SSE handlers still stream.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// logRequests tags each request with an X-Request-ID and logs it once done.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		level := slog.LevelDebug
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		} else if r.URL.Path != "/healthz" {
			level = slog.LevelInfo
		}
		slog.Log(r.Context(), level, "http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

func writeSSEEvent(w io.Writer, event string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}

// writeStreamError answers a chat request that never started streaming.
func writeStreamError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeAPIError(w http.ResponseWriter, status int, errorType, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    errorType,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSONBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 10<<20))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

func requireJSONContentType(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	if strings.TrimSpace(contentType) == "" {
		return fmt.Errorf("Content-Type must be application/json")
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("invalid Content-Type header")
	}
	if mediaType != "application/json" {
		return fmt.Errorf("Content-Type must be application/json")
	}
	return nil
}
