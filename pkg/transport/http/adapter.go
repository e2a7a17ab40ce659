package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/feynmind/pkg/account"
	"github.com/rhuss/feynmind/pkg/api"
	"github.com/rhuss/feynmind/pkg/auth"
	"github.com/rhuss/feynmind/pkg/auth/password"
	"github.com/rhuss/feynmind/pkg/documents"
	"github.com/rhuss/feynmind/pkg/observability"
	"github.com/rhuss/feynmind/pkg/storage"
	"github.com/rhuss/feynmind/pkg/transport"
	"github.com/rhuss/feynmind/pkg/tutor"
)

// AccountService registers identities and logs them in.
type AccountService interface {
	Register(ctx context.Context, email, displayName, plaintext string) error
	Login(ctx context.Context, email, plaintext string) (*account.LoginResult, error)
}

// DocumentService ingests and serves the caller's documents.
type DocumentService interface {
	Upload(ctx context.Context, fileName, declaredType string, data []byte) (*api.Document, error)
	List(ctx context.Context) ([]*api.Document, error)
	Original(ctx context.Context, fileName string) (*api.Document, []byte, error)
}

// StudyService implements the tutoring features.
type StudyService interface {
	Topics(ctx context.Context, fileName string) ([]string, error)
	Assess(ctx context.Context, concept, explanation, difficulty string) (string, error)
	Analogy(ctx context.Context, concept, difficulty string) (string, error)
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize   int64 // JSON request bodies
	MaxUploadSize int64 // multipart uploads
	Realm         string
	MetricsPath   string // empty disables the metrics endpoint
	CORS          auth.CORSConfig
	HealthTimeout time.Duration
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize:   1 << 20,  // 1 MB
		MaxUploadSize: 20 << 20, // 20 MB
		Realm:         "feynmind",
		MetricsPath:   "/metrics",
		CORS:          auth.DefaultCORSConfig([]string{"http://localhost:5173"}),
		HealthTimeout: 2 * time.Second,
	}
}

// Deps are the services behind the routes. Accounts and Authenticator are
// required. Documents and Study may be nil; their routes then answer 503.
type Deps struct {
	Accounts      AccountService
	Authenticator auth.Authenticator
	Documents     DocumentService
	Study         StudyService
	Limiter       *auth.LoginLimiter
	Health        []HealthChecker
	Logger        *slog.Logger
}

// Adapter serves the Feynmind API over HTTP.
type Adapter struct {
	deps   Deps
	config Config
	policy *auth.Policy
	mux    *http.ServeMux
	routes []string
	logger *slog.Logger
}

// NewAdapter creates an HTTP adapter and registers its routes.
func NewAdapter(cfg Config, deps Deps) (*Adapter, error) {
	if deps.Accounts == nil {
		return nil, errors.New("account service is required")
	}
	if deps.Authenticator == nil {
		return nil, errors.New("authenticator is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Realm == "" {
		cfg.Realm = "feynmind"
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 2 * time.Second
	}

	a := &Adapter{
		deps:   deps,
		config: cfg,
		policy: auth.NewPolicy(cfg.Realm, auth.DefaultRules(cfg.MetricsPath)),
		mux:    http.NewServeMux(),
		logger: logger,
	}

	a.handle("POST /api/auth/signup", a.handleSignup)
	a.handle("POST /api/auth/login", a.handleLogin)
	a.handle("POST /api/documents/upload", a.handleUpload)
	a.handle("GET /api/documents", a.handleListDocuments)
	a.handle("GET /api/documents/original", a.handleOriginal)
	a.handle("POST /api/study/analyze", a.handleAnalyze)
	a.handle("POST /api/study/feynman-check", a.handleFeynmanCheck)
	a.handle("POST /api/study/analogy", a.handleAnalogy)
	a.handle("GET /error", a.handleError)
	a.handle("GET /healthz", a.handleHealth)
	if cfg.MetricsPath != "" {
		a.mux.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
		a.routes = append(a.routes, cfg.MetricsPath)
	}

	return a, nil
}

func (a *Adapter) handle(pattern string, h http.HandlerFunc) {
	a.mux.HandleFunc(pattern, h)
	if _, path, ok := strings.Cut(pattern, " "); ok {
		a.routes = append(a.routes, path)
	}
}

// Handler returns the full request pipeline:
// Recovery, RequestID, Logging, Metrics, CORS, Gate, Policy, routes.
func (a *Adapter) Handler() http.Handler {
	return transport.Chain(
		transport.Recovery(a.logger),
		transport.RequestID(),
		transport.Logging(a.logger),
		observability.MetricsMiddleware(a.routes),
		auth.CORS(a.config.CORS),
		auth.Gate(a.deps.Authenticator),
		annotateSubject,
		a.policy.Middleware,
	)(a.mux)
}

// annotateSubject hands the verified subject to the access log.
func annotateSubject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := auth.IdentityFromContext(r.Context()); id != nil {
			transport.SetLogSubject(r.Context(), id.Subject)
		}
		next.ServeHTTP(w, r)
	})
}

// handleSignup handles POST /api/auth/signup.
func (a *Adapter) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req api.SignupRequest
	if apiErr, status := a.decodeJSON(w, r, &req); apiErr != nil {
		observability.SignupTotal.WithLabelValues("invalid_request").Inc()
		transport.WriteErrorResponse(w, apiErr, status)
		return
	}

	if err := a.deps.Accounts.Register(r.Context(), req.Email, req.Name, req.Password); err != nil {
		observability.SignupTotal.WithLabelValues(signupOutcome(err)).Inc()
		a.writeError(w, r, err)
		return
	}

	observability.SignupTotal.WithLabelValues("success").Inc()
	transport.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: "User registered successfully!"})
}

// handleLogin handles POST /api/auth/login.
func (a *Adapter) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Limiter.Allow(auth.ClientAddress(r)); err != nil {
		observability.LoginTotal.WithLabelValues("rate_limited").Inc()
		w.Header().Set("Retry-After", "60")
		a.writeError(w, r, err)
		return
	}

	var req api.LoginRequest
	if apiErr, status := a.decodeJSON(w, r, &req); apiErr != nil {
		observability.LoginTotal.WithLabelValues("invalid_request").Inc()
		transport.WriteErrorResponse(w, apiErr, status)
		return
	}

	result, err := a.deps.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		observability.LoginTotal.WithLabelValues(loginOutcome(err)).Inc()
		a.writeError(w, r, err)
		return
	}

	observability.LoginTotal.WithLabelValues("success").Inc()
	transport.WriteJSON(w, http.StatusOK, api.LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.Unix(),
		User:      api.UserProfile{Name: result.Name, Email: result.Email},
	})
}

// handleUpload handles POST /api/documents/upload (multipart field "file").
func (a *Adapter) handleUpload(w http.ResponseWriter, r *http.Request) {
	if a.deps.Documents == nil {
		a.writeUnavailable(w, "document storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			a.writeTooLarge(w, "file", a.config.MaxUploadSize)
			return
		}
		if errors.Is(err, http.ErrMissingFile) {
			transport.WriteAPIError(w, api.NewInvalidRequestError("file", "file is required"))
			return
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("file", "invalid multipart form: "+err.Error()))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		if isTooLarge(err) {
			a.writeTooLarge(w, "file", a.config.MaxUploadSize)
			return
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("file", "failed to read upload"))
		return
	}

	doc, err := a.deps.Documents.Upload(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	transport.WriteJSON(w, http.StatusOK, api.UploadResponse{
		ID:         doc.ID,
		FileName:   doc.FileName,
		Characters: doc.Characters,
		Message:    fmt.Sprintf("Document processed successfully! Extracted %d characters.", doc.Characters),
	})
}

// handleListDocuments handles GET /api/documents.
func (a *Adapter) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if a.deps.Documents == nil {
		a.writeUnavailable(w, "document storage is not configured")
		return
	}

	docs, err := a.deps.Documents.List(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []*api.Document{}
	}
	transport.WriteJSON(w, http.StatusOK, api.DocumentList{Data: docs})
}

// handleOriginal handles GET /api/documents/original?fileName=.
func (a *Adapter) handleOriginal(w http.ResponseWriter, r *http.Request) {
	if a.deps.Documents == nil {
		a.writeUnavailable(w, "document storage is not configured")
		return
	}

	name := r.URL.Query().Get("fileName")
	if name == "" {
		transport.WriteAPIError(w, api.NewInvalidRequestError("fileName", "fileName is required"))
		return
	}

	doc, data, err := a.deps.Documents.Original(r.Context(), name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if cd := mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}); cd != "" {
		w.Header().Set("Content-Disposition", cd)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleAnalyze handles POST /api/study/analyze.
func (a *Adapter) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if a.deps.Study == nil {
		a.writeUnavailable(w, "tutoring backend is not configured")
		return
	}

	var req api.AnalyzeRequest
	if apiErr, status := a.decodeJSON(w, r, &req); apiErr != nil {
		transport.WriteErrorResponse(w, apiErr, status)
		return
	}

	topics, err := a.deps.Study.Topics(r.Context(), req.FileName)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, topics)
}

// handleFeynmanCheck handles POST /api/study/feynman-check.
func (a *Adapter) handleFeynmanCheck(w http.ResponseWriter, r *http.Request) {
	if a.deps.Study == nil {
		a.writeUnavailable(w, "tutoring backend is not configured")
		return
	}

	var req api.FeynmanCheckRequest
	if apiErr, status := a.decodeJSON(w, r, &req); apiErr != nil {
		transport.WriteErrorResponse(w, apiErr, status)
		return
	}

	feedback, err := a.deps.Study.Assess(r.Context(), req.Concept, req.Explanation, req.Difficulty)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeText(w, feedback)
}

// handleAnalogy handles POST /api/study/analogy.
func (a *Adapter) handleAnalogy(w http.ResponseWriter, r *http.Request) {
	if a.deps.Study == nil {
		a.writeUnavailable(w, "tutoring backend is not configured")
		return
	}

	var req api.AnalogyRequest
	if apiErr, status := a.decodeJSON(w, r, &req); apiErr != nil {
		transport.WriteErrorResponse(w, apiErr, status)
		return
	}

	analogy, err := a.deps.Study.Analogy(r.Context(), req.Concept, req.Difficulty)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeText(w, analogy)
}

// handleError handles GET /error, the public fallback error document.
func (a *Adapter) handleError(w http.ResponseWriter, r *http.Request) {
	transport.WriteAPIError(w, api.NewServerError("An unexpected error occurred"))
}

// handleHealth handles GET /healthz.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.config.HealthTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, hc := range a.deps.Health {
		if err := hc.HealthCheck(ctx); err != nil {
			a.logger.Warn("health check failed", "error", err.Error())
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, "unavailable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

// decodeJSON reads a size-limited JSON body into v and validates it. It
// returns the error to send and its status, or nil on success.
func (a *Adapter) decodeJSON(w http.ResponseWriter, r *http.Request, v any) (*api.APIError, int) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if isTooLarge(err) {
			return api.NewInvalidRequestError("body",
				fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)), http.StatusRequestEntityTooLarge
		}
		return api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()), http.StatusBadRequest
	}

	if apiErr := validateRequest(v); apiErr != nil {
		return apiErr, http.StatusBadRequest
	}
	return nil, 0
}

// writeError maps a domain error onto the API error kinds and writes it.
func (a *Adapter) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apiErrorFor(err)
	if apiErr.Type == api.ErrorTypeServerError || apiErr.Type == api.ErrorTypeStoreUnavailable ||
		apiErr.Type == api.ErrorTypeUpstreamError {
		a.logger.ErrorContext(r.Context(), "request failed",
			"request_id", transport.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
		)
	}
	transport.WriteAPIError(w, apiErr)
}

func (a *Adapter) writeUnavailable(w http.ResponseWriter, msg string) {
	transport.WriteErrorResponse(w, api.NewUpstreamError(msg), http.StatusServiceUnavailable)
}

func (a *Adapter) writeTooLarge(w http.ResponseWriter, param string, limit int64) {
	transport.WriteErrorResponse(w,
		api.NewInvalidRequestError(param, fmt.Sprintf("upload too large (max %d bytes)", limit)),
		http.StatusRequestEntityTooLarge,
	)
}

func apiErrorFor(err error) *api.APIError {
	var apiErr *api.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, account.ErrDuplicateIdentity):
		return api.NewDuplicateIdentityError()
	case errors.Is(err, account.ErrInvalidCredentials):
		return api.NewInvalidCredentialsError()
	case errors.Is(err, account.ErrStoreUnavailable):
		return api.NewStoreUnavailableError()
	case errors.Is(err, password.ErrPasswordTooLong):
		return api.NewInvalidRequestError("password",
			fmt.Sprintf("password must be at most %d bytes", password.MaxLength))
	case errors.Is(err, auth.ErrTooManyRequests):
		return api.NewTooManyRequestsError("Too many login attempts, please try again later")
	case errors.Is(err, documents.ErrEmptyFile):
		return api.NewInvalidRequestError("file", "file is empty")
	case errors.Is(err, documents.ErrUnsupportedType):
		return api.NewUnsupportedMediaError("Unsupported file type; upload a PDF or a text file")
	case errors.Is(err, documents.ErrNoText):
		return api.NewUnprocessableError("No text could be extracted from the file")
	case errors.Is(err, documents.ErrUnreadable):
		return api.NewUnprocessableError("The file could not be read")
	case errors.Is(err, storage.ErrNotFound):
		return api.NewNotFoundError("Document not found")
	case errors.Is(err, storage.ErrNoOwner):
		return api.NewUnauthenticatedError()
	case errors.Is(err, tutor.ErrUpstream):
		return api.NewUpstreamError("The tutoring backend failed to answer")
	default:
		return api.NewServerError("internal server error")
	}
}

func signupOutcome(err error) string {
	switch {
	case errors.Is(err, account.ErrDuplicateIdentity):
		return "duplicate"
	case errors.Is(err, account.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, password.ErrPasswordTooLong):
		return "invalid_request"
	default:
		return "error"
	}
}

func loginOutcome(err error) string {
	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, account.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}

func isTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func writeText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, s)
}
