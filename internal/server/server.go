// Package server exposes feature extraction, classification, cropping and
// the account and history API over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/teavision/internal/circle"
	"github.com/MeKo-Tech/teavision/internal/classify"
	"github.com/MeKo-Tech/teavision/internal/crop"
	"github.com/MeKo-Tech/teavision/internal/notify"
	"github.com/MeKo-Tech/teavision/internal/pipeline"
	"github.com/MeKo-Tech/teavision/internal/store"
)

// Store is the persistence the API needs. *store.SQLiteStore implements it.
type Store interface {
	Ping(ctx context.Context) error
	Register(ctx context.Context, email, password string, admin bool) (*store.User, error)
	Authenticate(ctx context.Context, email, password string) (*store.User, error)
	GetUser(ctx context.Context, id int64) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	RequireAdmin(ctx context.Context, email string) error
	ListUsers(ctx context.Context) ([]store.User, error)
	UpdateUser(ctx context.Context, id int64, upd store.UserUpdate) (*store.User, error)
	DeleteUser(ctx context.Context, actor string, id int64) error
	ToggleAdmin(ctx context.Context, actor string, id int64) (bool, error)
	SetProfilePicture(ctx context.Context, id int64, url string) (*store.User, error)
	Stats(ctx context.Context) (*store.Stats, error)
	AddHistory(ctx context.Context, email string, e store.HistoryEntry) (*store.HistoryEntry, error)
	ListHistory(ctx context.Context, f store.HistoryFilter) ([]store.HistoryEntry, error)
	ClearHistory(ctx context.Context, f store.HistoryFilter) (int64, error)
}

// Config holds server configuration.
type Config struct {
	CORSOrigin   string
	MaxUploadMB  int64
	UploadDir    string
	BatchWorkers int
	DefaultModel string
	// CropSeed fixes the cropper's random centre fill. Zero draws a fresh
	// seed per request.
	CropSeed uint64

	RateLimitEnabled  bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Deps are the components a Server is built from. Classifier may be nil,
// in which case prediction requests fail with 503.
type Deps struct {
	Store      Store
	Classifier *classify.Adapter
	Extractor  *pipeline.Extractor
	Locator    circle.Locator
	Remover    *crop.ReflectionRemover
	Notifier   notify.Notifier
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	store       Store
	classifier  *classify.Adapter
	extractor   *pipeline.Extractor
	locator     circle.Locator
	remover     *crop.ReflectionRemover
	notifier    notify.Notifier
	rateLimiter *RateLimiter

	corsOrigin   string
	maxUploadMB  int64
	uploadDir    string
	batchWorkers int
	defaultModel string
	cropSeed     uint64
	now          func() time.Time
}

// NewServer creates a server. Missing optional deps get their defaults.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("server: store is required")
	}
	s := &Server{
		store:        deps.Store,
		classifier:   deps.Classifier,
		extractor:    deps.Extractor,
		locator:      deps.Locator,
		remover:      deps.Remover,
		notifier:     deps.Notifier,
		corsOrigin:   cfg.CORSOrigin,
		maxUploadMB:  cfg.MaxUploadMB,
		uploadDir:    cfg.UploadDir,
		batchWorkers: cfg.BatchWorkers,
		defaultModel: cfg.DefaultModel,
		cropSeed:     cfg.CropSeed,
		now:          time.Now,
	}
	if s.extractor == nil {
		s.extractor = pipeline.NewExtractor(pipeline.DefaultExtractorConfig())
	}
	if s.locator == nil {
		s.locator = circle.NewNativeLocator(circle.DefaultConfig())
	}
	if s.remover == nil {
		s.remover = crop.NewReflectionRemover(nil)
	}
	if s.notifier == nil {
		s.notifier = notify.LogNotifier{}
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if s.uploadDir == "" {
		s.uploadDir = "uploads/profile_pictures"
	}
	if s.defaultModel == "" {
		s.defaultModel = "svm"
	}
	if cfg.RateLimitEnabled {
		s.rateLimiter = NewRateLimiter(cfg.RequestsPerMinute, cfg.RequestsPerHour,
			cfg.MaxRequestsPerDay, cfg.MaxDataPerDay)
	}
	return s, nil
}

// Close releases the loaded models.
func (s *Server) Close() error {
	if s.classifier != nil {
		return s.classifier.Registry().Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/models", s.corsMiddleware(s.modelsHandler))

	mux.HandleFunc("/extract_features", s.corsMiddleware(s.rateLimitMiddleware(s.extractFeaturesHandler)))
	mux.HandleFunc("/predict_region_group", s.corsMiddleware(s.rateLimitMiddleware(s.predictHandler)))
	mux.HandleFunc("/crop_reflection", s.corsMiddleware(s.rateLimitMiddleware(s.cropReflectionHandler)))

	mux.HandleFunc("/register", s.corsMiddleware(s.registerHandler))
	mux.HandleFunc("/login", s.corsMiddleware(s.loginHandler))

	mux.HandleFunc("/api/history", s.corsMiddleware(s.historyHandler))
	mux.HandleFunc("/api/history/report", s.corsMiddleware(s.historyReportHandler))

	mux.HandleFunc("/api/profile/upload-picture", s.corsMiddleware(s.rateLimitMiddleware(s.uploadPictureHandler)))
	mux.HandleFunc("/api/profile/picture/{filename}", s.corsMiddleware(s.pictureHandler))
	mux.HandleFunc("/api/profile/update", s.corsMiddleware(s.updateProfileHandler))

	mux.HandleFunc("/api/admin/users", s.corsMiddleware(s.adminOnly(s.listUsersHandler)))
	mux.HandleFunc("/api/admin/users/{id}", s.corsMiddleware(s.adminOnly(s.userHandler)))
	mux.HandleFunc("/api/admin/users/{id}/toggle-admin", s.corsMiddleware(s.adminOnly(s.toggleAdminHandler)))
	mux.HandleFunc("/api/admin/stats", s.corsMiddleware(s.adminOnly(s.statsHandler)))
	mux.HandleFunc("/api/admin/history", s.corsMiddleware(s.adminOnly(s.adminHistoryHandler)))
	mux.HandleFunc("/api/admin/history/report", s.corsMiddleware(s.adminOnly(s.adminReportHandler)))

	// The upgrade needs the raw ResponseWriter, so no metrics wrapper here.
	mux.HandleFunc("/ws/extract", s.extractWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) uploadLimit() int64 { return s.maxUploadMB * 1024 * 1024 }
