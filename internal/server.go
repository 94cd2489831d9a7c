package internal

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"devicehub-api/internal/auth"
	"devicehub-api/internal/catalog"
	"devicehub-api/internal/config"
	"devicehub-api/internal/devices"
	"devicehub-api/internal/handlers"
	"devicehub-api/internal/models"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Accounts is the user storage login needs.
type Accounts interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, userID int64) error
}

// Deps are the collaborators NewServer wires into routes.
type Deps struct {
	Config   *config.Config
	Devices  *devices.Service
	Catalog  *catalog.Service
	Accounts Accounts
	// DB is nil when running on the in-memory store.
	DB      Pinger
	Metrics *Metrics
	Logger  logrus.FieldLogger
}

type Server struct {
	Router     *chi.Mux
	JWTManager *auth.JWTManager
	Metrics    *Metrics
	Devices    *devices.Service
	Catalog    *catalog.Service
	Accounts   Accounts
	Log        logrus.FieldLogger

	db Pinger
}

func NewServer(d Deps) (*Server, error) {
	if d.Config == nil || d.Devices == nil || d.Catalog == nil || d.Accounts == nil {
		return nil, errors.New("server: config, devices, catalog and accounts are required")
	}
	jwtManager := auth.NewJWTManager(d.Config.JWTSecret, d.Config.JWTIssuer, d.Config.JWTAudience, d.Config.JWTExpiry)
	if err := jwtManager.ValidateConfig(); err != nil {
		return nil, err
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics()
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}

	s := &Server{
		Router:     chi.NewRouter(),
		JWTManager: jwtManager,
		Metrics:    d.Metrics,
		Devices:    d.Devices,
		Catalog:    d.Catalog,
		Accounts:   d.Accounts,
		Log:        d.Logger,
		db:         d.DB,
	}

	if d.Config.EnableMetrics {
		s.Router.Use(s.Metrics.Middleware())
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	s.Router.Get("/dbping", s.dbPing)
	s.Router.Post("/auth/login", s.loginUser)

	imports := handlers.NewImportsHandler(s.Devices, d.Logger)
	if d.Config.ImportMappingPath != "" {
		if err := imports.LoadDefaultMapping(d.Config.ImportMappingPath); err != nil {
			return nil, err
		}
	}

	s.Router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(s.JWTManager))
		s.mountProtectedRoutes(r, imports)
	})
	return s, nil
}

func (s *Server) dbPing(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		_, _ = w.Write([]byte("db: memory"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		s.Log.WithError(err).Warn("database ping failed")
		writeError(w, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "database unreachable")
		return
	}
	_, _ = w.Write([]byte("db: ok"))
}

func (s *Server) mountProtectedRoutes(r chi.Router, imports *handlers.ImportsHandler) {
	admin := auth.MustRole(models.RoleAdmin)

	r.Get("/devices", s.listDevices)
	r.Get("/devices/{id}", s.getDevice)
	r.With(admin).Post("/devices", s.createDevice)
	r.With(admin).Put("/devices/{id}", s.updateDevice)
	r.With(admin).Delete("/devices/{id}", s.deleteDevice)
	r.Get("/devices/{id}/assignments", s.listDeviceAssignments)

	r.Get("/device-assignments", s.listAssignments)
	r.With(auth.SelfOrRole(pathUserID, models.RoleAdmin)).
		Get("/users/{userId}/device-assignments/{id}", s.getOpenAssignment)

	r.Get("/device-types", s.listDeviceTypes)
	r.Get("/device-models", s.listDeviceModels)
	r.With(admin).Delete("/device-models/{id}", s.deleteDeviceModel)
	r.Get("/owners", s.listOwners)

	r.With(admin).Post("/imports/devices", imports.UploadExcel)
}

func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// pathUserID returns the {userId} path parameter, or 0 if it is not a number.
func pathUserID(r *http.Request) int64 {
	id, err := parsePathID(r, "userId")
	if err != nil {
		return 0
	}
	return id
}
