package internal

import (
	"context"
	"database/sql"
	"embed"
	"log"
	"net/http"
	"os"
	"time"

	"opsdesk-assets-api/internal/auth"
	"opsdesk-assets-api/internal/config"
	"opsdesk-assets-api/internal/directory"
	"opsdesk-assets-api/internal/handlers"
	"opsdesk-assets-api/internal/notify"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed openapi
var openapiFS embed.FS

type Server struct {
	DB         *sql.DB
	Pool       *pgxpool.Pool
	Router     *chi.Mux
	JWTManager *auth.JWTManager
	Metrics    *Metrics
	Directory  directory.Resolver
	Notifier   notify.Notifier
}

func NewServer(dsn string, cfg *config.Config) *Server {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatal("Failed to open database connection:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("Database ping failed:", err)
	}

	// Also create a pgxpool for the exporter
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatal("Failed to create pgxpool:", err)
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)
	if err := jwtManager.ValidateConfig(); err != nil {
		log.Fatal("JWT configuration validation failed:", err)
	}

	s := &Server{
		DB:         db,
		Pool:       pool,
		Router:     chi.NewRouter(),
		JWTManager: jwtManager,
		Metrics:    NewMetrics(),
		Directory:  directory.NewSQLResolver(db),
		Notifier:   notify.LogNotifier{},
	}
	s.mountRoutes()
	return s
}

// mountRoutes wires the public and protected route groups. Split out of
// NewServer so tests can build a Server by hand and still get the full
// router.
func (s *Server) mountRoutes() {
	// Mount public routes FIRST (no middleware)
	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	s.Router.Get("/dbping", func(w http.ResponseWriter, r *http.Request) {
		if err := s.DB.PingContext(r.Context()); err != nil {
			http.Error(w, "db: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		if _, err := w.Write([]byte("db: ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	// Public auth routes (no JWT required)
	s.Router.Post("/auth/login", s.loginUser)
	s.mountDocs(s.Router)

	// Mount metrics if enabled
	if os.Getenv("ENABLE_METRICS") == "true" {
		s.Router.Use(s.Metrics.Middleware())
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	// Create a protected route group with middleware
	s.Router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(s.JWTManager))
		r.Use(s.withRLSSession)

		s.mountProtectedRoutes(r)
	})
}

// Close properly shuts down the server and cleans up resources
func (s *Server) Close(ctx context.Context) error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// withRLSSession middleware for org isolation
func (s *Server) withRLSSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := auth.OrgIDFromContext(r.Context())
		conn, ctx2, err := withDBConn(r.Context(), s.DB, orgID)
		if err != nil {
			http.Error(w, "db acquire: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if conn != nil {
			defer conn.Close()
		}
		next.ServeHTTP(w, r.WithContext(ctx2))
	})
}

// mountDocs serves the OpenAPI spec
func (s *Server) mountDocs(mux *chi.Mux) {
	if os.Getenv("ENABLE_SWAGGER") != "true" {
		return
	}

	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		data, err := openapiFS.ReadFile("openapi/openapi.yaml")
		if err != nil {
			http.Error(w, "Failed to read OpenAPI spec", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml")
		if _, err := w.Write(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// mountProtectedRoutes mounts all protected routes that require authentication
func (s *Server) mountProtectedRoutes(r chi.Router) {
	// Asset categories - org_admin for writes
	r.Get("/categories", s.listCategories)
	r.Get("/categories/{id}", s.getCategory)
	r.Post("/categories", auth.MustRole("org_admin")(http.HandlerFunc(s.createCategory)).(http.HandlerFunc))
	r.Put("/categories/{id}", auth.MustRole("org_admin")(http.HandlerFunc(s.updateCategory)).(http.HandlerFunc))
	r.Delete("/categories/{id}", auth.MustRole("org_admin")(http.HandlerFunc(s.deactivateCategory)).(http.HandlerFunc))

	// Serialized units - org_admin for writes
	r.Get("/units", s.listUnits)
	r.Get("/units/{id}", s.getUnit)
	r.Post("/units", auth.MustRole("org_admin")(http.HandlerFunc(s.createUnit)).(http.HandlerFunc))
	r.Put("/units/{id}", auth.MustRole("org_admin")(http.HandlerFunc(s.updateUnit)).(http.HandlerFunc))

	// Stock pools - org_admin for writes
	r.Get("/stock-pools", s.listStockPools)
	r.Get("/stock-pools/{id}", s.getStockPool)
	r.Post("/stock-pools", auth.MustRole("org_admin")(http.HandlerFunc(s.createStockPool)).(http.HandlerFunc))
	r.Put("/stock-pools/{id}", auth.MustRole("org_admin")(http.HandlerFunc(s.updateStockPool)).(http.HandlerFunc))

	// Asset requests and the approval chain
	r.Post("/requests", s.submitRequest)
	r.Get("/requests", s.listRequests)
	r.Get("/requests/{id}", s.getRequest)
	r.Get("/approvals/pending", s.listPendingApprovals)
	r.Post("/requests/{id}/approve", s.approveRequest)
	r.Post("/requests/{id}/reject", s.rejectRequest)
	r.Post("/requests/{id}/procurement", auth.MustRole("org_admin")(http.HandlerFunc(s.markAwaitingProcurement)).(http.HandlerFunc))
	r.Post("/requests/{id}/fulfill", auth.MustRole("org_admin")(http.HandlerFunc(s.fulfillRequest)).(http.HandlerFunc))

	// Assignments
	r.Get("/assignments", s.listAssignments)
	r.Get("/assignments/{id}", s.getAssignment)
	r.Post("/assignments/{id}/return", auth.MustRole("org_admin")(http.HandlerFunc(s.processReturn)).(http.HandlerFunc))
	r.Post("/assignments/{id}/acknowledge", s.acknowledgeReceipt)

	// Assignment register export - org_admin only
	exportsHandler := handlers.NewExportsHandler(s.Pool)
	r.Get("/exports/assignments.xlsx", auth.MustRole("org_admin")(http.HandlerFunc(exportsHandler.AssignmentRegister)).(http.HandlerFunc))

	// User management - org_admin only, with multi-tenant logic
	r.Post("/users", auth.MustRole("org_admin")(http.HandlerFunc(s.createUser)).(http.HandlerFunc))
	r.Get("/users", auth.MustRole("org_admin")(http.HandlerFunc(s.listUsers)).(http.HandlerFunc))
	r.Get("/users/{id}", auth.MustRole("org_admin")(http.HandlerFunc(s.getUser)).(http.HandlerFunc))
	r.Put("/users/{id}", auth.MustRole("org_admin")(http.HandlerFunc(s.updateUser)).(http.HandlerFunc))
	r.Delete("/users/{id}", auth.MustRole("org_admin")(http.HandlerFunc(s.deleteUser)).(http.HandlerFunc))

	// Organization management - main tenant only
	r.Get("/organizations", auth.MustRole("org_admin")(http.HandlerFunc(s.listOrganizations)).(http.HandlerFunc))
	r.Get("/organizations/{id}", auth.MustRole("org_admin")(http.HandlerFunc(s.getOrganization)).(http.HandlerFunc))
	r.Post("/organizations", auth.MustRole("org_admin")(http.HandlerFunc(s.createOrganization)).(http.HandlerFunc))
	r.Put("/organizations/{id}", auth.MustRole("org_admin")(http.HandlerFunc(s.updateOrganization)).(http.HandlerFunc))

	// Self-service routes
	r.Get("/auth/profile", s.getUserProfile)
	r.Put("/auth/profile", s.updateUserProfile)
	r.Put("/auth/change-password", s.changePassword)
}
