package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/tutorhub/internal/auth"
	"github.com/geocoder89/tutorhub/internal/config"
	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/http/handlers"
	"github.com/geocoder89/tutorhub/internal/http/middlewares"
	"github.com/geocoder89/tutorhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

// UserStore is the credential store as seen by the HTTP layer.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	GetTutorProfile(ctx context.Context, userID string) (user.TutorProfile, error)
	GetStudentProfile(ctx context.Context, userID string) (user.StudentProfile, error)
}

type Deps struct {
	Config    config.Config
	Log       *slog.Logger
	Prom      *observability.Prom
	Gatherer  prometheus.Gatherer
	Users     UserStore
	Accounts  handlers.Registrar
	Passwords handlers.PasswordHasher
	Tokens    *auth.Manager
	Authn     *auth.Authenticator
	Limits    middlewares.Counter
	Checks    map[string]handlers.Check
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env != "dev" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Limits == nil {
		d.Limits = middlewares.NewMemoryCounter()
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(d.Config.OTelServiceName))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders(d.Config.Env == "prod"))
	r.Use(middlewares.CORSMiddleware(d.Config.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.AuthGate(middlewares.GateConfig{
		ProtectedPages: d.Config.ProtectedPages,
		CookieName:     d.Config.CookieName,
		EntryPage:      d.Config.EntryPage,
	}, d.Prom))

	// ops
	h := handlers.NewHealthHandler(d.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)
	r.GET("/.well-known/jwks.json", handlers.JWKS(d.Tokens.Signer()))

	// auth
	authHandler := handlers.NewAuthHandler(
		d.Accounts,
		d.Users,
		d.Passwords,
		d.Tokens,
		d.Authn,
		handlers.CookieConfig{Name: d.Config.CookieName, Secure: d.Config.Env == "prod"},
		d.Prom,
	)
	limiter := middlewares.NewRateLimiter(d.Limits, d.Config.AuthRateLimit, d.Config.AuthRateWindow, d.Prom)

	authGroup := r.Group("/api/auth", middlewares.RequireJSON())
	authGroup.POST("/register", limiter.Middleware("register", middlewares.KeyByIP), authHandler.Register)
	authGroup.POST("/login", limiter.Middleware("login", middlewares.KeyByIP), authHandler.Login)
	authGroup.GET("/validate", authHandler.Validate)
	authGroup.POST("/logout", authHandler.Logout)

	// protected api
	authMiddleware := middlewares.NewAuthMiddleware(d.Authn, d.Prom)
	profileHandler := handlers.NewProfileHandler(d.Users)

	api := r.Group("/api", authMiddleware.RequireAuth())
	api.GET("/me", profileHandler.Me)
	api.GET("/tutors/me/profile", authMiddleware.RequireRole(user.RoleTutor), profileHandler.TutorProfile)
	api.GET("/students/me/profile", authMiddleware.RequireRole(user.RoleStudent), profileHandler.StudentProfile)

	return r
}
