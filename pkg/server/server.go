package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"igrepost/pkg/logger"
	"igrepost/pkg/progress"
)

// maxBodySize caps request bodies; status updates are a few hundred bytes
const maxBodySize = 64 * 1024

// Server serves the status endpoint and the dashboard page
type Server struct {
	app     *fiber.App
	store   progress.Store
	backend progress.Backend
	log     logger.Logger
	now     func() time.Time

	startedAt time.Time
	// fallback is served until the first write, fixed at startup
	fallback progress.Record
}

// Option customises a Server
type Option func(*Server)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithBackend records which store backs the server, for /health
func WithBackend(b progress.Backend) Option {
	return func(s *Server) { s.backend = b }
}

// New wires routes and middleware around store
func New(store progress.Store, log logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	s := &Server{
		store:   store,
		backend: progress.BackendMemory,
		log:     log.WithField("component", "server"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startedAt = s.now()
	s.fallback = progress.Default(s.startedAt)

	app := fiber.New(fiber.Config{
		AppName:               "igrepost",
		BodyLimit:             maxBodySize,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(requestLogger(s.log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Accept,Content-Type",
		MaxAge:       300,
	}))

	app.Get("/health", s.health)
	app.Get(progress.Path, s.getProgress)
	app.Post(progress.Path, s.postProgress)
	app.Get("/", s.dashboard)

	s.app = app
	return s
}

// App exposes the fiber app, for tests and embedding
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on addr in the background. Listen failures are sent on
// the returned channel.
func (s *Server) Start(addr string) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		logger.LogComponentStart("server", map[string]interface{}{
			"addr":    addr,
			"backend": string(s.backend),
		})
		if err := s.app.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if c, ok := s.store.(interface{ Close() error }); ok {
		if cerr := c.Close(); cerr != nil {
			s.log.WithError(cerr).Warn("Closing status store failed")
		}
	}
	logger.LogComponentStop("server", "shutdown")
	return err
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	// an oversized status body is rejected before the handler runs
	if code == fiber.StatusRequestEntityTooLarge && c.Path() == progress.Path {
		return invalidPayload(c)
	}
	if code >= fiber.StatusInternalServerError {
		s.log.WithError(err).Error("Request failed")
	}
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   http.StatusText(code),
	})
}
