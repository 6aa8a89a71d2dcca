// Package server exposes the assistant over HTTP. Routes live under /api/v1
// and return JSON; downstream errors surface through a uniform error
// envelope.
package server

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/fincoach/fincoach/assistant"
	"github.com/fincoach/fincoach/logging"
)

// Options configures a Server.
type Options struct {
	// AppName shows up in the health endpoint and Fiber's startup banner.
	AppName string

	// Version reported by the health endpoint.
	Version string

	// BodyLimit caps request body size in bytes. Zero keeps Fiber's default.
	BodyLimit int

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Server wraps the Fiber app around an assistant service.
type Server struct {
	app     *fiber.App
	svc     *assistant.Service
	logger  logging.Logger
	appName string
	version string
}

// New builds the HTTP server and registers all routes.
func New(svc *assistant.Service, optFns ...func(o *Options)) *Server {
	opts := Options{
		AppName: "fincoach",
		Version: "dev",
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		svc:     svc,
		logger:  opts.Logger,
		appName: opts.AppName,
		version: opts.Version,
	}

	cfg := fiber.Config{
		AppName:      opts.AppName,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: s.errorHandler,
	}
	if opts.BodyLimit > 0 {
		cfg.BodyLimit = opts.BodyLimit
	}

	s.app = fiber.New(cfg)
	s.registerRoutes()

	return s
}

// App exposes the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving HTTP on the given address.
func (s *Server) Listen(addr string) error {
	s.logger.Info("server.listen", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// errorEnvelope is the JSON shape of every error response.
type errorEnvelope struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// errorHandler turns unhandled handler errors into the error envelope.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	kind := "internal_error"

	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			kind = "bad_request"
		}
	}

	s.logger.Error("server.request.failed", "path", c.Path(), "status", code, "error", err)

	return c.Status(code).JSON(errorEnvelope{
		Error:     kind,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	})
}

func badRequest(message string) error {
	return fiber.NewError(fiber.StatusBadRequest, message)
}

func internalError(err error) error {
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
