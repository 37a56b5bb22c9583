package server

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/Zuo-Peng/ai-session-index/internal/index"
	"github.com/Zuo-Peng/ai-session-index/internal/search"
)

// Pipeline is the query surface of one indexer.
type Pipeline interface {
	List(opts search.Options) ([]index.SessionSummary, error)
	ListProjects(q string, limit int) ([]index.Project, error)
	GetSession(id string) (*index.SessionDetail, error)
	ForceRescan() (index.Stats, error)
}

// Handler serves one pipeline's JSON endpoints.
type Handler struct {
	p   Pipeline
	log zerolog.Logger
}

func NewHandler(p Pipeline, log zerolog.Logger) *Handler {
	return &Handler{p: p, log: log}
}

// NewApp mounts the codex pipeline under /api and the claude pipeline under
// /api/claude.
func NewApp(codex, claude Pipeline, log zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(recover.New())
	app.Use(requestLogger(log))

	NewHandler(codex, log.With().Str("pipeline", "codex").Logger()).Register(app.Group("/api"))
	NewHandler(claude, log.With().Str("pipeline", "claude").Logger()).Register(app.Group("/api/claude"))
	return app
}

func (h *Handler) Register(r fiber.Router) {
	r.Get("/sessions", h.ListSessions)
	r.Get("/projects", h.ListProjects)
	r.Get("/session/*", h.GetSession)
	r.Get("/reindex", h.Reindex)
	r.Post("/reindex", h.Reindex)
}

// ListSessions answers ?q=&start=YYYY-MM-DD&end=YYYY-MM-DD&project=&sort=&limit=
func (h *Handler) ListSessions(c *fiber.Ctx) error {
	opts := search.Options{
		Query:     strings.TrimSpace(c.Query("q")),
		StartDate: c.Query("start"),
		EndDate:   c.Query("end"),
		Project:   strings.TrimSpace(c.Query("project")),
		Sort:      strings.TrimSpace(c.Query("sort")),
		Limit:     c.QueryInt("limit", search.DefaultLimit),
	}
	sessions, err := h.p.List(opts)
	if err != nil {
		h.log.Error().Err(err).Msg("list sessions")
		return err
	}
	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *Handler) ListProjects(c *fiber.Ctx) error {
	projects, err := h.p.ListProjects(strings.TrimSpace(c.Query("q")), c.QueryInt("limit", search.DefaultLimit))
	if err != nil {
		h.log.Error().Err(err).Msg("list projects")
		return err
	}
	return c.JSON(fiber.Map{"projects": projects})
}

func (h *Handler) GetSession(c *fiber.Ctx) error {
	id, err := url.PathUnescape(c.Params("*"))
	if err != nil || id == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}
	detail, err := h.p.GetSession(id)
	if errors.Is(err, index.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("get session")
		return err
	}
	return c.JSON(detail)
}

func (h *Handler) Reindex(c *fiber.Ctx) error {
	stats, err := h.p.ForceRescan()
	if err != nil {
		h.log.Error().Err(err).Msg("reindex")
		return err
	}
	return c.JSON(fiber.Map{
		"ok":      true,
		"scanned": stats.Scanned,
		"updated": stats.Updated,
		"skipped": stats.Skipped,
		"purged":  stats.Purged,
		"errors":  stats.Errors,
	})
}

func requestLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Debug().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("took", time.Since(start)).
			Msg("request")
		return err
	}
}
