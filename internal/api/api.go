package api

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"counter-service/internal/entity"
	"counter-service/internal/service"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "http").Logger()

const nameGuidance = "Select a counter to contact by using the `name` URL query string parameter, for example, ?name=A"

type CounterHandler struct {
	router   *service.Router
	shardMap *service.ShardMapService
}

// NewCounterHandler creates a new instance of CounterHandler
func NewCounterHandler(router *service.Router, shardMap *service.ShardMapService) *CounterHandler {
	return &CounterHandler{router: router, shardMap: shardMap}
}

// Counter applies the operation named by the path to the counter for ?name= --> /, /read, /increment, /decrement
func (h *CounterHandler) Counter(c echo.Context) error {
	name := c.QueryParam("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": nameGuidance})
	}

	op, err := entity.ParseOperation(c.Param("op"))
	if err != nil {
		return errorResponse(c, err)
	}

	result, err := h.router.Handle(c.Request().Context(), name, op)
	if err != nil {
		return errorResponse(c, err)
	}

	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) {
		return c.JSON(http.StatusOK, result)
	}
	return c.String(http.StatusOK, result.String())
}

// Shards lists the persisted shard map --> /shards
func (h *CounterHandler) Shards(c echo.Context) error {
	entries, err := h.shardMap.Entries(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}

// Health --> /health
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "counter-service",
		"time":    time.Now().Format(time.RFC3339),
	})
}

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrOverflow):
		return http.StatusConflict
	case errors.Is(err, entity.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, entity.ErrResolutionFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func errorResponse(c echo.Context, err error) error {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msgf("%s %s failed", c.Request().Method, c.Request().URL.Path)
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

// NewServer builds the echo instance with middleware and routes.
func NewServer(h *CounterHandler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	RegisterRoutes(e, h)
	return e
}

// RegisterRoutes wires the handlers. Static paths win over /:op.
func RegisterRoutes(e *echo.Echo, h *CounterHandler) {
	e.GET("/health", Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/shards", h.Shards)

	e.GET("/", h.Counter)
	e.POST("/", h.Counter)
	e.GET("/:op", h.Counter)
	e.POST("/:op", h.Counter)
}
