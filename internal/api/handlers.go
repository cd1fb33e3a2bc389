package api

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"signal-feed/internal/instrument"
	"signal-feed/internal/service"
)

type handler struct {
	deps   Deps
	ws     *wsHandler
	logger zerolog.Logger
}

func (h *handler) register(e *echo.Echo) {
	e.GET("/", h.index)
	e.GET("/healthz", h.health)
	e.GET("/analyze/*", h.analyze)
	e.GET("/ws", h.ws.serve)
	if h.deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.deps.Metrics.Handler()))
	}
}

type statusResponse struct {
	Service     string   `json:"service"`
	Status      string   `json:"status"`
	Instruments []string `json:"instruments"`
	Subscribers int      `json:"subscribers"`
	Cached      int      `json:"cached"`
	LastPoll    string   `json:"last_poll,omitempty"`
}

func (h *handler) index(c echo.Context) error {
	st := h.deps.Service.Status()
	return c.JSON(http.StatusOK, statusResponse{
		Service:     st.Service,
		Status:      "online",
		Instruments: st.Instruments,
		Subscribers: st.Subscribers,
		Cached:      st.Cached,
		LastPoll:    formatTime(st.LastPoll),
	})
}

type healthResponse struct {
	Status      string `json:"status"`
	Poller      string `json:"poller"`
	LastCycle   string `json:"last_cycle,omitempty"`
	Subscribers int    `json:"subscribers"`
}

func (h *handler) health(c echo.Context) error {
	resp := healthResponse{Status: "ok", Poller: "disabled"}
	if h.deps.Poller != nil {
		resp.Poller = h.deps.Poller.State().String()
		resp.LastCycle = formatTime(h.deps.Poller.LastCycle())
	}
	if h.deps.Subscribers != nil {
		resp.Subscribers = h.deps.Subscribers.Len()
	}
	return c.JSON(http.StatusOK, resp)
}

type analysisResponse struct {
	Asset      string   `json:"asset"`
	Status     string   `json:"status"`
	Category   string   `json:"category"`
	Price      float64  `json:"price"`
	Change24h  float64  `json:"change_24h"`
	RSI        float64  `json:"rsi"`
	Confluence float64  `json:"confluence"`
	Tier       string   `json:"tier"`
	Signal     *string  `json:"signal"`
	Entry      float64  `json:"entry"`
	Expiration *int     `json:"expiration"`
	Reasons    []string `json:"reasons"`
	Note       string   `json:"note,omitempty"`
	Source     string   `json:"source"`
	Timestamp  string   `json:"timestamp"`
	Cached     bool     `json:"cached"`
}

type errorResponse struct {
	Asset     string   `json:"asset"`
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Available []string `json:"available,omitempty"`
}

func (h *handler) analyze(c echo.Context) error {
	asset := c.Param("*")
	if decoded, err := url.PathUnescape(asset); err == nil {
		asset = decoded
	}

	res, err := h.deps.Service.Analyze(c.Request().Context(), asset)
	if err != nil {
		var unknown *instrument.UnknownError
		if errors.As(err, &unknown) {
			return c.JSON(http.StatusOK, errorResponse{
				Asset:     asset,
				Status:    "error",
				Message:   unknown.Error(),
				Available: unknown.Available,
			})
		}
		h.logger.Error().Err(err).Str("asset", asset).Msg("analyze")
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Asset:   asset,
			Status:  "error",
			Message: "analysis failed",
		})
	}

	return c.JSON(http.StatusOK, newAnalysisResponse(res))
}

func newAnalysisResponse(a service.Analysis) analysisResponse {
	sig := a.Signal
	resp := analysisResponse{
		Asset:      a.Instrument.Name,
		Status:     "ok",
		Category:   string(a.Instrument.Category),
		Price:      a.Quote.Price.InexactFloat64(),
		Change24h:  a.Quote.Change24h.InexactFloat64(),
		RSI:        sig.RSI.InexactFloat64(),
		Confluence: sig.Confluence,
		Tier:       string(sig.Tier),
		Entry:      sig.Entry.InexactFloat64(),
		Reasons:    sig.Reasons,
		Note:       sig.Note,
		Source:     a.Quote.Source,
		Timestamp:  formatTime(a.Quote.ObservedAt),
		Cached:     a.Cached,
	}
	if sig.Actionable() {
		direction := string(sig.Direction)
		expiration := sig.Expiration
		resp.Signal = &direction
		resp.Expiration = &expiration
	}
	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
