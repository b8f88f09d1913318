// Package server exposes cached historical data over HTTP.
package server

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rustyeddy/stockdata/config"
	"github.com/rustyeddy/stockdata/manager"
	"github.com/rustyeddy/stockdata/market"
	"github.com/rustyeddy/stockdata/store"
	"go.uber.org/zap"
)

// Historian answers history queries.
type Historian interface {
	GetHistoricalData(ctx context.Context, q manager.Query) (*market.Table, error)
}

// SnapshotLister lists stored snapshots.
type SnapshotLister interface {
	List(ctx context.Context, symbol string, iv market.Interval) ([]store.Info, error)
}

// Handler serves the HTTP API.
type Handler struct {
	history   Historian
	snapshots SnapshotLister
	logger    *zap.Logger
}

func NewHandler(h Historian, s SnapshotLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{history: h, snapshots: s, logger: logger}
}

// Router returns the gin engine with all routes mounted.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(Logger(h.logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	v1.GET("/history/:symbol", h.GetHistory)
	v1.GET("/snapshots", h.ListSnapshots)
	return router
}

type historyQuery struct {
	Interval string `form:"interval" binding:"omitempty,oneof=daily weekly monthly"`
	Start    string `form:"start"`
	End      string `form:"end"`
	Attrib   string `form:"attrib"`
	Fetch    bool   `form:"fetch"`
	DropNA   bool   `form:"dropna"`
}

// TableJSON is the wire form of a table. Missing values are null.
type TableJSON struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Columns  []string  `json:"columns"`
	Rows     []RowJSON `json:"rows"`
}

type RowJSON struct {
	Time   time.Time  `json:"time"`
	Values []*float64 `json:"values"`
}

// GetHistory handles GET /v1/history/:symbol
func (h *Handler) GetHistory(c *gin.Context) {
	var req historyQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q := manager.Query{
		Symbol:   c.Param("symbol"),
		Interval: market.Daily,
		Fetch:    req.Fetch,
		DropNA:   req.DropNA,
	}
	if req.Interval != "" {
		q.Interval = market.Interval(req.Interval)
	}
	if req.Attrib != "" {
		for _, a := range strings.Split(req.Attrib, ",") {
			if a = strings.TrimSpace(a); a != "" {
				q.Attrib = append(q.Attrib, a)
			}
		}
	}

	var err error
	if q.Start, err = parseDate(req.Start); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start, use YYYY-MM-DD or RFC3339"})
		return
	}
	if q.End, err = parseDate(req.End); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end, use YYYY-MM-DD or RFC3339"})
		return
	}

	tb, err := h.history.GetHistoricalData(c.Request.Context(), q)
	if err != nil {
		status := statusOf(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("history query failed",
				zap.Error(err),
				zap.String("symbol", q.Symbol),
				zap.String("interval", string(q.Interval)))
			c.JSON(status, gin.H{"error": "failed to get historical data"})
			return
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, tableJSON(strings.ToUpper(q.Symbol), q.Interval, tb))
}

// ListSnapshots handles GET /v1/snapshots
func (h *Handler) ListSnapshots(c *gin.Context) {
	iv := market.Interval(c.Query("interval"))
	if iv != "" && !iv.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown interval " + string(iv)})
		return
	}

	infos, err := h.snapshots.List(c.Request.Context(), c.Query("symbol"), iv)
	if err != nil {
		h.logger.Error("list snapshots failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list snapshots"})
		return
	}

	out := make([]gin.H, 0, len(infos))
	for _, in := range infos {
		out = append(out, gin.H{
			"id":         in.ID,
			"symbol":     in.Symbol,
			"interval":   in.Interval,
			"fetched_at": in.FetchedAt,
			"size":       in.Size,
		})
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": out})
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
	}
	return t, err
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, market.ErrInvalidSymbol),
		errors.Is(err, market.ErrUnsupportedInterval),
		errors.Is(err, market.ErrUnknownColumn):
		return http.StatusBadRequest
	case errors.Is(err, market.ErrRangeOutOfBounds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func tableJSON(symbol string, iv market.Interval, tb *market.Table) TableJSON {
	out := TableJSON{
		Symbol:   symbol,
		Interval: string(iv),
		Columns:  tb.Columns(),
		Rows:     make([]RowJSON, tb.Len()),
	}
	for i := range out.Rows {
		row := tb.Row(i)
		vals := make([]*float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) {
				vals[j] = &v
			}
		}
		out.Rows[i] = RowJSON{Time: tb.Time(i), Values: vals}
	}
	return out
}

// New builds the http.Server for cfg.
func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// Run serves until ctx is done, then shuts down within ten seconds.
func Run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}
