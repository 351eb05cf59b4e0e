package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"linechat/internal/server/room"
	"linechat/internal/server/stats"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	Rooms *room.Registry
	Stats *stats.Stats
}

// RoomInfo is one entry of the /rooms listing.
type RoomInfo struct {
	Name     string `json:"name"`
	AI       bool   `json:"ai"`
	Members  int    `json:"members"`
	Messages int    `json:"messages"`
}

func NewHandler(rooms *room.Registry, st *stats.Stats) *Handler {
	return &Handler{Rooms: rooms, Stats: st}
}

// Router builds the gin engine serving the status endpoints.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", h.Health)
	r.GET("/rooms", h.ListRooms)
	r.GET("/stats", h.Snapshot)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ListRooms(c *gin.Context) {
	rooms := h.Rooms.List()
	infos := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		infos = append(infos, RoomInfo{
			Name:     r.Name(),
			AI:       r.IsAI(),
			Members:  r.Members(),
			Messages: r.Messages().Len(),
		})
	}
	c.JSON(http.StatusOK, infos)
}

func (h *Handler) Snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.Stats.Snapshot())
}

// Serve runs the status server on addr until ctx is done.
func (h *Handler) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Status server shutdown")
		}
	}()

	log.Info().Str("addr", addr).Msg("Status server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
