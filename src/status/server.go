package status

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stake-plus/safetyjim/src/discord"
	"github.com/stake-plus/safetyjim/src/router"
)

// Shard is the view of a running shard the API needs.
type Shard interface {
	ID() int
	Snapshot() router.Snapshot
	Enqueue(ctx context.Context, ev router.Event) error
}

// Settings reads and edits guild configuration.
type Settings interface {
	GetGuildConfiguration(ctx context.Context, guildID string) (map[string]string, error)
	UpdateConfigurationValue(ctx context.Context, guildID, key, value string) error
}

// Counters exposes persisted metric totals.
type Counters interface {
	Counters(ctx context.Context) (map[string]int64, error)
}

type Options struct {
	Shards     []Shard
	ShardCount int
	Settings   Settings
	// Counters is optional; /v1/metrics answers 404 without it.
	Counters  Counters
	JWTSecret string
	Log       *zap.Logger
}

type server struct {
	opts   Options
	shards map[int]Shard
	log    *zap.Logger
}

// New builds the HTTP handler. Routes other than /v1/health are only mounted
// when a JWT secret is configured.
func New(opts Options) *gin.Engine {
	s := &server{opts: opts, shards: make(map[int]Shard, len(opts.Shards)), log: opts.Log}
	for _, sh := range opts.Shards {
		s.shards[sh.ID()] = sh
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	v1 := r.Group("/v1")
	v1.GET("/health", s.health)

	if opts.JWTSecret == "" {
		s.log.Warn("status API running without a JWT secret, only /v1/health is served")
		return r
	}

	secured := v1.Group("")
	secured.Use(JWTMiddleware([]byte(opts.JWTSecret)))
	{
		secured.GET("/shards", s.listShards)
		secured.GET("/metrics", s.metrics)
		secured.GET("/guilds/:id/settings", s.guildSettings)
	}

	admin := v1.Group("/admin")
	admin.Use(JWTMiddleware([]byte(opts.JWTSecret)))
	{
		admin.PUT("/guilds/:id/settings/:key", s.updateSetting)
		admin.POST("/guilds/:id/reload", s.reload)
	}
	return r
}

// Serve runs the HTTP server until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, log *zap.Logger) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	log.Info("status API listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}

func (s *server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

func (s *server) health(c *gin.Context) {
	ready := 0
	for _, sh := range s.shards {
		if sh.Snapshot().Ready {
			ready++
		}
	}
	code := http.StatusOK
	if ready < len(s.shards) {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"shards": len(s.shards), "ready": ready})
}

func (s *server) listShards(c *gin.Context) {
	out := make([]router.Snapshot, 0, len(s.shards))
	for _, sh := range s.opts.Shards {
		out = append(out, sh.Snapshot())
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) metrics(c *gin.Context) {
	if s.opts.Counters == nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "metrics are disabled"})
		return
	}
	counters, err := s.opts.Counters.Counters(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, counters)
}

func (s *server) guildSettings(c *gin.Context) {
	guildID, ok := guildParam(c)
	if !ok {
		return
	}
	settings, err := s.opts.Settings.GetGuildConfiguration(c.Request.Context(), guildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	if len(settings) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"err": "guild not configured"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *server) updateSetting(c *gin.Context) {
	guildID, ok := guildParam(c)
	if !ok {
		return
	}
	key := c.Param("key")
	if !knownKey(key) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "unknown setting " + key})
		return
	}
	var req struct {
		Value *string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if key == router.KeyPrefix {
		if _, err := router.CompileMatchers(*req.Value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
			return
		}
	}

	if err := s.opts.Settings.UpdateConfigurationValue(c.Request.Context(), guildID, key, *req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	s.log.Info("setting updated",
		zap.String("operator", c.GetString("operator")),
		zap.String("guild", guildID),
		zap.String("key", key))

	reloaded := false
	if key == router.KeyPrefix {
		reloaded = s.enqueueReload(c, guildID) == nil
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reloaded": reloaded})
}

func (s *server) reload(c *gin.Context) {
	guildID, ok := guildParam(c)
	if !ok {
		return
	}
	if err := s.enqueueReload(c, guildID); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, errShardNotLocal) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}

var errShardNotLocal = errors.New("guild's shard is not run by this process")

func (s *server) enqueueReload(c *gin.Context, guildID string) error {
	sh, ok := s.shards[discord.ShardForGuild(guildID, s.opts.ShardCount)]
	if !ok {
		return errShardNotLocal
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	return sh.Enqueue(ctx, router.Event{Kind: router.EventConfigReload, GuildID: guildID, ReceivedAt: time.Now()})
}

func guildParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid guild id"})
		return "", false
	}
	return id, true
}

func knownKey(key string) bool {
	for _, k := range router.ConfigurationKeys {
		if k == key {
			return true
		}
	}
	return false
}
