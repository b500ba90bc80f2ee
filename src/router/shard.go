package router

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ShardConfig is the static configuration of one shard worker.
type ShardConfig struct {
	ID            int
	Count         int
	Version       string
	DefaultPrefix string
	QueueSize     int
	Reconciler    ReconcilerConfig
}

// Snapshot is a point-in-time view of a shard, safe to read from any goroutine.
type Snapshot struct {
	ShardID   int    `json:"shardId"`
	Ready     bool   `json:"ready"`
	Guilds    int64  `json:"guilds"`
	Buffered  int64  `json:"buffered"`
	Processed uint64 `json:"processed"`
	Lanes     int    `json:"lanes"`
}

// Shard owns the registry and buffer of one gateway shard and processes its
// events one at a time on a single goroutine.
type Shard struct {
	cfg        ShardConfig
	events     chan Event
	registry   *Registry
	buffer     *Buffer
	tasks      *Tasks
	executor   *Executor
	dispatcher *Dispatcher
	reconciler *Reconciler
	session    Session
	store      Store
	metrics    Metrics
	log        *zap.Logger
	cancel     context.CancelFunc

	ready     atomic.Bool
	guilds    atomic.Int64
	buffered  atomic.Int64
	processed atomic.Uint64
}

func NewShard(cfg ShardConfig, session Session, store Store, metrics Metrics, commands *Commands, processors []Processor, log *zap.Logger) *Shard {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	log = log.With(zap.Int("shard", cfg.ID))

	taskCtx, cancel := context.WithCancel(context.Background())
	tasks := NewTasks(taskCtx, log.Named("tasks"))
	registry := NewRegistry()
	buffer := NewBuffer()
	executor := NewExecutor(commands, store, metrics, tasks, log.Named("executor"))
	dispatcher := NewDispatcher(Dependencies{
		Registry:      registry,
		Buffer:        buffer,
		Commands:      commands,
		Processors:    processors,
		Executor:      executor,
		Tasks:         tasks,
		Session:       session,
		Store:         store,
		Metrics:       metrics,
		DefaultPrefix: cfg.DefaultPrefix,
		Log:           log.Named("dispatcher"),
	})

	return &Shard{
		cfg:        cfg,
		events:     make(chan Event, cfg.QueueSize),
		registry:   registry,
		buffer:     buffer,
		tasks:      tasks,
		executor:   executor,
		dispatcher: dispatcher,
		reconciler: NewReconciler(cfg.Reconciler, dispatcher),
		session:    session,
		store:      store,
		metrics:    metrics,
		log:        log,
		cancel:     cancel,
	}
}

func (s *Shard) ID() int { return s.cfg.ID }

// Preload registers persisted prefixes before the worker starts.
func (s *Shard) Preload(prefixes map[string]string) {
	for guildID, prefix := range prefixes {
		if err := s.registry.Register(guildID, prefix); err != nil {
			s.log.Warn("skipping persisted prefix", zap.String("guild", guildID), zap.Error(err))
		}
	}
	s.publish()
}

// Enqueue hands an event to the worker, blocking while the queue is full.
func (s *Shard) Enqueue(ctx context.Context, ev Event) error {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	select {
	case s.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until ctx is cancelled.
func (s *Shard) Run(ctx context.Context) error {
	s.log.Info("shard worker started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

// Close cancels the context detached work runs under, then stops the task
// lanes. Queued tasks still run but see a cancelled context.
func (s *Shard) Close() {
	s.cancel()
	s.tasks.Close()
}

// Wait blocks until detached work queued so far has finished.
func (s *Shard) Wait() {
	s.tasks.Wait()
}

func (s *Shard) Snapshot() Snapshot {
	return Snapshot{
		ShardID:   s.cfg.ID,
		Ready:     s.ready.Load(),
		Guilds:    s.guilds.Load(),
		Buffered:  s.buffered.Load(),
		Processed: s.processed.Load(),
		Lanes:     s.tasks.Lanes(),
	}
}

func (s *Shard) handle(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("event handler panicked",
				zap.Stringer("kind", ev.Kind),
				zap.String("guild", ev.GuildID),
				zap.Any("panic", r))
		}
		s.processed.Add(1)
		s.publish()
	}()

	switch ev.Kind {
	case EventMessageCreate:
		s.dispatcher.Dispatch(ctx, &ev)
		if s.ready.Load() && s.buffer.Len() > 0 {
			s.reconciler.Settle(ctx, s.buffer.Guilds())
		}
	case EventMessageDelete:
		s.dispatcher.DispatchDelete(ctx, &ev)
	case EventReactionAdd, EventReactionRemove:
		s.dispatcher.DispatchReaction(ctx, &ev)
	case EventGuildJoin:
		s.onGuildJoin(ctx, &ev)
	case EventGuildLeave:
		s.onGuildLeave(ctx, &ev)
	case EventMemberJoin:
		s.onMemberJoin(ctx, &ev)
	case EventMemberLeave:
		s.onMemberLeave(ctx, &ev)
	case EventReady:
		s.onReady(ctx)
	case EventDisconnect:
		s.log.Warn("client triggered disconnect event", zap.String("detail", ev.Detail))
	case EventConfigReload:
		s.onConfigReload(ctx, &ev)
	default:
		s.log.Debug("ignoring event", zap.Stringer("kind", ev.Kind))
	}
}

func (s *Shard) onReady(ctx context.Context) {
	rep := s.reconciler.Run(ctx)
	s.ready.Store(true)

	status := fmt.Sprintf("%s help | %s | %s", s.cfg.DefaultPrefix, s.cfg.Version, s.shardString())
	if err := s.session.SetStatus(status); err != nil {
		s.log.Warn("could not set presence", zap.Error(err))
	}
	s.log.Info("shard ready", zap.Int("replayed", rep.Replayed))
}

func (s *Shard) onGuildJoin(ctx context.Context, ev *Event) {
	g := GuildInfo{ID: ev.GuildID, Name: ev.GuildName}
	if ev.Guild != nil {
		g = *ev.Guild
	}

	if s.reconciler.IsBotFarm(g) {
		if err := s.session.LeaveGuild(ctx, g.ID); err != nil {
			s.log.Error("could not leave guild", zap.String("guild", g.ID), zap.String("guild_name", g.Name), zap.Error(err))
		}
		return
	}
	s.metrics.Increment("guild.join")

	channelID := s.session.DefaultChannel(g.ID)
	if channelID != "" {
		greeting := fmt.Sprintf("Hello! I am %s, `%s` is my default prefix!", botName, s.cfg.DefaultPrefix)
		s.tasks.Go(g.ID, "greeting", func(tctx context.Context) error {
			return s.session.SendMessage(tctx, channelID, greeting)
		})
	}

	if err := s.store.CreateDefaultGuildConfiguration(ctx, g.ID, channelID); err != nil {
		s.log.Error("could not create guild configuration", zap.String("guild", g.ID), zap.Error(err))
	}
	s.loadPrefix(ctx, g.ID)

	for _, buffered := range s.buffer.Take(g.ID) {
		s.dispatcher.Dispatch(ctx, &buffered)
	}
	s.log.Info("joined guild", zap.String("guild", g.ID), zap.String("guild_name", g.Name))
}

func (s *Shard) onGuildLeave(ctx context.Context, ev *Event) {
	if err := s.store.DestroyGuildConfiguration(ctx, ev.GuildID); err != nil {
		s.log.Error("could not destroy guild configuration", zap.String("guild", ev.GuildID), zap.Error(err))
	}
	s.registry.Unregister(ev.GuildID)
	if dropped := s.buffer.Discard(ev.GuildID); dropped > 0 {
		s.log.Info("discarded buffered events of departed guild", zap.String("guild", ev.GuildID), zap.Int("count", dropped))
	}
	s.tasks.Release(ev.GuildID)
	s.metrics.Increment("guild.left")
}

func (s *Shard) onConfigReload(ctx context.Context, ev *Event) {
	s.loadPrefix(ctx, ev.GuildID)
	s.log.Info("reloaded guild prefix", zap.String("guild", ev.GuildID), zap.String("prefix", s.registry.Prefix(ev.GuildID)))
}

// loadPrefix registers the persisted prefix, falling back to the default.
func (s *Shard) loadPrefix(ctx context.Context, guildID string) {
	prefix, err := s.store.GetConfigurationValue(ctx, guildID, KeyPrefix)
	if err != nil || prefix == "" {
		if err != nil {
			s.log.Warn("could not read guild prefix", zap.String("guild", guildID), zap.Error(err))
		}
		prefix = s.cfg.DefaultPrefix
	}
	if err := s.registry.Register(guildID, prefix); err != nil {
		s.log.Error("could not register guild prefix", zap.String("guild", guildID), zap.Error(err))
	}
}

func (s *Shard) shardString() string {
	count := s.cfg.Count
	if count <= 0 {
		count = 1
	}
	return fmt.Sprintf("Shard %d/%d", s.cfg.ID+1, count)
}

func (s *Shard) publish() {
	s.guilds.Store(int64(s.registry.Len()))
	s.buffered.Store(int64(s.buffer.Len()))
}
