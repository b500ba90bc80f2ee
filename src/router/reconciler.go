package router

import (
	"context"

	"go.uber.org/zap"
)

// ReconcilerConfig holds the bot-farm policy.
type ReconcilerConfig struct {
	BotFarmThreshold int
	AllowList        []string
}

// Report summarises one reconciliation pass.
type Report struct {
	Left       int
	Reset      int
	Created    int
	Registered int
	Replayed   int
	Failures   int
}

// Reconciler aligns the registry with persisted configuration once the shard
// is ready, then replays everything that was buffered meanwhile.
type Reconciler struct {
	cfg        ReconcilerConfig
	allowed    map[string]struct{}
	registry   *Registry
	buffer     *Buffer
	store      Store
	session    Session
	dispatcher *Dispatcher
	log        *zap.Logger
}

func NewReconciler(cfg ReconcilerConfig, d *Dispatcher) *Reconciler {
	allowed := make(map[string]struct{}, len(cfg.AllowList))
	for _, id := range cfg.AllowList {
		allowed[id] = struct{}{}
	}
	return &Reconciler{
		cfg:        cfg,
		allowed:    allowed,
		registry:   d.Registry,
		buffer:     d.Buffer,
		store:      d.Store,
		session:    d.Session,
		dispatcher: d,
		log:        d.Log.Named("reconciler"),
	}
}

// IsBotFarm reports whether a guild should be left on sight.
func (r *Reconciler) IsBotFarm(g GuildInfo) bool {
	if _, ok := r.allowed[g.ID]; ok {
		return false
	}
	return g.BotCount > r.cfg.BotFarmThreshold
}

// Run performs the full startup pass.
func (r *Reconciler) Run(ctx context.Context) Report {
	var rep Report

	guilds := r.leaveBotFarms(ctx, r.session.Guilds(), &rep)
	ids := make([]string, 0, len(guilds))
	for _, g := range guilds {
		ids = append(ids, g.ID)
	}

	r.resetCorrupted(ctx, ids, &rep)
	r.createMissing(ctx, ids, &rep)
	r.registerPrefixes(ctx, r.withBuffered(ids), &rep)

	events := r.buffer.Drain()
	r.replay(ctx, events, &rep)

	r.log.Info("reconciliation finished",
		zap.Int("guilds", len(ids)),
		zap.Int("left", rep.Left),
		zap.Int("reset", rep.Reset),
		zap.Int("created", rep.Created),
		zap.Int("registered", rep.Registered),
		zap.Int("replayed", rep.Replayed),
		zap.Int("failures", rep.Failures))
	return rep
}

// Settle reconciles specific guilds that appeared after the shard became
// ready and replays their buffered events.
func (r *Reconciler) Settle(ctx context.Context, guildIDs []string) Report {
	var rep Report
	r.resetCorrupted(ctx, guildIDs, &rep)
	r.createMissing(ctx, guildIDs, &rep)
	r.registerPrefixes(ctx, guildIDs, &rep)
	for _, id := range guildIDs {
		r.replay(ctx, r.buffer.Take(id), &rep)
	}
	return rep
}

func (r *Reconciler) leaveBotFarms(ctx context.Context, guilds []GuildInfo, rep *Report) []GuildInfo {
	kept := guilds[:0:0]
	for _, g := range guilds {
		if !r.IsBotFarm(g) {
			kept = append(kept, g)
			continue
		}
		if err := r.session.LeaveGuild(ctx, g.ID); err != nil {
			rep.Failures++
			r.log.Error("could not leave guild",
				zap.String("guild", g.ID),
				zap.String("guild_name", g.Name),
				zap.Error(err))
			kept = append(kept, g)
			continue
		}
		rep.Left++
		r.log.Info("left bot farm guild",
			zap.String("guild", g.ID),
			zap.String("guild_name", g.Name),
			zap.Int("bots", g.BotCount))
	}
	return kept
}

func (r *Reconciler) resetCorrupted(ctx context.Context, ids []string, rep *Report) {
	for _, id := range ids {
		settings, err := r.store.GetGuildConfiguration(ctx, id)
		if err != nil {
			rep.Failures++
			r.log.Error("could not read guild configuration", zap.String("guild", id), zap.Error(err))
			continue
		}
		if len(settings) == 0 || len(settings) == len(ConfigurationKeys) {
			continue
		}
		if err := r.store.DestroyGuildConfiguration(ctx, id); err != nil {
			rep.Failures++
			r.log.Error("could not discard guild configuration", zap.String("guild", id), zap.Error(err))
			continue
		}
		if err := r.store.CreateDefaultGuildConfiguration(ctx, id, r.session.DefaultChannel(id)); err != nil {
			rep.Failures++
			r.log.Error("could not recreate guild configuration", zap.String("guild", id), zap.Error(err))
			continue
		}
		rep.Reset++
	}
	if rep.Reset > 0 {
		r.log.Info("reset guild(s) to default config because of missing or extra keys", zap.Int("count", rep.Reset))
	}
}

func (r *Reconciler) createMissing(ctx context.Context, ids []string, rep *Report) {
	prefixes, err := r.store.GetAllValuesForKey(ctx, KeyPrefix)
	if err != nil {
		rep.Failures++
		r.log.Error("could not list guild prefixes", zap.Error(err))
		return
	}
	for _, id := range ids {
		if _, ok := prefixes[id]; ok {
			continue
		}
		if err := r.store.CreateDefaultGuildConfiguration(ctx, id, r.session.DefaultChannel(id)); err != nil {
			rep.Failures++
			r.log.Error("could not create guild configuration", zap.String("guild", id), zap.Error(err))
			continue
		}
		rep.Created++
	}
	if rep.Created > 0 {
		r.log.Info("added guild(s) to database with default config", zap.Int("count", rep.Created))
	}
}

func (r *Reconciler) registerPrefixes(ctx context.Context, ids []string, rep *Report) {
	prefixes, err := r.store.GetAllValuesForKey(ctx, KeyPrefix)
	if err != nil {
		rep.Failures++
		r.log.Error("could not list guild prefixes", zap.Error(err))
		return
	}
	for _, id := range ids {
		prefix, ok := prefixes[id]
		if !ok {
			continue
		}
		if m, exists := r.registry.Lookup(id); exists && m.Prefix == prefix {
			continue
		}
		if err := r.registry.Register(id, prefix); err != nil {
			rep.Failures++
			r.log.Error("could not register guild prefix", zap.String("guild", id), zap.Error(err))
			continue
		}
		rep.Registered++
	}
}

func (r *Reconciler) replay(ctx context.Context, events []Event, rep *Report) {
	for i := range events {
		r.dispatcher.Dispatch(ctx, &events[i])
		rep.Replayed++
	}
}

// withBuffered adds guilds that only appear in the buffer.
func (r *Reconciler) withBuffered(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	out := append([]string(nil), ids...)
	for _, id := range r.buffer.Guilds() {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
