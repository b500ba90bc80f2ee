package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/stake-plus/safetyjim/src/router"
)

// EventSink receives translated gateway events in delivery order.
type EventSink interface {
	Enqueue(ctx context.Context, ev router.Event) error
}

type GatewayConfig struct {
	Token      string
	ShardID    int
	ShardCount int
	// GuildLoadTimeout bounds how long Ready waits for the guilds listed in
	// the READY payload to stream in.
	GuildLoadTimeout time.Duration
}

// Gateway is one discordgo shard connection. It translates gateway events for
// the router and implements router.Session for the replies.
type Gateway struct {
	cfg     GatewayConfig
	session *discordgo.Session
	sink    EventSink
	log     *zap.Logger
	ctx     context.Context

	mu         sync.Mutex
	pending    map[string]struct{}
	known      map[string]struct{}
	readySent  bool
	readyTimer *time.Timer
	generation int
}

var _ router.Session = (*Gateway)(nil)

// NewGateway prepares the shard connection. Bind a sink before Start.
func NewGateway(cfg GatewayConfig, log *zap.Logger) (*Gateway, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	if cfg.ShardCount < 1 {
		cfg.ShardCount = 1
	}
	if cfg.GuildLoadTimeout <= 0 {
		cfg.GuildLoadTimeout = 30 * time.Second
	}

	session.ShardID = cfg.ShardID
	session.ShardCount = cfg.ShardCount
	// Handlers run in gateway order; the router's queue provides the concurrency.
	session.SyncEvents = true
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent |
		discordgo.IntentsDirectMessages

	g := &Gateway{
		cfg:     cfg,
		session: session,
		log:     log.With(zap.Int("shard", cfg.ShardID)),
		ctx:     context.Background(),
		pending: make(map[string]struct{}),
		known:   make(map[string]struct{}),
	}
	g.initHandlers()
	return g, nil
}

// Bind sets where translated events go. The router shard needs the gateway as
// its Session, so the two are wired after both exist.
func (g *Gateway) Bind(sink EventSink) {
	g.sink = sink
}

func (g *Gateway) Name() string { return fmt.Sprintf("gateway-%d", g.cfg.ShardID) }

// Start opens the websocket. Events are enqueued with ctx.
func (g *Gateway) Start(ctx context.Context) error {
	if g.sink == nil {
		return fmt.Errorf("shard %d has no event sink", g.cfg.ShardID)
	}
	g.ctx = ctx
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open shard %d/%d: %w", g.cfg.ShardID+1, g.cfg.ShardCount, err)
	}
	g.log.Info("gateway connected", zap.Int("shard_count", g.cfg.ShardCount))
	return nil
}

func (g *Gateway) Stop(context.Context) {
	g.mu.Lock()
	if g.readyTimer != nil {
		g.readyTimer.Stop()
	}
	g.mu.Unlock()
	if err := g.session.Close(); err != nil {
		g.log.Warn("gateway close failed", zap.Error(err))
	}
}

func (g *Gateway) initHandlers() {
	g.session.AddHandler(g.onReady)
	g.session.AddHandler(g.onGuildCreate)
	g.session.AddHandler(g.onGuildDelete)
	g.session.AddHandler(g.onMessageCreate)
	g.session.AddHandler(g.onMessageDelete)
	g.session.AddHandler(g.onReactionAdd)
	g.session.AddHandler(g.onReactionRemove)
	g.session.AddHandler(g.onMemberAdd)
	g.session.AddHandler(g.onMemberRemove)
	g.session.AddHandler(g.onDisconnect)
}

// onReady starts tracking the guilds listed in READY. The router only hears
// about readiness once they have all arrived, or the load timeout expires.
func (g *Gateway) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	g.mu.Lock()
	g.generation++
	gen := g.generation
	g.readySent = false
	g.pending = make(map[string]struct{}, len(r.Guilds))
	for _, guild := range r.Guilds {
		g.pending[guild.ID] = struct{}{}
		g.known[guild.ID] = struct{}{}
	}
	if g.readyTimer != nil {
		g.readyTimer.Stop()
		g.readyTimer = nil
	}
	waiting := len(g.pending)
	if waiting > 0 {
		g.readyTimer = time.AfterFunc(g.cfg.GuildLoadTimeout, func() { g.finishLoading(gen) })
	}
	g.mu.Unlock()

	if r.User != nil {
		g.log.Info("logged in", zap.String("user", UserTag(r.User)), zap.Int("guilds", waiting))
	}
	if waiting == 0 {
		g.finishLoading(gen)
	}
}

func (g *Gateway) finishLoading(gen int) {
	g.mu.Lock()
	if gen != g.generation || g.readySent {
		g.mu.Unlock()
		return
	}
	g.readySent = true
	unresolved := len(g.pending)
	g.mu.Unlock()

	if unresolved > 0 {
		g.log.Warn("guild load timed out", zap.Int("unavailable", unresolved))
	}
	g.emit(router.Event{Kind: router.EventReady})
}

func (g *Gateway) onGuildCreate(_ *discordgo.Session, gc *discordgo.GuildCreate) {
	g.mu.Lock()
	if _, ok := g.pending[gc.ID]; ok {
		delete(g.pending, gc.ID)
		done := len(g.pending) == 0 && !g.readySent
		gen := g.generation
		g.mu.Unlock()
		if done {
			g.finishLoading(gen)
		}
		return
	}
	if _, ok := g.known[gc.ID]; ok {
		// back from an outage
		g.mu.Unlock()
		return
	}
	g.known[gc.ID] = struct{}{}
	g.mu.Unlock()

	info := GuildInfo(gc.Guild)
	g.emit(router.Event{Kind: router.EventGuildJoin, GuildID: gc.ID, GuildName: gc.Name, Guild: &info})
}

func (g *Gateway) onGuildDelete(_ *discordgo.Session, gd *discordgo.GuildDelete) {
	if gd.Unavailable {
		g.log.Warn("guild unavailable", zap.String("guild", gd.ID))
		return
	}
	g.mu.Lock()
	delete(g.known, gd.ID)
	delete(g.pending, gd.ID)
	g.mu.Unlock()

	name := ""
	if gd.BeforeDelete != nil {
		name = gd.BeforeDelete.Name
	}
	g.emit(router.Event{Kind: router.EventGuildLeave, GuildID: gd.ID, GuildName: name})
}

func (g *Gateway) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	g.emit(messageEvent(m.Message, g.guildName(m.GuildID)))
}

func (g *Gateway) onMessageDelete(_ *discordgo.Session, m *discordgo.MessageDelete) {
	g.emit(deleteEvent(m, g.guildName(m.GuildID)))
}

func (g *Gateway) onReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	g.emit(reactionEvent(router.EventReactionAdd, r.MessageReaction, r.Member, g.guildName(r.GuildID)))
}

func (g *Gateway) onReactionRemove(_ *discordgo.Session, r *discordgo.MessageReactionRemove) {
	g.emit(reactionEvent(router.EventReactionRemove, r.MessageReaction, nil, g.guildName(r.GuildID)))
}

func (g *Gateway) onMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	g.emit(memberEvent(router.EventMemberJoin, m.GuildID, m.User, g.guildName(m.GuildID)))
}

func (g *Gateway) onMemberRemove(_ *discordgo.Session, m *discordgo.GuildMemberRemove) {
	g.emit(memberEvent(router.EventMemberLeave, m.GuildID, m.User, g.guildName(m.GuildID)))
}

func (g *Gateway) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	g.emit(router.Event{Kind: router.EventDisconnect, Detail: "websocket closed"})
}

func (g *Gateway) emit(ev router.Event) {
	ev.ReceivedAt = time.Now()
	if err := g.sink.Enqueue(g.ctx, ev); err != nil {
		g.log.Warn("dropped gateway event",
			zap.Stringer("kind", ev.Kind),
			zap.String("guild", ev.GuildID),
			zap.Error(err))
	}
}

func (g *Gateway) guildName(guildID string) string {
	if guildID == "" {
		return ""
	}
	guild, err := g.session.State.Guild(guildID)
	if err != nil {
		return ""
	}
	return guild.Name
}
