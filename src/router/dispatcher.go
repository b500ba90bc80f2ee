package router

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Outcome records which step of the pipeline ended a dispatch.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeBuffered
	OutcomePrefixQuery
	OutcomeHandled
	OutcomeNoMatch
	OutcomeFailedMatch
	OutcomeExecuted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeBuffered:
		return "buffered"
	case OutcomePrefixQuery:
		return "prefix_query"
	case OutcomeHandled:
		return "handled"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeFailedMatch:
		return "failed_match"
	case OutcomeExecuted:
		return "executed"
	default:
		return "unknown"
	}
}

// Dependencies bundles what the dispatcher needs from the rest of the shard.
type Dependencies struct {
	Registry      *Registry
	Buffer        *Buffer
	Commands      *Commands
	Processors    []Processor
	Executor      *Executor
	Tasks         *Tasks
	Session       Session
	Store         Store
	Metrics       Metrics
	DefaultPrefix string
	Log           *zap.Logger
}

// Dispatcher decides, for each inbound message, which single handler gets it.
type Dispatcher struct {
	Dependencies
}

func NewDispatcher(deps Dependencies) *Dispatcher {
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Dispatcher{Dependencies: deps}
}

// Dispatch runs the message pipeline. The steps are evaluated in order and the
// first one that claims the event ends the dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) Outcome {
	d.Metrics.Increment("client.message")

	if ev.Author.Bot || ev.Private() {
		return OutcomeIgnored
	}

	matchers, ok := d.Registry.Lookup(ev.GuildID)
	if !ok {
		d.Log.Info("added an unprocessed message",
			zap.String("guild", ev.GuildID),
			zap.String("content", ev.Content))
		d.Buffer.Push(*ev)
		if err := d.Registry.Register(ev.GuildID, d.DefaultPrefix); err != nil {
			d.Log.Error("could not register default prefix", zap.String("guild", ev.GuildID), zap.Error(err))
		}
		return OutcomeBuffered
	}

	rctx := d.context(ctx, ev, matchers)

	if ev.MentionsUser(d.Session.BotUserID()) && strings.Contains(ev.Content, "prefix") {
		d.replyPrefix(rctx)
		return OutcomePrefixQuery
	}

	for _, p := range d.Processors {
		handled, err := runProcessor(p, rctx, ev)
		if err != nil {
			d.Log.Warn("processor failed",
				zap.String("processor", p.Name()),
				zap.String("guild", ev.GuildID),
				zap.Error(err))
			continue
		}
		if handled {
			return OutcomeHandled
		}
	}

	name, args, matched := matchers.MatchCommand(ev.Content)
	if matched {
		if _, known := d.Commands.Get(name); known {
			d.Executor.Execute(rctx, name, args)
			return OutcomeExecuted
		}
	}

	if matchers.LooksLikeCommand(ev.CleanContent) {
		d.Tasks.Go(ev.GuildID, "fail-react", func(tctx context.Context) error {
			return rctx.detach(tctx).FailReact()
		})
		return OutcomeFailedMatch
	}
	return OutcomeNoMatch
}

// DispatchDelete forwards a deleted message to processors that track deletions.
func (d *Dispatcher) DispatchDelete(ctx context.Context, ev *Event) {
	if ev.Author.Bot || ev.Private() {
		return
	}
	rctx := d.context(ctx, ev, nil)
	for _, p := range d.Processors {
		dp, ok := p.(DeleteProcessor)
		if !ok {
			continue
		}
		if err := guard(func() error { return dp.OnMessageDelete(rctx, ev) }); err != nil {
			d.Log.Warn("delete processor failed", zap.String("processor", p.Name()), zap.Error(err))
		}
	}
}

// DispatchReaction forwards reaction changes, skipping the bot's own reactions.
func (d *Dispatcher) DispatchReaction(ctx context.Context, ev *Event) {
	if ev.Author.ID == d.Session.BotUserID() || ev.Private() {
		return
	}
	added := ev.Kind == EventReactionAdd
	rctx := d.context(ctx, ev, nil)
	for _, p := range d.Processors {
		rp, ok := p.(ReactionProcessor)
		if !ok {
			continue
		}
		if err := guard(func() error { return rp.OnReaction(rctx, ev, added) }); err != nil {
			d.Log.Warn("reaction processor failed", zap.String("processor", p.Name()), zap.Error(err))
		}
	}
}

func (d *Dispatcher) replyPrefix(rctx *Context) {
	prefix := rctx.Prefix
	d.Tasks.Go(rctx.GuildID, "prefix-reply", func(tctx context.Context) error {
		c := rctx.detach(tctx)
		if err := c.SuccessReact(); err != nil {
			d.Log.Warn("could not add success reaction", zap.String("guild", c.GuildID), zap.Error(err))
		}
		embed := BotEmbed("Prefix", "This guild's prefix is: "+prefix)
		if err := c.ReplyEmbed(embed); err != nil {
			return fmt.Errorf("send prefix embed in guild %q requested by %q: %w", c.Event.GuildName, c.Event.Author.Tag, err)
		}
		return nil
	})
}

func (d *Dispatcher) context(ctx context.Context, ev *Event, matchers *Matchers) *Context {
	if matchers == nil {
		matchers, _ = d.Registry.Lookup(ev.GuildID)
	}
	prefix := d.DefaultPrefix
	if matchers != nil {
		prefix = matchers.Prefix
	}
	return &Context{
		Context:  ctx,
		GuildID:  ev.GuildID,
		Prefix:   prefix,
		Matchers: matchers,
		Event:    ev,
		Commands: d.Commands,
		Session:  d.Session,
		Store:    d.Store,
		Log:      d.Log,
		tasks:    d.Tasks,
	}
}

func runProcessor(p Processor, rctx *Context, ev *Event) (handled bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			handled = false
			err = fmt.Errorf("processor %s panicked: %v", p.Name(), r)
		}
	}()
	return p.OnMessage(rctx, ev)
}

func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
