package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const commandFailedNotice = "There was an error running your command, this incident has been logged."

// Executor runs matched commands on the guild's task lane.
type Executor struct {
	commands *Commands
	store    Store
	metrics  Metrics
	tasks    *Tasks
	log      *zap.Logger
	now      func() time.Time
}

func NewExecutor(commands *Commands, store Store, metrics Metrics, tasks *Tasks, log *zap.Logger) *Executor {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Executor{
		commands: commands,
		store:    store,
		metrics:  metrics,
		tasks:    tasks,
		log:      log,
		now:      time.Now,
	}
}

// Execute schedules the command and returns immediately. Nothing the command
// does, including panicking, reaches the caller.
func (x *Executor) Execute(rctx *Context, name, args string) {
	guildID := rctx.GuildID
	x.tasks.Go(guildID, "command:"+name, func(ctx context.Context) error {
		x.run(rctx.detach(ctx), name, args)
		return nil
	})
}

func (x *Executor) run(rctx *Context, name, args string) {
	ev := rctx.Event
	log := x.log.With(
		zap.String("command", name),
		zap.String("arguments", args),
		zap.String("guild", rctx.GuildID),
		zap.String("guild_name", ev.GuildName),
	)

	cmd, ok := x.commands.Get(name)
	if !ok {
		log.Error("command vanished before execution", zap.Error(ErrUnknownCommand))
		return
	}

	entry := CommandInvocation{
		ID:        uuid.NewString(),
		Command:   name,
		Arguments: args,
		Time:      x.now(),
		Username:  ev.Author.Tag,
		UserID:    ev.Author.ID,
		GuildName: ev.GuildName,
		GuildID:   rctx.GuildID,
	}
	if err := x.store.RecordCommandInvocation(rctx, entry); err != nil {
		log.Warn("could not record command invocation", zap.Error(err))
	}

	x.metrics.Increment("command.count")
	start := x.now()
	showUsage, err := invoke(cmd, rctx, ev, args)
	x.metrics.Increment(name + ".count")
	x.metrics.Histogram(name+".time", x.now().Sub(start))

	if err != nil {
		if rerr := rctx.FailReact(); rerr != nil {
			log.Warn("could not add failure reaction", zap.Error(rerr))
		}
		if serr := rctx.Reply(commandFailedNotice); serr != nil {
			log.Warn("could not send failure notice", zap.Error(serr))
		}
		log.Error("command failed", zap.Error(err))
		return
	}

	if showUsage {
		x.sendUsage(rctx, name, cmd, log)
	}
}

func (x *Executor) sendUsage(rctx *Context, name string, cmd Command, log *zap.Logger) {
	prefix := x.currentPrefix(rctx)
	embed := BotEmbed(fmt.Sprintf("%q Syntax", name), UsageString(prefix, cmd.Usage()))

	if err := rctx.FailReact(); err != nil {
		log.Warn("could not add failure reaction", zap.Error(err))
	}
	if err := rctx.ReplyEmbed(embed); err != nil {
		log.Warn("could not send usage", zap.Error(err))
	}
}

// currentPrefix prefers the persisted prefix, which may have changed since the
// event was matched.
func (x *Executor) currentPrefix(rctx *Context) string {
	prefix, err := x.store.GetConfigurationValue(rctx, rctx.GuildID, KeyPrefix)
	if err != nil || strings.TrimSpace(prefix) == "" {
		return rctx.Prefix
	}
	return prefix
}

func invoke(cmd Command, rctx *Context, ev *Event, args string) (showUsage bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			showUsage = false
			err = fmt.Errorf("command panicked: %v", r)
		}
	}()
	return cmd.Run(rctx, ev, args)
}
