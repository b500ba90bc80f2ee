package router

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const invalidWelcomeChannel = "WARNING: Invalid channel is set for welcome messages!"

func (s *Shard) onMemberJoin(ctx context.Context, ev *Event) {
	settings, err := s.store.GetGuildConfiguration(ctx, ev.GuildID)
	if err != nil {
		s.log.Error("could not read guild configuration", zap.String("guild", ev.GuildID), zap.Error(err))
		return
	}

	holdingRoom := settings[KeyHoldingRoomActive] == "true"
	minutes, convErr := strconv.Atoi(settings[KeyHoldingRoomMinutes])
	if convErr != nil && holdingRoom {
		s.log.Warn("invalid holding room minutes", zap.String("guild", ev.GuildID), zap.String("value", settings[KeyHoldingRoomMinutes]))
	}

	if settings[KeyWelcomeMessageActive] == "true" {
		s.sendWelcome(ev, settings, holdingRoom, minutes)
	}

	if holdingRoom {
		now := time.Now()
		join := Join{
			UserID:    ev.Author.ID,
			GuildID:   ev.GuildID,
			JoinTime:  now,
			AllowTime: now.Add(time.Duration(minutes) * time.Minute),
		}
		if err := s.store.CreateJoin(ctx, join); err != nil {
			s.log.Error("could not record join", zap.String("guild", ev.GuildID), zap.String("user", ev.Author.ID), zap.Error(err))
		}
	}
}

func (s *Shard) sendWelcome(ev *Event, settings map[string]string, holdingRoom bool, minutes int) {
	channelID := settings[KeyWelcomeMessageChannel]
	if channelID == "" || !s.session.HasTextChannel(channelID) {
		s.log.Warn("could not find welcome message channel", zap.String("guild", ev.GuildID), zap.String("guild_name", ev.GuildName))
		fallback := s.session.DefaultChannel(ev.GuildID)
		if fallback == "" {
			return
		}
		s.tasks.Go(ev.GuildID, "welcome-warning", func(tctx context.Context) error {
			return s.session.SendMessage(tctx, fallback, invalidWelcomeChannel)
		})
		return
	}

	message := WelcomeMessage(settings[KeyWelcomeMessage], ev.Author.ID, ev.GuildName, holdingRoom, minutes)
	s.tasks.Go(ev.GuildID, "welcome", func(tctx context.Context) error {
		return s.session.SendMessage(tctx, channelID, message)
	})
}

func (s *Shard) onMemberLeave(ctx context.Context, ev *Event) {
	if err := s.store.DeleteJoins(ctx, ev.GuildID, ev.Author.ID); err != nil {
		s.log.Error("could not delete join records", zap.String("guild", ev.GuildID), zap.String("user", ev.Author.ID), zap.Error(err))
	}
}

// WelcomeMessage expands $user, $guild and, with an active holding room, $minute.
func WelcomeMessage(template, userID, guildName string, holdingRoom bool, minutes int) string {
	msg := strings.Replace(template, "$user", "<@"+userID+">", 1)
	msg = strings.Replace(msg, "$guild", guildName, 1)
	if holdingRoom {
		unit := " minutes"
		if minutes == 1 {
			unit = " minute"
		}
		msg = strings.Replace(msg, "$minute", strconv.Itoa(minutes)+unit, 1)
	}
	return msg
}
