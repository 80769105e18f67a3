package watcher

import (
	"github.com/rs/zerolog"

	"github.com/danmuck/rtmctl/internal/protocol/messages"
	"github.com/danmuck/rtmctl/internal/rtm"
)

// EventHandlers logs one line per received event of every catalogued shape.
func EventHandlers(logger zerolog.Logger) []rtm.HandlerSpec {
	event := func(kind string) *zerolog.Event {
		return logger.Info().Str("event", kind)
	}
	return []rtm.HandlerSpec{
		rtm.On(func(m *messages.Hello) error {
			event("hello").Msg("rtm event")
			return nil
		}),
		rtm.On(func(m *messages.Message) error {
			event(m.Key().String()).
				Str("channel", m.Channel).
				Str("user", m.User).
				Str("ts", m.TS).
				Str("text", m.Text).
				Msg("rtm event")
			return nil
		}),
		rtm.On(func(m *messages.DeletedMessage) error {
			event("message_deleted").Str("channel", m.Channel).Str("deleted_ts", m.DeletedTS).Msg("rtm event")
			return nil
		}),
		rtm.On(func(m *messages.FileShareMessage) error {
			e := event("file_share").Str("channel", m.Channel).Str("user", m.User).Bool("upload", m.Upload)
			if m.File != nil {
				e = e.Str("file", m.File.ID).Str("name", m.File.Name)
			}
			e.Msg("rtm event")
			return nil
		}),
		rtm.On(func(m *messages.ChannelMarked) error {
			event("channel_marked").Str("channel", m.Channel).Str("ts", m.TS).Msg("rtm event")
			return nil
		}),
		rtm.On(func(m *messages.GroupOpen) error {
			event("group_open").Str("channel", m.Channel).Str("user", m.User).Msg("rtm event")
			return nil
		}),
		rtm.On(func(m *messages.GroupClose) error {
			event("group_close").Str("channel", m.Channel).Str("user", m.User).Msg("rtm event")
			return nil
		}),
		rtm.On(func(m *messages.GroupJoined) error {
			logChannel(event("group_joined"), m.Channel)
			return nil
		}),
		rtm.On(func(m *messages.GroupLeft) error {
			logChannel(event("group_left"), m.Channel)
			return nil
		}),
		rtm.On(func(m *messages.GroupRename) error {
			logChannel(event("group_rename"), m.Channel)
			return nil
		}),
		rtm.On(func(m *messages.PresenceChange) error {
			event("presence_change").Str("user", m.User).Str("presence", string(m.Presence)).Msg("rtm event")
			return nil
		}),
		rtm.On(func(m *messages.ReactionAdded) error {
			e := event("reaction_added").Str("user", m.User).Str("reaction", m.Reaction)
			if m.Item != nil {
				e = e.Str("item_type", m.Item.Type).Str("channel", m.Item.Channel)
			}
			e.Msg("rtm event")
			return nil
		}),
		rtm.On(func(m *messages.TeamJoin) error {
			logUser(event("team_join"), m.User)
			return nil
		}),
		rtm.On(func(m *messages.UserChange) error {
			logUser(event("user_change"), m.User)
			return nil
		}),
		rtm.On(func(m *messages.Typing) error {
			event("user_typing").Str("channel", m.Channel).Str("user", m.User).Msg("rtm event")
			return nil
		}),
	}
}

func logChannel(e *zerolog.Event, ch *messages.Channel) {
	if ch != nil {
		e = e.Str("channel", ch.ID).Str("name", ch.Name)
	}
	e.Msg("rtm event")
}

func logUser(e *zerolog.Event, u *messages.User) {
	if u != nil {
		e = e.Str("user", u.ID).Str("name", u.Name)
	}
	e.Msg("rtm event")
}
