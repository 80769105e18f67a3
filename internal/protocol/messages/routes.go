package messages

import (
	"sync"

	"github.com/danmuck/rtmctl/internal/protocol"
	"github.com/danmuck/rtmctl/internal/protocol/registry"
)

var (
	defaultOnce     sync.Once
	defaultRegistry *registry.Registry
)

// Registry returns the process-wide registry of every shape in this package.
// It is built on first use; a duplicate route panics.
func Registry() *registry.Registry {
	defaultOnce.Do(func() {
		b := registry.NewBuilder()
		Register(b)
		defaultRegistry = b.Build()
	})
	return defaultRegistry
}

// Register adds every shape in this package to b.
// The last key of a shape is the one used when sending it without a type.
func Register(b *registry.Builder) {
	registry.MustAdd[Hello](b, protocol.Key("hello", ""))
	registry.MustAdd[Message](b,
		protocol.Key("message", "bot_message"),
		protocol.Key("message", ""),
	)
	registry.MustAdd[DeletedMessage](b, protocol.Key("message", "message_deleted"))
	registry.MustAdd[FileShareMessage](b, protocol.Key("message", "file_share"))
	registry.MustAdd[ChannelMarked](b, protocol.Key("channel_marked", ""))
	registry.MustAdd[GroupClose](b, protocol.Key("group_close", ""))
	registry.MustAdd[GroupOpen](b, protocol.Key("group_open", ""))
	registry.MustAdd[GroupJoined](b, protocol.Key("group_joined", ""))
	registry.MustAdd[GroupLeft](b, protocol.Key("group_left", ""))
	registry.MustAdd[GroupRename](b, protocol.Key("group_rename", ""))
	registry.MustAdd[Ping](b, protocol.Key("ping", ""))
	registry.MustAdd[Pong](b, protocol.Key("pong", ""))
	registry.MustAdd[PresenceChange](b, protocol.Key("presence_change", ""))
	registry.MustAdd[ReactionAdded](b, protocol.Key("reaction_added", ""))
	registry.MustAdd[TeamJoin](b, protocol.Key("team_join", ""))
	registry.MustAdd[Typing](b,
		protocol.Key("user_typing", ""),
		protocol.Key("typing", ""),
	)
	registry.MustAdd[UserChange](b, protocol.Key("user_change", ""))
}
