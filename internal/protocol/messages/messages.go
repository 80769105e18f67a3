// Package messages declares the real-time message shapes and the default
// route registry built from them.
package messages

import "github.com/danmuck/rtmctl/internal/protocol"

type Presence string

const (
	PresenceActive Presence = "active"
	PresenceAway   Presence = "away"
)

// Channel is the channel/group object carried by group_* events.
type Channel struct {
	ID         string   `json:"id"`
	Name       string   `json:"name,omitempty"`
	Created    int64    `json:"created,omitempty"`
	Creator    string   `json:"creator,omitempty"`
	IsArchived bool     `json:"is_archived,omitempty"`
	IsGroup    bool     `json:"is_group,omitempty"`
	Members    []string `json:"members,omitempty"`
}

type Profile struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	RealName  string `json:"real_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Image48   string `json:"image_48,omitempty"`
}

type User struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	Deleted  bool     `json:"deleted,omitempty"`
	IsAdmin  bool     `json:"is_admin,omitempty"`
	IsBot    bool     `json:"is_bot,omitempty"`
	TZ       string   `json:"tz,omitempty"`
	Presence Presence `json:"presence,omitempty"`
	Profile  *Profile `json:"profile,omitempty"`
}

type File struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Title      string `json:"title,omitempty"`
	Mimetype   string `json:"mimetype,omitempty"`
	Filetype   string `json:"filetype,omitempty"`
	Size       int64  `json:"size,omitempty"`
	URLPrivate string `json:"url_private,omitempty"`
	Permalink  string `json:"permalink,omitempty"`
}

// Item is the target of a reaction.
type Item struct {
	Type        string `json:"type"`
	Channel     string `json:"channel,omitempty"`
	File        string `json:"file,omitempty"`
	FileComment string `json:"file_comment,omitempty"`
	TS          string `json:"ts,omitempty"`
}

// Hello is the first event sent by the server after connecting.
type Hello struct {
	protocol.Envelope
}

// Message is a chat message; also the outbound shape for posting text.
type Message struct {
	protocol.Envelope
	Channel string `json:"channel,omitempty"`
	User    string `json:"user,omitempty"`
	Text    string `json:"text,omitempty"`
	Team    string `json:"team,omitempty"`
	TS      string `json:"ts,omitempty"`
	BotID   string `json:"bot_id,omitempty"`
}

type DeletedMessage struct {
	protocol.Envelope
	Channel   string `json:"channel,omitempty"`
	TS        string `json:"ts,omitempty"`
	DeletedTS string `json:"deleted_ts,omitempty"`
	Hidden    bool   `json:"hidden,omitempty"`
}

type FileShareMessage struct {
	Message
	Upload bool  `json:"upload,omitempty"`
	File   *File `json:"file,omitempty"`
}

type ChannelMarked struct {
	protocol.Envelope
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
}

type GroupClose struct {
	protocol.Envelope
	User    string `json:"user,omitempty"`
	Channel string `json:"channel,omitempty"`
}

type GroupOpen struct {
	protocol.Envelope
	User    string `json:"user,omitempty"`
	Channel string `json:"channel,omitempty"`
}

type GroupJoined struct {
	protocol.Envelope
	Channel *Channel `json:"channel,omitempty"`
}

type GroupLeft struct {
	protocol.Envelope
	Channel *Channel `json:"channel,omitempty"`
}

type GroupRename struct {
	protocol.Envelope
	Channel *Channel `json:"channel,omitempty"`
}

// Ping asks the server for a pong; the reply carries reply_to.
type Ping struct {
	protocol.Envelope
	PingIntervalMS int `json:"ping_interv_ms,omitempty"`
}

type Pong struct {
	protocol.Envelope
	PingIntervalMS int `json:"ping_interv_ms,omitempty"`
}

type PresenceChange struct {
	protocol.Envelope
	User     string   `json:"user,omitempty"`
	Presence Presence `json:"presence,omitempty"`
}

type ReactionAdded struct {
	protocol.Envelope
	User     string `json:"user,omitempty"`
	Reaction string `json:"reaction,omitempty"`
	ItemUser string `json:"item_user,omitempty"`
	Item     *Item  `json:"item,omitempty"`
	EventTS  string `json:"event_ts,omitempty"`
}

type TeamJoin struct {
	protocol.Envelope
	User *User `json:"user,omitempty"`
}

// Typing is sent by clients as "typing" and received as "user_typing".
type Typing struct {
	protocol.Envelope
	User    string `json:"user,omitempty"`
	Channel string `json:"channel,omitempty"`
}

type UserChange struct {
	protocol.Envelope
	User *User `json:"user,omitempty"`
}

// DefaultPingIntervalMS is the ping interval advertised by NewPing.
const DefaultPingIntervalMS = 3000

func NewPing() *Ping {
	return &Ping{PingIntervalMS: DefaultPingIntervalMS}
}

// NewMessage builds an outbound chat message for channel.
func NewMessage(channel, text string) *Message {
	return &Message{Channel: channel, Text: text}
}

// Reply acknowledges a posted message. It is matched by reply_to and
// never routed by type.
type Reply struct {
	protocol.Envelope
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
	Text    string `json:"text,omitempty"`
}
