package bots

// Platform identifies the messaging platform.
type Platform string

const (
	PlatformSlack Platform = "slack"
	PlatformTeams Platform = "teams"
)

// IncomingMessage is a customer message received from a platform.
type IncomingMessage struct {
	Platform  Platform
	ChannelID string
	UserID    string
	UserName  string
	Text      string
	ThreadID  string
	Timestamp string
	// Shared is set for channels and group chats. Each customer there gets
	// their own conversation so one cannot answer another's confirmation.
	Shared bool
}

// OutgoingMessage is the assistant's reply, addressed back to the channel
// and thread it came from.
type OutgoingMessage struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
	ThreadID  string `json:"thread_id,omitempty"`
}
