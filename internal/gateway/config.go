package gateway

import (
	"time"

	"github.com/rs/zerolog"
)

// ClientInfo identifies this client to the gateway during the handshake.
type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Version     string `json:"version"`
	Platform    string `json:"platform"`
	Mode        string `json:"mode"`
}

// Config is the caller-supplied session configuration. It is the only
// state that survives a reconnect; everything else is rebuilt per
// transport instance.
type Config struct {
	URL string

	Client ClientInfo
	Role   string
	Scopes []string
	Caps   []string

	Token    string
	Password string

	Locale    string
	UserAgent string

	// SettleDelay is how long to wait after transport-open before sending
	// the handshake, unless a server challenge arrives first.
	SettleDelay time.Duration
	DialTimeout time.Duration

	// Dial overrides the transport constructor. Nil means WebSocket.
	Dial DialFunc

	Logger zerolog.Logger
}

// WithDefaults fills zero-valued knobs.
func (c Config) WithDefaults() Config {
	if c.SettleDelay <= 0 {
		c.SettleDelay = 300 * time.Millisecond
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.Locale == "" {
		c.Locale = "en-US"
	}
	if c.UserAgent == "" {
		c.UserAgent = "gatewayctl/" + c.Client.Version
	}
	if c.Role == "" {
		c.Role = "client"
	}
	return c
}
