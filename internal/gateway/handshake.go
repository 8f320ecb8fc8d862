package gateway

import (
	"fmt"
	"strings"
)

const (
	// ProtocolVersion is the single wire protocol revision this client
	// speaks. The handshake asserts it as both min and max.
	ProtocolVersion = 1

	// MethodConnect is the handshake request method.
	MethodConnect = "connect"

	// EventChallenge asks the client to (re-)send its handshake.
	EventChallenge = "connect.challenge"
)

// AuthInfo is the optional credential block of the connect request. It is
// omitted from the wire entirely when both fields are blank.
type AuthInfo struct {
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// ConnectParams is the payload of the "connect" request that upgrades a
// raw transport into an authenticated, versioned session.
type ConnectParams struct {
	MinProtocol int        `json:"minProtocol"`
	MaxProtocol int        `json:"maxProtocol"`
	Client      ClientInfo `json:"client"`
	Role        string     `json:"role"`
	Scopes      []string   `json:"scopes"`
	Caps        []string   `json:"caps"`
	Auth        *AuthInfo  `json:"auth,omitempty"`
	Locale      string     `json:"locale"`
	UserAgent   string     `json:"userAgent"`
}

func (p ConnectParams) Validate() error {
	if p.MinProtocol <= 0 || p.MaxProtocol < p.MinProtocol {
		return fmt.Errorf("%w: invalid protocol range", ErrMalformedFrame)
	}
	if strings.TrimSpace(p.Client.ID) == "" {
		return fmt.Errorf("%w: connect missing client id", ErrMalformedFrame)
	}
	return nil
}

// connectParamsFor builds the handshake payload from session config.
func connectParamsFor(cfg Config) ConnectParams {
	params := ConnectParams{
		MinProtocol: ProtocolVersion,
		MaxProtocol: ProtocolVersion,
		Client:      cfg.Client,
		Role:        cfg.Role,
		Scopes:      normalizeList(cfg.Scopes),
		Caps:        normalizeList(cfg.Caps),
		Locale:      cfg.Locale,
		UserAgent:   cfg.UserAgent,
	}
	token := strings.TrimSpace(cfg.Token)
	password := strings.TrimSpace(cfg.Password)
	if token != "" || password != "" {
		params.Auth = &AuthInfo{Token: token, Password: password}
	}
	return params
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
