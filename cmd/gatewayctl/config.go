package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/figelwump/travel-agent-sub001/internal/gateway"
)

type fileConfig struct {
	URL         string   `toml:"url"`
	Token       string   `toml:"token"`
	Password    string   `toml:"password"`
	ClientID    string   `toml:"client_id"`
	DisplayName string   `toml:"display_name"`
	Version     string   `toml:"version"`
	Platform    string   `toml:"platform"`
	Mode        string   `toml:"mode"`
	Role        string   `toml:"role"`
	Scopes      []string `toml:"scopes"`
	Caps        []string `toml:"caps"`
	Locale      string   `toml:"locale"`
	UserAgent   string   `toml:"user_agent"`
	SettleDelay string   `toml:"settle_delay"`
	DialTimeout string   `toml:"dial_timeout"`
}

func loadSessionConfig(path string) (gateway.Config, error) {
	cfg := gateway.Config{
		Client: gateway.ClientInfo{
			ID:          "gatewayctl",
			DisplayName: "Gateway CLI",
			Version:     version,
			Platform:    "cli",
			Mode:        "interactive",
		},
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return gateway.Config{}, fmt.Errorf("load gateway config: %w", err)
	}

	cfg.URL = strings.TrimSpace(raw.URL)
	if cfg.URL == "" {
		return gateway.Config{}, fmt.Errorf("gateway config missing url")
	}

	if meta.IsDefined("token") {
		cfg.Token = raw.Token
	}
	if meta.IsDefined("password") {
		cfg.Password = raw.Password
	}
	if meta.IsDefined("client_id") {
		if id := strings.TrimSpace(raw.ClientID); id != "" {
			cfg.Client.ID = id
		}
	}
	if meta.IsDefined("display_name") {
		cfg.Client.DisplayName = strings.TrimSpace(raw.DisplayName)
	}
	if meta.IsDefined("version") {
		cfg.Client.Version = strings.TrimSpace(raw.Version)
	}
	if meta.IsDefined("platform") {
		cfg.Client.Platform = strings.TrimSpace(raw.Platform)
	}
	if meta.IsDefined("mode") {
		cfg.Client.Mode = strings.TrimSpace(raw.Mode)
	}
	if meta.IsDefined("role") {
		cfg.Role = strings.TrimSpace(raw.Role)
	}
	if meta.IsDefined("scopes") {
		cfg.Scopes = normalizeList(raw.Scopes)
	}
	if meta.IsDefined("caps") {
		cfg.Caps = normalizeList(raw.Caps)
	}
	if meta.IsDefined("locale") {
		cfg.Locale = strings.TrimSpace(raw.Locale)
	}
	if meta.IsDefined("user_agent") {
		cfg.UserAgent = strings.TrimSpace(raw.UserAgent)
	}
	if meta.IsDefined("settle_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SettleDelay))
		if err != nil {
			return gateway.Config{}, fmt.Errorf("parse settle_delay: %w", err)
		}
		cfg.SettleDelay = d
	}
	if meta.IsDefined("dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DialTimeout))
		if err != nil {
			return gateway.Config{}, fmt.Errorf("parse dial_timeout: %w", err)
		}
		cfg.DialTimeout = d
	}

	return cfg, nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
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
