package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/figelwump/travel-agent-sub001/internal/gateway"
	"github.com/figelwump/travel-agent-sub001/internal/logging"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "gateway.toml", "path to gateway config")
	method := flag.String("send", "", "issue one request after connecting and print the result")
	params := flag.String("params", "", "JSON parameters for -send")
	reconnect := flag.Bool("reconnect", true, "redial with backoff when the connection drops")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := logging.New("gatewayctl")

	cfg, err := loadSessionConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gatewayctl: %v\n", err)
		os.Exit(1)
	}
	cfg.Logger = logger

	var requestParams any
	if *params != "" {
		if err := json.Unmarshal([]byte(*params), &requestParams); err != nil {
			fmt.Fprintf(os.Stderr, "gatewayctl: parse -params: %v\n", err)
			os.Exit(1)
		}
	}

	if err := run(cfg, *method, requestParams, *reconnect); err != nil {
		fmt.Fprintf(os.Stderr, "gatewayctl: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg gateway.Config, method string, params any, reconnect bool) error {
	session := gateway.NewSession(cfg)
	defer session.Close()

	hello := make(chan json.RawMessage, 1)
	closed := make(chan string, 1)

	session.SetCallbacks(gateway.Callbacks{
		OnHello: func(payload json.RawMessage) {
			select {
			case hello <- payload:
			default:
			}
		},
		OnEvent: func(name string, payload json.RawMessage, seq uint64) {
			fmt.Printf("event %s seq=%d %s\n", name, seq, string(payload))
		},
		OnClose: func(reason string) {
			select {
			case closed <- reason:
			default:
			}
		},
		OnError: func(err error) {
			cfg.Logger.Warn().Err(err).Msg("transport error")
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backoff := gateway.DefaultBackoffConfig()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	attempt := 0

	session.Connect()
	for {
		select {
		case <-ctx.Done():
			session.Disconnect()
			return nil
		case payload := <-hello:
			attempt = 0
			fmt.Printf("connected: %s\n", string(payload))
			if method != "" {
				if err := sendOnce(ctx, session, method, params); err != nil {
					return err
				}
				return nil
			}
		case reason := <-closed:
			if !reconnect {
				return fmt.Errorf("connection closed: %s", reason)
			}
			attempt++
			delay := gateway.NextBackoffDelay(backoff, attempt, rng)
			cfg.Logger.Info().Str("reason", reason).Dur("delay", delay).
				Msg("reconnecting after close")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			session.Connect()
		}
	}
}

func sendOnce(ctx context.Context, session *gateway.Session, method string, params any) error {
	call, err := session.Send(method, params)
	if err != nil {
		return err
	}
	payload, err := call.Wait(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", string(payload))
	return nil
}
