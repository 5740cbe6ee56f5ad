// Command responder is a headless device client. It holds the realtime
// connection for one device id and logs every alert it receives.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/alarm-messenger/relay-server-go/internal/realtime"
	"github.com/alarm-messenger/relay-server-go/internal/wsclient"
)

type responderConfig struct {
	ServerURL   string `env:"SERVER_URL,required"`
	DeviceID    string `env:"DEVICE_ID,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	MaxAttempts int    `env:"MAX_RECONNECT_ATTEMPTS" envDefault:"10"`
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var cfg responderConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	client, err := wsclient.New(wsclient.Options{
		ServerURL:   cfg.ServerURL,
		DeviceID:    cfg.DeviceID,
		MaxAttempts: cfg.MaxAttempts,
		OnNotification: func(f realtime.NotificationFrame) {
			log.Warn().
				Str("emergencyId", f.Data.EmergencyID).
				Str("number", f.Data.EmergencyNumber).
				Str("keyword", f.Data.EmergencyKeyword).
				Str("location", f.Data.EmergencyLocation).
				Str("groups", f.Data.Groups).
				Msg(f.Notification.Title)
		},
		OnStateChange: func(s wsclient.State) {
			log.Info().Str("state", s.String()).Msg("connection state changed")
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid client options")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start client")
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		client.Disconnect()
	case <-client.Done():
		if err := client.Err(); err != nil {
			log.Error().Err(err).Msg("responder stopped")
			os.Exit(1)
		}
	}
}
