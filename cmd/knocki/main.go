// Package main provides a command-line client for the Knocki cloud: it
// logs in, optionally links the account for Home Assistant delivery, and
// tails trigger events from the event stream.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/swan-solutions/knocki-homeassistant/internal/config"
	"github.com/swan-solutions/knocki-homeassistant/pkg/knocki"
	"github.com/swan-solutions/knocki-homeassistant/pkg/logger"
	"github.com/swan-solutions/knocki-homeassistant/pkg/stream"
)

// resolveCredentials looks for credentials in priority order:
// 1. Command-line flags
// 2. KNOCKI_EMAIL / KNOCKI_PASSWORD environment variables
// 3. The config file, when one was given.
func resolveCredentials(flagEmail, flagPassword string, fileCfg *config.Config) (email, password string, err error) {
	email = flagEmail
	if email == "" {
		email = os.Getenv("KNOCKI_EMAIL")
	}
	if email == "" && fileCfg != nil {
		email = fileCfg.Email
	}

	password = flagPassword
	if password == "" {
		password = os.Getenv("KNOCKI_PASSWORD")
	}
	if password == "" && fileCfg != nil {
		password = fileCfg.Password
	}

	if email == "" || password == "" {
		return "", "", errors.New("credentials required: use -email/-password, KNOCKI_EMAIL/KNOCKI_PASSWORD, or a config file")
	}
	return email, password, nil
}

func kindLabel(kind knocki.EventKind) string {
	switch kind {
	case knocki.EventCreated:
		return "created"
	case knocki.EventUpdated:
		return "updated"
	case knocki.EventDeleted:
		return "deleted"
	case knocki.EventTriggered:
		return "triggered"
	default:
		return string(kind)
	}
}

func run() error {
	var (
		email        = flag.String("email", "", "Knocki account email")
		password     = flag.String("password", "", "Knocki account password")
		configPath   = flag.String("config", "", "path to a YAML config file")
		staging      = flag.Bool("staging", false, "use the staging environment")
		link         = flag.Bool("link", false, "link the account for Home Assistant delivery before listening")
		listTriggers = flag.Bool("triggers", false, "list configured triggers before listening")
		verbose      = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slogger := logger.NewAtLevel(os.Stderr, level)
	slog.SetDefault(slogger)

	var fileCfg *config.Config
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		fileCfg = cfg
	}

	userEmail, userPassword, err := resolveCredentials(*email, *password, fileCfg)
	if err != nil {
		return err
	}

	useStaging := *staging || (fileCfg != nil && fileCfg.Staging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	api := knocki.New(knocki.Config{Staging: useStaging, Logger: slogger})
	token, err := api.Login(ctx, userEmail, userPassword)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	slogger.Info("logged in", "user_id", token.UserID)

	if *link {
		if err := api.Link(ctx); err != nil {
			return fmt.Errorf("link account: %w", err)
		}
		slogger.Info("account linked for home assistant delivery")
	}

	if *listTriggers {
		triggers, err := api.Triggers(ctx)
		if err != nil {
			return fmt.Errorf("list triggers: %w", err)
		}
		for _, trigger := range triggers {
			fmt.Printf("%s  %s  %q\n", trigger.DeviceID, trigger.Details.TriggerID, trigger.Details.Name)
		}
	}

	events, err := stream.New(stream.Config{
		Token:   token.Token,
		Staging: useStaging,
		Logger:  slogger,
	})
	if err != nil {
		return err
	}

	for _, kind := range knocki.Kinds() {
		events.On(kind, stream.ListenerFunc(func(_ context.Context, event knocki.Event) {
			fmt.Printf("[%s] %s: device=%s trigger=%s name=%q\n",
				time.Now().Format("15:04:05"),
				kindLabel(event.Kind),
				event.Payload.DeviceID,
				event.Payload.Details.TriggerID,
				event.Payload.Details.Name,
			)
		}))
	}

	slogger.Info("listening for knocki events", "staging", useStaging)
	if err := events.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slogger.Info("shut down")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
