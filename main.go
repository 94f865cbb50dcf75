package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/elijahnyp/smart_office/state"
	. "github.com/elijahnyp/smart_office/util"
)

var office Office

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, in io.Reader, out io.Writer) int {
	LogInit("info")
	if err := BindFlags(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	SetupConfig()
	LogInit(Config.GetString("log_level"))

	if plain := Config.GetString("hash_password"); plain != "" {
		hash, err := HashPassword(plain, Config.GetInt("bcrypt_cost"))
		if err != nil {
			Logger.Error().Msgf("Error hashing password: %v", err)
			return 1
		}
		fmt.Fprintln(out, hash)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := state.NewRegistry(state.WithLogger(ComponentLogger("room")))
	bridge := NewOfficeBridge(registry, office)
	hub := NewHub()
	go hub.Run(ctx)
	registry.AttachAll(hub)

	RegisterNewConfigListener(func() { LogInit(Config.GetString("log_level")) })
	RegisterNewConfigListener(func() {
		if err := office.BuildOffice(); err != nil {
			Logger.Error().Msgf("Error building office: %v", err)
			return
		}
		if err := office.Populate(registry); err != nil {
			Logger.Error().Msgf("Error populating rooms: %v", err)
		}
		bridge.SetOffice(office)
	})

	mqttEnabled := Config.GetBool("mqtt.enabled")
	if mqttEnabled {
		registry.AttachAll(bridge)
		RegisterNewConfigListener(bridge.Subscribe)
		RegisterMQTTConnectHook("haadvertise", func(client MQTT.Client) {
			bridge.Advertise(client)
		})
		RegisterNewConfigListener(func() {
			if err := MqttInit(); err != nil {
				Logger.Error().Msgf("Error connecting to MQTT: %v", err)
			}
		})
	}
	OnNewConfig()

	auth, err := LoadAuthenticator()
	if err != nil {
		Logger.Error().Msgf("Error loading users: %v", err)
		return 1
	}

	monitor := NewMonitorServer()
	mountStatusRoutes(monitor, NewStatusHandlers(registry), hub)
	if Config.GetInt("details_port") > 0 {
		if err := monitor.Start(); err != nil {
			Logger.Error().Msgf("Error starting monitor server: %v", err)
		}
	}
	RegisterNewConfigListener(monitor.Restart)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := monitor.Shutdown(shutdownCtx); err != nil {
			Logger.Warn().Msgf("Error stopping monitor server: %v", err)
		}
	}()

	if mqttEnabled {
		go OnlinePinger(ctx, Config.GetDuration("mqtt.online_interval"))
		go HAAdvertiser(ctx, bridge, Config.GetDuration("ha.advertise_interval"))
		defer func() {
			if Client != nil && Client.IsConnected() {
				_ = Publish(Client, AvailabilityTopic(), "offline") //nolint:errcheck // best effort on exit
				Client.Disconnect(250)
			}
		}()
	}
	Logger.Info().Msg("ready")

	done := make(chan error, 1)
	go func() {
		done <- NewSession(registry, auth, office, in, out).Run()
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		Logger.Info().Msg("interrupted")
		return 0
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrAccessDenied), errors.Is(err, ErrMalformedInput):
		Logger.Debug().Msgf("session ended: %v", err)
		return 1
	default:
		Logger.Error().Msgf("session ended: %v", err)
		return 1
	}
}
