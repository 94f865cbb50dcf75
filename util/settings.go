package util

import (
	"crypto/rand"
	"fmt"
	"reflect"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const ENV_PREFIX = "SMART_OFFICE"

var Config = viper.New()

var config_listeners []func()

func RegisterNewConfigListener(new_listener func()) {
	for _, listener := range config_listeners {
		if reflect.ValueOf(new_listener).Pointer() == reflect.ValueOf(listener).Pointer() {
			Logger.Warn().Msg("config listener already registered")
			return
		}
	}
	config_listeners = append(config_listeners, new_listener)
}

func OnNewConfig() {
	for _, listener := range config_listeners {
		listener()
	}
}

func GetRandString(n int) string {
	const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, n)
	for i := range b {
		randBytes := make([]byte, 1)
		if _, err := rand.Read(randBytes); err != nil {
			b[i] = letterBytes[i%len(letterBytes)]
		} else {
			b[i] = letterBytes[int(randBytes[0])%len(letterBytes)]
		}
	}
	return string(b)
}

// NewFlagSet describes the command line. Flags override config file and
// environment values once bound with BindFlags.
func NewFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("smart_office", pflag.ContinueOnError)
	fs.String("config", "", "path to a config file")
	fs.String("log-level", "info", "trace, debug, info, warn or error")
	fs.Int("details-port", 0, "monitor server port, 0 disables it")
	fs.Int("rooms", 0, "number of meeting rooms, skips the room count prompt")
	fs.Bool("mqtt", false, "enable the MQTT bridge")
	fs.String("hash-password", "", "print the bcrypt hash of a password and exit")
	return fs
}

var flagKeys = map[string]string{
	"config":        "config_file",
	"log-level":     "log_level",
	"details-port":  "details_port",
	"rooms":         "office.room_count",
	"mqtt":          "mqtt.enabled",
	"hash-password": "hash_password",
}

// BindFlags parses args and binds every flag to its config key.
func BindFlags(args []string) error {
	fs := NewFlagSet()
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	for name, key := range flagKeys {
		if err := Config.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func SetupConfig() {
	Config.SetEnvPrefix(ENV_PREFIX)
	Config.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	// set defaults
	Config.SetDefault("log_level", "info")
	Config.SetDefault("details_port", 0)
	Config.SetDefault("bcrypt_cost", bcrypt.DefaultCost)
	Config.SetDefault("mqtt.enabled", false)
	Config.SetDefault("mqtt.broker_uri", "tcp://mqtt")
	Config.SetDefault("mqtt.cleansess", false)
	Config.SetDefault("mqtt.id_base", "smart_office")
	Config.SetDefault("mqtt.username", "")
	Config.SetDefault("mqtt.password", "")
	Config.SetDefault("mqtt.availability_topic", "office/online")
	Config.SetDefault("mqtt.online_interval", "10s")
	Config.SetDefault("ha.discovery", true)
	Config.SetDefault("ha.advertise_interval", "5m")

	// config file
	if file := Config.GetString("config_file"); file != "" {
		Config.SetConfigFile(file)
	} else {
		Config.SetConfigName("smart_office")
		Config.AddConfigPath("/")
		Config.AddConfigPath("./")
		Config.AddConfigPath("./config")
		Config.AddConfigPath("/etc")
		Config.AddConfigPath("/smart_office")
		Config.AddConfigPath("/smart_office/config")
	}

	err := Config.ReadInConfig()
	if err != nil {
		Logger.Warn().Msgf("unable to read config file: %v", err)
	}

	// environment variables
	Config.AutomaticEnv()

	if err != nil {
		return
	}
	// watch for changes
	Config.WatchConfig()
	Config.OnConfigChange(func(e fsnotify.Event) {
		Logger.Info().Msgf("Config file changed: %v", e.Name)
		Logger.Debug().Msgf("Config Additional Info: %v", e.String())
		OnNewConfig()
	})
}
