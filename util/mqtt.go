package util

import (
	"fmt"
	"sync"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

var Client MQTT.Client

var (
	hooksMu         sync.Mutex
	subscriptions   map[string]MQTT.MessageHandler
	connectHandlers map[string]func(MQTT.Client)
)

func AvailabilityTopic() string {
	return Config.GetString("mqtt.availability_topic")
}

var connectHandler MQTT.OnConnectHandler = func(client MQTT.Client) {
	Logger.Info().Msg("Connected")
	subscribe(client)
	if err := Publish(client, AvailabilityTopic(), "online"); err != nil {
		Logger.Warn().Msgf("announcing availability: %v", err)
	}
	hooksMu.Lock()
	handlers := make([]func(MQTT.Client), 0, len(connectHandlers))
	for _, handler := range connectHandlers {
		handlers = append(handlers, handler)
	}
	hooksMu.Unlock()
	for _, handler := range handlers {
		handler(client)
	}
}

func RegisterMQTTConnectHook(name string, handler func(MQTT.Client)) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if connectHandlers == nil {
		connectHandlers = make(map[string]func(client MQTT.Client))
	}
	if handler == nil {
		delete(connectHandlers, name)
	} else {
		connectHandlers[name] = handler
	}
}

func subscribe(client MQTT.Client) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	for topic, handler := range subscriptions {
		if token := client.Subscribe(topic, 0, handler); token.Wait() && token.Error() != nil {
			Logger.Error().Msgf("Error Subscribing to %s: %v", topic, token.Error())
		}
	}
}

// RegisterMQTTSubscription records a handler for topic; it is subscribed on
// every (re)connect. A nil handler removes the subscription.
func RegisterMQTTSubscription(topic string, handler MQTT.MessageHandler) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if subscriptions == nil {
		subscriptions = make(map[string]MQTT.MessageHandler)
	}
	if handler == nil {
		delete(subscriptions, topic)
	} else {
		subscriptions[topic] = handler
	}
}

// ClearMQTTSubscriptions drops every registered subscription, unsubscribing
// on the live client when there is one.
func ClearMQTTSubscriptions() {
	hooksMu.Lock()
	topics := make([]string, 0, len(subscriptions))
	for topic := range subscriptions {
		topics = append(topics, topic)
	}
	subscriptions = make(map[string]MQTT.MessageHandler)
	hooksMu.Unlock()

	if Client != nil && Client.IsConnected() && len(topics) > 0 {
		if token := Client.Unsubscribe(topics...); token.Wait() && token.Error() != nil {
			Logger.Warn().Msgf("Error unsubscribing: %v", token.Error())
		}
	}
}

// Publish sends a QoS 0, non-retained message and waits for it to go out.
func Publish(client MQTT.Client, topic string, payload interface{}) error {
	if client == nil {
		return fmt.Errorf("publish to %s: no mqtt client", topic)
	}
	token := client.Publish(topic, 0, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", topic, token.Error())
	}
	return nil
}

func receiver(client MQTT.Client, message MQTT.Message) {
	Logger.Warn().Msgf("Received message on %v but no handler", message.Topic())
}

var connectLostHandler MQTT.ConnectionLostHandler = func(client MQTT.Client, err error) {
	Logger.Info().Msgf("Connect lost: %v", err)
}

// mqttOptions builds the client options from the mqtt.* settings. Order is
// off so message handlers run on their own goroutines: a count message
// notifies the room observers, which publish and wait on the token.
func mqttOptions() *MQTT.ClientOptions {
	opts := MQTT.NewClientOptions()
	opts.AddBroker(Config.GetString("mqtt.broker_uri"))
	opts.SetClientID(Config.GetString("mqtt.id_base") + "_" + GetRandString(6))
	opts.SetUsername(Config.GetString("mqtt.username"))
	opts.SetPassword(Config.GetString("mqtt.password"))
	opts.SetCleanSession(Config.GetBool("mqtt.cleansess"))
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(false)
	opts.SetWill(AvailabilityTopic(), "offline", 0, false)
	opts.OnConnectionLost = connectLostHandler
	opts.OnConnect = connectHandler
	opts.SetDefaultPublishHandler(receiver)
	return opts
}

func MqttInit() error {
	opts := mqttOptions()
	if Client != nil {
		Logger.Debug().Msg("Client exists - destroying")
		if Client.IsConnected() {
			Client.Disconnect(1000)
		}
		Client = nil
	}

	Client = MQTT.NewClient(opts)

	if token := Client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to %s: %w", Config.GetString("mqtt.broker_uri"), token.Error())
	}
	return nil
}
