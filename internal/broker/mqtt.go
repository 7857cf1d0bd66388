package broker

import (
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"git.home.luguber.info/inful/careradius/internal/config"
	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/logfields"
)

// ConnectMQTT connects a paho client with automatic reconnect.
func ConnectMQTT(cfg config.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			slog.Warn("MQTT connection lost", logfields.Error(err))
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			slog.Info("MQTT connected", slog.String("broker", cfg.Broker))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, ferrors.NetworkError("MQTT connect timed out").
			WithContext("broker", cfg.Broker).
			Build()
	}
	if err := token.Error(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to connect to MQTT broker").
			WithContext("broker", cfg.Broker).
			Retryable().
			Build()
	}
	return client, nil
}
