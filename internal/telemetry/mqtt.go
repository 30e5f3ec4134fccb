package telemetry

import (
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectWait   = 3 * time.Second
	mqttPublishWait   = time.Second
	mqttRetryInterval = 5 * time.Second
)

type mqttTransport struct {
	client mqtt.Client
	prefix string
}

// OpenMQTT connects to the broker. If the broker is down the client keeps
// retrying in the background and publishes drop until it comes up; only a
// definitive refusal (bad credentials, bad URL) is returned as an error.
func OpenMQTT(broker, clientID, topicPrefix string) (Transport, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(mqttRetryInterval)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectWait) {
		log.Printf("telemetry: mqtt broker %s not reachable yet, retrying in background", broker)
	} else if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("telemetry: mqtt connect: %w", err)
	}
	return &mqttTransport{client: client, prefix: topicPrefix}, nil
}

func (m *mqttTransport) Publish(topic string, payload []byte) error {
	if !m.client.IsConnectionOpen() {
		return fmt.Errorf("telemetry: mqtt not connected")
	}
	token := m.client.Publish(m.prefix+"/"+topic, 0, false, payload)
	if !token.WaitTimeout(mqttPublishWait) {
		return fmt.Errorf("telemetry: mqtt publish timeout")
	}
	return token.Error()
}

func (m *mqttTransport) Close() error {
	m.client.Disconnect(250)
	return nil
}
