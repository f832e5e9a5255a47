package mocks

import (
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/mock"
)

// MQTTClient is a testify mock of the pkg/mqtt MQTTClient interface.
type MQTTClient struct {
	mock.Mock
}

func (m *MQTTClient) Connect() MQTT.Token {
	args := m.Called()
	return args.Get(0).(MQTT.Token)
}

func (m *MQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token {
	args := m.Called(topic, qos, retained, payload)
	return args.Get(0).(MQTT.Token)
}

func (m *MQTTClient) Subscribe(topic string, qos byte, callback MQTT.MessageHandler) MQTT.Token {
	args := m.Called(topic, qos, callback)
	return args.Get(0).(MQTT.Token)
}

func (m *MQTTClient) Unsubscribe(topics ...string) MQTT.Token {
	args := m.Called(topics)
	return args.Get(0).(MQTT.Token)
}

func (m *MQTTClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

func (m *MQTTClient) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

// Token is a testify mock of the paho MQTT Token interface.
type Token struct {
	mock.Mock
}

func (t *Token) Wait() bool {
	args := t.Called()
	return args.Bool(0)
}

func (t *Token) WaitTimeout(d time.Duration) bool {
	args := t.Called(d)
	return args.Bool(0)
}

func (t *Token) Done() <-chan struct{} {
	args := t.Called()
	return args.Get(0).(<-chan struct{})
}

func (t *Token) Error() error {
	args := t.Called()
	return args.Error(0)
}

// Message is a testify mock of the paho MQTT Message interface.
type Message struct {
	mock.Mock
}

func (m *Message) Duplicate() bool   { args := m.Called(); return args.Bool(0) }
func (m *Message) Qos() byte         { args := m.Called(); return args.Get(0).(byte) }
func (m *Message) Retained() bool    { args := m.Called(); return args.Bool(0) }
func (m *Message) Topic() string     { args := m.Called(); return args.String(0) }
func (m *Message) MessageID() uint16 { args := m.Called(); return args.Get(0).(uint16) }
func (m *Message) Payload() []byte   { args := m.Called(); return args.Get(0).([]byte) }
func (m *Message) Ack()              { m.Called() }
