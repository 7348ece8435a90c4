package mqtt

import (
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilbercode/ezviz-bridge/internal/config"
)

type fakeMessage struct {
	pahomqtt.Message
	topic   string
	payload []byte
}

func (m *fakeMessage) Topic() string   { return m.topic }
func (m *fakeMessage) Payload() []byte { return m.payload }

func TestClient_options(t *testing.T) {
	t.Run("sets broker, credentials and last will", func(t *testing.T) {
		c := &Client{qos: 1, timeout: time.Second, availabilityTopic: "ezviz/status"}
		opts := c.options(config.MQTTConfig{
			Broker:   "tcp://broker:1883",
			Username: "user",
			Password: "pass",
			ClientID: "bridge",
		})

		assert.Equal(t, "broker:1883", opts.Servers[0].Host)
		assert.Equal(t, "bridge", opts.ClientID)
		assert.Equal(t, "user", opts.Username)
		assert.True(t, opts.WillEnabled)
		assert.Equal(t, "ezviz/status", opts.WillTopic)
		assert.Equal(t, []byte(PayloadOffline), opts.WillPayload)
		assert.True(t, opts.WillRetained)
		assert.False(t, opts.Order)
	})

	t.Run("generates a client id when none is configured", func(t *testing.T) {
		c := &Client{timeout: time.Second}
		opts := c.options(config.MQTTConfig{Broker: "tcp://broker:1883"})

		assert.Contains(t, opts.ClientID, "ezviz-bridge-")
		assert.False(t, opts.WillEnabled)
	})
}

func TestClient_Publish(t *testing.T) {
	c := &Client{timeout: time.Second, subscriptions: map[string]subscription{}}
	c.client = pahomqtt.NewClient(c.options(config.MQTTConfig{Broker: "tcp://127.0.0.1:1"}))

	assert.ErrorIs(t, c.Publish("", nil, false), ErrInvalidTopic)
	assert.ErrorIs(t, c.Publish("a/b", []byte("x"), false), ErrNotConnected)
}

func TestClient_Subscribe(t *testing.T) {
	c := &Client{timeout: time.Second, subscriptions: map[string]subscription{}}

	assert.ErrorIs(t, c.Subscribe("", func(string, []byte) {}), ErrInvalidTopic)
	assert.ErrorIs(t, c.Subscribe("a/b", nil), ErrSubscribeFailed)
}

func TestWrap(t *testing.T) {
	t.Run("passes topic and payload", func(t *testing.T) {
		var gotTopic string
		var gotPayload []byte
		h := wrap(func(topic string, payload []byte) {
			gotTopic, gotPayload = topic, payload
		})

		h(nil, &fakeMessage{topic: "a/b", payload: []byte("PRESS")})

		assert.Equal(t, "a/b", gotTopic)
		assert.Equal(t, []byte("PRESS"), gotPayload)
	})

	t.Run("recovers from handler panics", func(t *testing.T) {
		h := wrap(func(string, []byte) { panic("boom") })

		assert.NotPanics(t, func() {
			h(nil, &fakeMessage{topic: "a/b"})
		})
	})
}

func startBroker(t *testing.T) string {
	t.Helper()
	server := mochi.New(nil)
	require.NoError(t, server.AddHook(new(auth.AllowHook), nil))
	tcp := listeners.NewTCP("t1", "127.0.0.1:0", nil)
	require.NoError(t, server.AddListener(tcp))
	require.NoError(t, server.Serve())
	t.Cleanup(func() { _ = server.Close() })
	return "tcp://" + tcp.Address()
}

func TestClient_handlersRunConcurrently(t *testing.T) {
	broker := startBroker(t)
	c, err := Connect(config.MQTTConfig{Broker: broker, QoS: 1, ConnectTimeout: 5 * time.Second}, "ezviz/status")
	require.NoError(t, err)
	defer c.Close()

	pressStarted := make(chan struct{})
	releasePress := make(chan struct{})
	defer close(releasePress)
	require.NoError(t, c.Subscribe("ezviz/cam1/ptz_up/set", func(string, []byte) {
		close(pressStarted)
		<-releasePress
	}))

	sirenHandled := make(chan error, 1)
	require.NoError(t, c.Subscribe("ezviz/cam1/siren/set", func(string, []byte) {
		sirenHandled <- c.Publish("ezviz/cam1/siren/state", []byte("ON"), true)
	}))

	require.NoError(t, c.Publish("ezviz/cam1/ptz_up/set", []byte("PRESS"), false))
	select {
	case <-pressStarted:
	case <-time.After(5 * time.Second):
		t.Fatal("press handler never ran")
	}

	require.NoError(t, c.Publish("ezviz/cam1/siren/set", []byte("ON"), false))
	select {
	case err := <-sirenHandled:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("siren command waited for the running press")
	}
}
