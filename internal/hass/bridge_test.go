package hass

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bilbercode/ezviz-bridge/internal/button"
	"github.com/bilbercode/ezviz-bridge/internal/coordinator"
	"github.com/bilbercode/ezviz-bridge/internal/entity"
	"github.com/bilbercode/ezviz-bridge/internal/ezviz"
	"github.com/bilbercode/ezviz-bridge/internal/mqtt"
	"github.com/bilbercode/ezviz-bridge/internal/sensor"
	"github.com/bilbercode/ezviz-bridge/internal/siren"
)

type fakeBroker struct {
	sync.Mutex
	published map[string][]byte
	handlers  map[string]mqtt.MessageHandler
	failOn    string
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: map[string][]byte{}, handlers: map[string]mqtt.MessageHandler{}}
}

func (f *fakeBroker) Publish(topic string, payload []byte, retained bool) error {
	f.Lock()
	defer f.Unlock()
	if topic == f.failOn {
		return errors.New("publish failed")
	}
	f.published[topic] = payload
	return nil
}

func (f *fakeBroker) Subscribe(topic string, handler mqtt.MessageHandler) error {
	f.Lock()
	defer f.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeBroker) get(topic string) []byte {
	f.Lock()
	defer f.Unlock()
	return f.published[topic]
}

func (f *fakeBroker) send(topic, payload string) {
	f.Lock()
	h := f.handlers[topic]
	f.Unlock()
	h(topic, []byte(payload))
}

type mockService struct {
	mock.Mock
}

func (m *mockService) LoadCameras(ctx context.Context) ([]*ezviz.Camera, error) {
	args := m.Called(ctx)
	cameras, _ := args.Get(0).([]*ezviz.Camera)
	return cameras, args.Error(1)
}

func (m *mockService) PTZControl(ctx context.Context, command, serial, phase string) error {
	return m.Called(ctx, command, serial, phase).Error(0)
}

func (m *mockService) SoundAlarm(ctx context.Context, serial string, enable int) (bool, error) {
	args := m.Called(ctx, serial, enable)
	return args.Bool(0), args.Error(1)
}

type fakeCoordinator struct {
	sync.Mutex
	data   *coordinator.Snapshot
	client ezviz.Service
}

func (f *fakeCoordinator) Data() *coordinator.Snapshot {
	f.Lock()
	defer f.Unlock()
	return f.data
}

func (f *fakeCoordinator) Client() ezviz.Service { return f.client }

func (f *fakeCoordinator) set(s *coordinator.Snapshot) {
	f.Lock()
	defer f.Unlock()
	f.data = s
}

func newCoordinator(svc ezviz.Service) *fakeCoordinator {
	return &fakeCoordinator{client: svc, data: coordinator.NewSnapshot().Set("cam1", coordinator.Attributes{
		"name":                 "Door",
		"version":              "5.3.0",
		"device_sub_category":  "C6N",
		"supportExt":           map[string]string{ezviz.SupportPtz: "1", ezviz.SupportActiveDefense: "1"},
		"battery_level":        80,
		"Seconds_Last_Trigger": 5,
	})}
}

func entities(t *testing.T, c *fakeCoordinator) []entity.Entity {
	var out []entity.Entity
	buttons, err := button.Setup(c)
	require.NoError(t, err)
	for _, b := range buttons {
		out = append(out, b)
	}
	for _, s := range sensor.Setup(c) {
		out = append(out, s)
	}
	sirens, err := siren.Setup(c, nil)
	require.NoError(t, err)
	for _, s := range sirens {
		out = append(out, s)
	}
	return out
}

func TestBridge_Register(t *testing.T) {
	t.Run("publishes discovery for every entity", func(t *testing.T) {
		broker := newFakeBroker()
		b := NewBridge(broker, "homeassistant", "ezviz")

		require.NoError(t, b.Register(context.Background(), entities(t, newCoordinator(&mockService{}))))

		var up Discovery
		require.NoError(t, json.Unmarshal(broker.get("homeassistant/button/cam1/ptz_up/config"), &up))
		assert.Equal(t, "cam1_PTZ up", up.UniqueID)
		assert.Equal(t, "PTZ up", up.Name)
		assert.Equal(t, "mdi:pan", up.Icon)
		assert.Equal(t, "ezviz/cam1/ptz_up/set", up.CommandTopic)
		assert.Equal(t, PayloadPress, up.PayloadPress)
		assert.Equal(t, "ezviz/status", up.AvailabilityTopic)
		assert.Equal(t, []string{"cam1"}, up.Device.Identifiers)
		assert.Equal(t, "Door", up.Device.Name)
		assert.Equal(t, "C6N", up.Device.Model)
		assert.Equal(t, "5.3.0", up.Device.SoftwareVersion)

		var battery Discovery
		require.NoError(t, json.Unmarshal(broker.get("homeassistant/sensor/cam1/battery_level/config"), &battery))
		assert.Equal(t, "cam1_Door.battery_level", battery.UniqueID)
		assert.Equal(t, "%", battery.UnitOfMeasurement)
		assert.Equal(t, "battery", battery.DeviceClass)
		assert.Equal(t, "ezviz/cam1/battery_level/state", battery.StateTopic)
		assert.Nil(t, battery.EnabledByDefault)

		var seconds Discovery
		require.NoError(t, json.Unmarshal(broker.get("homeassistant/sensor/cam1/Seconds_Last_Trigger/config"), &seconds))
		require.NotNil(t, seconds.EnabledByDefault)
		assert.False(t, *seconds.EnabledByDefault)

		var alarm Discovery
		require.NoError(t, json.Unmarshal(broker.get("homeassistant/siren/cam1/siren/config"), &alarm))
		assert.Equal(t, "cam1_Siren", alarm.UniqueID)
		assert.Equal(t, PayloadOn, alarm.PayloadOn)

		assert.Equal(t, []byte(mqtt.PayloadOnline), broker.get("ezviz/status"))
	})

	t.Run("publish failures are returned", func(t *testing.T) {
		broker := newFakeBroker()
		broker.failOn = "homeassistant/button/cam1/ptz_up/config"
		b := NewBridge(broker, "homeassistant", "ezviz")

		err := b.Register(context.Background(), entities(t, newCoordinator(&mockService{})))
		assert.Error(t, err)
	})
}

func TestBridge_commands(t *testing.T) {
	t.Run("PRESS runs the START STOP sequence", func(t *testing.T) {
		svc := &mockService{}
		svc.On("PTZControl", mock.Anything, ezviz.DirectionLeft, "cam1", ezviz.PhaseStart).Return(nil).Once()
		svc.On("PTZControl", mock.Anything, ezviz.DirectionLeft, "cam1", ezviz.PhaseStop).Return(nil).Once()
		broker := newFakeBroker()
		b := NewBridge(broker, "homeassistant", "ezviz")
		require.NoError(t, b.Register(context.Background(), entities(t, newCoordinator(svc))))

		broker.send("ezviz/cam1/ptz_left/set", PayloadPress)

		svc.AssertExpectations(t)
	})

	t.Run("failed presses do not panic and are not retried", func(t *testing.T) {
		svc := &mockService{}
		svc.On("PTZControl", mock.Anything, ezviz.DirectionUp, "cam1", ezviz.PhaseStart).Return(&ezviz.APIError{Code: 2009})
		broker := newFakeBroker()
		b := NewBridge(broker, "homeassistant", "ezviz")
		require.NoError(t, b.Register(context.Background(), entities(t, newCoordinator(svc))))

		assert.NotPanics(t, func() { broker.send("ezviz/cam1/ptz_up/set", PayloadPress) })
		svc.AssertNumberOfCalls(t, "PTZControl", 1)
	})

	t.Run("unexpected payloads are ignored", func(t *testing.T) {
		svc := &mockService{}
		broker := newFakeBroker()
		b := NewBridge(broker, "homeassistant", "ezviz")
		require.NoError(t, b.Register(context.Background(), entities(t, newCoordinator(svc))))

		broker.send("ezviz/cam1/ptz_up/set", "HOLD")
		svc.AssertNotCalled(t, "PTZControl", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("siren ON publishes the new state", func(t *testing.T) {
		svc := &mockService{}
		svc.On("SoundAlarm", mock.Anything, "cam1", ezviz.SoundAlarmOn).Return(true, nil)
		broker := newFakeBroker()
		b := NewBridge(broker, "homeassistant", "ezviz")
		require.NoError(t, b.Register(context.Background(), entities(t, newCoordinator(svc))))

		broker.send("ezviz/cam1/siren/set", PayloadOn)

		assert.Equal(t, []byte(PayloadOn), broker.get("ezviz/cam1/siren/state"))
	})

	t.Run("presses wait for their platform slot", func(t *testing.T) {
		svc := &mockService{}
		broker := newFakeBroker()
		b := NewBridge(broker, "homeassistant", "ezviz")
		require.NoError(t, b.Register(context.Background(), entities(t, newCoordinator(svc))))

		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, b.slots[entity.PlatformButton].Acquire(ctx, 1))
		cancel()

		buttons, err := button.Setup(newCoordinator(svc))
		require.NoError(t, err)
		b.run(ctx, buttons[0], buttons[0].Press)

		svc.AssertNotCalled(t, "PTZControl", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBridge_PublishStates(t *testing.T) {
	c := newCoordinator(&mockService{})
	broker := newFakeBroker()
	b := NewBridge(broker, "homeassistant", "ezviz")
	require.NoError(t, b.Register(context.Background(), entities(t, c)))

	b.PublishStates()
	assert.Equal(t, []byte("80"), broker.get("ezviz/cam1/battery_level/state"))
	assert.Equal(t, []byte(PayloadOff), broker.get("ezviz/cam1/siren/state"))

	c.set(coordinator.NewSnapshot().Set("cam1", coordinator.Attributes{"battery_level": 55.5}))
	b.PublishStates()
	assert.Equal(t, []byte("55.5"), broker.get("ezviz/cam1/battery_level/state"))
	assert.Equal(t, []byte(PayloadNone), broker.get("ezviz/cam1/Seconds_Last_Trigger/state"))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, []byte("None"), formatValue(nil))
	assert.Equal(t, []byte("10.0.0.2"), formatValue("10.0.0.2"))
	assert.Equal(t, []byte("3"), formatValue(3))
	assert.Equal(t, []byte("0.5"), formatValue(0.5))
	assert.Equal(t, []byte(`{"a":"1"}`), formatValue(map[string]string{"a": "1"}))
}
