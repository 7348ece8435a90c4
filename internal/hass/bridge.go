package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/bilbercode/ezviz-bridge/internal/button"
	"github.com/bilbercode/ezviz-bridge/internal/coordinator"
	"github.com/bilbercode/ezviz-bridge/internal/entity"
	"github.com/bilbercode/ezviz-bridge/internal/mqtt"
	"github.com/bilbercode/ezviz-bridge/internal/sensor"
	"github.com/bilbercode/ezviz-bridge/internal/siren"
)

// parallelUpdates bounds concurrent actions per platform.
const parallelUpdates = 1

var (
	actionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "action_failures",
		Namespace: "ezviz_bridge",
		Help:      "number of failed entity actions",
	}, []string{"platform", "entity"})
	actions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "actions",
		Namespace: "ezviz_bridge",
		Help:      "number of entity actions requested from home assistant",
	}, []string{"platform"})
)

type deviceEntity interface {
	entity.Entity
	CameraName() string
	Data() coordinator.Attributes
}

type Bridge struct {
	broker Broker
	topics Topics
	slots  map[entity.Platform]*semaphore.Weighted

	mu      sync.Mutex
	sensors []*sensor.Sensor
	sirens  []*siren.Siren
}

func NewBridge(broker Broker, discoveryPrefix, baseTopic string) *Bridge {
	return &Bridge{
		broker: broker,
		topics: Topics{DiscoveryPrefix: discoveryPrefix, Base: baseTopic},
		slots: map[entity.Platform]*semaphore.Weighted{
			entity.PlatformButton: semaphore.NewWeighted(parallelUpdates),
			entity.PlatformSiren:  semaphore.NewWeighted(parallelUpdates),
		},
	}
}

func (b *Bridge) Topics() Topics {
	return b.topics
}

// Register announces every entity to Home Assistant and subscribes to the command topics.
// ctx bounds the actions triggered by later commands.
func (b *Bridge) Register(ctx context.Context, entities []entity.Entity) error {
	for _, e := range entities {
		de, ok := e.(deviceEntity)
		if !ok {
			return fmt.Errorf("entity %s does not carry device information", e.UniqueID())
		}

		discovery := b.discovery(de)
		switch v := e.(type) {
		case *button.Button:
			discovery.Icon = v.Icon()
			discovery.CommandTopic = b.topics.Command(v.Serial(), v.Key())
			discovery.PayloadPress = PayloadPress
			err := b.broker.Subscribe(discovery.CommandTopic, b.handlePress(ctx, v))
			if err != nil {
				return fmt.Errorf("failed to subscribe to commands for %s: %w", v.UniqueID(), err)
			}
		case *sensor.Sensor:
			d := v.Description()
			discovery.StateTopic = b.topics.State(v.Serial(), v.Key())
			discovery.DeviceClass = d.DeviceClass
			discovery.UnitOfMeasurement = d.Unit
			if !d.EnabledByDefault {
				disabled := false
				discovery.EnabledByDefault = &disabled
			}
			b.mu.Lock()
			b.sensors = append(b.sensors, v)
			b.mu.Unlock()
		case *siren.Siren:
			discovery.StateTopic = b.topics.State(v.Serial(), v.Key())
			discovery.CommandTopic = b.topics.Command(v.Serial(), v.Key())
			discovery.PayloadOn, discovery.PayloadOff = PayloadOn, PayloadOff
			discovery.StateOn, discovery.StateOff = PayloadOn, PayloadOff
			err := b.broker.Subscribe(discovery.CommandTopic, b.handleSiren(ctx, v))
			if err != nil {
				return fmt.Errorf("failed to subscribe to commands for %s: %w", v.UniqueID(), err)
			}
			v.OnChange(b.publishSiren)
			b.mu.Lock()
			b.sirens = append(b.sirens, v)
			b.mu.Unlock()
		default:
			return fmt.Errorf("unsupported entity %T", e)
		}

		payload, err := json.Marshal(discovery)
		if err != nil {
			return fmt.Errorf("failed to encode discovery for %s: %w", e.UniqueID(), err)
		}
		err = b.broker.Publish(b.topics.Discovery(e.Platform(), e.Serial(), e.Key()), payload, true)
		if err != nil {
			return fmt.Errorf("failed to publish discovery for %s: %w", e.UniqueID(), err)
		}
		log.WithField("entity", e.UniqueID()).Debug("registered entity with home assistant")
	}

	return b.broker.Publish(b.topics.Availability(), []byte(mqtt.PayloadOnline), true)
}

// PublishStates publishes every registered sensor value and siren state.
func (b *Bridge) PublishStates() {
	b.mu.Lock()
	sensors := append([]*sensor.Sensor(nil), b.sensors...)
	sirens := append([]*siren.Siren(nil), b.sirens...)
	b.mu.Unlock()

	for _, s := range sensors {
		err := b.broker.Publish(b.topics.State(s.Serial(), s.Key()), formatValue(s.Value()), true)
		if err != nil {
			log.WithError(err).WithField("entity", s.UniqueID()).Warn("failed to publish sensor state")
		}
	}
	for _, s := range sirens {
		b.publishSiren(s)
	}
}

func (b *Bridge) discovery(e deviceEntity) Discovery {
	device := Device{
		Identifiers:  []string{e.Serial()},
		Name:         e.CameraName(),
		Manufacturer: manufacturer,
	}
	if data := e.Data(); data != nil {
		device.Model, _ = data["device_sub_category"].(string)
		device.SoftwareVersion, _ = data["version"].(string)
	}

	return Discovery{
		UniqueID:          e.UniqueID(),
		Name:              e.Name(),
		ObjectID:          e.Serial() + "_" + e.Key(),
		AvailabilityTopic: b.topics.Availability(),
		Device:            device,
		Origin:            Origin{Name: originName},
	}
}

func (b *Bridge) handlePress(ctx context.Context, btn *button.Button) mqtt.MessageHandler {
	return func(topic string, payload []byte) {
		if string(payload) != PayloadPress {
			log.WithField("topic", topic).Warnf("ignoring unexpected button payload %q", payload)
			return
		}
		b.run(ctx, btn, btn.Press)
	}
}

func (b *Bridge) handleSiren(ctx context.Context, s *siren.Siren) mqtt.MessageHandler {
	return func(topic string, payload []byte) {
		switch string(payload) {
		case PayloadOn:
			b.run(ctx, s, s.TurnOn)
		case PayloadOff:
			b.run(ctx, s, s.TurnOff)
		default:
			log.WithField("topic", topic).Warnf("ignoring unexpected siren payload %q", payload)
		}
	}
}

// run executes an entity action on the calling MQTT goroutine, one at a time per platform.
func (b *Bridge) run(ctx context.Context, e entity.Entity, action func(context.Context) error) {
	slots := b.slots[e.Platform()]
	err := slots.Acquire(ctx, 1)
	if err != nil {
		return
	}
	defer slots.Release(1)

	actions.WithLabelValues(string(e.Platform())).Inc()
	err = action(ctx)
	if err != nil {
		actionFailures.WithLabelValues(string(e.Platform()), e.UniqueID()).Inc()
		log.WithError(err).WithField("entity", e.UniqueID()).Error("entity action failed")
	}
}

func (b *Bridge) publishSiren(s *siren.Siren) {
	payload := PayloadOff
	if s.IsOn() {
		payload = PayloadOn
	}
	err := b.broker.Publish(b.topics.State(s.Serial(), s.Key()), []byte(payload), true)
	if err != nil {
		log.WithError(err).WithField("entity", s.UniqueID()).Warn("failed to publish siren state")
	}
}

func formatValue(v any) []byte {
	switch value := v.(type) {
	case nil:
		return []byte(PayloadNone)
	case string:
		return []byte(value)
	case float64:
		return []byte(strconv.FormatFloat(value, 'f', -1, 64))
	case int, int64, bool:
		return []byte(fmt.Sprint(value))
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return []byte(fmt.Sprint(value))
		}
		return b
	}
}
