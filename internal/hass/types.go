package hass

import (
	"github.com/bilbercode/ezviz-bridge/internal/mqtt"
)

const (
	PayloadPress = "PRESS"
	PayloadOn    = "ON"
	PayloadOff   = "OFF"
	PayloadNone  = "None"

	manufacturer = "EZVIZ"
	originName   = "ezviz-bridge"
)

// Broker is the part of the MQTT client the bridge needs.
type Broker interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler mqtt.MessageHandler) error
}

// Discovery is a Home Assistant MQTT discovery config payload.
type Discovery struct {
	UniqueID          string `json:"unique_id"`
	Name              string `json:"name"`
	ObjectID          string `json:"object_id,omitempty"`
	Icon              string `json:"icon,omitempty"`
	DeviceClass       string `json:"device_class,omitempty"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	EnabledByDefault  *bool  `json:"enabled_by_default,omitempty"`
	StateTopic        string `json:"state_topic,omitempty"`
	CommandTopic      string `json:"command_topic,omitempty"`
	AvailabilityTopic string `json:"availability_topic"`

	// button
	PayloadPress string `json:"payload_press,omitempty"`

	// siren
	PayloadOn  string `json:"payload_on,omitempty"`
	PayloadOff string `json:"payload_off,omitempty"`
	StateOn    string `json:"state_on,omitempty"`
	StateOff   string `json:"state_off,omitempty"`

	Device Device `json:"device"`
	Origin Origin `json:"origin"`
}

type Device struct {
	Identifiers     []string `json:"identifiers"`
	Name            string   `json:"name,omitempty"`
	Manufacturer    string   `json:"manufacturer"`
	Model           string   `json:"model,omitempty"`
	SoftwareVersion string   `json:"sw_version,omitempty"`
}

type Origin struct {
	Name string `json:"name"`
}
