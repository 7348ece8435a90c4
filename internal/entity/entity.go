package entity

import (
	"fmt"

	"github.com/bilbercode/ezviz-bridge/internal/coordinator"
	"github.com/bilbercode/ezviz-bridge/internal/ezviz"
)

type Platform string

const (
	PlatformButton Platform = "button"
	PlatformSensor Platform = "sensor"
	PlatformSiren  Platform = "siren"
)

// Coordinator is the part of the polling coordinator entities depend on.
type Coordinator interface {
	Data() *coordinator.Snapshot
	Client() ezviz.Service
}

type Entity interface {
	UniqueID() string
	Name() string
	Key() string
	Serial() string
	Platform() Platform
}

// Base carries what every EZVIZ entity shares: the coordinator it reads from and the camera it
// belongs to.
type Base struct {
	coordinator Coordinator
	serial      string
	cameraName  string
}

func NewBase(c Coordinator, serial string) Base {
	b := Base{coordinator: c, serial: serial}
	if attributes, ok := c.Data().Device(serial); ok {
		if name, ok := attributes["name"].(string); ok {
			b.cameraName = name
		}
	}
	return b
}

func (b *Base) Serial() string {
	return b.serial
}

func (b *Base) CameraName() string {
	return b.cameraName
}

// FullName prefixes name with the camera name, the way the entity is shown to the user.
func (b *Base) FullName(name string) string {
	if b.cameraName == "" {
		return name
	}
	return b.cameraName + " " + name
}

func (b *Base) Coordinator() Coordinator {
	return b.coordinator
}

// Data returns the device attributes from the coordinator's current snapshot.
func (b *Base) Data() coordinator.Attributes {
	attributes, _ := b.coordinator.Data().Device(b.serial)
	return attributes
}

// ActionError is the user facing failure of an entity action. The vendor error is kept as cause.
type ActionError struct {
	Message string
	Entity  string
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s %s", e.Message, e.Entity)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
