package sensor

import (
	"github.com/bilbercode/ezviz-bridge/internal/entity"
)

type Sensor struct {
	entity.Base
	description Description
	uniqueID    string
}

// Setup creates a sensor for every recognised attribute a camera currently reports a value for.
func Setup(c entity.Coordinator) []*Sensor {
	return SetupWith(c, Descriptions)
}

func SetupWith(c entity.Coordinator, descriptions []Description) []*Sensor {
	data := c.Data()
	var sensors []*Sensor
	for _, serial := range data.Serials() {
		attributes, _ := data.Device(serial)
		for _, description := range descriptions {
			if value, ok := attributes[description.Key]; !ok || value == nil {
				continue
			}
			sensors = append(sensors, New(c, serial, description))
		}
	}
	return sensors
}

func New(c entity.Coordinator, serial string, description Description) *Sensor {
	s := &Sensor{
		Base:        entity.NewBase(c, serial),
		description: description,
	}
	s.uniqueID = serial + "_" + s.CameraName() + "." + description.Key
	return s
}

func (s *Sensor) UniqueID() string {
	return s.uniqueID
}

func (s *Sensor) Name() string {
	return s.description.Name
}

func (s *Sensor) Key() string {
	return s.description.Key
}

func (s *Sensor) Platform() entity.Platform {
	return entity.PlatformSensor
}

func (s *Sensor) Description() Description {
	return s.description
}

// Value is the attribute as held by the coordinator right now.
func (s *Sensor) Value() any {
	return s.Data()[s.description.Key]
}
