package platform

import (
	log "github.com/sirupsen/logrus"

	"github.com/bilbercode/ezviz-bridge/internal/button"
	"github.com/bilbercode/ezviz-bridge/internal/entity"
	"github.com/bilbercode/ezviz-bridge/internal/sensor"
	"github.com/bilbercode/ezviz-bridge/internal/siren"
	"github.com/bilbercode/ezviz-bridge/internal/state"
)

// Entities maps the coordinator's current snapshot to entities. It runs once at startup,
// capabilities appearing or disappearing later do not add or remove entities.
// A platform that fails to set up is logged and skipped, the others are still created.
func Entities(c entity.Coordinator, store state.Store) []entity.Entity {
	var entities []entity.Entity

	buttons, err := button.Setup(c)
	if err != nil {
		log.WithError(err).WithField("platform", entity.PlatformButton).Error("failed to set up platform")
	}
	for _, b := range buttons {
		entities = append(entities, b)
	}

	sensors := sensor.Setup(c)
	for _, s := range sensors {
		entities = append(entities, s)
	}

	sirens, err := siren.Setup(c, store)
	if err != nil {
		log.WithError(err).WithField("platform", entity.PlatformSiren).Error("failed to set up platform")
	}
	for _, s := range sirens {
		entities = append(entities, s)
	}

	log.WithFields(log.Fields{
		"devices": c.Data().Len(),
		"buttons": len(buttons),
		"sensors": len(sensors),
		"sirens":  len(sirens),
	}).Info("entities created")
	return entities
}
