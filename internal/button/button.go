package button

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/bilbercode/ezviz-bridge/internal/entity"
	"github.com/bilbercode/ezviz-bridge/internal/ezviz"
)

const enabled = "1"

type Button struct {
	entity.Base
	description Description
	uniqueID    string
}

// Setup creates a button for every built in description a camera reports as supported.
func Setup(c entity.Coordinator) ([]*Button, error) {
	return SetupWith(c, Descriptions)
}

// SetupWith creates one button per (camera, description) whose capability flag is "1".
// Missing or "0" flags create nothing.
func SetupWith(c entity.Coordinator, descriptions []Description) ([]*Button, error) {
	data := c.Data()
	var buttons []*Button
	for _, serial := range data.Serials() {
		attributes, _ := data.Device(serial)
		ext, err := entity.SupportExt(serial, attributes)
		if err != nil {
			return nil, err
		}
		for _, description := range descriptions {
			if ext[description.SupportedExt] != enabled {
				continue
			}
			buttons = append(buttons, New(c, serial, description))
		}
	}
	return buttons, nil
}

func New(c entity.Coordinator, serial string, description Description) *Button {
	return &Button{
		Base:        entity.NewBase(c, serial),
		description: description,
		uniqueID:    serial + "_" + description.Name,
	}
}

func (b *Button) UniqueID() string {
	return b.uniqueID
}

func (b *Button) Name() string {
	return b.description.Name
}

func (b *Button) Key() string {
	return b.description.Key
}

func (b *Button) Icon() string {
	return b.description.Icon
}

func (b *Button) Platform() entity.Platform {
	return entity.PlatformButton
}

// Press sends START then STOP. A failed START aborts before STOP, and a failed STOP can leave
// the camera moving: the two calls are not atomic and are not retried.
func (b *Button) Press(ctx context.Context) error {
	client := b.Coordinator().Client()
	for _, phase := range []string{ezviz.PhaseStart, ezviz.PhaseStop} {
		err := b.description.Method(ctx, client, b.Serial(), phase)
		if err == nil {
			continue
		}

		log.WithError(err).WithField("serial", b.Serial()).Debugf("%s failed during %s", b.description.Key, phase)

		var httpErr *ezviz.HTTPError
		var apiErr *ezviz.APIError
		if errors.As(err, &httpErr) || errors.As(err, &apiErr) {
			return &entity.ActionError{
				Message: "Cannot perform PTZ action on",
				Entity:  b.FullName(b.Name()),
				Err:     err,
			}
		}
		return err
	}
	return nil
}
