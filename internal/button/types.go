package button

import (
	"context"

	"github.com/bilbercode/ezviz-bridge/internal/ezviz"
)

// Action runs one phase of a button press against the cloud.
type Action func(ctx context.Context, client ezviz.Service, serial, phase string) error

type Description struct {
	Key          string
	Name         string
	Icon         string
	SupportedExt string
	Method       Action
}

func ptz(direction string) Action {
	return func(ctx context.Context, client ezviz.Service, serial, phase string) error {
		return client.PTZControl(ctx, direction, serial, phase)
	}
}

var Descriptions = []Description{
	{
		Key:          "ptz_up",
		Name:         "PTZ up",
		Icon:         "mdi:pan",
		Method:       ptz(ezviz.DirectionUp),
		SupportedExt: ezviz.SupportPtz,
	},
	{
		Key:          "ptz_down",
		Name:         "PTZ down",
		Icon:         "mdi:pan",
		Method:       ptz(ezviz.DirectionDown),
		SupportedExt: ezviz.SupportPtz,
	},
	{
		Key:          "ptz_left",
		Name:         "PTZ left",
		Icon:         "mdi:pan",
		Method:       ptz(ezviz.DirectionLeft),
		SupportedExt: ezviz.SupportPtz,
	},
	{
		Key:          "ptz_right",
		Name:         "PTZ right",
		Icon:         "mdi:pan",
		Method:       ptz(ezviz.DirectionRight),
		SupportedExt: ezviz.SupportPtz,
	},
}
