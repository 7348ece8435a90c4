package hass

import (
	"fmt"

	"github.com/bilbercode/ezviz-bridge/internal/entity"
)

// Topics builds the discovery and entity topics for one bridge.
type Topics struct {
	DiscoveryPrefix string
	Base            string
}

func (t Topics) Availability() string {
	return t.Base + "/status"
}

func (t Topics) Discovery(platform entity.Platform, serial, key string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", t.DiscoveryPrefix, platform, serial, key)
}

func (t Topics) State(serial, key string) string {
	return fmt.Sprintf("%s/%s/%s/state", t.Base, serial, key)
}

func (t Topics) Command(serial, key string) string {
	return fmt.Sprintf("%s/%s/%s/set", t.Base, serial, key)
}
