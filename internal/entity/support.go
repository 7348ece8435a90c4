package entity

import (
	"errors"
	"fmt"

	"github.com/bilbercode/ezviz-bridge/internal/coordinator"
)

const supportExtKey = "supportExt"

var ErrMalformedSnapshot = errors.New("entity: malformed snapshot")

// SupportExt returns the capability flags of a device. Every device in a snapshot must carry them.
// Flags that are not strings are left out, so their capability counts as not enabled.
func SupportExt(serial string, attributes coordinator.Attributes) (map[string]string, error) {
	raw, ok := attributes[supportExtKey]
	if !ok {
		return nil, fmt.Errorf("%w: device %s has no %s", ErrMalformedSnapshot, serial, supportExtKey)
	}

	switch ext := raw.(type) {
	case map[string]string:
		return ext, nil
	case map[string]any:
		out := make(map[string]string, len(ext))
		for code, value := range ext {
			if flag, ok := value.(string); ok {
				out[code] = flag
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: device %s %s is %T", ErrMalformedSnapshot, serial, supportExtKey, raw)
	}
}
