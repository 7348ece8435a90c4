package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilbercode/ezviz-bridge/internal/coordinator"
	"github.com/bilbercode/ezviz-bridge/internal/entity"
	"github.com/bilbercode/ezviz-bridge/internal/ezviz"
)

type fakeCoordinator struct {
	data *coordinator.Snapshot
}

func (f *fakeCoordinator) Data() *coordinator.Snapshot { return f.data }
func (f *fakeCoordinator) Client() ezviz.Service { return nil }

func TestEntities(t *testing.T) {
	t.Run("combines every platform", func(t *testing.T) {
		c := &fakeCoordinator{data: coordinator.NewSnapshot().
			Set("cam1", coordinator.Attributes{
				"name":          "Door",
				"supportExt":    map[string]string{ezviz.SupportPtz: "1", ezviz.SupportActiveDefense: "1"},
				"battery_level": 80,
				"local_ip":      "10.0.0.2",
			}).
			Set("cam2", coordinator.Attributes{
				"name":       "Garden",
				"supportExt": map[string]string{ezviz.SupportPtz: "0"},
				"wan_ip":     nil,
			})}

		entities := Entities(c, nil)

		count := map[entity.Platform]int{}
		ids := map[string]bool{}
		for _, e := range entities {
			count[e.Platform()]++
			assert.False(t, ids[e.UniqueID()], "duplicate unique id %s", e.UniqueID())
			ids[e.UniqueID()] = true
		}
		assert.Equal(t, 4, count[entity.PlatformButton])
		assert.Equal(t, 2, count[entity.PlatformSensor])
		assert.Equal(t, 1, count[entity.PlatformSiren])
	})

	t.Run("a malformed snapshot only skips the platforms that need supportExt", func(t *testing.T) {
		c := &fakeCoordinator{data: coordinator.NewSnapshot().
			Set("cam1", coordinator.Attributes{"name": "Door", "local_ip": "10.0.0.2"})}

		entities := Entities(c, nil)

		require.Len(t, entities, 1)
		assert.Equal(t, entity.PlatformSensor, entities[0].Platform())
		assert.Equal(t, "cam1_Door.local_ip", entities[0].UniqueID())
	})
}
