package sensor

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

func TestSetup(t *testing.T) {
	t.Run("creates sensors for present recognised attributes", func(t *testing.T) {
		c := &fakeCoordinator{data: coordinator.NewSnapshot().Set("cam1", coordinator.Attributes{
			"name":          "Door",
			"supportExt":    map[string]string{"1": "1", "2": "0"},
			"battery_level": 80,
		})}

		sensors := Setup(c)
		require.Len(t, sensors, 1)
		assert.Equal(t, "battery_level", sensors[0].Key())
		assert.Equal(t, "cam1_Door.battery_level", sensors[0].UniqueID())
		assert.Equal(t, 80, sensors[0].Value())
		assert.Equal(t, "%", sensors[0].Description().Unit)
		assert.Equal(t, entity.PlatformSensor, sensors[0].Platform())
	})

	t.Run("nil values are skipped", func(t *testing.T) {
		c := &fakeCoordinator{data: coordinator.NewSnapshot().Set("cam1", coordinator.Attributes{
			"battery_level": nil,
			"local_ip":      "10.0.0.2",
		})}

		sensors := Setup(c)
		require.Len(t, sensors, 1)
		assert.Equal(t, "local_ip", sensors[0].Key())
	})

	t.Run("disabled by default sensors are still created", func(t *testing.T) {
		c := &fakeCoordinator{data: coordinator.NewSnapshot().Set("cam1", coordinator.Attributes{
			"Seconds_Last_Trigger": 12,
		})}

		sensors := Setup(c)
		require.Len(t, sensors, 1)
		assert.False(t, sensors[0].Description().EnabledByDefault)
	})

	t.Run("unrecognised attributes are ignored", func(t *testing.T) {
		c := &fakeCoordinator{data: coordinator.NewSnapshot().Set("cam1", coordinator.Attributes{
			"firmware_blob": "x",
		})}

		assert.Empty(t, Setup(c))
	})

	t.Run("every recognised attribute maps one to one", func(t *testing.T) {
		attributes := coordinator.Attributes{}
		for _, d := range Descriptions {
			attributes[d.Key] = "v"
		}
		c := &fakeCoordinator{data: coordinator.NewSnapshot().Set("a", attributes).Set("b", attributes)}

		sensors := Setup(c)
		assert.Len(t, sensors, 2*len(Descriptions))
		assert.Equal(t, "a", sensors[0].Serial())
		assert.Equal(t, "b", sensors[len(Descriptions)].Serial())
	})
}

func TestSensor_Value(t *testing.T) {
	c := &fakeCoordinator{data: coordinator.NewSnapshot().Set("cam1", coordinator.Attributes{"battery_level": 80})}
	sensors := Setup(c)
	require.Len(t, sensors, 1)

	c.data = coordinator.NewSnapshot().Set("cam1", coordinator.Attributes{"battery_level": 42})

	assert.Equal(t, 42, sensors[0].Value())
}
