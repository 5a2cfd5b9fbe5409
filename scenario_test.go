package leosim

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleScenario = `
[general]
simTimeLimit = 5.0
seed = 7
epoch = "2026-03-20T00:00:00Z"

[links]
jitterStdDev = 0.0
requireElevation = true

[[satellite]]
satelliteId = 1
altitude = 550.0
inclination = 53.0
raan = 0.0
argPerigee = 0.0
initialAngle = 0.0
eccentricity = 0.0
maxISLRange = 1000.0

[[satellite]]
satelliteId = 2
altitude = 550.0
inclination = 53.0
raan = 0.0
argPerigee = 0.0
initialAngle = 5.0
eccentricity = 0.0
maxISLRange = 1000.0

[[isl]]
from = 1
to = 2

[[groundstation]]
address = 99
latitude = 40.0
longitude = -105.0
altitude = 1.6
maxRange = 2000.0
sendInterval = 1.0
packetSize = 1024
role = "hub"

[[groundstation]]
address = 101
latitude = -35.4
longitude = 149.0
altitude = 0.7
maxRange = 2000.0
sendInterval = 1.0
packetSize = 1024
role = "leaf"
`

func inTempDir(t *testing.T, files map[string]string) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadScenario(t *testing.T) {
	inTempDir(t, map[string]string{"sample.toml": sampleScenario})
	sc, err := LoadScenario("sample")
	require.NoError(t, err)

	assert.Equal(t, 5.0, sc.SimTimeLimit)
	assert.EqualValues(t, 7, sc.Seed)
	assert.True(t, sc.HasEpoch)
	assert.Equal(t, time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC), sc.Epoch.UTC())
	require.Len(t, sc.Satellites, 2)
	assert.Equal(t, 1, sc.Satellites[0].SatelliteID)
	assert.Equal(t, 550.0, sc.Satellites[0].Altitude)
	require.Len(t, sc.ISLs, 1)
	require.Len(t, sc.GroundStations, 2)
	assert.Equal(t, "hub", sc.GroundStations[0].Role)
	assert.True(t, sc.RequireElevation)
	assert.Zero(t, sc.JitterStdDev)

	sim, err := sc.Build(kitlog.NewNopLogger())
	require.NoError(t, err)
	assert.Len(t, sim.Satellites(), 2)
	assert.Len(t, sim.GroundStations(), 2)
	assert.NotZero(t, sim.GST0(), "epoch must seed the sidereal angle")
}

func TestLoadScenarioUnknownKey(t *testing.T) {
	broken := sampleScenario + "\n[[satellite]]\nsatelliteId = 3\naltitude = 550.0\nmaxISLRange = 1000.0\nfooBar = 12\n"
	inTempDir(t, map[string]string{"broken.toml": broken})
	_, err := LoadScenario("broken")
	require.Error(t, err, "unknown keys are scenario errors")
}

func TestLoadScenarioMissingFile(t *testing.T) {
	inTempDir(t, nil)
	_, err := LoadScenario("nope")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Scenario {
		return &Scenario{
			Name:         "v",
			SimTimeLimit: 10,
			Satellites: []SatelliteConfig{
				{SatelliteID: 1, Altitude: 550, MaxISLRange: 1000},
				{SatelliteID: 2, Altitude: 550, MaxISLRange: 1000},
			},
		}
	}

	t.Run("ok", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})
	t.Run("no horizon", func(t *testing.T) {
		sc := base()
		sc.SimTimeLimit = 0
		assert.Error(t, sc.Validate())
	})
	t.Run("duplicate id", func(t *testing.T) {
		sc := base()
		sc.Satellites[1].SatelliteID = 1
		assert.Error(t, sc.Validate())
	})
	t.Run("eccentricity out of range", func(t *testing.T) {
		sc := base()
		sc.Satellites[0].Eccentricity = 1.0
		assert.Error(t, sc.Validate())
	})
	t.Run("isl references unknown satellite", func(t *testing.T) {
		sc := base()
		sc.ISLs = []ISLConfig{{From: 1, To: 9}}
		assert.Error(t, sc.Validate())
	})
	t.Run("address collides with satellite id", func(t *testing.T) {
		sc := base()
		sc.GroundStations = []GroundStationConfig{{Address: 1, MaxRange: 1000}}
		assert.Error(t, sc.Validate())
	})
	t.Run("leaves without hub", func(t *testing.T) {
		sc := base()
		sc.GroundStations = []GroundStationConfig{{Address: 101, MaxRange: 1000, Role: "leaf"}}
		assert.Error(t, sc.Validate())
	})
	t.Run("two hubs", func(t *testing.T) {
		sc := base()
		sc.GroundStations = []GroundStationConfig{
			{Address: 99, MaxRange: 1000, Role: "hub"},
			{Address: 100, MaxRange: 1000, Role: "hub"},
		}
		assert.Error(t, sc.Validate())
	})
	t.Run("unknown role", func(t *testing.T) {
		sc := base()
		sc.GroundStations = []GroundStationConfig{{Address: 101, MaxRange: 1000, Role: "relay"}}
		assert.Error(t, sc.Validate())
	})
	t.Run("unknown peer", func(t *testing.T) {
		sc := base()
		sc.GroundStations = []GroundStationConfig{{Address: 101, MaxRange: 1000, Peer: 999}}
		assert.Error(t, sc.Validate())
	})
	t.Run("negative jitter", func(t *testing.T) {
		sc := base()
		sc.JitterStdDev = -1
		assert.Error(t, sc.Validate())
	})
	t.Run("traffic keys must pair", func(t *testing.T) {
		sc := base()
		sc.GroundStations = []GroundStationConfig{{Address: 101, MaxRange: 1000, SendInterval: 1}}
		assert.Error(t, sc.Validate())
	})
}
