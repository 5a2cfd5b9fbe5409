package leosim

import (
	"fmt"
	"sort"
	"strings"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// SatelliteConfig is one [[satellite]] table of a scenario.
type SatelliteConfig struct {
	SatelliteID  int     `mapstructure:"satelliteId"`
	Altitude     float64 `mapstructure:"altitude"`     // km above the surface
	Inclination  float64 `mapstructure:"inclination"`  // deg
	RAAN         float64 `mapstructure:"raan"`         // deg
	ArgPerigee   float64 `mapstructure:"argPerigee"`   // deg
	InitialAngle float64 `mapstructure:"initialAngle"` // deg, mean anomaly at epoch
	Eccentricity float64 `mapstructure:"eccentricity"`
	MaxISLRange  float64 `mapstructure:"maxISLRange"` // km
}

// GroundStationConfig is one [[groundstation]] table of a scenario.
type GroundStationConfig struct {
	Address      int     `mapstructure:"address"`
	Latitude     float64 `mapstructure:"latitude"`  // deg
	Longitude    float64 `mapstructure:"longitude"` // deg
	Altitude     float64 `mapstructure:"altitude"`  // km
	MaxRange     float64 `mapstructure:"maxRange"`  // km
	SendInterval float64 `mapstructure:"sendInterval"` // s
	PacketSize   int     `mapstructure:"packetSize"`   // bytes
	Role         string  `mapstructure:"role"`
	Peer         int     `mapstructure:"peer"`
}

// ISLConfig is one [[isl]] edge of the static inter-satellite topology.
type ISLConfig struct {
	From     int     `mapstructure:"from"`
	To       int     `mapstructure:"to"`
	Datarate float64 `mapstructure:"datarate"` // bit/s, defaults to 10 Gb/s
}

// Scenario is a fully parsed simulation description.
type Scenario struct {
	Name         string
	SimTimeLimit float64
	Seed         int64
	Epoch        time.Time // zero when unset
	HasEpoch     bool

	Satellites     []SatelliteConfig
	GroundStations []GroundStationConfig
	ISLs           []ISLConfig

	JitterStdDev     float64
	RequireElevation bool
}

// strictDecode rejects keys the config structs do not know about, so a typo
// in a scenario fails the load instead of silently defaulting.
func strictDecode(dc *mapstructure.DecoderConfig) { dc.ErrorUnused = true }

// LoadScenario reads `<name>.toml` from the working directory.
func LoadScenario(name string) (*Scenario, error) {
	v := viper.New()
	v.SetConfigName(name)
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("scenario %s: %s", name, err)
	}
	// [general] and [links] are read key by key below; any other key under
	// those tables is rejected like an unused key in the array tables.
	known := map[string]bool{
		"general.simtimelimit": true, "general.seed": true, "general.epoch": true,
		"links.jitterstddev": true, "links.requireelevation": true,
	}
	for _, key := range v.AllKeys() {
		table, _, nested := strings.Cut(key, ".")
		if nested && (table == "general" || table == "links") && !known[key] {
			return nil, fmt.Errorf("scenario %s: unknown key %q", name, key)
		}
	}
	sc := &Scenario{Name: name}
	sc.SimTimeLimit = v.GetFloat64("general.simTimeLimit")
	sc.Seed = v.GetInt64("general.seed")
	if epochStr := v.GetString("general.epoch"); epochStr != "" {
		epoch, err := time.Parse(time.RFC3339, epochStr)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: bad epoch %q: %s", name, epochStr, err)
		}
		sc.Epoch = epoch
		sc.HasEpoch = true
	}
	if err := v.UnmarshalKey("satellite", &sc.Satellites, strictDecode); err != nil {
		return nil, fmt.Errorf("scenario %s: satellite: %s", name, err)
	}
	if err := v.UnmarshalKey("groundstation", &sc.GroundStations, strictDecode); err != nil {
		return nil, fmt.Errorf("scenario %s: groundstation: %s", name, err)
	}
	if err := v.UnmarshalKey("isl", &sc.ISLs, strictDecode); err != nil {
		return nil, fmt.Errorf("scenario %s: isl: %s", name, err)
	}
	sc.JitterStdDev = v.GetFloat64("links.jitterStdDev")
	sc.RequireElevation = v.GetBool("links.requireElevation")
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Validate checks the scenario invariants. Any violation is fatal at startup.
func (sc *Scenario) Validate() error {
	if sc.SimTimeLimit <= 0 {
		return fmt.Errorf("scenario %s: simTimeLimit must be positive", sc.Name)
	}
	if len(sc.Satellites) == 0 {
		return fmt.Errorf("scenario %s: no satellites", sc.Name)
	}
	addrs := make(map[int]string)
	for _, sat := range sc.Satellites {
		if sat.SatelliteID < 1 {
			return fmt.Errorf("scenario %s: satelliteId %d must be >= 1", sc.Name, sat.SatelliteID)
		}
		if prev, taken := addrs[sat.SatelliteID]; taken {
			return fmt.Errorf("scenario %s: satelliteId %d already used by %s", sc.Name, sat.SatelliteID, prev)
		}
		addrs[sat.SatelliteID] = "satellite"
		if sat.Altitude <= 0 {
			return fmt.Errorf("scenario %s: satellite %d: altitude must be positive", sc.Name, sat.SatelliteID)
		}
		if sat.Eccentricity < 0 || sat.Eccentricity >= 1 {
			return fmt.Errorf("scenario %s: satellite %d: eccentricity %f outside [0,1)", sc.Name, sat.SatelliteID, sat.Eccentricity)
		}
		if sat.MaxISLRange <= 0 {
			return fmt.Errorf("scenario %s: satellite %d: maxISLRange must be positive", sc.Name, sat.SatelliteID)
		}
	}
	hubs := 0
	leaves := 0
	for _, gs := range sc.GroundStations {
		if gs.Address < 1 {
			return fmt.Errorf("scenario %s: ground station address %d must be >= 1", sc.Name, gs.Address)
		}
		if prev, taken := addrs[gs.Address]; taken {
			return fmt.Errorf("scenario %s: address %d already used by %s", sc.Name, gs.Address, prev)
		}
		addrs[gs.Address] = "ground station"
		if gs.Latitude < -90 || gs.Latitude > 90 {
			return fmt.Errorf("scenario %s: ground station %d: latitude %f outside [-90,90]", sc.Name, gs.Address, gs.Latitude)
		}
		if gs.Longitude < -180 || gs.Longitude > 360 {
			return fmt.Errorf("scenario %s: ground station %d: longitude %f out of range", sc.Name, gs.Address, gs.Longitude)
		}
		if gs.MaxRange <= 0 {
			return fmt.Errorf("scenario %s: ground station %d: maxRange must be positive", sc.Name, gs.Address)
		}
		switch Role(gs.Role) {
		case RoleHub:
			hubs++
		case RoleLeaf:
			leaves++
		case RoleNone:
			if gs.Peer != 0 {
				if _, known := addrs[gs.Peer]; !known && !sc.gsAddressListed(gs.Peer) {
					return fmt.Errorf("scenario %s: ground station %d: peer %d unknown", sc.Name, gs.Address, gs.Peer)
				}
			}
		default:
			return fmt.Errorf("scenario %s: ground station %d: unknown role %q", sc.Name, gs.Address, gs.Role)
		}
		if gs.SendInterval < 0 || gs.PacketSize < 0 {
			return fmt.Errorf("scenario %s: ground station %d: negative traffic parameters", sc.Name, gs.Address)
		}
		if (gs.SendInterval > 0) != (gs.PacketSize > 0) {
			return fmt.Errorf("scenario %s: ground station %d: sendInterval and packetSize must be set together", sc.Name, gs.Address)
		}
	}
	if hubs > 1 {
		return fmt.Errorf("scenario %s: more than one hub station", sc.Name)
	}
	if leaves > 0 && hubs == 0 {
		return fmt.Errorf("scenario %s: leaf stations configured without a hub", sc.Name)
	}
	for _, isl := range sc.ISLs {
		if addrs[isl.From] != "satellite" || addrs[isl.To] != "satellite" {
			return fmt.Errorf("scenario %s: ISL %d-%d references a nonexistent satellite", sc.Name, isl.From, isl.To)
		}
		if isl.From == isl.To {
			return fmt.Errorf("scenario %s: ISL %d-%d is a self loop", sc.Name, isl.From, isl.To)
		}
		if isl.Datarate < 0 {
			return fmt.Errorf("scenario %s: ISL %d-%d: negative datarate", sc.Name, isl.From, isl.To)
		}
	}
	if sc.JitterStdDev < 0 {
		return fmt.Errorf("scenario %s: jitterStdDev must not be negative", sc.Name)
	}
	return nil
}

func (sc *Scenario) gsAddressListed(addr int) bool {
	for _, gs := range sc.GroundStations {
		if gs.Address == addr {
			return true
		}
	}
	return false
}

// Build constructs the simulation: nodes, static ISL channels and the initial
// timers. Satellite topology timers land at t=1s, ground station handover
// timers at t=1s (after the satellites, matching insertion order), traffic
// timers at t=sendInterval.
func (sc *Scenario) Build(logger kitlog.Logger) (*Sim, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	sim := NewSim(sc.SimTimeLimit, sc.Seed, logger)
	if sc.HasEpoch {
		sim.SetEpochGST(GSTAtEpoch(sc.Epoch))
	}
	sim.EnableJitter(sc.JitterStdDev)
	sim.RequireElevation(sc.RequireElevation)

	sats := make([]SatelliteConfig, len(sc.Satellites))
	copy(sats, sc.Satellites)
	sort.Slice(sats, func(i, j int) bool { return sats[i].SatelliteID < sats[j].SatelliteID })
	for _, cfg := range sats {
		orbit := OrbitParams{
			SemiMajorAxis: EarthRadius + cfg.Altitude,
			Eccentricity:  cfg.Eccentricity,
			Inclination:   cfg.Inclination,
			RAAN:          cfg.RAAN,
			ArgPerigee:    cfg.ArgPerigee,
			MeanAnomaly0:  cfg.InitialAngle,
		}
		sim.AddSatellite(NewSatellite(Address(cfg.SatelliteID), orbit, cfg.MaxISLRange, logger))
	}

	// The static ISL mesh is built once; topology ticks only modulate it.
	// Construction-time delay is pure propagation; the per-hop processing
	// allowance appears with the first topology refresh.
	for _, isl := range sc.ISLs {
		from := sim.Node(Address(isl.From)).(*Satellite)
		to := sim.Node(Address(isl.To)).(*Satellite)
		datarate := isl.Datarate
		if datarate == 0 {
			datarate = DefaultISLDatarate
		}
		d := Dist(from.Position(), to.Position())
		from.addISLGate(to.addr, &Link{Datarate: datarate, Delay: d / LightSpeed, jitter: sim.jitter})
		to.addISLGate(from.addr, &Link{Datarate: datarate, Delay: d / LightSpeed, jitter: sim.jitter})
	}

	for _, cfg := range sc.GroundStations {
		gs := NewGroundStation(Address(cfg.Address), cfg.Latitude, cfg.Longitude, cfg.Altitude, cfg.MaxRange, logger)
		gs.SetTraffic(cfg.SendInterval, cfg.PacketSize, Role(cfg.Role), Address(cfg.Peer))
		sim.AddGroundStation(gs)
	}

	for _, sat := range sim.Satellites() {
		sat.topoTimer = sim.Schedule(TopologyInterval, EvTopologyTick, sat.addr, nil)
	}
	for _, gs := range sim.GroundStations() {
		gs.handoverTimer = sim.Schedule(HandoverInterval, EvHandoverTick, gs.addr, nil)
		if gs.sendInterval > 0 {
			gs.trafficTimer = sim.Schedule(gs.sendInterval, EvTrafficTick, gs.addr, nil)
		}
	}
	return sim, nil
}
