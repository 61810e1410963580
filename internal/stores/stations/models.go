package stations

// CarrierDockingAccess enumerates who may dock at a fleet carrier
// (spec.md §3 "Stations store").
type CarrierDockingAccess string

const (
	CarrierDockingAll              CarrierDockingAccess = "all"
	CarrierDockingSquadronFriends  CarrierDockingAccess = "squadronFriends"
	CarrierDockingNone             CarrierDockingAccess = "none"
)

// Placement is the subset of station fields an approach-settlement or
// journal event may update without touching economies/services.
type Placement struct {
	MarketID      int64
	StationName   string
	BodyID        *int64
	BodyName      *string
	Latitude      *float64
	Longitude     *float64
	SystemAddress int64
	SystemName    string
	SystemX       float64
	SystemY       float64
	SystemZ       float64
}

// EconomiesUpdate is the subset of station fields a commodity event
// carries: name, type, and primary/secondary economy, plus the
// prohibited list when present (spec.md §4.3 "Commodity event").
type EconomiesUpdate struct {
	MarketID         int64
	StationName      string
	StationType      string
	PrimaryEconomy   string
	SecondaryEconomy string
	Prohibited       *string
	UpdatedAt        string
}

// Record is one row of the stations store.
type Record struct {
	MarketID             int64
	StationName          string
	DistanceToArrival    *float64
	StationType          string
	Allegiance           string
	Government           string
	ControllingFaction   string
	PrimaryEconomy       string
	SecondaryEconomy     string
	MaxLandingPadSize    string
	SystemAddress        int64
	SystemName           string
	SystemX              float64
	SystemY              float64
	SystemZ              float64
	BodyID               *int64
	BodyName             *string
	Latitude             *float64
	Longitude            *float64
	Prohibited           *string
	CarrierDockingAccess *string
	UpdatedAt            string
}

// IsFleetCarrier reports whether the station's type marks it as a player
// fleet carrier. C9's retention sweep selects fleet carriers by type in
// SQL (MarketIDsOfType) rather than calling this.
func IsFleetCarrier(stationType string) bool {
	return stationType == "FleetCarrier"
}
