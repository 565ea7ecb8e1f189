package grid

// ConsumerKind categorizes what a consumer does with its power.
type ConsumerKind uint8

const (
	ConsumerFactory ConsumerKind = iota
	ConsumerInfrastructure
	ConsumerDefense
	ConsumerResearch
)

// String returns a display name for a consumer kind.
func (k ConsumerKind) String() string {
	switch k {
	case ConsumerFactory:
		return "factory"
	case ConsumerInfrastructure:
		return "infrastructure"
	case ConsumerDefense:
		return "defense"
	case ConsumerResearch:
		return "research"
	default:
		return "unknown"
	}
}

// DefaultRequirement returns the base power requirement for a consumer
// kind, used when no per-instance override is given.
func (k ConsumerKind) DefaultRequirement() float64 {
	switch k {
	case ConsumerFactory:
		return 20
	case ConsumerInfrastructure:
		return 10
	case ConsumerDefense:
		return 15
	case ConsumerResearch:
		return 12
	default:
		return 10
	}
}

// Consumer is a power sink: a building or system that needs grid power to
// run at full production. A consumer may be tied to a district (reads that
// district's delivered power) or float at faction level (reads the
// faction-wide deficit flag).
type Consumer struct {
	ID      ConsumerID   `json:"id"`
	Faction Faction      `json:"faction"`
	Kind    ConsumerKind `json:"kind"`

	PowerRequirement float64 `json:"power_requirement"`

	Powered    bool `json:"powered"`
	InBlackout bool `json:"in_blackout"`
	Paused     bool `json:"paused"`

	ProductionMultiplier float64 `json:"production_multiplier"`

	// DistrictID is InvalidDistrict for faction-level consumers.
	DistrictID DistrictID `json:"district_id,omitempty"`
}

// NewConsumer creates a powered consumer. A non-positive requirement
// selects the kind default.
func NewConsumer(id ConsumerID, faction Faction, kind ConsumerKind, requirement float64, district DistrictID) *Consumer {
	if requirement <= 0 {
		requirement = kind.DefaultRequirement()
	}
	return &Consumer{
		ID:                   id,
		Faction:              faction,
		Kind:                 kind,
		PowerRequirement:     requirement,
		Powered:              true,
		ProductionMultiplier: 1.0,
		DistrictID:           district,
	}
}
