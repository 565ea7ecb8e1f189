// Package grid provides the power-grid leaf entities: generators,
// transmission lines, consumption districts, and consumers.
package grid

// GeneratorID is a unique identifier for a power plant.
type GeneratorID uint64

// LineID is a unique identifier for a transmission line.
type LineID uint64

// DistrictID is a unique identifier for a consumption district.
type DistrictID uint64

// ConsumerID is a unique identifier for a power consumer.
type ConsumerID uint64

// NetworkID identifies one connected component of the grid. Networks are
// ephemeral: ids are reassigned on every topology rebuild and carry no
// meaning across rebuilds. Zero means "not in any network".
type NetworkID uint64

// Faction identifies the owning side of a piece of infrastructure.
type Faction uint8

// FactionNone marks unowned (neutral) infrastructure.
const FactionNone Faction = 0

// Invalid is the sentinel returned by constructors that fail (for example
// when a resource-deduction callback vetoes construction). It never
// collides with a live entity: id allocation starts at 1.
const (
	InvalidGenerator GeneratorID = 0
	InvalidLine      LineID      = 0
	InvalidDistrict  DistrictID  = 0
	InvalidConsumer  ConsumerID  = 0
)

// Position is a world-space location, used for line lengths and placement.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
