// Package cascade classifies district power shortfalls into severity tiers
// and tracks the production penalties they impose. Destroying a generator
// or line propagates to every district it fed.
package cascade

import (
	"log/slog"

	"github.com/ironveil/fluxgrid/internal/grid"
)

// Severity is the blackout tier of one district.
type Severity uint8

const (
	SeverityNone     Severity = iota // ratio ≥ 75%
	SeverityPartial                  // 50–75%
	SeverityFull                     // 25–50%
	SeverityCritical                 // < 25%
)

// String returns a display name for a severity tier.
func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityPartial:
		return "partial"
	case SeverityFull:
		return "full"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Penalty returns the production penalty for a tier. 1.0 halts production
// entirely.
func (s Severity) Penalty() float64 {
	switch s {
	case SeverityPartial:
		return 0.25
	case SeverityFull:
		return 0.75
	case SeverityCritical:
		return 1.0
	default:
		return 0
	}
}

// ratioEpsilon keeps float drift from pushing an exact-boundary ratio into
// the harsher band.
const ratioEpsilon = 1e-9

// Classify maps a power ratio to a severity tier. Severity strictly
// increases as the ratio crosses 75/50/25% downward.
func Classify(ratio float64) Severity {
	switch {
	case ratio+ratioEpsilon >= 0.75:
		return SeverityNone
	case ratio+ratioEpsilon >= 0.50:
		return SeverityPartial
	case ratio+ratioEpsilon >= 0.25:
		return SeverityFull
	default:
		return SeverityCritical
	}
}

// Record is the live cascade state of one district. Records exist only
// while the district's ratio sits below 75%.
type Record struct {
	District  grid.DistrictID `json:"district"`
	Severity  Severity        `json:"severity"`
	Penalty   float64         `json:"penalty"`
	StartedAt float64         `json:"started_at"` // sim seconds
}

// ChangeFunc receives cascade transitions: a new or re-tiered record, or a
// resolution (resolved=true, record holds the final state).
type ChangeFunc func(rec Record, resolved bool)

// Tracker owns all live cascade records.
type Tracker struct {
	records map[grid.DistrictID]*Record
	now     float64

	// OnChange, when set, fires for every insert, tier change, and
	// resolution, in evaluation order.
	OnChange ChangeFunc
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{records: make(map[grid.DistrictID]*Record)}
}

// Advance moves the tracker's clock forward. Record start times and
// durations are measured against this clock.
func (t *Tracker) Advance(dt float64) {
	if dt > 0 {
		t.now += dt
	}
}

// Now returns the tracker's current sim time.
func (t *Tracker) Now() float64 { return t.now }

// Evaluate classifies one district and inserts, updates, or resolves its
// record. Call after flow distribution so ratios reflect live connectivity.
func (t *Tracker) Evaluate(d *grid.District) {
	sev := Classify(d.PowerRatio())
	rec, exists := t.records[d.ID]

	switch {
	case sev == SeverityNone && exists:
		delete(t.records, d.ID)
		resolved := *rec
		resolved.Severity = SeverityNone
		resolved.Penalty = 0
		t.notify(resolved, true)
		slog.Info("cascade resolved", "district", d.ID, "duration", t.now-rec.StartedAt)

	case sev != SeverityNone && !exists:
		rec = &Record{
			District:  d.ID,
			Severity:  sev,
			Penalty:   sev.Penalty(),
			StartedAt: t.now,
		}
		t.records[d.ID] = rec
		t.notify(*rec, false)
		slog.Info("cascade started", "district", d.ID, "severity", sev.String(), "penalty", rec.Penalty)

	case sev != SeverityNone && exists && sev != rec.Severity:
		rec.Severity = sev
		rec.Penalty = sev.Penalty()
		t.notify(*rec, false)
		slog.Info("cascade re-tiered", "district", d.ID, "severity", sev.String(), "penalty", rec.Penalty)
	}
}

// OnDestruction evaluates every district fed by a destroyed component.
// Callers pass the districts of the component's network, captured before
// the destruction severed it.
func (t *Tracker) OnDestruction(affected []*grid.District) {
	for _, d := range affected {
		t.Evaluate(d)
	}
}

// UpdateAll re-evaluates every district with a live record against the
// lookup, resolving those that recovered and dropping records whose
// district no longer exists. Districts without a record are the caller's
// job: Evaluate each one after flow distribution so new shortfalls get
// records too.
func (t *Tracker) UpdateAll(lookup func(grid.DistrictID) (*grid.District, bool)) {
	ids := make([]grid.DistrictID, 0, len(t.records))
	for id := range t.records {
		ids = append(ids, id)
	}
	for _, id := range ids {
		d, ok := lookup(id)
		if !ok {
			// District no longer exists; drop the record silently.
			delete(t.records, id)
			continue
		}
		t.Evaluate(d)
	}
}

// ProductionMultiplier returns 1−penalty for a district, 1.0 when it has
// no live record.
func (t *Tracker) ProductionMultiplier(id grid.DistrictID) float64 {
	if rec, ok := t.records[id]; ok {
		return 1 - rec.Penalty
	}
	return 1.0
}

// Record returns the live record for a district, if any.
func (t *Tracker) Record(id grid.DistrictID) (Record, bool) {
	rec, ok := t.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// ActiveCount returns the number of live cascade records.
func (t *Tracker) ActiveCount() int { return len(t.records) }

func (t *Tracker) notify(rec Record, resolved bool) {
	if t.OnChange != nil {
		t.OnChange(rec, resolved)
	}
}

// Snapshot is the persisted form of the tracker: live records plus the
// tracker clock.
type Snapshot struct {
	Records []Record `json:"records"`
	Now     float64  `json:"now"`
}

// Snapshot captures live records.
func (t *Tracker) Snapshot() Snapshot {
	s := Snapshot{Now: t.now}
	for _, rec := range t.records {
		s.Records = append(s.Records, *rec)
	}
	return s
}

// Restore replaces tracker state. Records with an unknown severity default
// to their ratio-derived penalty on the next evaluation pass.
func (t *Tracker) Restore(s Snapshot) {
	t.now = s.Now
	t.records = make(map[grid.DistrictID]*Record, len(s.Records))
	for _, rec := range s.Records {
		if rec.District == grid.InvalidDistrict {
			continue
		}
		r := rec
		if r.Penalty == 0 && r.Severity != SeverityNone {
			r.Penalty = r.Severity.Penalty()
		}
		t.records[r.District] = &r
	}
}
