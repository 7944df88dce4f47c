// Package results persists simulation report steps to an append-only,
// snappy-compressed log file. Each frame is checksummed so a truncated or
// corrupted tail is detected on read, and the header carries the run id the
// records belong to.
package results

import (
	"encoding/json"

	"github.com/dd0wney/cluso-hydronet/pkg/network"
	"github.com/dd0wney/cluso-hydronet/pkg/sim"
)

// Record is the serialized form of one report step. Times are seconds of
// simulated time; vectors are in compiled network order.
type Record struct {
	Time float64 `json:"time_s"`

	Head     []float64 `json:"head"`
	Pressure []float64 `json:"pressure"`
	Demand   []float64 `json:"demand"`
	Quality  []float64 `json:"quality,omitempty"`

	Flow    []float64 `json:"flow"`
	Status  []int     `json:"status"`
	Setting []float64 `json:"setting"`

	TankLevel []float64 `json:"tank_level,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// FromStep converts a report step into its stored form.
func FromStep(s sim.Step) Record {
	rec := Record{
		Time:      s.Time.Seconds(),
		Head:      s.Head,
		Pressure:  s.Pressure,
		Demand:    s.Demand,
		Quality:   s.Quality,
		Flow:      s.Flow,
		Setting:   s.Setting,
		TankLevel: s.TankLevel,
		Status:    make([]int, len(s.Status)),
	}
	for i, st := range s.Status {
		rec.Status[i] = int(st)
	}
	for _, w := range s.Warnings {
		rec.Warnings = append(rec.Warnings, w.String())
	}
	return rec
}

// LinkStatus decodes a stored status value.
func (r *Record) LinkStatus(i int) network.Status {
	return network.Status(r.Status[i])
}

func (r *Record) encode() ([]byte, error) {
	return json.Marshal(r)
}

func decodeRecord(data []byte) (Record, error) {
	var r Record
	err := json.Unmarshal(data, &r)
	return r, err
}
