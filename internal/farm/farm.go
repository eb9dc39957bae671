// Package farm holds the per-party farm state and its day-to-day lifecycle.
package farm

import (
	"github.com/xtrntr/farmduel/internal/models"
	"github.com/xtrntr/farmduel/internal/rules"
)

// Farm is one competing party. Orders it has placed live in the shared
// exchange book, not here.
type Farm struct {
	ID            string
	Day           int
	Money         float64
	ReservedMoney float64
	Energy        int
	Crops         []models.Crop
	Harvested     map[string]int
}

// New creates a farm at day 1 with starting money and full energy
func New(id string, r *rules.Rules) *Farm {
	return &Farm{
		ID:        id,
		Day:       1,
		Money:     r.StartingMoney,
		Energy:    r.MaxEnergy,
		Crops:     []models.Crop{},
		Harvested: map[string]int{},
	}
}

// Available returns money not held by open buy orders
func (f *Farm) Available() float64 {
	return f.Money - f.ReservedMoney
}

// Penalize deducts energy, floored at zero
func (f *Farm) Penalize(n int) {
	f.Energy = max(0, f.Energy-n)
}

// HarvestableIndexes returns indexes into Crops of ready crops, optionally
// filtered to one crop type ("" for all).
func (f *Farm) HarvestableIndexes(r *rules.Rules, cropType string) []int {
	var idx []int
	for i, c := range f.Crops {
		if cropType != "" && c.Type != cropType {
			continue
		}
		if r.Harvestable(c, f.Day) {
			idx = append(idx, i)
		}
	}
	return idx
}

// RemoveCrops drops the crops at the given ascending indexes
func (f *Farm) RemoveCrops(idx []int) {
	if len(idx) == 0 {
		return
	}
	drop := make(map[int]bool, len(idx))
	for _, i := range idx {
		drop[i] = true
	}
	kept := f.Crops[:0]
	for i, c := range f.Crops {
		if !drop[i] {
			kept = append(kept, c)
		}
	}
	f.Crops = kept
}

// AddHarvested credits units to the harvested inventory
func (f *Farm) AddHarvested(cropType string, n int) {
	if n <= 0 {
		return
	}
	if f.Harvested == nil {
		f.Harvested = map[string]int{}
	}
	f.Harvested[cropType] += n
}

// TakeHarvested removes up to n units and returns how many were taken
func (f *Farm) TakeHarvested(cropType string, n int) int {
	took := min(n, f.Harvested[cropType])
	if took <= 0 {
		return 0
	}
	f.Harvested[cropType] -= took
	if f.Harvested[cropType] == 0 {
		delete(f.Harvested, cropType)
	}
	return took
}

// AdvanceDay moves to the next day and regenerates energy
func (f *Farm) AdvanceDay(r *rules.Rules) {
	f.Day++
	f.Energy = min(f.Energy+r.EnergyRegenPerDay, r.MaxEnergy)
}

// CropViews returns the client-facing crop list
func (f *Farm) CropViews() []models.CropView {
	views := make([]models.CropView, 0, len(f.Crops))
	for _, c := range f.Crops {
		views = append(views, models.CropView{Type: c.Type, PlantedAt: c.PlantedAt})
	}
	return views
}

// View builds a detached copy of the farm for decision sources
func (f *Farm) View(r *rules.Rules) models.FarmView {
	v := models.FarmView{
		ID:             f.ID,
		Day:            f.Day,
		Money:          f.Money,
		ReservedMoney:  f.ReservedMoney,
		Energy:         f.Energy,
		Crops:          append([]models.Crop(nil), f.Crops...),
		ReadyIn:        make([]int, len(f.Crops)),
		HarvestedCrops: make(map[string]int, len(f.Harvested)),
	}
	for i, c := range f.Crops {
		if spec, ok := r.Crops[c.Type]; ok {
			v.ReadyIn[i] = max(0, spec.GrowthTime-(f.Day-c.PlantedAt))
		}
		if r.Harvestable(c, f.Day) {
			v.Harvestable = append(v.Harvestable, c.Type)
		}
	}
	for k, n := range f.Harvested {
		v.HarvestedCrops[k] = n
	}
	return v
}
