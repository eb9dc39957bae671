// Package actions resolves a farm's chosen action into state changes.
package actions

import (
	"fmt"
	"math"

	"github.com/xtrntr/farmduel/internal/farm"
	"github.com/xtrntr/farmduel/internal/models"
	"github.com/xtrntr/farmduel/internal/rules"
)

// Rand is the only source of randomness in action resolution.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Perm(n int) []int
}

// Trader handles the order-book actions
type Trader interface {
	Sell(f, rival *farm.Farm, cropType string, amount int) []models.LogEntry
	Buy(f, rival *farm.Farm, cropType string, amount int) []models.LogEntry
	PendingSellAmount(f *farm.Farm, cropType string) int
}

// Resolver applies actions to farm state
type Resolver struct {
	Rules  *rules.Rules
	Trader Trader
	Rand   Rand
}

// NewResolver creates a resolver
func NewResolver(r *rules.Rules, trader Trader, rnd Rand) *Resolver {
	return &Resolver{Rules: r, Trader: trader, Rand: rnd}
}

// Resolve applies one action to f. Only sabotage and trades touch rival.
func (r *Resolver) Resolve(f, rival *farm.Farm, action models.Action) []models.LogEntry {
	switch action.Kind {
	case models.Plant:
		return []models.LogEntry{r.Plant(f, action.CropType)}
	case models.Harvest:
		return []models.LogEntry{r.Harvest(f)}
	case models.SellCrops:
		return r.Trader.Sell(f, rival, action.CropType, action.Amount)
	case models.BuyCrops:
		return r.Trader.Buy(f, rival, action.CropType, action.Amount)
	case models.Sabotage:
		return []models.LogEntry{r.Sabotage(f, rival)}
	default:
		return []models.LogEntry{r.Maintenance(f)}
	}
}

// Plant spends money and energy to put a new crop in the field
func (r *Resolver) Plant(f *farm.Farm, cropType string) models.LogEntry {
	penalty := r.Rules.ActionPenalty.Plant
	spec, err := r.Rules.Crop(cropType)
	if err != nil {
		return f.Fail("Plant", err, penalty)
	}
	energy := r.Rules.EnergyCost.Plant
	if f.Available() < spec.Cost || f.Energy < energy {
		err := fmt.Errorf("%w: planting %s needs %.2f money and %d energy, have %.2f and %d",
			models.ErrResourceShortfall, cropType, spec.Cost, energy, f.Available(), f.Energy)
		return f.Fail("Plant", err, penalty)
	}

	f.Crops = append(f.Crops, models.Crop{Type: cropType, PlantedAt: f.Day})
	f.Money -= spec.Cost
	f.Energy -= energy
	return f.Logf("Plant", "Planted %s", cropType)
}

// Harvest sells every ready crop at the harvest discount. Ready crops
// covering the farm's own open sell orders of the same type are left in
// the field.
func (r *Resolver) Harvest(f *farm.Farm) models.LogEntry {
	energy := r.Rules.EnergyCost.Harvest
	ready := f.HarvestableIndexes(r.Rules, "")
	if len(ready) == 0 || f.Energy < energy {
		err := fmt.Errorf("%w: %d harvestable crops, %d energy", models.ErrResourceShortfall, len(ready), f.Energy)
		return f.Fail("Harvest", err, r.Rules.ActionPenalty.Harvest)
	}
	f.Energy -= energy

	skipped := map[string]int{}
	var picked []int
	units, earned := 0, 0.0
	for _, i := range ready {
		c := f.Crops[i]
		if skipped[c.Type] < r.Trader.PendingSellAmount(f, c.Type) {
			skipped[c.Type]++
			continue
		}
		picked = append(picked, i)

		yield := 1
		if c.Damaged {
			yield = int(math.Floor(r.Rules.Sabotage.YieldFactor * 1))
		}
		price := r.Rules.Crops[c.Type].SellPrice * r.Rules.HarvestSellDiscount
		units += yield
		earned += float64(yield) * price
	}
	f.RemoveCrops(picked)
	f.Money += earned

	return f.Logf("Harvest", "Harvested %d crops, earned %.2f money", units, earned)
}

// Maintenance is the default action
func (r *Resolver) Maintenance(f *farm.Farm) models.LogEntry {
	energy := r.Rules.EnergyCost.Maintenance
	if f.Energy < energy {
		err := fmt.Errorf("%w: maintenance needs %d energy, have %d, rested instead", models.ErrResourceShortfall, energy, f.Energy)
		return f.Fail("Maintenance", err, r.Rules.ActionPenalty.Maintenance)
	}
	f.Energy -= energy
	return f.Logf("Maintenance", "Performed farm maintenance")
}

// Sabotage pays its costs up front and, on a successful trial, damages up
// to MaxCropsDamaged of the rival's crops chosen without replacement.
func (r *Resolver) Sabotage(f, rival *farm.Farm) models.LogEntry {
	s := r.Rules.Sabotage
	if f.Energy < s.EnergyCost || f.Available() < s.MoneyCost {
		err := fmt.Errorf("%w: sabotage needs %d energy and %.2f money", models.ErrResourceShortfall, s.EnergyCost, s.MoneyCost)
		return f.Fail("Sabotage", err, 0)
	}
	f.Energy -= s.EnergyCost
	f.Money -= s.MoneyCost

	if r.Rand.Float64() >= s.SuccessRate {
		return models.LogEntry{Day: f.Day, Farm: f.ID, Action: "Failed Sabotage", Details: "Sabotage attempt failed"}
	}

	n := min(len(rival.Crops), s.MaxCropsDamaged)
	for _, i := range r.Rand.Perm(len(rival.Crops))[:n] {
		rival.Crops[i].Damaged = true
	}
	return f.Logf("Sabotage", "Successfully sabotaged the other farm, damaged %d crops", n)
}
