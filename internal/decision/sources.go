package decision

import (
	"context"
	"sync"

	"github.com/xtrntr/farmduel/internal/models"
	"github.com/xtrntr/farmduel/internal/rules"
)

// Scripted replays a fixed list of descriptors, one per call, then falls
// back to Maintenance.
type Scripted struct {
	mu    sync.Mutex
	lines []string
	next  int
}

// NewScripted creates a scripted source from descriptor lines
func NewScripted(lines ...string) *Scripted {
	return &Scripted{lines: lines}
}

func (s *Scripted) Decide(ctx context.Context, self, rival models.FarmView, daysLeft int) (models.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.lines) {
		return models.Action{Kind: models.Maintenance}, nil
	}
	line := s.lines[s.next]
	s.next++
	return Parse(line)
}

// Greedy is a simple built-in farmer: harvest what is ripe, fill rival buy
// orders it can cover, otherwise plant the crop with the best margin that
// can still ripen before the end.
type Greedy struct {
	Rules *rules.Rules
}

func (g Greedy) Decide(ctx context.Context, self, rival models.FarmView, daysLeft int) (models.Action, error) {
	r := g.Rules

	ready := map[string]int{}
	for _, c := range self.Harvestable {
		ready[c]++
	}
	for _, o := range self.BuyOffers {
		if have := ready[o.CropType] + self.HarvestedCrops[o.CropType]; have >= o.Amount && o.Amount <= r.Trading.MaxAmount &&
			self.Energy >= r.Trading.EnergyCost {
			return models.Action{Kind: models.SellCrops, CropType: o.CropType, Amount: o.Amount}, nil
		}
	}
	if len(self.Harvestable) > 0 && self.Energy >= r.EnergyCost.Harvest {
		return models.Action{Kind: models.Harvest}, nil
	}

	best, bestMargin := "", 0.0
	for _, name := range r.CropTypes() {
		spec := r.Crops[name]
		if spec.GrowthTime >= daysLeft || self.Money-self.ReservedMoney < spec.Cost {
			continue
		}
		margin := (spec.SellPrice*r.HarvestSellDiscount - spec.Cost) / float64(max(1, spec.GrowthTime))
		if margin > bestMargin {
			best, bestMargin = name, margin
		}
	}
	if best != "" && self.Energy >= r.EnergyCost.Plant {
		return models.Action{Kind: models.Plant, CropType: best}, nil
	}
	return models.Action{Kind: models.Maintenance}, nil
}
