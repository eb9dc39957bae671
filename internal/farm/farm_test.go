package farm

import (
	"errors"
	"testing"

	"github.com/xtrntr/farmduel/internal/models"
	"github.com/xtrntr/farmduel/internal/rules"
)

func TestNew(t *testing.T) {
	r := rules.Default()
	f := New("a", r)
	if f.Day != 1 || f.Money != 100 || f.Energy != 100 || f.ReservedMoney != 0 {
		t.Errorf("unexpected starting farm: %+v", f)
	}
	if len(f.Crops) != 0 || len(f.Harvested) != 0 {
		t.Errorf("expected empty field and inventory, got %v %v", f.Crops, f.Harvested)
	}
}

func TestFarm_AdvanceDay(t *testing.T) {
	r := rules.Default()
	tests := []struct {
		name   string
		energy int
		expect int
	}{
		{name: "Regenerates", energy: 50, expect: 70},
		{name: "CappedAtMax", energy: 90, expect: 100},
		{name: "FromZero", energy: 0, expect: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New("a", r)
			f.Energy = tt.energy
			f.AdvanceDay(r)
			if f.Energy != tt.expect {
				t.Errorf("expected energy %d, got %d", tt.expect, f.Energy)
			}
			if f.Day != 2 {
				t.Errorf("expected day 2, got %d", f.Day)
			}
		})
	}
}

func TestFarm_HarvestableIndexesAndRemove(t *testing.T) {
	r := rules.Default()
	f := New("a", r)
	f.Day = 6
	f.Crops = []models.Crop{
		{Type: "Corn", PlantedAt: 1},   // ripe
		{Type: "Wheat", PlantedAt: 1},  // 5 of 7 days
		{Type: "Tomato", PlantedAt: 3}, // ripe
		{Type: "Corn", PlantedAt: 2},   // 4 of 5 days
	}

	all := f.HarvestableIndexes(r, "")
	if len(all) != 2 || all[0] != 0 || all[1] != 2 {
		t.Fatalf("expected [0 2], got %v", all)
	}
	corn := f.HarvestableIndexes(r, "Corn")
	if len(corn) != 1 || corn[0] != 0 {
		t.Fatalf("expected [0], got %v", corn)
	}

	f.RemoveCrops(all)
	if len(f.Crops) != 2 || f.Crops[0].Type != "Wheat" || f.Crops[1].Type != "Corn" {
		t.Errorf("unexpected crops after removal: %v", f.Crops)
	}
}

func TestFarm_HarvestedInventory(t *testing.T) {
	f := New("a", rules.Default())
	f.AddHarvested("Corn", 3)
	f.AddHarvested("Corn", 0)

	if got := f.TakeHarvested("Corn", 2); got != 2 {
		t.Errorf("expected to take 2, took %d", got)
	}
	if got := f.TakeHarvested("Corn", 5); got != 1 {
		t.Errorf("expected to take the last 1, took %d", got)
	}
	if _, ok := f.Harvested["Corn"]; ok {
		t.Errorf("empty entry should be dropped: %v", f.Harvested)
	}
	if got := f.TakeHarvested("Wheat", 1); got != 0 {
		t.Errorf("expected nothing, took %d", got)
	}
}

func TestFarm_Penalize(t *testing.T) {
	f := New("a", rules.Default())
	f.Energy = 3
	f.Penalize(5)
	if f.Energy != 0 {
		t.Errorf("energy should floor at 0, got %d", f.Energy)
	}
}

func TestFarm_ViewIsDetached(t *testing.T) {
	r := rules.Default()
	f := New("a", r)
	f.Day = 4
	f.Crops = []models.Crop{{Type: "Tomato", PlantedAt: 1}, {Type: "Corn", PlantedAt: 2}}
	f.AddHarvested("Wheat", 1)

	v := f.View(r)
	if len(v.Harvestable) != 1 || v.Harvestable[0] != "Tomato" {
		t.Errorf("expected Tomato harvestable, got %v", v.Harvestable)
	}
	if v.ReadyIn[0] != 0 || v.ReadyIn[1] != 3 {
		t.Errorf("unexpected ready-in days %v", v.ReadyIn)
	}

	v.Crops[0].Damaged = true
	v.HarvestedCrops["Wheat"] = 9
	if f.Crops[0].Damaged || f.Harvested["Wheat"] != 1 {
		t.Errorf("mutating the view changed the farm")
	}
}

func TestFarm_Fail(t *testing.T) {
	f := New("a", rules.Default())
	f.Energy = 40
	e := f.Fail("Plant", models.ErrUnknownCrop, 5)

	if e.OK || e.Action != "Failed Plant" {
		t.Errorf("unexpected entry %+v", e)
	}
	if !errors.Is(e.Err, models.ErrUnknownCrop) {
		t.Errorf("expected ErrUnknownCrop, got %v", e.Err)
	}
	if f.Energy != 35 {
		t.Errorf("expected penalty applied, energy %d", f.Energy)
	}
}
