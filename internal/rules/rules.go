// Package rules holds the static game rules table: crop economics, energy
// costs and penalties, trading and sabotage parameters.
package rules

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/xtrntr/farmduel/internal/models"
)

// Delivery policies for crops received through a settled trade.
const (
	DeliverMature  = "mature"
	DeliverReplant = "replant"
)

// CropSpec describes one crop type
type CropSpec struct {
	Cost       float64 `yaml:"cost" json:"cost" validate:"gt=0"`
	GrowthTime int     `yaml:"growth_time" json:"growth_time" validate:"gte=0"`
	SellPrice  float64 `yaml:"sell_price" json:"sell_price" validate:"gt=0"`
}

// ActionCosts holds a per-action energy amount
type ActionCosts struct {
	Plant       int `yaml:"plant" json:"plant" validate:"gte=0"`
	Harvest     int `yaml:"harvest" json:"harvest" validate:"gte=0"`
	Maintenance int `yaml:"maintenance" json:"maintenance" validate:"gte=0"`
}

type Trading struct {
	EnergyCost          int     `yaml:"trade_energy_cost" json:"trade_energy_cost" validate:"gte=0"`
	FeePercentage       float64 `yaml:"trade_fee_percentage" json:"trade_fee_percentage" validate:"gte=0,lt=1"`
	MaxAmount           int     `yaml:"max_trade_amount" json:"max_trade_amount" validate:"gt=0"`
	OrderExpirationDays int     `yaml:"order_expiration_days" json:"order_expiration_days" validate:"gt=0"`
	Penalty             int     `yaml:"trade_penalty" json:"trade_penalty" validate:"gte=0"`
}

type Sabotage struct {
	EnergyCost      int     `yaml:"energy_cost" json:"energy_cost" validate:"gte=0"`
	MoneyCost       float64 `yaml:"money_cost" json:"money_cost" validate:"gte=0"`
	SuccessRate     float64 `yaml:"success_rate" json:"success_rate" validate:"gte=0,lte=1"`
	MaxCropsDamaged int     `yaml:"max_crops_damaged" json:"max_crops_damaged" validate:"gte=0"`
	YieldFactor     float64 `yaml:"damaged_crop_yield_factor" json:"damaged_crop_yield_factor" validate:"gte=0,lte=1"`
}

// Rules is the immutable rules table shared by both farms
type Rules struct {
	TotalDays           int                 `yaml:"total_days" json:"total_days" validate:"gt=0"`
	StartingMoney       float64             `yaml:"starting_money" json:"starting_money" validate:"gte=0"`
	MaxEnergy           int                 `yaml:"max_energy" json:"max_energy" validate:"gt=0"`
	EnergyRegenPerDay   int                 `yaml:"energy_regen_per_day" json:"energy_regen_per_day" validate:"gte=0"`
	EnergyCost          ActionCosts         `yaml:"energy_cost" json:"energy_cost"`
	ActionPenalty       ActionCosts         `yaml:"action_penalty" json:"action_penalty"`
	HarvestSellDiscount float64             `yaml:"harvest_sell_discount" json:"harvest_sell_discount" validate:"gt=0,lte=1"`
	TradeDelivery       string              `yaml:"trade_delivery" json:"trade_delivery" validate:"oneof=mature replant"`
	Crops               map[string]CropSpec `yaml:"crops" json:"crops" validate:"min=1,dive"`
	Trading             Trading             `yaml:"trading" json:"trading"`
	Sabotage            Sabotage            `yaml:"sabotage" json:"sabotage"`
}

// Default returns the standard rules table
func Default() *Rules {
	return &Rules{
		TotalDays:         50,
		StartingMoney:     100,
		MaxEnergy:         100,
		EnergyRegenPerDay: 20,
		EnergyCost: ActionCosts{
			Plant:       20,
			Harvest:     30,
			Maintenance: 10,
		},
		ActionPenalty: ActionCosts{
			Plant:       5,
			Harvest:     5,
			Maintenance: 2,
		},
		HarvestSellDiscount: 0.7,
		TradeDelivery:       DeliverMature,
		Crops: map[string]CropSpec{
			"Corn":   {Cost: 10, GrowthTime: 5, SellPrice: 20},
			"Wheat":  {Cost: 15, GrowthTime: 7, SellPrice: 30},
			"Tomato": {Cost: 5, GrowthTime: 3, SellPrice: 10},
		},
		Trading: Trading{
			EnergyCost:          10,
			FeePercentage:       0.05,
			MaxAmount:           10,
			OrderExpirationDays: 3,
			Penalty:             5,
		},
		Sabotage: Sabotage{
			EnergyCost:      40,
			MoneyCost:       20,
			SuccessRate:     0.3,
			MaxCropsDamaged: 3,
			YieldFactor:     0.5,
		},
	}
}

// Load reads a YAML rules file on top of the defaults
func Load(path string) (*Rules, error) {
	r := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	if err := yaml.Unmarshal(raw, r); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the table for values the engine cannot work with
func (r *Rules) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			var msgs []string
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s (value: '%v')", e.Namespace(), e.Tag(), e.Value()))
			}
			return fmt.Errorf("invalid rules: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid rules: %w", err)
	}
	return nil
}

// Crop looks up a crop spec
func (r *Rules) Crop(cropType string) (CropSpec, error) {
	spec, ok := r.Crops[cropType]
	if !ok {
		return CropSpec{}, fmt.Errorf("%w: %q", models.ErrUnknownCrop, cropType)
	}
	return spec, nil
}

// CropTypes returns crop names in a stable order
func (r *Rules) CropTypes() []string {
	names := make([]string, 0, len(r.Crops))
	for name := range r.Crops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Harvestable reports whether a crop has grown long enough by day
func (r *Rules) Harvestable(c models.Crop, day int) bool {
	spec, ok := r.Crops[c.Type]
	if !ok {
		return false
	}
	return day-c.PlantedAt >= spec.GrowthTime
}

// TradeValue is sell_price * amount
func (r *Rules) TradeValue(cropType string, amount int) (float64, error) {
	spec, err := r.Crop(cropType)
	if err != nil {
		return 0, err
	}
	return spec.SellPrice * float64(amount), nil
}
