package models

import (
	"fmt"
	"strings"
)

// Side is the direction of an order
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Crop is a planted crop instance owned by one farm
type Crop struct {
	Type      string `json:"type"`
	PlantedAt int    `json:"planted_at"`
	Damaged   bool   `json:"damaged,omitempty"`
}

// Order represents a buy or sell order placed by a farm
type Order struct {
	ID         string  `json:"id"`
	Owner      string  `json:"owner"`
	Type       Side    `json:"type"` // "buy" or "sell"
	CropType   string  `json:"crop_type"`
	Amount     int     `json:"amount"`
	Value      float64 `json:"value"` // sell_price * amount, before fee
	Fee        float64 `json:"fee,omitempty"`
	Expiration int     `json:"expiration"` // day
	PlacedAt   int     `json:"placed_at"`
	Seq        int64   `json:"-"` // used for time priority
}

// UnitPrice is the per-unit value of the order
func (o Order) UnitPrice() float64 {
	if o.Amount == 0 {
		return 0
	}
	return o.Value / float64(o.Amount)
}

// Trade represents a settled buy/sell pair
type Trade struct {
	BuyOrderID  string  `json:"buy_order_id"`
	SellOrderID string  `json:"sell_order_id"`
	Buyer       string  `json:"buyer"`
	Seller      string  `json:"seller"`
	CropType    string  `json:"crop_type"`
	Amount      int     `json:"amount"`
	Value       float64 `json:"value"`
	Fee         float64 `json:"fee"`
	Day         int     `json:"day"`
}

// ActionKind identifies what a farm does on its turn
type ActionKind int

const (
	Maintenance ActionKind = iota
	Plant
	Harvest
	SellCrops
	BuyCrops
	Sabotage
)

var actionNames = map[ActionKind]string{
	Plant:       "Plant",
	Harvest:     "Harvest",
	Maintenance: "Maintenance",
	SellCrops:   "Sell",
	BuyCrops:    "Buy",
	Sabotage:    "Sabotage",
}

// Number is the menu number used by the descriptor grammar
func (k ActionKind) Number() int {
	switch k {
	case Plant:
		return 1
	case Harvest:
		return 2
	case SellCrops:
		return 4
	case BuyCrops:
		return 5
	case Sabotage:
		return 6
	default:
		return 3
	}
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return "Maintenance"
}

// Action is one validated action descriptor
type Action struct {
	Kind     ActionKind `json:"kind"`
	CropType string     `json:"crop_type,omitempty"`
	Amount   int        `json:"amount,omitempty"`
}

// String renders the action in descriptor form, e.g. "4 Sell Wheat 2"
func (a Action) String() string {
	parts := []string{fmt.Sprint(a.Kind.Number()), a.Kind.String()}
	switch a.Kind {
	case Plant:
		parts = append(parts, a.CropType)
	case SellCrops, BuyCrops:
		parts = append(parts, a.CropType, fmt.Sprint(a.Amount))
	}
	return strings.Join(parts, " ")
}

// LogEntry records one attempted action or lifecycle event
type LogEntry struct {
	Day     int    `json:"day"`
	Farm    string `json:"farm"`
	Action  string `json:"action"`
	Details string `json:"details"`
	OK      bool   `json:"ok"`
	Err     error  `json:"-"`
}

// CropView is the client-facing shape of a crop
type CropView struct {
	Type      string `json:"type"`
	PlantedAt int    `json:"planted_at"`
}

// FarmView is the read-only state handed to a decision source
type FarmView struct {
	ID             string         `json:"id"`
	Day            int            `json:"day"`
	Money          float64        `json:"money"`
	ReservedMoney  float64        `json:"reserved_money"`
	Energy         int            `json:"energy"`
	Crops          []Crop         `json:"crops"`
	Harvestable    []string       `json:"harvestable"`
	ReadyIn        []int          `json:"ready_in"` // days until harvest, parallel to Crops
	HarvestedCrops map[string]int `json:"harvested_crops"`
	PendingTrades  []Order        `json:"pending_trades"`
	BuyOffers      []Order        `json:"buy_offers"`  // rival buy orders
	SellOffers     []Order        `json:"sell_offers"` // rival sell orders
}

// FarmSnapshot is one farm's state at the end of a day
type FarmSnapshot struct {
	Day            string         `json:"day"`
	Decision       string         `json:"decision"`
	Money          float64        `json:"money"`
	ReservedMoney  float64        `json:"reserved_money"`
	Energy         int            `json:"energy"`
	Crops          []CropView     `json:"crops"`
	HarvestedCrops map[string]int `json:"harvested_crops,omitempty"`
	Log            []LogEntry     `json:"log"`
}

// Snapshot is the per-day event emitted to the transport layer
type Snapshot struct {
	Day    int                     `json:"day"`
	Final  bool                    `json:"final"`
	Farms  map[string]FarmSnapshot `json:"farms"`
	Trades []Trade                 `json:"trades,omitempty"`
}
