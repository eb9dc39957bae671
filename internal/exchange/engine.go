package exchange

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/xtrntr/farmduel/internal/farm"
	"github.com/xtrntr/farmduel/internal/models"
	"github.com/xtrntr/farmduel/internal/rules"
)

// Engine applies sell/buy actions against the shared book and settles
// matched orders between the two farms.
type Engine struct {
	Rules  *rules.Rules
	Book   *Book
	NewID  func() string
	trades []models.Trade
}

// NewEngine creates a trade engine over an empty book
func NewEngine(r *rules.Rules) *Engine {
	return &Engine{
		Rules: r,
		Book:  NewBook(),
		NewID: uuid.NewString,
	}
}

// checkOrder validates crop type and amount for a new order
func (e *Engine) checkOrder(cropType string, amount int) (float64, error) {
	value, err := e.Rules.TradeValue(cropType, amount)
	if err != nil {
		return 0, err
	}
	if amount <= 0 || amount > e.Rules.Trading.MaxAmount {
		return 0, fmt.Errorf("%w: amount %d outside 1..%d", models.ErrResourceShortfall, amount, e.Rules.Trading.MaxAmount)
	}
	return value, nil
}

// Sell locks crops from the seller's custody into a sell order and settles
// it at once if the rival has a matching buy order.
func (e *Engine) Sell(f, rival *farm.Farm, cropType string, amount int) []models.LogEntry {
	cost := e.Rules.Trading.EnergyCost
	if f.Energy < cost {
		err := fmt.Errorf("%w: need %d energy for selling, have %d", models.ErrResourceShortfall, cost, f.Energy)
		return []models.LogEntry{f.Fail("Sell", err, 0)}
	}
	f.Energy -= cost

	value, err := e.checkOrder(cropType, amount)
	if err != nil {
		return []models.LogEntry{f.Fail("Sell", err, e.Rules.Trading.Penalty)}
	}

	ready := f.HarvestableIndexes(e.Rules, cropType)
	if have := f.Harvested[cropType] + len(ready); have < amount {
		err := fmt.Errorf("%w: %d %s available, %d requested", models.ErrResourceShortfall, have, cropType, amount)
		return []models.LogEntry{f.Fail("Sell", err, e.Rules.Trading.Penalty)}
	}

	toHarvest := amount - f.TakeHarvested(cropType, amount)
	f.RemoveCrops(ready[:toHarvest])

	fee := value * e.Rules.Trading.FeePercentage
	order := e.Book.AddOrder(models.Order{
		ID:         e.NewID(),
		Owner:      f.ID,
		Type:       models.Sell,
		CropType:   cropType,
		Amount:     amount,
		Value:      value,
		Fee:        fee,
		Expiration: f.Day + e.Rules.Trading.OrderExpirationDays,
		PlacedAt:   f.Day,
	})

	logs := []models.LogEntry{f.Logf("Offer to Sell", "Offered to sell %d %s for %.2f money", amount, cropType, value-fee)}
	if match, ok := e.Book.MatchOrder(order); ok {
		logs = append(logs, e.complete(rival, f, match.ID, order.ID, f))
	}
	return logs
}

// Buy reserves the order value from unreserved money and settles at once
// if the rival has a matching sell order.
func (e *Engine) Buy(f, rival *farm.Farm, cropType string, amount int) []models.LogEntry {
	cost := e.Rules.Trading.EnergyCost
	if f.Energy < cost {
		err := fmt.Errorf("%w: need %d energy for buying, have %d", models.ErrResourceShortfall, cost, f.Energy)
		return []models.LogEntry{f.Fail("Buy", err, 0)}
	}
	f.Energy -= cost

	value, err := e.checkOrder(cropType, amount)
	if err != nil {
		return []models.LogEntry{f.Fail("Buy", err, e.Rules.Trading.Penalty)}
	}
	if f.Available() < value {
		err := fmt.Errorf("%w: need %.2f unreserved money, have %.2f", models.ErrResourceShortfall, value, f.Available())
		return []models.LogEntry{f.Fail("Buy", err, e.Rules.Trading.Penalty)}
	}

	f.ReservedMoney += value
	order := e.Book.AddOrder(models.Order{
		ID:         e.NewID(),
		Owner:      f.ID,
		Type:       models.Buy,
		CropType:   cropType,
		Amount:     amount,
		Value:      value,
		Expiration: f.Day + e.Rules.Trading.OrderExpirationDays,
		PlacedAt:   f.Day,
	})

	logs := []models.LogEntry{f.Logf("Offer to Buy", "Offered to buy %d %s for %.2f money", amount, cropType, value)}
	if match, ok := e.Book.MatchOrder(order); ok {
		logs = append(logs, e.complete(f, rival, order.ID, match.ID, f))
	}
	return logs
}

// complete settles and turns the outcome into one log entry for the acting farm
func (e *Engine) complete(buyer, seller *farm.Farm, buyID, sellID string, actor *farm.Farm) models.LogEntry {
	trade, err := e.Settle(buyer, seller, buyID, sellID)
	if err != nil {
		return actor.Fail("Trade Completion", err, 0)
	}
	return actor.Logf("Complete Trade", "Completed trade of %d %s for %.2f money", trade.Amount, trade.CropType, trade.Value)
}

// filled returns the value and fee of qty units out of an order. Filling
// the whole order returns its exact remaining value and fee.
func filled(o models.Order, qty int) (value, fee float64) {
	if qty >= o.Amount {
		return o.Value, o.Fee
	}
	ratio := float64(qty) / float64(o.Amount)
	return o.Value * ratio, o.Fee * ratio
}

// Settle executes a matched buy/sell pair. Both orders must still be in the
// book and owned by the given farms; otherwise nothing is changed. The
// smaller order is filled completely and the other one is reduced.
func (e *Engine) Settle(buyer, seller *farm.Farm, buyID, sellID string) (models.Trade, error) {
	buy, okBuy := e.Book.GetOrder(buyID)
	sell, okSell := e.Book.GetOrder(sellID)
	if !okBuy || !okSell ||
		buy.Type != models.Buy || sell.Type != models.Sell ||
		buy.Owner != buyer.ID || sell.Owner != seller.ID ||
		buy.CropType != sell.CropType {
		return models.Trade{}, models.ErrOrderInconsistency
	}

	qty := min(buy.Amount, sell.Amount)
	paid, _ := filled(buy, qty)
	received, fee := filled(sell, qty)
	if buyer.ReservedMoney+1e-9 < paid || buyer.Money+1e-9 < paid {
		return models.Trade{}, fmt.Errorf("%w: buyer reservation %.2f below %.2f", models.ErrOrderInconsistency, buyer.ReservedMoney, paid)
	}

	buyer.ReservedMoney = max(0, buyer.ReservedMoney-paid)
	buyer.Money -= paid
	seller.Money += received - fee

	plantedAt := buyer.Day
	if e.Rules.TradeDelivery == rules.DeliverMature {
		plantedAt -= e.Rules.Crops[buy.CropType].GrowthTime
	}
	for range qty {
		buyer.Crops = append(buyer.Crops, models.Crop{Type: buy.CropType, PlantedAt: plantedAt})
	}

	e.reduce(buy, qty, paid, 0)
	e.reduce(sell, qty, received, fee)

	trade := models.Trade{
		BuyOrderID:  buy.ID,
		SellOrderID: sell.ID,
		Buyer:       buyer.ID,
		Seller:      seller.ID,
		CropType:    buy.CropType,
		Amount:      qty,
		Value:       paid,
		Fee:         fee,
		Day:         buyer.Day,
	}
	e.trades = append(e.trades, trade)
	return trade, nil
}

func (e *Engine) reduce(o models.Order, qty int, value, fee float64) {
	if qty >= o.Amount {
		e.Book.RemoveOrder(o.ID)
		return
	}
	o.Amount -= qty
	o.Value -= value
	o.Fee -= fee
	e.Book.UpdateOrder(o)
}

// SweepExpired cancels f's expired buy orders, refunding the reservation,
// and drops the rival's expired sell orders visible to f, returning the
// locked crops to the rival's harvested inventory.
func (e *Engine) SweepExpired(f, rival *farm.Farm) []models.LogEntry {
	var logs []models.LogEntry
	for _, o := range e.Book.Pending(f.ID) {
		if o.Type != models.Buy || o.Expiration > f.Day {
			continue
		}
		f.ReservedMoney = max(0, f.ReservedMoney-o.Value)
		e.Book.RemoveOrder(o.ID)
		logs = append(logs, f.Logf("Buy Order Expired", "Buy order for %d %s expired. %.2f money returned.", o.Amount, o.CropType, o.Value))
	}

	_, sellOffers := e.Book.Offers(f.ID)
	for _, o := range sellOffers {
		if o.Owner != rival.ID || o.Expiration > f.Day {
			continue
		}
		rival.AddHarvested(o.CropType, o.Amount)
		e.Book.RemoveOrder(o.ID)
		logs = append(logs, rival.Logf("Sell Order Expired", "Sell order for %d %s expired. Crops returned to inventory.", o.Amount, o.CropType))
	}
	return logs
}

// ClearOrderBook releases every order f owns: reservations are dropped and
// sell-locked crops go back to the harvested inventory.
func (e *Engine) ClearOrderBook(f *farm.Farm) {
	for _, o := range e.Book.Pending(f.ID) {
		if o.Type == models.Sell {
			f.AddHarvested(o.CropType, o.Amount)
		}
		e.Book.RemoveOrder(o.ID)
	}
	f.ReservedMoney = 0
}

// PendingSellAmount is the amount f has locked in open sell orders for a crop
func (e *Engine) PendingSellAmount(f *farm.Farm, cropType string) int {
	return e.Book.PendingAmount(f.ID, models.Sell, cropType)
}

// Decorate fills the order-book fields of a farm view
func (e *Engine) Decorate(v *models.FarmView) {
	v.PendingTrades = e.Book.Pending(v.ID)
	v.BuyOffers, v.SellOffers = e.Book.Offers(v.ID)
}

// DrainTrades returns and forgets trades settled since the last call
func (e *Engine) DrainTrades() []models.Trade {
	trades := e.trades
	e.trades = nil
	return trades
}
