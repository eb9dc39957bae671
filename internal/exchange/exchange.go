package exchange

import "github.com/xtrntr/farmduel/internal/models"

// Book is the single order book shared by both farms. A farm's pending
// trades are the orders it owns; its offers are the orders the rival owns.
type Book struct {
	BuyOrders  []models.Order
	SellOrders []models.Order
	seq        int64
}

// NewBook creates an empty order book
func NewBook() *Book {
	return &Book{
		BuyOrders:  []models.Order{},
		SellOrders: []models.Order{},
	}
}

// AddOrder appends an order to its side of the book. Appending keeps each
// side in time priority.
func (b *Book) AddOrder(order models.Order) models.Order {
	b.seq++
	order.Seq = b.seq
	side := b.side(order.Type)
	*side = append(*side, order)
	return order
}

// MatchOrder finds the resting order from another owner that can fill the
// incoming order: opposite side, same crop, amount at least the incoming
// amount. Exact amounts win over larger ones, then time priority.
func (b *Book) MatchOrder(incoming models.Order) (models.Order, bool) {
	resting := b.SellOrders
	if incoming.Type == models.Sell {
		resting = b.BuyOrders
	}

	var best *models.Order
	for i := range resting {
		o := &resting[i]
		if o.Owner == incoming.Owner || o.CropType != incoming.CropType || o.Amount < incoming.Amount {
			continue
		}
		if o.Amount == incoming.Amount {
			return *o, true
		}
		if best == nil {
			best = o
		}
	}
	if best == nil {
		return models.Order{}, false
	}
	return *best, true
}

// GetOrder looks up an order by id on either side
func (b *Book) GetOrder(id string) (models.Order, bool) {
	for _, o := range b.BuyOrders {
		if o.ID == id {
			return o, true
		}
	}
	for _, o := range b.SellOrders {
		if o.ID == id {
			return o, true
		}
	}
	return models.Order{}, false
}

// UpdateOrder replaces an order in place, keyed by id
func (b *Book) UpdateOrder(order models.Order) bool {
	side := b.side(order.Type)
	for i := range *side {
		if (*side)[i].ID == order.ID {
			(*side)[i] = order
			return true
		}
	}
	return false
}

// RemoveOrder removes an order from the book
func (b *Book) RemoveOrder(id string) bool {
	for _, side := range []*[]models.Order{&b.BuyOrders, &b.SellOrders} {
		for i, o := range *side {
			if o.ID == id {
				*side = append((*side)[:i], (*side)[i+1:]...)
				return true
			}
		}
	}
	return false
}

func (b *Book) side(t models.Side) *[]models.Order {
	if t == models.Buy {
		return &b.BuyOrders
	}
	return &b.SellOrders
}

// Pending returns the orders owned by a farm, buys first
func (b *Book) Pending(owner string) []models.Order {
	var out []models.Order
	for _, o := range b.BuyOrders {
		if o.Owner == owner {
			out = append(out, o)
		}
	}
	for _, o := range b.SellOrders {
		if o.Owner == owner {
			out = append(out, o)
		}
	}
	return out
}

// Offers returns the rival orders visible to a farm
func (b *Book) Offers(viewer string) (buyOffers, sellOffers []models.Order) {
	for _, o := range b.BuyOrders {
		if o.Owner != viewer {
			buyOffers = append(buyOffers, o)
		}
	}
	for _, o := range b.SellOrders {
		if o.Owner != viewer {
			sellOffers = append(sellOffers, o)
		}
	}
	return buyOffers, sellOffers
}

// PendingAmount sums the amount a farm has on one side for a crop type
func (b *Book) PendingAmount(owner string, t models.Side, cropType string) int {
	total := 0
	for _, o := range *b.side(t) {
		if o.Owner == owner && o.CropType == cropType {
			total += o.Amount
		}
	}
	return total
}

// GetOrderBook returns the current order book
func (b *Book) GetOrderBook() ([]models.Order, []models.Order) {
	buys := append([]models.Order{}, b.BuyOrders...)
	sells := append([]models.Order{}, b.SellOrders...)
	return buys, sells
}
