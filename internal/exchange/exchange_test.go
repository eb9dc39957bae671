package exchange

import (
	"testing"

	"github.com/xtrntr/farmduel/internal/models"
)

func TestBook_AddOrder(t *testing.T) {
	b := NewBook()

	orders := []models.Order{
		{ID: "1", Owner: "a", Type: models.Buy, CropType: "Corn", Amount: 1},
		{ID: "2", Owner: "b", Type: models.Sell, CropType: "Corn", Amount: 2},
		{ID: "3", Owner: "a", Type: models.Buy, CropType: "Wheat", Amount: 3},
	}
	for _, order := range orders {
		b.AddOrder(order)
	}

	if len(b.BuyOrders) != 2 {
		t.Errorf("expected 2 buy orders, got %d", len(b.BuyOrders))
	}
	if len(b.SellOrders) != 1 {
		t.Errorf("expected 1 sell order, got %d", len(b.SellOrders))
	}
	if b.BuyOrders[0].Seq >= b.BuyOrders[1].Seq {
		t.Error("buy orders not kept in time priority")
	}
}

func TestBook_MatchOrder(t *testing.T) {
	b := NewBook()

	resting := []models.Order{
		{ID: "s1", Owner: "a", Type: models.Sell, CropType: "Wheat", Amount: 5},
		{ID: "s2", Owner: "a", Type: models.Sell, CropType: "Wheat", Amount: 2},
		{ID: "s3", Owner: "a", Type: models.Sell, CropType: "Corn", Amount: 4},
		{ID: "s4", Owner: "b", Type: models.Sell, CropType: "Tomato", Amount: 4},
	}
	for _, order := range resting {
		b.AddOrder(order)
	}

	tests := []struct {
		name        string
		order       models.Order
		expectMatch string
	}{
		{
			name:        "ExactAmountWins",
			order:       models.Order{Owner: "b", Type: models.Buy, CropType: "Wheat", Amount: 2},
			expectMatch: "s2",
		},
		{
			name:        "LargerRestingOrder",
			order:       models.Order{Owner: "b", Type: models.Buy, CropType: "Wheat", Amount: 3},
			expectMatch: "s1",
		},
		{
			name:  "TooSmall",
			order: models.Order{Owner: "b", Type: models.Buy, CropType: "Corn", Amount: 5},
		},
		{
			name:  "OwnOrderIgnored",
			order: models.Order{Owner: "b", Type: models.Buy, CropType: "Tomato", Amount: 1},
		},
		{
			name:  "SameSideIgnored",
			order: models.Order{Owner: "b", Type: models.Sell, CropType: "Wheat", Amount: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, ok := b.MatchOrder(tt.order)
			if tt.expectMatch == "" {
				if ok {
					t.Errorf("expected no match, got %s", match.ID)
				}
				return
			}
			if !ok {
				t.Fatalf("expected match %s, got none", tt.expectMatch)
			}
			if match.ID != tt.expectMatch {
				t.Errorf("expected match %s, got %s", tt.expectMatch, match.ID)
			}
		})
	}
}

func TestBook_RemoveOrder(t *testing.T) {
	b := NewBook()

	orders := []models.Order{
		{ID: "1", Owner: "a", Type: models.Buy, CropType: "Corn", Amount: 1},
		{ID: "2", Owner: "b", Type: models.Sell, CropType: "Corn", Amount: 2},
	}
	for _, order := range orders {
		b.AddOrder(order)
	}

	tests := []struct {
		name          string
		orderID       string
		expectRemoved bool
	}{
		{name: "RemoveBuyOrder", orderID: "1", expectRemoved: true},
		{name: "RemoveSellOrder", orderID: "2", expectRemoved: true},
		{name: "NonExistentOrder", orderID: "999", expectRemoved: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			removed := b.RemoveOrder(tt.orderID)
			if removed != tt.expectRemoved {
				t.Errorf("expected removed=%v, got %v", tt.expectRemoved, removed)
			}
			if _, ok := b.GetOrder(tt.orderID); ok {
				t.Errorf("order %s still in book", tt.orderID)
			}
		})
	}
}

func TestBook_PendingAndOffers(t *testing.T) {
	b := NewBook()

	orders := []models.Order{
		{ID: "1", Owner: "a", Type: models.Buy, CropType: "Corn", Amount: 1},
		{ID: "2", Owner: "b", Type: models.Sell, CropType: "Corn", Amount: 2},
		{ID: "3", Owner: "a", Type: models.Sell, CropType: "Corn", Amount: 3},
		{ID: "4", Owner: "a", Type: models.Sell, CropType: "Corn", Amount: 4},
	}
	for _, order := range orders {
		b.AddOrder(order)
	}

	if got := len(b.Pending("a")); got != 3 {
		t.Errorf("expected 3 pending orders for a, got %d", got)
	}
	buyOffers, sellOffers := b.Offers("b")
	if len(buyOffers) != 1 || len(sellOffers) != 2 {
		t.Errorf("expected b to see 1 buy and 2 sell offers, got %d and %d", len(buyOffers), len(sellOffers))
	}
	if got := b.PendingAmount("a", models.Sell, "Corn"); got != 7 {
		t.Errorf("expected 7 Corn locked by a, got %d", got)
	}

	buys, sells := b.GetOrderBook()
	buys[0].Amount = 99
	if b.BuyOrders[0].Amount == 99 || len(sells) != 3 {
		t.Error("GetOrderBook should return a copy of the book")
	}
}
