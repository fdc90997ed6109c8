package market

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/AUTO-HOST/auto-host-backend/internal/docstore"
	"github.com/AUTO-HOST/auto-host-backend/internal/model"
)

// Sales projects orders onto the sellers that took part in them.
type Sales struct {
	docs docstore.Store
}

// NewSales returns a Sales service reading order documents from docs.
func NewSales(docs docstore.Store) *Sales {
	return &Sales{docs: docs}
}

// ForSeller returns the seller's sales, newest first, each holding only the
// seller's own line items.
func (s *Sales) ForSeller(ctx context.Context, sellerID string) ([]model.Sale, error) {
	sellerID = strings.TrimSpace(sellerID)
	orders, err := s.docs.ListOrdersBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	sales := make([]model.Sale, 0, len(orders))
	for _, o := range orders {
		total := decimal.Zero
		items := []model.OrderItem{}
		for _, item := range o.Items {
			if !model.SameID(item.SellerID, sellerID) {
				continue
			}
			items = append(items, item)
			total = total.Add(decimal.NewFromFloat(item.TotalPrice))
		}

		sales = append(sales, model.Sale{
			OrderID:    o.ID,
			CreatedAt:  formatTime(o.CreatedAt),
			BuyerEmail: o.BuyerEmail,
			Items:      items,
			SaleTotal:  total.InexactFloat64(),
		})
	}
	return sales, nil
}
