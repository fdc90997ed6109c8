package market

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AUTO-HOST/auto-host-backend/internal/auth"
	"github.com/AUTO-HOST/auto-host-backend/internal/docstore"
	"github.com/AUTO-HOST/auto-host-backend/internal/metrics"
	"github.com/AUTO-HOST/auto-host-backend/internal/model"
	"github.com/AUTO-HOST/auto-host-backend/internal/store"
)

// Orders places orders and keeps them consistent with product stock.
//
// An order is written as reserving before any stock moves. Its stock deltas
// are then applied in one product store transaction keyed by the order id,
// after which the order is committed. An order left reserving by a crash is
// finished by Reconcile: committed if its deltas were applied, else aborted.
type Orders struct {
	db      *sql.DB
	docs    docstore.Store
	metrics *metrics.Metrics
}

// NewOrders returns an Orders service over the stock database and order documents.
func NewOrders(db *sql.DB, docs docstore.Store, m *metrics.Metrics) *Orders {
	return &Orders{db: db, docs: docs, metrics: m}
}

// PlaceOrder records an order for buyer and takes its quantities out of
// stock. Line items are priced from the catalog; items whose product no
// longer exists are kept as submitted. clientTotal is only compared against
// the computed total.
func (o *Orders) PlaceOrder(ctx context.Context, buyer auth.Identity, items []model.OrderItem, clientTotal float64) (string, error) {
	if len(items) == 0 {
		return "", validationf("order has no items")
	}
	for i, item := range items {
		if item.ProductID <= 0 {
			return "", validationf("item %d: invalid productId", i)
		}
		if item.Quantity <= 0 {
			return "", validationf("item %d: quantity must be positive", i)
		}
	}

	order, err := o.snapshot(ctx, buyer, items)
	if err != nil {
		o.metrics.OrderPlaced(metrics.OutcomeFailed)
		return "", err
	}
	if clientTotal > 0 && !decimal.NewFromFloat(clientTotal).Equal(decimal.NewFromFloat(order.Total)) {
		slog.Warn("order total differs from catalog prices", "buyer", order.BuyerID, "submitted", clientTotal, "computed", order.Total)
	}

	if err := o.docs.InsertOrder(ctx, order); err != nil {
		o.metrics.OrderPlaced(metrics.OutcomeFailed)
		return "", fmt.Errorf("recording order: %w", err)
	}

	deltas := make([]store.StockDelta, 0, len(order.Items))
	for _, item := range order.Items {
		deltas = append(deltas, store.StockDelta{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	// The order now exists; compensation must run even if the client is gone.
	bg := context.WithoutCancel(ctx)

	missing, err := store.ApplyOrderStock(ctx, o.db, order.ID, deltas)
	if err != nil {
		if serr := o.docs.SetOrderState(bg, order.ID, model.OrderStateAborted); serr != nil {
			slog.Error("aborting order", "order", order.ID, "error", serr)
		}
		o.metrics.OrderPlaced(metrics.OutcomeAborted)
		return "", fmt.Errorf("applying stock for order %s: %w", order.ID, err)
	}
	if len(missing) > 0 {
		slog.Warn("order references missing products", "order", order.ID, "products", missing)
	}

	if err := o.docs.SetOrderState(bg, order.ID, model.OrderStateCommitted); err != nil {
		slog.Error("committing order, left for reconciliation", "order", order.ID, "error", err)
	}

	if n, err := o.docs.ClearCart(bg, order.BuyerID); err != nil {
		slog.Error("clearing cart", "order", order.ID, "buyer", order.BuyerID, "error", err)
	} else if n > 0 {
		slog.Info("cart cleared", "buyer", order.BuyerID, "items", n)
	}

	o.metrics.OrderPlaced(metrics.OutcomeCommitted)
	slog.Info("order placed", "order", order.ID, "buyer", order.BuyerID, "total", order.Total)
	return order.ID, nil
}

// snapshot builds the reserving order, capturing seller and price of every
// line at order time.
func (o *Orders) snapshot(ctx context.Context, buyer auth.Identity, items []model.OrderItem) (*model.Order, error) {
	now := time.Now().UTC()
	order := &model.Order{
		ID:         uuid.NewString(),
		BuyerID:    strings.TrimSpace(buyer.UserID),
		BuyerEmail: buyer.Email,
		Items:      make([]model.OrderItem, 0, len(items)),
		SellerIDs:  []string{},
		Status:     model.OrderStatusPending,
		State:      model.OrderStateReserving,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	total := decimal.Zero
	sellers := map[string]bool{}
	for _, item := range items {
		p, err := store.GetProduct(ctx, o.db, item.ProductID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			slog.Warn("order item for missing product kept as submitted", "buyer", order.BuyerID, "product", item.ProductID)
			// The seller of a missing product can't be verified.
			item.SellerID = ""
		} else {
			item.Name = p.Name
			item.SellerID = strings.TrimSpace(p.OwnerID)
			item.UnitPrice = p.Price
			item.TotalPrice = lineTotal(p.Price, item.Quantity)
		}

		if item.SellerID != "" && !sellers[item.SellerID] {
			sellers[item.SellerID] = true
			order.SellerIDs = append(order.SellerIDs, item.SellerID)
		}
		total = total.Add(decimal.NewFromFloat(item.TotalPrice))
		order.Items = append(order.Items, item)
	}
	order.Total = total.Round(2).InexactFloat64()
	return order, nil
}

func lineTotal(unitPrice float64, quantity int) float64 {
	return decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(quantity))).Round(2).InexactFloat64()
}

// GetOrder returns an order readable by caller: its buyer or a seller with
// a line item in it.
func (o *Orders) GetOrder(ctx context.Context, id string, caller auth.Identity) (*model.Order, error) {
	order, err := o.docs.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}
	if !order.VisibleTo(caller.UserID) {
		return nil, fmt.Errorf("order %s: %w", id, model.ErrForbidden)
	}
	return order, nil
}

// ListForBuyer returns the caller's orders, newest first.
func (o *Orders) ListForBuyer(ctx context.Context, caller auth.Identity) ([]model.Order, error) {
	orders, err := o.docs.ListOrdersByBuyer(ctx, strings.TrimSpace(caller.UserID))
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

// Reconcile finishes orders that have been reserving for longer than
// olderThan. It returns how many it committed and aborted.
func (o *Orders) Reconcile(ctx context.Context, olderThan time.Duration) (committed, aborted int, err error) {
	pending, err := o.docs.ListReservingOrders(ctx, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, 0, err
	}

	var errs []error
	for _, order := range pending {
		applied, err := store.StockApplied(ctx, o.db, order.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		state := model.OrderStateAborted
		if applied {
			state = model.OrderStateCommitted
		}
		if err := o.docs.SetOrderState(ctx, order.ID, state); err != nil {
			errs = append(errs, err)
			continue
		}

		o.metrics.OrderReconciled(state)
		slog.Info("order reconciled", "order", order.ID, "state", state)
		if applied {
			committed++
		} else {
			aborted++
		}
	}
	return committed, aborted, errors.Join(errs...)
}

// RunReconciler calls Reconcile once and then every interval until ctx is
// done.
func (o *Orders) RunReconciler(ctx context.Context, interval, olderThan time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, _, err := o.Reconcile(ctx, olderThan); err != nil && ctx.Err() == nil {
			slog.Error("reconciling orders", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
