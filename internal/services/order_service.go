// internal/services/order_service.go
package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gitsubas/blingblingstore-sub000/internal/config"
	"github.com/gitsubas/blingblingstore-sub000/internal/models"
	"github.com/gitsubas/blingblingstore-sub000/internal/utils"
)

const orderPlacedNote = "Order placed successfully"

type OrderService struct {
	db                *gorm.DB
	payments          *PaymentService
	notifier          OrderNotifier
	txOptions         *sql.TxOptions
	lowStockThreshold int
}

type OrderItemRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int        `json:"quantity" validate:"required,min=1,max=99"`
}

// maxLineQuantity caps a single order line after duplicates are merged.
const maxLineQuantity = 99

type PlaceOrderRequest struct {
	Items           []OrderItemRequest      `json:"items" validate:"required,min=1,dive"`
	AddressID       *uuid.UUID              `json:"address_id,omitempty"`
	ShippingAddress *models.ShippingAddress `json:"shipping_address,omitempty"`
	PaymentMethod   models.PaymentMethod    `json:"payment_method" validate:"required,oneof=CARD PAYPAL COD"`
	PaymentToken    string                  `json:"payment_token,omitempty" validate:"max=255"`
	Notes           string                  `json:"notes,omitempty" validate:"max=1000"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type ReturnOrderRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=1000"`
}

type ProcessReturnRequest struct {
	Approve *bool  `json:"approve" validate:"required"`
	Restock bool   `json:"restock"`
	Note    string `json:"note,omitempty" validate:"max=1000"`
}

type UpdateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required"`
	Note   string             `json:"note,omitempty" validate:"max=1000"`
	// Force skips the transition table check.
	Force bool `json:"force,omitempty"`
}

type OrderFilter struct {
	utils.PaginationParams
	Status        *models.OrderStatus   `json:"status,omitempty"`
	PaymentStatus *models.PaymentStatus `json:"payment_status,omitempty"`
	UserID        *uuid.UUID            `json:"user_id,omitempty"`
	CreatedAfter  *time.Time            `json:"created_after,omitempty"`
	CreatedBefore *time.Time            `json:"created_before,omitempty"`
}

type ReturnFilter struct {
	utils.PaginationParams
	Status *models.ReturnStatus `json:"status,omitempty"`
}

func NewOrderService(db *gorm.DB, payments *PaymentService, notifier OrderNotifier, cfg *config.Config) *OrderService {
	return &OrderService{
		db:                db,
		payments:          payments,
		notifier:          notifier,
		txOptions:         cfg.Database.TxOptions(),
		lowStockThreshold: cfg.Store.LowStockThreshold,
	}
}

// PlaceOrder deducts stock for every line and creates the order in a single
// transaction. Payment is collected after commit.
func (s *OrderService) PlaceOrder(ctx context.Context, userID uuid.UUID, req *PlaceOrderRequest) (*models.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if !req.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}

	shipping, err := s.resolveShippingAddress(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	orderNumber, err := utils.GenerateOrderNumber(time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to generate order number: %w", err)
	}

	lines, err := mergeOrderLines(req.Items)
	if err != nil {
		return nil, err
	}
	order := &models.Order{
		OrderNumber:     orderNumber,
		UserID:          userID,
		Status:          models.OrderStatusPending,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentStatusPending,
		ShippingAddress: shipping,
		Notes:           req.Notes,
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))

		for _, line := range lines {
			item, err := s.reserveLine(tx, line)
			if err != nil {
				return err
			}
			total = total.Add(item.Subtotal)
			items = append(items, *item)
		}

		order.Total = total
		order.Items = items
		order.Timeline = []models.OrderTimeline{{
			Status:  models.OrderStatusPending,
			Note:    orderPlacedNote,
			ActorID: &userID,
		}}

		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"user_id":      userID,
		"total":        order.Total.StringFixed(2),
	}).Info("Order placed")

	s.collectPayment(ctx, order, req.PaymentToken)

	placed, err := s.loadOrder(s.db.WithContext(ctx), order.ID)
	if err != nil {
		return nil, err
	}

	s.notify("order_placed", func(n OrderNotifier) error { return n.OrderPlaced(placed) })
	return placed, nil
}

// reserveLine reads the current price and deducts stock with a conditional
// update, so two orders can never both take the last unit.
func (s *OrderService) reserveLine(tx *gorm.DB, line OrderItemRequest) (*models.OrderItem, error) {
	if line.Quantity < 1 || line.Quantity > maxLineQuantity {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, line.Quantity)
	}

	var product models.Product
	if err := tx.Where("id = ?", line.ProductID).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if product.Status != models.ProductStatusActive {
		return nil, fmt.Errorf("%w: %s", ErrProductInactive, product.Name)
	}

	item := &models.OrderItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    line.Quantity,
		UnitPrice:   product.Price,
	}
	available := product.Stock

	var result *gorm.DB
	if line.VariantID != nil {
		var variant models.Variant
		if err := tx.Where("id = ? AND product_id = ?", *line.VariantID, product.ID).First(&variant).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, *line.VariantID)
			}
			return nil, fmt.Errorf("database error: %w", err)
		}

		item.VariantID = &variant.ID
		item.VariantLabel = variant.Label()
		item.UnitPrice = variant.EffectivePrice(&product)
		available = variant.Stock

		result = tx.Model(&models.Variant{}).
			Where("id = ? AND stock >= ?", variant.ID, line.Quantity).
			UpdateColumn("stock", gorm.Expr("stock - ?", line.Quantity))
	} else {
		result = tx.Model(&models.Product{}).
			Where("id = ? AND stock >= ?", product.ID, line.Quantity).
			UpdateColumn("stock", gorm.Expr("stock - ?", line.Quantity))
	}

	if result.Error != nil {
		return nil, fmt.Errorf("failed to update stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w for %s", ErrInsufficientStock, product.Name)
	}

	item.Subtotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))

	remaining := available - line.Quantity
	if available > s.lowStockThreshold && remaining <= s.lowStockThreshold {
		name := product.Name
		if item.VariantLabel != "" {
			name += " (" + item.VariantLabel + ")"
		}
		if err := CreateAdminNotification(tx, models.NotificationTypeLowStock, "Low stock",
			fmt.Sprintf("%s has %d left in stock", name, remaining), "medium", "product", &product.ID); err != nil {
			return nil, err
		}
	}

	return item, nil
}

func (s *OrderService) resolveShippingAddress(ctx context.Context, userID uuid.UUID, req *PlaceOrderRequest) (models.ShippingAddress, error) {
	if req.AddressID != nil {
		var address models.Address
		err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", *req.AddressID, userID).First(&address).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ShippingAddress{}, ErrAddressNotFound
			}
			return models.ShippingAddress{}, fmt.Errorf("database error: %w", err)
		}
		return address.Snapshot(), nil
	}

	if req.ShippingAddress != nil {
		return *req.ShippingAddress, nil
	}

	return models.ShippingAddress{}, ErrShippingAddressMissing
}

func (s *OrderService) collectPayment(ctx context.Context, order *models.Order, token string) {
	result, payErr := s.payments.ChargeOrder(ctx, order, token)
	if payErr != nil {
		logrus.WithError(payErr).WithField("order_id", order.ID).Warn("Payment failed")

		werr := s.transaction(ctx, func(tx *gorm.DB) error {
			if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).
				Update("payment_status", models.PaymentStatusFailed).Error; err != nil {
				return err
			}
			if err := tx.Create(&models.OrderTimeline{
				OrderID: order.ID,
				Status:  order.Status,
				Note:    "Payment failed: " + payErr.Error(),
			}).Error; err != nil {
				return err
			}
			return CreateAdminNotification(tx, models.NotificationTypePaymentFailed, "Payment failed",
				fmt.Sprintf("Payment for order %s failed", order.OrderNumber), "high", "order", &order.ID)
		})
		if werr != nil {
			logrus.WithError(werr).WithField("order_id", order.ID).Error("Failed to record payment failure")
		}
		return
	}

	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"payment_status":    result.Status,
			"payment_reference": result.Reference,
		}).Error; err != nil {
		logrus.WithError(err).WithField("order_id", order.ID).Error("Failed to record payment")
	}
}

// CancelOrder is the customer path: owner only, PENDING or PROCESSING only.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID uuid.UUID, reason string) (*models.Order, error) {
	var order *models.Order
	var refund bool

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.loadOrder(tx, orderID)
		if err != nil {
			return err
		}
		if !order.OwnedBy(userID) {
			return ErrForbidden
		}
		if !order.Status.Cancellable() {
			return ErrOrderNotCancellable
		}

		note := "Order cancelled by customer"
		if reason != "" {
			note += ": " + reason
		}
		refund, err = s.cancelInTx(tx, order, note, &userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.afterStatusChange(ctx, order, refund)
}

// cancelInTx restores stock and moves the order to CANCELLED. It reports
// whether a captured payment has to be refunded.
func (s *OrderService) cancelInTx(tx *gorm.DB, order *models.Order, note string, actorID *uuid.UUID) (bool, error) {
	extra := map[string]interface{}{}
	refund := order.PaymentStatus == models.PaymentStatusPaid
	if refund {
		extra["payment_status"] = models.PaymentStatusRefunded
	}

	if err := s.transition(tx, order, models.OrderStatusCancelled, note, actorID, extra); err != nil {
		if errors.Is(err, ErrOrderConflict) {
			return false, ErrOrderNotCancellable
		}
		return false, err
	}
	if err := restoreStock(tx, order.Items); err != nil {
		return false, err
	}
	if refund {
		order.PaymentStatus = models.PaymentStatusRefunded
	}
	return refund, nil
}

// RequestReturn opens a return for a delivered order.
func (s *OrderService) RequestReturn(ctx context.Context, orderID, userID uuid.UUID, reason string) (*models.ReturnRequest, error) {
	var ret *models.ReturnRequest

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		order, err := s.loadOrder(tx, orderID)
		if err != nil {
			return err
		}
		if !order.OwnedBy(userID) {
			return ErrForbidden
		}
		if order.Status != models.OrderStatusDelivered {
			return ErrReturnNotAllowed
		}

		ret = &models.ReturnRequest{
			OrderID: order.ID,
			UserID:  userID,
			Reason:  reason,
			Status:  models.ReturnStatusPending,
		}
		if err := tx.Create(ret).Error; err != nil {
			return fmt.Errorf("failed to create return request: %w", err)
		}

		if err := s.transition(tx, order, models.OrderStatusReturnRequested, "Return requested: "+reason, &userID, nil); err != nil {
			if errors.Is(err, ErrOrderConflict) {
				return ErrReturnNotAllowed
			}
			return err
		}

		return CreateAdminNotification(tx, models.NotificationTypeReturnRequested, "Return requested",
			fmt.Sprintf("Order %s has a new return request", order.OrderNumber), "high", "return_request", &ret.ID)
	})
	if err != nil {
		return nil, err
	}

	return ret, nil
}

// ProcessReturn approves or rejects a pending return in one transaction.
func (s *OrderService) ProcessReturn(ctx context.Context, returnID, adminID uuid.UUID, req *ProcessReturnRequest) (*models.ReturnRequest, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	approve := *req.Approve

	var ret models.ReturnRequest
	var order *models.Order
	var refund bool

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", returnID).First(&ret).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReturnNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}
		if ret.Status != models.ReturnStatusPending {
			return ErrReturnAlreadyProcessed
		}

		var err error
		order, err = s.loadOrder(tx, ret.OrderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderStatusReturnRequested {
			return fmt.Errorf("%w: order is %s", ErrInvalidTransition, order.Status)
		}

		now := time.Now()
		updates := map[string]interface{}{
			"admin_note":   req.Note,
			"processed_by": adminID,
			"processed_at": now,
		}

		if approve {
			extra := map[string]interface{}{}
			if order.PaymentStatus == models.PaymentStatusPaid {
				extra["payment_status"] = models.PaymentStatusRefunded
				refund = true
			}
			if err := s.transition(tx, order, models.OrderStatusReturned, returnNote("Return approved", req.Note), &adminID, extra); err != nil {
				return err
			}
			if req.Restock {
				if err := restoreStock(tx, order.Items); err != nil {
					return err
				}
			}
			if refund {
				order.PaymentStatus = models.PaymentStatusRefunded
			}
			updates["status"] = models.ReturnStatusApproved
			updates["restocked"] = req.Restock
		} else {
			if err := s.transition(tx, order, models.OrderStatusDelivered, returnNote("Return rejected", req.Note), &adminID, nil); err != nil {
				return err
			}
			updates["status"] = models.ReturnStatusRejected
		}

		result := tx.Model(&models.ReturnRequest{}).
			Where("id = ? AND status = ?", ret.ID, models.ReturnStatusPending).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update return request: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrReturnAlreadyProcessed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if refund {
		s.refund(ctx, order)
	}

	var processed models.ReturnRequest
	if err := s.db.WithContext(ctx).Preload("Order").Where("id = ?", ret.ID).First(&processed).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	s.notify("return_processed", func(n OrderNotifier) error { return n.ReturnProcessed(order, &processed) })
	return &processed, nil
}

// UpdateOrderStatus is the admin path. Moves outside the transition table
// need Force.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID, adminID uuid.UUID, req *UpdateOrderStatusRequest) (*models.Order, error) {
	if !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	note := req.Note
	if note == "" {
		note = fmt.Sprintf("Order status updated to %s", req.Status)
	}

	var order *models.Order
	var refund bool

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.loadOrder(tx, orderID)
		if err != nil {
			return err
		}

		if !req.Force && !models.CanTransition(order.Status, req.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, req.Status)
		}

		if req.Status == models.OrderStatusCancelled && order.Status != models.OrderStatusCancelled {
			refund, err = s.cancelInTx(tx, order, note, &adminID)
			return err
		}

		extra := map[string]interface{}{}
		if req.Status == models.OrderStatusDelivered &&
			order.PaymentMethod == models.PaymentMethodCOD &&
			order.PaymentStatus == models.PaymentStatusPending {
			extra["payment_status"] = models.PaymentStatusPaid
		}
		return s.transition(tx, order, req.Status, note, &adminID, extra)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"status":   req.Status,
		"admin_id": adminID,
		"forced":   req.Force,
	}).Info("Order status updated")

	return s.afterStatusChange(ctx, order, refund)
}

// DeleteOrder soft deletes an order. Admin only.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID, adminID uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("id = ?", orderID).Delete(&models.Order{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete order: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}

	logrus.WithFields(logrus.Fields{
		"order_id": orderID,
		"admin_id": adminID,
	}).Warn("Order deleted")
	return nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID, userID uuid.UUID, isAdmin bool) (*models.Order, error) {
	order, err := s.loadOrder(s.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !order.OwnedBy(userID) {
		return nil, ErrForbidden
	}
	return order, nil
}

// ListUserOrders returns the caller's orders, newest first.
func (s *OrderService) ListUserOrders(ctx context.Context, userID uuid.UUID, params utils.PaginationParams) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.Order
	err := utils.ApplyPagination(query.Preload("Items").Order("created_at desc"), params).Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch orders: %w", err)
	}

	return orders, total, nil
}

func (s *OrderService) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filter.PaymentStatus)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(order_number) LIKE ?", utils.LikePattern(filter.Search))
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "total", "status", "order_number"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var orders []models.Order
	if err := query.Preload("User").Preload("Items").Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch orders: %w", err)
	}

	return orders, total, nil
}

func (s *OrderService) ListReturns(ctx context.Context, filter ReturnFilter) ([]models.ReturnRequest, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ReturnRequest{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count return requests: %w", err)
	}

	query = utils.ApplySort(query, filter.PaginationParams, []string{"created_at", "status"})
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var returns []models.ReturnRequest
	if err := query.Preload("Order").Find(&returns).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch return requests: %w", err)
	}

	return returns, total, nil
}

// transition moves the order from its loaded status to "to" and appends a
// timeline entry. The write only applies if nobody changed the status since
// it was read.
func (s *OrderService) transition(tx *gorm.DB, order *models.Order, to models.OrderStatus, note string, actorID *uuid.UUID, extra map[string]interface{}) error {
	now := time.Now()
	updates := map[string]interface{}{"status": to}
	switch to {
	case models.OrderStatusShipped:
		updates["shipped_at"] = now
	case models.OrderStatusDelivered:
		updates["delivered_at"] = now
	case models.OrderStatusCancelled:
		updates["cancelled_at"] = now
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, order.Status).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update order: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOrderConflict
	}

	entry := models.OrderTimeline{
		OrderID: order.ID,
		Status:  to,
		Note:    note,
		ActorID: actorID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to append timeline: %w", err)
	}

	order.Status = to
	return nil
}

func (s *OrderService) afterStatusChange(ctx context.Context, order *models.Order, refund bool) (*models.Order, error) {
	if refund {
		s.refund(ctx, order)
	}

	updated, err := s.loadOrder(s.db.WithContext(ctx), order.ID)
	if err != nil {
		return nil, err
	}

	note := ""
	if n := len(updated.Timeline); n > 0 {
		note = updated.Timeline[n-1].Note
	}
	s.notify("order_status", func(n OrderNotifier) error { return n.OrderStatusChanged(updated, note) })
	return updated, nil
}

func (s *OrderService) refund(ctx context.Context, order *models.Order) {
	if err := s.payments.RefundOrder(ctx, order); err != nil {
		logrus.WithError(err).WithField("order_id", order.ID).Error("Refund failed")
		if nerr := CreateAdminNotification(s.db.WithContext(ctx), models.NotificationTypePaymentFailed, "Refund failed",
			fmt.Sprintf("Refund for order %s failed: %v", order.OrderNumber, err), "high", "order", &order.ID); nerr != nil {
			logrus.WithError(nerr).Error("Failed to record refund failure")
		}
	}
}

func (s *OrderService) loadOrder(db *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := db.Preload("Items").
		Preload("Timeline", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		Preload("Returns").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &order, nil
}

func (s *OrderService) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.txOptions != nil {
		return s.db.WithContext(ctx).Transaction(fn, s.txOptions)
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *OrderService) notify(event string, fn func(OrderNotifier) error) {
	if s.notifier == nil {
		return
	}
	go func() {
		if err := fn(s.notifier); err != nil {
			logrus.WithError(err).WithField("event", event).Warn("Failed to send order notification")
		}
	}()
}

func restoreStock(tx *gorm.DB, items []models.OrderItem) error {
	for _, item := range items {
		var err error
		if item.VariantID != nil {
			err = tx.Unscoped().Model(&models.Variant{}).
				Where("id = ?", *item.VariantID).
				UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity)).Error
		} else {
			err = tx.Unscoped().Model(&models.Product{}).
				Where("id = ?", item.ProductID).
				UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity)).Error
		}
		if err != nil {
			return fmt.Errorf("failed to restore stock for %s: %w", item.ProductName, err)
		}
	}
	return nil
}

// mergeOrderLines folds duplicate product/variant lines together and sorts
// them so concurrent orders touch stock rows in the same order. A merged line
// above maxLineQuantity is rejected.
func mergeOrderLines(items []OrderItemRequest) ([]OrderItemRequest, error) {
	type key struct {
		product uuid.UUID
		variant uuid.UUID
	}

	merged := make(map[key]*OrderItemRequest, len(items))
	var lines []OrderItemRequest
	for _, item := range items {
		if item.Quantity < 1 || item.Quantity > maxLineQuantity {
			return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, item.Quantity)
		}
		k := key{product: item.ProductID}
		if item.VariantID != nil {
			k.variant = *item.VariantID
		}
		if existing, ok := merged[k]; ok {
			if existing.Quantity > maxLineQuantity-item.Quantity {
				return nil, fmt.Errorf("%w: more than %d of one item", ErrInvalidQuantity, maxLineQuantity)
			}
			existing.Quantity += item.Quantity
			continue
		}
		line := item
		merged[k] = &line
	}

	for _, line := range merged {
		lines = append(lines, *line)
	}
	sort.Slice(lines, func(i, j int) bool {
		if c := bytes.Compare(lines[i].ProductID[:], lines[j].ProductID[:]); c != 0 {
			return c < 0
		}
		return variantKey(lines[i].VariantID) < variantKey(lines[j].VariantID)
	})
	return lines, nil
}

func variantKey(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func returnNote(prefix, note string) string {
	if note == "" {
		return prefix
	}
	return prefix + ": " + note
}
