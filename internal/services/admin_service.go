// internal/services/admin_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gitsubas/blingblingstore-sub000/internal/config"
	"github.com/gitsubas/blingblingstore-sub000/internal/models"
	"github.com/gitsubas/blingblingstore-sub000/internal/utils"
)

type AdminService struct {
	db                *gorm.DB
	lowStockThreshold int
}

type LowStockItem struct {
	ProductID    uuid.UUID  `json:"product_id"`
	VariantID    *uuid.UUID `json:"variant_id,omitempty"`
	ProductName  string     `json:"product_name"`
	VariantLabel string     `json:"variant_label,omitempty"`
	Stock        int        `json:"stock"`
}

type AdminDashboardStats struct {
	TotalUsers          int64                        `json:"total_users"`
	NewUsersThisMonth   int64                        `json:"new_users_this_month"`
	TotalProducts       int64                        `json:"total_products"`
	TotalOrders         int64                        `json:"total_orders"`
	OrdersByStatus      map[models.OrderStatus]int64 `json:"orders_by_status"`
	PendingReturns      int64                        `json:"pending_returns"`
	TotalRevenue        decimal.Decimal              `json:"total_revenue"`
	MonthlyRevenue      decimal.Decimal              `json:"monthly_revenue"`
	UnreadNotifications int64                        `json:"unread_notifications"`
	LowStock            []LowStockItem               `json:"low_stock"`
}

type AdminUserFilter struct {
	utils.PaginationParams
	Role          *models.UserRole   `json:"role,omitempty"`
	Status        *models.UserStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time         `json:"created_after,omitempty"`
	CreatedBefore *time.Time         `json:"created_before,omitempty"`
}

type NotificationFilter struct {
	utils.PaginationParams
	Status string `json:"status,omitempty"`
	Type   string `json:"type,omitempty"`
}

type UpdateUserStatusRequest struct {
	Status models.UserStatus `json:"status" validate:"required,oneof=active suspended"`
	Reason string            `json:"reason,omitempty" validate:"max=500"`
}

type UpdateUserRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required,oneof=customer admin"`
}

func NewAdminService(db *gorm.DB, cfg *config.Config) *AdminService {
	return &AdminService{
		db:                db,
		lowStockThreshold: cfg.Store.LowStockThreshold,
	}
}

// Dashboard Statistics
func (s *AdminService) GetDashboardStats(ctx context.Context) (*AdminDashboardStats, error) {
	db := s.db.WithContext(ctx)
	stats := &AdminDashboardStats{
		OrdersByStatus: make(map[models.OrderStatus]int64),
		TotalRevenue:   decimal.Zero,
		MonthlyRevenue: decimal.Zero,
	}
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	db.Model(&models.User{}).Count(&stats.TotalUsers)
	db.Model(&models.User{}).Where("created_at >= ?", monthStart).Count(&stats.NewUsersThisMonth)
	db.Model(&models.Product{}).Where("status = ?", models.ProductStatusActive).Count(&stats.TotalProducts)
	db.Model(&models.ReturnRequest{}).Where("status = ?", models.ReturnStatusPending).Count(&stats.PendingReturns)
	db.Model(&models.AdminNotification{}).Where("status = ?", "unread").Count(&stats.UnreadNotifications)

	var statusRows []struct {
		Status models.OrderStatus
		Total  int64
	}
	if err := db.Model(&models.Order{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&statusRows).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	for _, row := range statusRows {
		stats.OrdersByStatus[row.Status] = row.Total
		stats.TotalOrders += row.Total
	}

	revenue, err := s.revenueSince(db, time.Time{})
	if err != nil {
		return nil, err
	}
	stats.TotalRevenue = revenue

	monthly, err := s.revenueSince(db, monthStart)
	if err != nil {
		return nil, err
	}
	stats.MonthlyRevenue = monthly

	stats.LowStock, err = s.GetLowStock(ctx)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// revenueSince sums paid orders that were not cancelled or returned.
func (s *AdminService) revenueSince(db *gorm.DB, since time.Time) (decimal.Decimal, error) {
	query := db.Model(&models.Order{}).
		Where("payment_status = ?", models.PaymentStatusPaid).
		Where("status NOT IN ?", []models.OrderStatus{models.OrderStatusCancelled, models.OrderStatusReturned})
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}

	var total decimal.NullDecimal
	if err := query.Select("SUM(total)").Row().Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum revenue: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// GetLowStock lists active products and variants at or below the threshold.
func (s *AdminService) GetLowStock(ctx context.Context) ([]LowStockItem, error) {
	db := s.db.WithContext(ctx)
	items := []LowStockItem{}

	var products []models.Product
	if err := db.Where("status = ? AND stock <= ?", models.ProductStatusActive, s.lowStockThreshold).
		Where("NOT EXISTS (SELECT 1 FROM variants WHERE variants.product_id = products.id AND variants.deleted_at IS NULL)").
		Order("stock asc").
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch low stock products: %w", err)
	}
	for _, p := range products {
		items = append(items, LowStockItem{ProductID: p.ID, ProductName: p.Name, Stock: p.Stock})
	}

	var variants []models.Variant
	if err := db.Joins("JOIN products ON products.id = variants.product_id AND products.deleted_at IS NULL").
		Where("products.status = ? AND variants.stock <= ?", models.ProductStatusActive, s.lowStockThreshold).
		Order("variants.stock asc").
		Find(&variants).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch low stock variants: %w", err)
	}
	if len(variants) > 0 {
		names := map[uuid.UUID]string{}
		var ids []uuid.UUID
		for _, v := range variants {
			ids = append(ids, v.ProductID)
		}
		var parents []models.Product
		db.Where("id IN ?", ids).Find(&parents)
		for _, p := range parents {
			names[p.ID] = p.Name
		}

		for _, v := range variants {
			id := v.ID
			items = append(items, LowStockItem{
				ProductID:    v.ProductID,
				VariantID:    &id,
				ProductName:  names[v.ProductID],
				VariantLabel: v.Label(),
				Stock:        v.Stock,
			})
		}
	}

	return items, nil
}

// User Management
func (s *AdminService) GetUsers(ctx context.Context, filter AdminUserFilter) ([]models.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{})

	if filter.Role != nil {
		query = query.Where("role = ?", *filter.Role)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Search != "" {
		searchTerm := utils.LikePattern(filter.Search)
		query = query.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", searchTerm, searchTerm, searchTerm)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "username", "email", "role", "status", "last_login_at"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	return users, total, nil
}

func (s *AdminService) UpdateUserStatus(ctx context.Context, userID, adminID uuid.UUID, req *UpdateUserStatusRequest) (*models.User, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if userID == adminID {
		return nil, ErrForbidden
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	oldStatus := user.Status
	if err := s.db.WithContext(ctx).Model(user).Update("status", req.Status).Error; err != nil {
		return nil, fmt.Errorf("failed to update user status: %w", err)
	}
	user.Status = req.Status

	s.createAuditLog(ctx, adminID, "UPDATE_USER_STATUS", "user", &userID, map[string]interface{}{
		"old_status": oldStatus,
		"status":     req.Status,
		"reason":     req.Reason,
	})
	return user, nil
}

// UpdateUserRole promotes or demotes a user. Admins cannot change their own
// role, so the store always keeps at least the acting admin.
func (s *AdminService) UpdateUserRole(ctx context.Context, userID, adminID uuid.UUID, req *UpdateUserRoleRequest) (*models.User, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if req.Role != models.UserRoleCustomer && req.Role != models.UserRoleAdmin {
		return nil, ErrInvalidRole
	}
	if userID == adminID {
		return nil, ErrForbidden
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	oldRole := user.Role
	if err := s.db.WithContext(ctx).Model(user).Update("role", req.Role).Error; err != nil {
		return nil, fmt.Errorf("failed to update user role: %w", err)
	}
	user.Role = req.Role

	s.createAuditLog(ctx, adminID, "UPDATE_USER_ROLE", "user", &userID, map[string]interface{}{
		"old_role": oldRole,
		"role":     req.Role,
	})
	return user, nil
}

// Notifications
func (s *AdminService) GetNotifications(ctx context.Context, filter NotificationFilter) ([]models.AdminNotification, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.AdminNotification{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query = utils.ApplySort(query, filter.PaginationParams, []string{"created_at", "priority", "type"})
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var notifications []models.AdminNotification
	if err := query.Find(&notifications).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	return notifications, total, nil
}

func (s *AdminService) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&models.AdminNotification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": "read", "read_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to update notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// Audit log
func (s *AdminService) GetAuditLogs(ctx context.Context, params utils.PaginationParams) ([]models.AuditLog, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if params.Search != "" {
		searchTerm := utils.LikePattern(params.Search)
		query = query.Where("LOWER(action) LIKE ? OR LOWER(resource_type) LIKE ?", searchTerm, searchTerm)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "action"})
	query = utils.ApplyPagination(query, params)

	var logs []models.AuditLog
	if err := query.Preload("User").Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}
	return logs, total, nil
}

func (s *AdminService) findUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

func (s *AdminService) createAuditLog(ctx context.Context, userID uuid.UUID, action, resourceType string, resourceID *uuid.UUID, values map[string]interface{}) {
	auditLog := &models.AuditLog{
		UserID:       &userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		NewValues:    models.JSONB(values),
	}

	if err := s.db.WithContext(ctx).Create(auditLog).Error; err != nil {
		logrus.WithError(err).WithField("action", action).Warn("Failed to write audit log")
	}
}
