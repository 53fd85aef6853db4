// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gitsubas/blingblingstore-sub000/internal/config"
	"github.com/gitsubas/blingblingstore-sub000/internal/models"
)

// OrderNotifier receives order lifecycle events after they are committed.
type OrderNotifier interface {
	OrderPlaced(order *models.Order) error
	OrderStatusChanged(order *models.Order, note string) error
	ReturnProcessed(order *models.Order, ret *models.ReturnRequest) error
}

type NotificationService struct {
	db     *gorm.DB
	config *config.Config
	send   func(to, subject, body string) error
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	s := &NotificationService{
		db:     db,
		config: config,
	}
	s.send = s.sendEmail
	return s
}

func (s *NotificationService) OrderPlaced(order *models.Order) error {
	return s.mailOrder(order, "order_placed", map[string]interface{}{})
}

func (s *NotificationService) OrderStatusChanged(order *models.Order, note string) error {
	return s.mailOrder(order, "order_status", map[string]interface{}{
		"Note": note,
	})
}

func (s *NotificationService) ReturnProcessed(order *models.Order, ret *models.ReturnRequest) error {
	return s.mailOrder(order, "return_processed", map[string]interface{}{
		"Approved":  ret.Status == models.ReturnStatusApproved,
		"AdminNote": ret.AdminNote,
	})
}

// CreateAdminNotification stores an in-app notice for the admin console. Pass
// a transaction handle to make it part of a larger write.
func CreateAdminNotification(db *gorm.DB, kind, title, message, priority, resourceType string, resourceID *uuid.UUID) error {
	notification := &models.AdminNotification{
		Type:                kind,
		Title:               title,
		Message:             message,
		Priority:            priority,
		Status:              "unread",
		RelatedResourceType: resourceType,
		RelatedResourceID:   resourceID,
	}
	if err := db.Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *NotificationService) mailOrder(order *models.Order, templateType string, extra map[string]interface{}) error {
	var user models.User
	if err := s.db.Where("id = ?", order.UserID).First(&user).Error; err != nil {
		return fmt.Errorf("user not found: %w", err)
	}

	data := map[string]interface{}{
		"Name":        displayName(&user),
		"OrderNumber": order.OrderNumber,
		"Status":      order.Status,
		"Total":       order.Total.StringFixed(2),
		"Items":       order.Items,
		"OrderURL":    fmt.Sprintf("%s/orders/%s", s.config.Frontend.BaseURL, order.ID),
		"StoreName":   s.config.Store.Name,
	}
	for k, v := range extra {
		data[k] = v
	}

	tmpl := s.getEmailTemplate(templateType)
	subject, err := s.renderTemplate(tmpl.Subject, data)
	if err != nil {
		return fmt.Errorf("failed to render email subject: %w", err)
	}
	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.send(user.Email, subject, body)
}

// Helper methods
func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		logrus.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).Info("SMTP not configured, email skipped")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	from := fmt.Sprintf("%s <%s>", s.config.Email.FromName, s.config.Email.FromEmail)
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", from, to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *NotificationService) getEmailTemplate(templateType string) EmailTemplate {
	templates := map[string]EmailTemplate{
		"order_placed": {
			Subject: "Order {{.OrderNumber}} confirmed",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Thank you, {{.Name}}!</h2>
	<p>We received your order <strong>{{.OrderNumber}}</strong>.</p>
	<table>
	{{range .Items}}<tr><td>{{.ProductName}}{{if .VariantLabel}} ({{.VariantLabel}}){{end}}</td><td>x{{.Quantity}}</td><td>{{.Subtotal.StringFixed 2}}</td></tr>
	{{end}}</table>
	<p>Total: {{.Total}}</p>
	<a href="{{.OrderURL}}">Track your order</a>
	<p>{{.StoreName}}</p>
</body>
</html>`,
		},
		"order_status": {
			Subject: "Order {{.OrderNumber}} is now {{.Status}}",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Hello {{.Name}},</p>
	<p>Your order <strong>{{.OrderNumber}}</strong> is now <strong>{{.Status}}</strong>.</p>
	{{if .Note}}<p>{{.Note}}</p>{{end}}
	<a href="{{.OrderURL}}">View order</a>
	<p>{{.StoreName}}</p>
</body>
</html>`,
		},
		"return_processed": {
			Subject: "Return for order {{.OrderNumber}}",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Hello {{.Name}},</p>
	{{if .Approved}}<p>Your return was approved and a refund of {{.Total}} is on its way.</p>
	{{else}}<p>Your return request was not approved.</p>{{end}}
	{{if .AdminNote}}<p>{{.AdminNote}}</p>{{end}}
	<a href="{{.OrderURL}}">View order</a>
	<p>{{.StoreName}}</p>
</body>
</html>`,
		},
	}

	if template, exists := templates[templateType]; exists {
		return template
	}

	// Default template
	return EmailTemplate{
		Subject: "Order {{.OrderNumber}}",
		Body:    "<p>{{.Status}}</p>",
	}
}

func displayName(u *models.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
