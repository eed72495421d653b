package dto

import (
	"github.com/google/uuid"

	"github.com/ordersplit/backend/internal/application/ordersplit"
	"github.com/ordersplit/backend/internal/domain/fulfillment"
)

// ResourceTypeOrderNotify is the webhook resource type for new orders
const ResourceTypeOrderNotify = "ORDER_NOTIFY"

// WebhookRequest is the platform's order notification payload
type WebhookRequest struct {
	ResourceURL  string `json:"resource_url" binding:"required,url"`
	ResourceType string `json:"resource_type"`
}

// WebhookResponse acknowledges a notification
type WebhookResponse struct {
	BatchID  uuid.UUID               `json:"batch_id"`
	Message  string                  `json:"message"`
	Analyzed int                     `json:"analyzed"`
	Queued   int                     `json:"queued"`
	Orders   []*fulfillment.Order    `json:"orders"`
	Report   *ordersplit.BatchReport `json:"report,omitempty"`
}

// NewWebhookResponse converts a service result
func NewWebhookResponse(r *ordersplit.NotificationResult) WebhookResponse {
	orders := r.Orders
	if orders == nil {
		orders = make([]*fulfillment.Order, 0)
	}
	return WebhookResponse{
		BatchID:  r.BatchID,
		Message:  r.Message,
		Analyzed: r.Analyzed,
		Queued:   r.Queued,
		Orders:   orders,
		Report:   r.Report,
	}
}

// SplitPreviewResponse shows what a split would submit
type SplitPreviewResponse struct {
	OrderNumber string               `json:"order_number"`
	Group       []string             `json:"group"`
	NeedsSplit  bool                 `json:"needs_split"`
	WillSubmit  bool                 `json:"will_submit"`
	Families    []string             `json:"families"`
	Records     []*fulfillment.Order `json:"records"`
}

// NewSplitPreviewResponse converts a split plan
func NewSplitPreviewResponse(p *fulfillment.SplitPlan) SplitPreviewResponse {
	families := make([]string, len(p.Families))
	for i, f := range p.Families {
		families[i] = f.String()
	}
	return SplitPreviewResponse{
		OrderNumber: p.OrderNumber,
		Group:       p.Group.Strings(),
		NeedsSplit:  p.NeedsSplit,
		WillSubmit:  p.ShouldSubmit(),
		Families:    families,
		Records:     p.Records,
	}
}
