package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ordersplit/backend/internal/application/ordersplit"
	"github.com/ordersplit/backend/internal/domain/fulfillment"
	"github.com/ordersplit/backend/internal/infrastructure/logger"
	"github.com/ordersplit/backend/internal/interfaces/http/dto"
	"github.com/ordersplit/backend/internal/interfaces/http/middleware"
)

// OrderSplitService is the application service behind the split endpoints
type OrderSplitService interface {
	HandleNotification(ctx context.Context, resourceURL string) (*ordersplit.NotificationResult, error)
	Preview(ctx context.Context, order *fulfillment.Order) (*fulfillment.SplitPlan, error)
}

// OrderSplitHandler serves the platform webhook and the split preview
type OrderSplitHandler struct {
	BaseHandler
	service OrderSplitService
}

// NewOrderSplitHandler creates a new OrderSplitHandler
func NewOrderSplitHandler(service OrderSplitService) *OrderSplitHandler {
	return &OrderSplitHandler{service: service}
}

// HandleOrderNotify godoc
// @ID           handleShipStationOrderNotify
// @Summary      Handle ShipStation order notification
// @Description  Fetches the orders referenced by resource_url and splits the ones that mix product families.
// @Description  Split records are submitted after the response unless inline submission is configured.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        request body dto.WebhookRequest true "Webhook payload"
// @Success      200 {object} dto.Response{data=dto.WebhookResponse}
// @Failure      400 {object} dto.Response
// @Failure      429 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Failure      503 {object} dto.Response
// @Router       /webhooks/shipstation/orders [post]
func (h *OrderSplitHandler) HandleOrderNotify(c *gin.Context) {
	var req dto.WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	if req.ResourceType != "" && req.ResourceType != dto.ResourceTypeOrderNotify {
		// acknowledged so the platform does not redeliver it
		logger.L(c.Request.Context()).Info("Ignoring webhook",
			zap.String("resource_type", req.ResourceType))
		h.Success(c, dto.WebhookResponse{
			Message: fmt.Sprintf("Ignored %s notification.", req.ResourceType),
			Orders:  make([]*fulfillment.Order, 0),
		})
		return
	}

	result, err := h.service.HandleNotification(c.Request.Context(), req.ResourceURL)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewWebhookResponse(result))
}

// PreviewSplit godoc
// @ID           previewOrderSplit
// @Summary      Preview an order split
// @Description  Returns the records a split of the posted order would submit. Nothing is sent to the platform.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        order body object true "ShipStation order"
// @Success      200 {object} dto.Response{data=dto.SplitPreviewResponse}
// @Failure      400 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /orders/split/preview [post]
func (h *OrderSplitHandler) PreviewSplit(c *gin.Context) {
	var order fulfillment.Order
	if err := c.ShouldBindJSON(&order); err != nil {
		if errors.Is(err, fulfillment.ErrMalformedOrder) {
			h.HandleError(c, err)
			return
		}
		middleware.HandleValidationError(c, err)
		return
	}

	plan, err := h.service.Preview(c.Request.Context(), &order)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewSplitPreviewResponse(plan))
}
