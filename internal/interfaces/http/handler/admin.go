package handler

import (
	"github.com/gin-gonic/gin"

	logisticsapp "github.com/marketplace/backend/internal/application/logistics"
	orderapp "github.com/marketplace/backend/internal/application/order"
)

// AdminHandler exposes manual triggers for the background sweeps. The
// scheduler runs them on its own interval; these endpoints exist for
// operators who need a run now.
type AdminHandler struct {
	BaseHandler
	expiryService         *orderapp.ExpiryService
	autoCompletionService *logisticsapp.AutoCompletionService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(expiryService *orderapp.ExpiryService, autoCompletionService *logisticsapp.AutoCompletionService) *AdminHandler {
	return &AdminHandler{
		expiryService:         expiryService,
		autoCompletionService: autoCompletionService,
	}
}

// RunExpirySweep godoc
// @Summary      Run the pending order expiry sweep
// @Description  Cancel orders that stayed PENDING past the payment window and release their stock
// @Tags         admin
// @Produce      json
// @Success      200 {object} dto.Response{data=orderapp.ExpiryStats}
// @Router       /admin/sweeps/expiry [post]
func (h *AdminHandler) RunExpirySweep(c *gin.Context) {
	stats, err := h.expiryService.ExpirePendingOrders(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stats)
}

// RunAutoCompletionSweep godoc
// @Summary      Run the auto-completion sweep
// @Description  Finalize delivered shipments past the confirmation grace and send window reminders
// @Tags         admin
// @Produce      json
// @Success      200 {object} dto.Response{data=logisticsapp.AutoCompletionStats}
// @Router       /admin/sweeps/autocompletion [post]
func (h *AdminHandler) RunAutoCompletionSweep(c *gin.Context) {
	stats, err := h.autoCompletionService.Run(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stats)
}
