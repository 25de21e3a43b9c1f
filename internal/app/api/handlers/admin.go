package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tamwil/paygate/internal/app/service/orchestrator"
	"github.com/tamwil/paygate/internal/models"
	"github.com/tamwil/paygate/pkg/response"
	"github.com/tamwil/paygate/pkg/types"
)

type TransactionItem struct {
	ID                   string               `json:"id"`
	ReferenceID          string               `json:"reference_id"`
	UserID               string               `json:"user_id"`
	WalletID             string               `json:"wallet_id"`
	GatewayType          types.GatewayType    `json:"gateway_type"`
	GatewayTransactionID *string              `json:"gateway_transaction_id"`
	Amount               decimal.Decimal      `json:"amount"`
	Currency             string               `json:"currency"`
	Status               models.PaymentStatus `json:"status"`
	ProcessedAt          *time.Time           `json:"processed_at"`
	CreatedAt            time.Time            `json:"created_at"`
}

type listTransactionsResponse struct {
	Items []TransactionItem `json:"items"`
	Total int64             `json:"total"`
}

// @Summary      Scan transactions
// @Description  Paginated, filterable transaction listing for admin dashboards.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body orchestrator.ScanTransactionsRequest true "Scan request"
// @Success      200  {object}  response.APIResponse[listTransactionsResponse]
// @Router       /api/v1/admin/transactions/scan [post]
func ApiScanTransactions(mgr orchestrator.PaymentManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req orchestrator.ScanTransactionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		res, err := mgr.ScanTransactions(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}

		out := listTransactionsResponse{Total: res.Total, Items: make([]TransactionItem, 0, len(res.Items))}
		for _, t := range res.Items {
			out.Items = append(out.Items, TransactionItem{
				ID:                   t.ID,
				ReferenceID:          t.ReferenceID,
				UserID:               t.UserID,
				WalletID:             t.WalletID,
				GatewayType:          t.GatewayType,
				GatewayTransactionID: t.GatewayTransactionID,
				Amount:               t.Amount,
				Currency:             t.Currency,
				Status:               t.Status,
				ProcessedAt:          t.ProcessedAt,
				CreatedAt:            t.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, response.OKT(out))
	}
}

func RegisterAdminRoutes(r gin.IRouter, mgr orchestrator.PaymentManager) {
	r.POST("/transactions/scan", ApiScanTransactions(mgr))
}
