package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tamwil/paygate/internal/app/service/orchestrator"
	"github.com/tamwil/paygate/pkg/response"
	"github.com/tamwil/paygate/pkg/types"
)

type processPaymentRequest struct {
	TransactionID string            `json:"transaction_id"`
	GatewayType   types.GatewayType `json:"gateway_type"`
}

// @Summary      Create payment
// @Description  Creates a pending transaction and dispatches it to the selected gateway.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body orchestrator.CreatePaymentRequest true "Payment creation request"
// @Success      200  {object}  response.APIResponse[orchestrator.ProcessPaymentResult]
// @Router       /api/v1/payments [post]
func ApiCreatePayment(mgr orchestrator.PaymentManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req orchestrator.CreatePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		res, err := mgr.CreatePayment(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, paymentError(err))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Process payment
// @Description  Dispatches an existing pending transaction to its gateway.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body processPaymentRequest true "Payment processing request"
// @Success      200  {object}  response.APIResponse[orchestrator.ProcessPaymentResult]
// @Router       /api/v1/payments/process [post]
func ApiProcessPayment(mgr orchestrator.PaymentManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req processPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		res, err := mgr.ProcessPayment(c.Request.Context(), req.TransactionID, req.GatewayType)
		if err != nil {
			c.JSON(http.StatusOK, paymentError(err))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Verify payment status
// @Description  Read-only reconciliation probe against the provider.
// @Tags         Payment
// @Produce      json
// @Param        gateway_transaction_id query string true "Provider-assigned transaction id"
// @Param        gateway_type query string true "Gateway type"
// @Success      200  {object}  response.APIResponse[map[string]any]
// @Router       /api/v1/payments/status [get]
func ApiVerifyPaymentStatus(mgr orchestrator.PaymentManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		gatewayTxnID := c.Query("gateway_transaction_id")
		gatewayType := types.GatewayType(c.Query("gateway_type"))
		if gatewayTxnID == "" || !gatewayType.Valid() {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "gateway_transaction_id and gateway_type are required"))
			return
		}

		payload, err := mgr.VerifyPaymentStatus(c.Request.Context(), gatewayTxnID, gatewayType)
		if err != nil {
			c.JSON(http.StatusOK, paymentError(err))
			return
		}
		c.JSON(http.StatusOK, response.OKT(payload))
	}
}

// @Summary      Generate payment QR code
// @Description  Builds a signed, base64-encoded payment payload for QR rendering.
// @Tags         Payment
// @Produce      json
// @Param        id path string true "Transaction id"
// @Success      200  {object}  response.APIResponse[orchestrator.QRCodeResult]
// @Router       /api/v1/payments/{id}/qrcode [get]
func ApiGenerateQRCode(mgr orchestrator.PaymentManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := mgr.GenerateQRCode(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusOK, paymentError(err))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// paymentError maps orchestrator sentinels onto the response envelope.
func paymentError(err error) *response.APIResponse[any] {
	switch {
	case errors.Is(err, orchestrator.ErrTransactionNotFound),
		errors.Is(err, orchestrator.ErrWalletNotFound):
		return response.ErrorT[any](response.APIResponseCodeNotFound, err.Error())
	case errors.Is(err, orchestrator.ErrAlreadyProcessed),
		errors.Is(err, orchestrator.ErrAmountInvalid),
		errors.Is(err, orchestrator.ErrLimitExceeded),
		errors.Is(err, orchestrator.ErrGatewayNotFound),
		errors.Is(err, orchestrator.ErrGatewayInactive),
		errors.Is(err, orchestrator.ErrCurrencyMismatch):
		return response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error())
	default:
		return response.ErrorT[any](response.APIResponseCodeError, err.Error())
	}
}

func RegisterPaymentRoutes(r gin.IRouter, mgr orchestrator.PaymentManager) {
	r.POST("", ApiCreatePayment(mgr))
	r.POST("/process", ApiProcessPayment(mgr))
	r.GET("/status", ApiVerifyPaymentStatus(mgr))
	r.GET("/:id/qrcode", ApiGenerateQRCode(mgr))
}
