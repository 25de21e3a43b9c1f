package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tamwil/paygate/internal/app/service/reconciler"
	"github.com/tamwil/paygate/pkg/logctx"
	"github.com/tamwil/paygate/pkg/response"
	"github.com/tamwil/paygate/pkg/types"
)

// @Summary      Gateway webhook
// @Description  Handles asynchronous provider callbacks. Payload carries transaction_id, status, amount, currency and signature.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        gateway_type path string true "Gateway type"
// @Success      200  {object}  response.APIResponse[reconciler.Result]
// @Router       /api/v1/webhooks/{gateway_type} [post]
func ApiGatewayWebhook(svc *reconciler.Service, baseLog *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		gatewayType := types.GatewayType(c.Param("gateway_type"))
		if !gatewayType.Valid() {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "unknown gateway type"))
			return
		}
		log := logctx.FromGin(c, baseLog)
		log.Infow("webhook_received", "gateway", gatewayType)

		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "unreadable body"))
			return
		}

		res, err := svc.ProcessWebhook(c.Request.Context(), raw, gatewayType)
		if err != nil {
			log.Errorw("webhook_handle_error", "gateway", gatewayType, "error", err.Error())
			c.JSON(http.StatusOK, webhookError(err))
			return
		}
		log.Infow("webhook_handled", "gateway", gatewayType, "transaction_id", res.TransactionID, "status", res.Status)
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func webhookError(err error) *response.APIResponse[any] {
	switch {
	case errors.Is(err, reconciler.ErrInvalidSignature),
		errors.Is(err, reconciler.ErrMalformedPayload),
		errors.Is(err, reconciler.ErrUnsupportedStatus):
		return response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error())
	case errors.Is(err, reconciler.ErrGatewayNotFound),
		errors.Is(err, reconciler.ErrTransactionNotFound):
		return response.ErrorT[any](response.APIResponseCodeNotFound, err.Error())
	default:
		return response.ErrorT[any](response.APIResponseCodeError, err.Error())
	}
}

func RegisterWebhookRoutes(r gin.IRouter, svc *reconciler.Service, baseLog *zap.SugaredLogger) {
	r.POST("/:gateway_type", ApiGatewayWebhook(svc, baseLog))
}
