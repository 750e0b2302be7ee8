package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/affiliate/affiliate"
	"github.com/cppla/affiliate/middleware"
	"github.com/cppla/affiliate/utils"
)

func getUserID(ctx *gin.Context) (uint, bool) {
	v, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id > 0
}

func parseUintParam(ctx *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(ctx.Param(name)), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

func queryInt(ctx *gin.Context, name string, def int) int {
	if v := strings.TrimSpace(ctx.Query(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// respondError maps ledger and workflow errors onto the API envelope.
// Unknown errors are logged and reported as 500 with fallbackCode.
func respondError(ctx *gin.Context, log *zap.Logger, err error, fallbackCode int, fallbackMsg string) {
	if fe, ok := affiliate.AsFormError(err); ok {
		utils.FormErrors(ctx, 40020, "invalid form", map[string]string{fe.Field: fe.Message})
		return
	}
	switch {
	case errors.Is(err, affiliate.ErrInsufficientFunds):
		utils.Error(ctx, http.StatusConflict, 40930, "insufficient funds")
	case errors.Is(err, affiliate.ErrInvalidTransition):
		utils.Error(ctx, http.StatusConflict, 40931, "payout request is not pending")
	case errors.Is(err, affiliate.ErrAlreadyAffiliate):
		utils.Error(ctx, http.StatusConflict, 40932, "affiliate account already exists")
	case errors.Is(err, affiliate.ErrInvalidAmount):
		utils.Error(ctx, http.StatusBadRequest, 40021, "amount must not be negative")
	case errors.Is(err, affiliate.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40420, "not found")
	case errors.Is(err, affiliate.ErrNotImplemented):
		utils.Error(ctx, http.StatusNotImplemented, 50120, "not supported by this integration")
	default:
		log.Error(fallbackMsg, zap.String("path", ctx.FullPath()), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, fallbackCode, fallbackMsg)
	}
}
