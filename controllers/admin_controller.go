package controllers

import (
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cppla/affiliate/affiliate"
	"github.com/cppla/affiliate/config"
	"github.com/cppla/affiliate/models"
	"github.com/cppla/affiliate/utils"
)

const maxBannerSize = 5 * 1024 * 1024

var bannerExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

// AdminController is the back office for payouts, banners and manual ledger entries.
type AdminController struct {
	ledger    *affiliate.Ledger
	workflow  *affiliate.Workflow
	catalog   *affiliate.Catalog
	media     config.MediaConfig
	bannerDir string
	log       *zap.Logger
}

func NewAdminController(cfg config.AppConfig, ledger *affiliate.Ledger, workflow *affiliate.Workflow, catalog *affiliate.Catalog, log *zap.Logger) *AdminController {
	return &AdminController{
		ledger:    ledger,
		workflow:  workflow,
		catalog:   catalog,
		media:     cfg.Media,
		bannerDir: strings.Trim(cfg.Affiliate.BannerPath, "/"),
		log:       log,
	}
}

// ListPayouts pages through payout requests, optionally filtered by ?status=.
func (a *AdminController) ListPayouts(ctx *gin.Context) {
	page := queryInt(ctx, "page", 1)
	pageSize := queryInt(ctx, "page_size", 20)
	status := models.PayoutStatus(strings.TrimSpace(ctx.Query("status")))

	items, total, err := a.workflow.Triage(ctx.Request.Context(), status, page, pageSize)
	if err != nil {
		respondError(ctx, a.log, err, 50040, "failed to list payout requests")
		return
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	utils.Success(ctx, gin.H{
		"items": items,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	})
}

// FulfillPayout pays a pending request.
func (a *AdminController) FulfillPayout(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid payout request id")
		return
	}
	req, err := a.workflow.Fulfill(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, a.log, err, 50041, "failed to fulfill payout request")
		return
	}
	utils.Success(ctx, req)
}

// FailPayout marks a pending request as failed with an optional note.
func (a *AdminController) FailPayout(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid payout request id")
		return
	}
	var body struct {
		Note string `json:"note"`
	}
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&body); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40041, "invalid request payload")
			return
		}
	}
	req, err := a.workflow.MarkFailed(ctx.Request.Context(), id, body.Note)
	if err != nil {
		respondError(ctx, a.log, err, 50042, "failed to update payout request")
		return
	}
	utils.Success(ctx, req)
}

func (a *AdminController) ListBanners(ctx *gin.Context) {
	banners, err := a.catalog.List(ctx.Request.Context())
	if err != nil {
		respondError(ctx, a.log, err, 50043, "failed to list banners")
		return
	}
	utils.Success(ctx, gin.H{"items": banners})
}

// CreateBanner registers a banner whose image is already hosted.
func (a *AdminController) CreateBanner(ctx *gin.Context) {
	var body struct {
		Image   string `json:"image" binding:"required"`
		Caption string `json:"caption" binding:"required"`
		Enabled *bool  `json:"enabled"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid request payload")
		return
	}
	enabled := body.Enabled == nil || *body.Enabled

	b, err := a.catalog.Create(ctx.Request.Context(), body.Image, body.Caption, enabled)
	if err != nil {
		respondError(ctx, a.log, err, 50044, "failed to create banner")
		return
	}
	utils.Success(ctx, b)
}

// UploadBanner stores a multipart image under the media root and registers it.
func (a *AdminController) UploadBanner(ctx *gin.Context) {
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40043, "no file uploaded")
		return
	}
	defer file.Close()

	if header.Size > maxBannerSize {
		utils.Error(ctx, http.StatusBadRequest, 40044, "file size exceeds 5MB")
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !bannerExts[ext] {
		utils.Error(ctx, http.StatusBadRequest, 40045, "unsupported image type")
		return
	}

	dir := filepath.Join(a.media.Root, a.bannerDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		a.log.Error("create banner dir failed", zap.String("dir", dir), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50045, "failed to create upload directory")
		return
	}

	name := uuid.NewString() + ext
	dstPath := filepath.Join(dir, name)
	out, err := os.Create(dstPath)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50046, "failed to save file")
		return
	}
	// enforce the limit even when the client lied about the size
	written, err := io.Copy(out, &io.LimitedReader{R: file, N: maxBannerSize + 1})
	closeErr := out.Close()
	if err != nil || closeErr != nil {
		_ = os.Remove(dstPath)
		utils.Error(ctx, http.StatusInternalServerError, 50047, "failed to write file")
		return
	}
	if written > maxBannerSize {
		_ = os.Remove(dstPath)
		utils.Error(ctx, http.StatusBadRequest, 40044, "file size exceeds 5MB")
		return
	}

	enabled := true
	if v := strings.TrimSpace(ctx.PostForm("enabled")); v != "" {
		if enabled, err = strconv.ParseBool(v); err != nil {
			_ = os.Remove(dstPath)
			utils.FormErrors(ctx, 40020, "invalid form", map[string]string{"enabled": "Enter true or false."})
			return
		}
	}

	b, err := a.catalog.Create(ctx.Request.Context(), a.publicURL(name), ctx.PostForm("caption"), enabled)
	if err != nil {
		_ = os.Remove(dstPath)
		respondError(ctx, a.log, err, 50048, "failed to create banner")
		return
	}
	utils.Success(ctx, b)
}

func (a *AdminController) publicURL(name string) string {
	base := "/" + strings.Trim(a.media.URL, "/")
	return path.Join(base, a.bannerDir, name)
}

// UpdateBanner toggles a banner on or off.
func (a *AdminController) UpdateBanner(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40046, "invalid banner id")
		return
	}
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil || body.Enabled == nil {
		utils.Error(ctx, http.StatusBadRequest, 40047, "enabled is required")
		return
	}
	b, err := a.catalog.SetEnabled(ctx.Request.Context(), id, *body.Enabled)
	if err != nil {
		respondError(ctx, a.log, err, 50049, "failed to update banner")
		return
	}
	utils.Success(ctx, b)
}

type amountRequest struct {
	ProductPrice *decimal.Decimal `json:"product_price"`
	Amount       *decimal.Decimal `json:"amount"`
}

// Award credits an affiliate for an attributed sale.
func (a *AdminController) Award(ctx *gin.Context) {
	var body amountRequest
	if err := ctx.ShouldBindJSON(&body); err != nil || body.ProductPrice == nil {
		utils.Error(ctx, http.StatusBadRequest, 40048, "product_price is required")
		return
	}
	code := strings.TrimSpace(ctx.Param("code"))
	award, err := a.ledger.AddAward(ctx.Request.Context(), code, *body.ProductPrice)
	if err != nil {
		respondError(ctx, a.log, err, 50050, "failed to credit award")
		return
	}
	aff, err := a.ledger.Get(ctx.Request.Context(), code)
	if err != nil {
		respondError(ctx, a.log, err, 50051, "failed to load affiliate")
		return
	}
	utils.Success(ctx, gin.H{"award": award, "affiliate": aff})
}

// Debit takes a manual payment out of an affiliate's balance.
func (a *AdminController) Debit(ctx *gin.Context) {
	var body amountRequest
	if err := ctx.ShouldBindJSON(&body); err != nil || body.Amount == nil {
		utils.Error(ctx, http.StatusBadRequest, 40049, "amount is required")
		return
	}
	aff, err := a.ledger.Debit(ctx.Request.Context(), strings.TrimSpace(ctx.Param("code")), *body.Amount)
	if err != nil {
		respondError(ctx, a.log, err, 50052, "failed to debit affiliate")
		return
	}
	utils.Success(ctx, aff)
}
