package affiliate

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/affiliate/models"
	"github.com/cppla/affiliate/utils"
)

const maxCaptionLen = 100

// Catalog manages the promotional banners shown to affiliates.
type Catalog struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewCatalog(db *gorm.DB, log *zap.Logger) *Catalog {
	return &Catalog{db: db, log: log}
}

// ListEnabled returns the banners affiliates may embed, in a stable order.
func (c *Catalog) ListEnabled(ctx context.Context) ([]models.Banner, error) {
	var banners []models.Banner
	err := c.db.WithContext(ctx).Where("enabled = ?", true).Order("id ASC").Find(&banners).Error
	return banners, err
}

// List returns every banner, enabled or not.
func (c *Catalog) List(ctx context.Context) ([]models.Banner, error) {
	var banners []models.Banner
	err := c.db.WithContext(ctx).Order("id ASC").Find(&banners).Error
	return banners, err
}

func (c *Catalog) Get(ctx context.Context, id uint) (*models.Banner, error) {
	var b models.Banner
	err := c.db.WithContext(ctx).First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("banner %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create stores a banner. The caption is stripped of markup and escaped because the
// renderer embeds it verbatim; its length limit applies to the visible text.
func (c *Catalog) Create(ctx context.Context, image, caption string, enabled bool) (*models.Banner, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return nil, &FormError{Field: "image", Message: "This field is required."}
	}
	plain := utils.StripTags(caption)
	if plain == "" {
		return nil, &FormError{Field: "caption", Message: "This field is required."}
	}
	if utf8.RuneCountInString(plain) > maxCaptionLen {
		return nil, &FormError{Field: "caption", Message: fmt.Sprintf("Ensure this value has at most %d characters.", maxCaptionLen)}
	}

	b := models.Banner{Image: image, Caption: html.EscapeString(plain), Enabled: enabled}
	if err := c.db.WithContext(ctx).Create(&b).Error; err != nil {
		return nil, err
	}
	c.log.Info("banner created", zap.Uint("banner_id", b.ID), zap.String("image", b.Image), zap.Bool("enabled", b.Enabled))
	return &b, nil
}

// SetEnabled toggles whether a banner is offered to affiliates.
func (c *Catalog) SetEnabled(ctx context.Context, id uint, enabled bool) (*models.Banner, error) {
	b, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.db.WithContext(ctx).Model(b).Update("enabled", enabled).Error; err != nil {
		return nil, err
	}
	b.Enabled = enabled
	return b, nil
}
