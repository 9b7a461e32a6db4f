package venue

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Tier string

const (
	TierStandard Tier = "standard"
	TierPromoted Tier = "promoted"
	TierFeatured Tier = "featured"
)

func (t Tier) IsValid() bool {
	switch t {
	case TierStandard, TierPromoted, TierFeatured:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Venue struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	Neighborhood  string    `json:"neighborhood,omitempty"`
	Website       string    `json:"website,omitempty"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	PromotionTier Tier      `json:"promotionTier"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

var (
	ErrNotFound    = errors.New("venue not found")
	ErrInvalidTier = errors.New("invalid promotion tier")
	ErrDuplicate   = errors.New("venue name already exists")
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

type CreateVenueRequest struct {
	Name         string `json:"name" binding:"required,min=2,max=120"`
	Address      string `json:"address" binding:"required,min=3,max=200"`
	Neighborhood string `json:"neighborhood" binding:"omitempty,max=80"`
	Website      string `json:"website" binding:"omitempty,url"`
	ImageURL     string `json:"imageUrl" binding:"omitempty,url"`
}

type UpdateTierRequest struct {
	PromotionTier Tier `json:"promotionTier" binding:"required,oneof=standard promoted featured"`
}

// New builds a venue from a proposal. Admin proposals skip moderation.
func New(req CreateVenueRequest, approved bool) Venue {
	now := time.Now().UTC()

	status := StatusPending
	if approved {
		status = StatusApproved
	}

	return Venue{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Address:       req.Address,
		Neighborhood:  req.Neighborhood,
		Website:       req.Website,
		ImageURL:      req.ImageURL,
		PromotionTier: TierStandard,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
