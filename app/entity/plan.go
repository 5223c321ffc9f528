package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PlanTypeFree         = "FREE"
	PlanTypeBasic        = "BASIC"
	PlanTypePremium      = "PREMIUM"
	PlanTypeProfessional = "PROFESSIONAL"
)

type Plan struct {
	ID           uint64
	Code         string
	DisplayName  string
	Type         string
	Price        decimal.Decimal
	Currency     string
	DurationDays int32
	Limits       PlanLimits
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PlanLimits is the feature-limit map stored as JSON on the plan row.
// A nil limit means unlimited.
type PlanLimits struct {
	MaxClubsOwned     *int64          `json:"max_clubs_owned"`
	MaxPlayerProfiles *int64          `json:"max_player_profiles"`
	MaxPostsPerPeriod *int64          `json:"max_posts_per_period"`
	Features          map[string]bool `json:"features,omitempty"`
}

func (p *Plan) IsFree() bool {
	return p.Type == PlanTypeFree || p.Price.IsZero()
}

// EndAtFrom returns nil for non-expiring plans.
func (p *Plan) EndAtFrom(start time.Time) *time.Time {
	if p.DurationDays <= 0 {
		return nil
	}
	end := start.Add(time.Duration(p.DurationDays) * 24 * time.Hour)
	return &end
}
