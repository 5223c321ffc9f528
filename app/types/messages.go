package types

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type PlanLimits struct {
	MaxClubsOwned     *int64          `json:"max_clubs_owned"`
	MaxPlayerProfiles *int64          `json:"max_player_profiles"`
	MaxPostsPerPeriod *int64          `json:"max_posts_per_period"`
	Features          map[string]bool `json:"features,omitempty"`
}

type Plan struct {
	Id           uint64      `json:"id"`
	Code         string      `json:"code"`
	Name         string      `json:"name"`
	Type         string      `json:"type"`
	Price        string      `json:"price"`
	Currency     string      `json:"currency"`
	DurationDays int32       `json:"duration_days"`
	Limits       *PlanLimits `json:"limits"`
	Active       bool        `json:"active"`
}

type Subscription struct {
	Id            uint64 `json:"id"`
	UserId        string `json:"user_id"`
	PlanId        uint64 `json:"plan_id"`
	Status        string `json:"status"`
	StatusCode    int32  `json:"status_code"`
	Entitled      bool   `json:"entitled"`
	StartAt       string `json:"start_at"`
	EndAt         string `json:"end_at,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
	TransactionId string `json:"transaction_id,omitempty"`
	AutoRenew     bool   `json:"auto_renew"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type ListPlansRequest struct{}

type ListPlansResponse struct {
	Plans []*Plan `json:"plans"`
}

type CheckoutRequest struct {
	UserId string `json:"user_id" validate:"required,max=64"`
	PlanId uint64 `json:"plan_id" validate:"required,gt=0"`
}

func (x *CheckoutRequest) GetUserId() string {
	if x != nil {
		return x.UserId
	}
	return ""
}

func (x *CheckoutRequest) GetPlanId() uint64 {
	if x != nil {
		return x.PlanId
	}
	return 0
}

type CheckoutResponse struct {
	Reference   string `json:"reference"`
	RedirectUrl string `json:"redirect_url"`
	Token       string `json:"token,omitempty"`
	Amount      string `json:"amount"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Plan        *Plan  `json:"plan"`
}

type ActivateFreePlanRequest struct {
	UserId string `json:"user_id" validate:"required,max=64"`
	PlanId uint64 `json:"plan_id" validate:"required,gt=0"`
}

func (x *ActivateFreePlanRequest) GetUserId() string {
	if x != nil {
		return x.UserId
	}
	return ""
}

func (x *ActivateFreePlanRequest) GetPlanId() uint64 {
	if x != nil {
		return x.PlanId
	}
	return 0
}

type GetSubscriptionRequest struct {
	Id uint64 `json:"id" validate:"required,gt=0"`
}

func (x *GetSubscriptionRequest) GetId() uint64 {
	if x != nil {
		return x.Id
	}
	return 0
}

type CancelSubscriptionRequest struct {
	Id uint64 `json:"id" validate:"required,gt=0"`
}

func (x *CancelSubscriptionRequest) GetId() uint64 {
	if x != nil {
		return x.Id
	}
	return 0
}

type ListSubscriptionsRequest struct {
	UserId string `json:"user_id" validate:"required,max=64"`
}

func (x *ListSubscriptionsRequest) GetUserId() string {
	if x != nil {
		return x.UserId
	}
	return ""
}

type ListSubscriptionsResponse struct {
	Subscriptions []*Subscription `json:"subscriptions"`
}

type SubscriptionEnvelopeResponse struct {
	Subscription *Subscription `json:"subscription"`
}

type GetActiveSubscriptionRequest struct {
	UserId string `json:"user_id" validate:"required,max=64"`
}

func (x *GetActiveSubscriptionRequest) GetUserId() string {
	if x != nil {
		return x.UserId
	}
	return ""
}

type ActiveSubscriptionResponse struct {
	Active       bool          `json:"active"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

type GetUsageRequest struct {
	UserId string `json:"user_id" validate:"required,max=64"`
}

func (x *GetUsageRequest) GetUserId() string {
	if x != nil {
		return x.UserId
	}
	return ""
}

type CanConsumeRequest struct {
	UserId   string `json:"user_id" validate:"required,max=64"`
	Resource string `json:"resource" validate:"required"`
}

func (x *CanConsumeRequest) GetUserId() string {
	if x != nil {
		return x.UserId
	}
	return ""
}

func (x *CanConsumeRequest) GetResource() string {
	if x != nil {
		return x.Resource
	}
	return ""
}

type UsageDecision struct {
	Resource  string `json:"resource"`
	Allowed   bool   `json:"allowed"`
	Current   int64  `json:"current"`
	Max       *int64 `json:"max"`
	Unlimited bool   `json:"unlimited"`
}

type UsageResponse struct {
	UserId         string           `json:"user_id"`
	SubscriptionId uint64           `json:"subscription_id"`
	PlanId         uint64           `json:"plan_id"`
	PlanCode       string           `json:"plan_code"`
	Resources      []*UsageDecision `json:"resources"`
}

type HasFeatureRequest struct {
	UserId  string `json:"user_id" validate:"required,max=64"`
	Feature string `json:"feature" validate:"required,max=64"`
}

func (x *HasFeatureRequest) GetUserId() string {
	if x != nil {
		return x.UserId
	}
	return ""
}

func (x *HasFeatureRequest) GetFeature() string {
	if x != nil {
		return x.Feature
	}
	return ""
}

type HasFeatureResponse struct {
	Feature string `json:"feature"`
	Enabled bool   `json:"enabled"`
}

// PaymentNotificationResponse is the acknowledgement body returned to the provider.
type PaymentNotificationResponse struct {
	Status    string `json:"status"`
	Outcome   string `json:"outcome"`
	Reference string `json:"reference,omitempty"`
}
