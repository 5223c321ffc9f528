package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/repository"
)

// memLedger is an in-memory ledger with transactional rollback, also serving
// the read-side subscription repository.
type memLedger struct {
	mu        sync.Mutex
	subs      map[uint64]*entity.Subscription
	events    map[string]*entity.PaymentEvent
	nextID    uint64
	lockCalls int
	updateErr error
}

func newMemLedger() *memLedger {
	return &memLedger{
		subs:   make(map[uint64]*entity.Subscription),
		events: make(map[string]*entity.PaymentEvent),
	}
}

func (m *memLedger) WithUserLock(_ context.Context, _ string, fn func(tx repository.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockCalls++

	subsSnap := make(map[uint64]*entity.Subscription, len(m.subs))
	for id, s := range m.subs {
		subsSnap[id] = cloneSubscription(s)
	}
	eventsSnap := make(map[string]*entity.PaymentEvent, len(m.events))
	for ref, e := range m.events {
		eventsSnap[ref] = e
	}
	nextSnap := m.nextID

	if err := fn(&memTx{m: m}); err != nil {
		m.subs = subsSnap
		m.events = eventsSnap
		m.nextID = nextSnap
		return err
	}
	return nil
}

func (m *memLedger) seed(s *entity.Subscription) *entity.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	m.subs[s.ID] = cloneSubscription(s)
	return s
}

func (m *memLedger) userSubs(userID string) []*entity.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userSubsLocked(userID, false)
}

func (m *memLedger) activeCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.userSubsLocked(userID, true))
}

func (m *memLedger) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *memLedger) userSubsLocked(userID string, activeOnly bool) []*entity.Subscription {
	items := make([]*entity.Subscription, 0)
	for _, s := range m.subs {
		if s.UserID != userID {
			continue
		}
		if activeOnly && s.Status != entity.SubscriptionStatusActive {
			continue
		}
		items = append(items, cloneSubscription(s))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (m *memLedger) FindByID(_ context.Context, id uint64) (*entity.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[id]; ok {
		return cloneSubscription(s), nil
	}
	return nil, nil
}

func (m *memLedger) FindActiveByUser(_ context.Context, userID string) (*entity.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	actives := m.userSubsLocked(userID, true)
	if len(actives) == 0 {
		return nil, nil
	}
	return actives[len(actives)-1], nil
}

func (m *memLedger) ListByUser(_ context.Context, userID string) ([]*entity.Subscription, error) {
	return m.userSubs(userID), nil
}

func (m *memLedger) ListExpiredActive(_ context.Context, now time.Time, limit int) ([]*entity.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]*entity.Subscription, 0)
	for _, s := range m.subs {
		if s.Status == entity.SubscriptionStatusActive && s.EndAt != nil && !s.EndAt.After(now) {
			items = append(items, cloneSubscription(s))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memLedger) MarkExpired(_ context.Context, id uint64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok || s.Status != entity.SubscriptionStatusActive || s.EndAt == nil || s.EndAt.After(now) {
		return false, nil
	}
	s.Status = entity.SubscriptionStatusExpired
	s.UpdatedAt = now
	return true, nil
}

type memTx struct {
	m *memLedger
}

func (t *memTx) PaymentEventExists(_ context.Context, reference string) (bool, error) {
	_, ok := t.m.events[reference]
	return ok, nil
}

func (t *memTx) FindSubscriptionByTransactionID(_ context.Context, transactionID string) (*entity.Subscription, error) {
	for _, s := range t.m.subs {
		if s.TransactionID != nil && *s.TransactionID == transactionID {
			return cloneSubscription(s), nil
		}
	}
	return nil, nil
}

func (t *memTx) FindSubscriptionByID(_ context.Context, id uint64) (*entity.Subscription, error) {
	if s, ok := t.m.subs[id]; ok {
		return cloneSubscription(s), nil
	}
	return nil, nil
}

func (t *memTx) ListActiveSubscriptions(_ context.Context, userID string) ([]*entity.Subscription, error) {
	return t.m.userSubsLocked(userID, true), nil
}

func (t *memTx) CreateSubscription(_ context.Context, s *entity.Subscription) error {
	t.m.nextID++
	s.ID = t.m.nextID
	t.m.subs[s.ID] = cloneSubscription(s)
	return nil
}

func (t *memTx) UpdateSubscription(_ context.Context, s *entity.Subscription) error {
	if t.m.updateErr != nil {
		return t.m.updateErr
	}
	if _, ok := t.m.subs[s.ID]; !ok {
		return repository.ErrSubscriptionNotFound
	}
	t.m.subs[s.ID] = cloneSubscription(s)
	return nil
}

func (t *memTx) CreatePaymentEvent(_ context.Context, e *entity.PaymentEvent) error {
	if _, ok := t.m.events[e.Reference]; ok {
		return repository.ErrPaymentEventExists
	}
	copied := *e
	t.m.events[e.Reference] = &copied
	return nil
}

func cloneSubscription(s *entity.Subscription) *entity.Subscription {
	copied := *s
	return &copied
}

type mockPlanCatalogue struct {
	plans map[uint64]*entity.Plan
	err   error
}

func newPlanCatalogue(plans ...*entity.Plan) *mockPlanCatalogue {
	c := &mockPlanCatalogue{plans: make(map[uint64]*entity.Plan)}
	for _, p := range plans {
		c.plans[p.ID] = p
	}
	return c
}

func (c *mockPlanCatalogue) GetPlan(_ context.Context, id uint64) (*entity.Plan, error) {
	if c.err != nil {
		return nil, c.err
	}
	if p, ok := c.plans[id]; ok {
		return p, nil
	}
	return nil, ErrPlanNotFound
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []SubscriptionNotice
}

func (n *recordingNotifier) NotifySubscription(_ context.Context, notice SubscriptionNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

type userPlanRequest struct {
	userID string
	planID uint64
}

func (r userPlanRequest) GetUserId() string { return r.userID }
func (r userPlanRequest) GetPlanId() uint64 { return r.planID }

func int64Ptr(v int64) *int64 {
	return &v
}

func basicPlan() *entity.Plan {
	return &entity.Plan{
		ID:           1,
		Code:         "basic",
		DisplayName:  "Basic",
		Type:         entity.PlanTypeBasic,
		Price:        decimal.RequireFromString("9.99"),
		Currency:     "EUR",
		DurationDays: 30,
		Active:       true,
		Limits: entity.PlanLimits{
			MaxClubsOwned:     int64Ptr(1),
			MaxPlayerProfiles: int64Ptr(2),
			MaxPostsPerPeriod: int64Ptr(10),
			Features:          map[string]bool{"analytics": false},
		},
	}
}

func premiumPlan() *entity.Plan {
	return &entity.Plan{
		ID:           2,
		Code:         "premium",
		DisplayName:  "Premium",
		Type:         entity.PlanTypePremium,
		Price:        decimal.RequireFromString("19.99"),
		Currency:     "EUR",
		DurationDays: 30,
		Active:       true,
		Limits: entity.PlanLimits{
			MaxClubsOwned: int64Ptr(5),
			Features:      map[string]bool{"analytics": true},
		},
	}
}

func freePlan() *entity.Plan {
	return &entity.Plan{
		ID:          3,
		Code:        "free",
		DisplayName: "Free",
		Type:        entity.PlanTypeFree,
		Price:       decimal.Zero,
		Currency:    "EUR",
		Active:      true,
		Limits: entity.PlanLimits{
			MaxClubsOwned:     int64Ptr(0),
			MaxPlayerProfiles: int64Ptr(1),
			MaxPostsPerPeriod: int64Ptr(3),
		},
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
