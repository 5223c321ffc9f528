package payment

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const ReferenceKindSubscription = "SUB"

// ReferenceGenerator produces payment references of the form
// {KIND}_{userId}_{unixMillis}{4 hex}. Timestamps are strictly increasing
// within a process; the random suffix separates concurrent instances.
type ReferenceGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{now: time.Now}
}

func (g *ReferenceGenerator) Next(kind, userID string) string {
	g.mu.Lock()
	ts := g.now().UnixMilli()
	if ts <= g.last {
		ts = g.last + 1
	}
	g.last = ts
	g.mu.Unlock()

	id := uuid.New()
	return fmt.Sprintf("%s_%s_%d%s", strings.ToUpper(kind), userID, ts, hex.EncodeToString(id[:2]))
}
