package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

const (
	UsageFailedMessage = "Failed to load usage data."
	unlimitedTokens    = "Unlimited"
)

// TokensLeft is the remaining quota as shown to the user.
func TokensLeft(s domain.UsageSnapshot) string {
	if s.Plan == domain.PlanEnterprise {
		return unlimitedTokens
	}
	left := s.MaxTokens - s.TokensUsed
	if left < 0 {
		left = 0
	}
	return humanize.Comma(left)
}

// UsagePercent is used/max as a percentage, clamped to 100. A plan without a
// quota is full as soon as anything is used.
func UsagePercent(used, max int64) float64 {
	if max <= 0 {
		if used > 0 {
			return 100
		}
		return 0
	}
	if used <= 0 {
		return 0
	}
	return math.Min(float64(used)/float64(max)*100, 100)
}

type UsageRow struct {
	ID       string
	Document string
	Tokens   string
	Date     time.Time
	When     string
}

type UsageSummary struct {
	Plan       domain.Plan
	TokensUsed string
	MaxTokens  string
	TokensLeft string
	Percent    float64
	Summary    string
	PlanHint   string
	Rows       []UsageRow
}

// Summarize derives everything the usage screen renders from one snapshot.
func Summarize(s domain.UsageSnapshot, now time.Time) UsageSummary {
	out := UsageSummary{
		Plan:       s.Plan,
		TokensUsed: humanize.Comma(s.TokensUsed),
		MaxTokens:  humanize.Comma(s.MaxTokens),
		TokensLeft: TokensLeft(s),
		Percent:    UsagePercent(s.TokensUsed, s.MaxTokens),
		PlanHint:   "Premium features unlocked",
	}
	if s.Plan == domain.PlanEnterprise {
		out.MaxTokens = unlimitedTokens
		out.Summary = "You have unlimited tokens."
	} else {
		out.Summary = fmt.Sprintf("You have used %.1f%% of your monthly quota.", out.Percent)
	}
	if s.Plan == domain.PlanBasic || s.Plan == "" {
		out.PlanHint = "Upgrade for more tokens"
	}

	out.Rows = make([]UsageRow, 0, len(s.History))
	for _, rec := range s.History {
		out.Rows = append(out.Rows, UsageRow{
			ID:       rec.ID,
			Document: rec.Document,
			Tokens:   humanize.Comma(rec.Tokens),
			Date:     rec.Date,
			When:     humanize.RelTime(rec.Date, now, "ago", "from now"),
		})
	}
	return out
}

// UsageView loads the usage snapshot. It has no retry; a failure leaves the
// failed message in place until the next explicit Load.
type UsageView struct {
	gateway ports.UsageGateway
	creds   ports.CredentialSource
	now     func() time.Time

	mu       sync.Mutex
	snapshot *domain.UsageSnapshot
	failed   bool
}

func NewUsageView(gateway ports.UsageGateway, creds ports.CredentialSource) *UsageView {
	return &UsageView{gateway: gateway, creds: creds, now: time.Now}
}

func (v *UsageView) Load(ctx context.Context) (*domain.UsageSnapshot, error) {
	snap, err := v.gateway.Usage(ctx, v.creds.Credentials(ctx))

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.failed = true
		slog.Warn("usage_load_failed", "error", err)
		return nil, fmt.Errorf("load usage: %w", err)
	}
	v.failed = false
	v.snapshot = snap
	out := *snap
	return &out, nil
}

// Render returns the text of the usage screen: either the summary or the
// failure message.
func (v *UsageView) Render() (UsageSummary, string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.failed {
		return UsageSummary{}, UsageFailedMessage
	}
	if v.snapshot == nil {
		return UsageSummary{}, "Loading usage data..."
	}
	return Summarize(*v.snapshot, v.now()), ""
}
