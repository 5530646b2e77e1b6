package domain

import (
	"strings"
	"time"
)

type Plan string

const (
	PlanBasic      Plan = "basic"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

func ParsePlan(raw string) (Plan, bool) {
	switch p := Plan(strings.ToLower(strings.TrimSpace(raw))); p {
	case PlanBasic, PlanPremium, PlanEnterprise:
		return p, true
	default:
		return "", false
	}
}

type UsageRecord struct {
	ID       string    `json:"id"`
	Document string    `json:"document"`
	Tokens   int64     `json:"tokens"`
	Date     time.Time `json:"date"`
}

type UsageSnapshot struct {
	Plan       Plan          `json:"plan"`
	TokensUsed int64         `json:"tokens_used"`
	MaxTokens  int64         `json:"max_tokens"`
	History    []UsageRecord `json:"history"`
}
