package model

import "github.com/shopspring/decimal"

// RawAction is one {action_type, value} pair as reported by the ads platform.
type RawAction struct {
	ActionType string
	Value      int64
}

// RawInsightRecord is a campaign-level insights row for a report window.
// Records are produced by the ads gateway and never mutated.
type RawInsightRecord struct {
	CampaignName string
	Objective    string
	Reach        int64
	Impressions  int64
	Clicks       int64
	Spend        decimal.Decimal
	CTR          float64
	Actions      []RawAction
}

// RawAdRecord is an ad-level insights row for a report window.
type RawAdRecord struct {
	AdName       string
	CampaignName string
	Reach        int64
	Impressions  int64
	Spend        decimal.Decimal
	Actions      []RawAction
}
