package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// BestAdScope selects how the best performing ad is reported.
type BestAdScope string

const (
	BestAdScopeAll         BestAdScope = "all"
	BestAdScopeByCampaign  BestAdScope = "by_campaign"
	BestAdScopeByObjective BestAdScope = "by_objective"
)

// BestAdNotAvailable is reported when no ad rows were returned.
const BestAdNotAvailable = "N/A"

// ParseBestAdScope validates a scope string. Empty defaults to all.
func ParseBestAdScope(s string) (BestAdScope, error) {
	switch BestAdScope(s) {
	case "":
		return BestAdScopeAll, nil
	case BestAdScopeAll, BestAdScopeByCampaign, BestAdScopeByObjective:
		return BestAdScope(s), nil
	default:
		return "", fmt.Errorf("invalid best ad scope %q", s)
	}
}

// BestAd is either a single ad name (scope all) or a mapping from
// campaign name or objective to the best ad name.
type BestAd struct {
	Scope  BestAdScope
	Name   string
	ByName map[string]string
}

// IsEmpty reports whether there is nothing to show.
func (b BestAd) IsEmpty() bool {
	if b.Scope == BestAdScopeAll || b.Scope == "" {
		return b.Name == ""
	}
	return len(b.ByName) == 0
}

// MarshalJSON encodes a string for scope all and an object otherwise.
func (b BestAd) MarshalJSON() ([]byte, error) {
	if b.Scope == BestAdScopeAll || b.Scope == "" {
		return json.Marshal(b.Name)
	}
	if b.ByName == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(b.ByName)
}

// UnmarshalJSON accepts either shape. The scope is restored from best_ad_scope
// by ReportMetrics.UnmarshalJSON.
func (b *BestAd) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*b = BestAd{Scope: BestAdScopeAll, Name: name}
		return nil
	}
	var byName map[string]string
	if err := json.Unmarshal(data, &byName); err != nil {
		return fmt.Errorf("decode best ad: %w", err)
	}
	*b = BestAd{ByName: byName}
	return nil
}

// CampaignAggregate is the per-campaign rollup embedded in a report.
type CampaignAggregate struct {
	Name        string  `json:"name"`
	Objective   string  `json:"objective,omitempty"`
	Reach       int64   `json:"reach"`
	Impressions int64   `json:"impressions"`
	Spend       float64 `json:"spend"`
	ActionCounts
	CTR               float64            `json:"ctr"`
	CostPerAction     map[string]float64 `json:"cost_per_action,omitempty"`
	CostPerMessage    *float64           `json:"cost_per_message,omitempty"`
	CostPerPurchase   *float64           `json:"cost_per_purchase,omitempty"`
	CostPerConversion *float64           `json:"cost_per_conversion,omitempty"`
}

// ReportMetrics is the account-level aggregate for one window.
// Reach comes from a deduplicated account-level query and is never the sum
// of campaign reach.
type ReportMetrics struct {
	Reach       int64 `json:"reach"`
	Impressions int64 `json:"impressions"`
	ActionCounts
	CTRLinkClick        float64             `json:"ctr_link_click"`
	CostPerMessage      *float64            `json:"cost_per_message"`
	CostPerConversion   *float64            `json:"cost_per_conversion"`
	CostPerPurchase     *float64            `json:"cost_per_purchase"`
	TotalSpend          float64             `json:"total_spend"`
	BestAd              BestAd              `json:"best_ad"`
	BestAdScope         BestAdScope         `json:"best_ad_scope"`
	Campaigns           []CampaignAggregate `json:"campaigns"`
	UnclassifiedActions int64               `json:"unclassified_actions"`
	Degraded            []string            `json:"degraded,omitempty"`
}

// UnmarshalJSON restores BestAd.Scope from best_ad_scope.
func (m *ReportMetrics) UnmarshalJSON(data []byte) error {
	type alias ReportMetrics
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	a.BestAd.Scope = a.BestAdScope
	*m = ReportMetrics(a)
	return nil
}

// IsDegraded reports whether any field fell back to a default.
func (m *ReportMetrics) IsDegraded() bool { return len(m.Degraded) > 0 }

// ReportStatus is the lifecycle state of a saved report.
type ReportStatus string

const (
	ReportStatusPending    ReportStatus = "pending"
	ReportStatusProcessing ReportStatus = "processing"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusError      ReportStatus = "error"
)

// Report is a saved on-demand report.
type Report struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	ClientID       string         `json:"client_id"`
	ReportFormatID *string        `json:"report_format_id,omitempty"`
	Title          string         `json:"title"`
	Window         ReportWindow   `json:"window"`
	Data           *ReportMetrics `json:"data,omitempty"`
	Status         ReportStatus   `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
}
