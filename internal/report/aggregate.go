package report

import (
	"github.com/shopspring/decimal"

	"github.com/adpulse/adpulse/internal/model"
)

// Best ad score weights per canonical action.
const (
	ScoreWeightLinkClick = 1
	ScoreWeightMessaging = 2
	ScoreWeightPurchase  = 5
)

// Names used when the platform omits one.
const (
	UnnamedCampaign  = "Campanha sem nome"
	UnnamedAd        = "Anúncio sem nome"
	UnknownCampaign  = "Campanha desconhecida"
	UnknownObjective = "UNKNOWN"
)

// AggregateInput is everything fetched from the ads platform for one report.
type AggregateInput struct {
	Campaigns          []model.RawInsightRecord
	AccountReach       int64
	Ads                []model.RawAdRecord
	CampaignObjectives map[string]string
	BestAdScope        model.BestAdScope
}

// Aggregate reduces raw insights into account-level metrics.
// Account reach is taken from in.AccountReach and never summed from campaigns.
func Aggregate(in AggregateInput) *model.ReportMetrics {
	scope := in.BestAdScope
	if scope == "" {
		scope = model.BestAdScopeAll
	}

	out := &model.ReportMetrics{
		Reach:       in.AccountReach,
		BestAdScope: scope,
		Campaigns:   make([]model.CampaignAggregate, 0, len(in.Campaigns)),
	}

	var totalSpend decimal.Decimal
	var totalClicks int64
	for _, rec := range in.Campaigns {
		var counts model.ActionCounts
		out.UnclassifiedActions += classifyActions(rec.Actions, &counts)

		name := rec.CampaignName
		if name == "" {
			name = UnnamedCampaign
		}
		objective := rec.Objective
		if objective == "" {
			objective = in.CampaignObjectives[name]
		}

		out.Campaigns = append(out.Campaigns, campaignAggregate(name, objective, rec, counts))
		out.ActionCounts.Merge(counts)
		out.Impressions += rec.Impressions
		totalSpend = totalSpend.Add(rec.Spend)
		totalClicks += counts.LinkClicks
	}

	out.TotalSpend = round2(totalSpend)
	out.CTRLinkClick = percent(totalClicks, out.Impressions)
	out.CostPerMessage = costPer(totalSpend, out.MessagesStarted)
	out.CostPerConversion = costPer(totalSpend, out.Conversions)
	out.CostPerPurchase = costPer(totalSpend, out.Purchases)
	out.BestAd = selectBestAd(in.Ads, in.CampaignObjectives, scope)

	return out
}

func campaignAggregate(name, objective string, rec model.RawInsightRecord, counts model.ActionCounts) model.CampaignAggregate {
	c := model.CampaignAggregate{
		Name:              name,
		Objective:         objective,
		Reach:             rec.Reach,
		Impressions:       rec.Impressions,
		Spend:             round2(rec.Spend),
		ActionCounts:      counts,
		CTR:               percent(counts.LinkClicks, rec.Impressions),
		CostPerMessage:    costPer(rec.Spend, counts.MessagesStarted),
		CostPerPurchase:   costPer(rec.Spend, counts.Purchases),
		CostPerConversion: costPer(rec.Spend, counts.Conversions),
	}

	for _, action := range model.CanonicalActions {
		if v := costPer(rec.Spend, counts.Count(action)); v != nil {
			if c.CostPerAction == nil {
				c.CostPerAction = make(map[string]float64)
			}
			c.CostPerAction[action.String()] = *v
		}
	}
	return c
}

// adScore weighs an ad's classified actions.
func adScore(counts model.ActionCounts) int64 {
	return counts.LinkClicks*ScoreWeightLinkClick +
		counts.MessagesStarted*ScoreWeightMessaging +
		counts.Purchases*ScoreWeightPurchase
}

type scoredAd struct {
	name  string
	score int64
}

// selectBestAd tracks the overall, per-campaign and per-objective winners in
// one pass. Ties keep the first ad seen.
func selectBestAd(ads []model.RawAdRecord, objectives map[string]string, scope model.BestAdScope) model.BestAd {
	overall := scoredAd{name: model.BestAdNotAvailable, score: -1}
	byCampaign := make(map[string]scoredAd)
	byObjective := make(map[string]scoredAd)

	for _, ad := range ads {
		var counts model.ActionCounts
		classifyActions(ad.Actions, &counts)
		score := adScore(counts)

		name := ad.AdName
		if name == "" {
			name = UnnamedAd
		}
		campaign := ad.CampaignName
		if campaign == "" {
			campaign = UnknownCampaign
		}
		objective := objectives[campaign]
		if objective == "" {
			objective = UnknownObjective
		}

		if score > overall.score {
			overall = scoredAd{name: name, score: score}
		}
		if best, ok := byCampaign[campaign]; !ok || score > best.score {
			byCampaign[campaign] = scoredAd{name: name, score: score}
		}
		if best, ok := byObjective[objective]; !ok || score > best.score {
			byObjective[objective] = scoredAd{name: name, score: score}
		}
	}

	switch scope {
	case model.BestAdScopeByCampaign:
		return model.BestAd{Scope: scope, ByName: names(byCampaign)}
	case model.BestAdScopeByObjective:
		return model.BestAd{Scope: scope, ByName: names(byObjective)}
	default:
		return model.BestAd{Scope: model.BestAdScopeAll, Name: overall.name}
	}
}

func names(m map[string]scoredAd) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v.name
	}
	return out
}

var hundred = decimal.NewFromInt(100)

// percent returns num/den*100 rounded to 2 places, or 0 when den is 0.
func percent(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return round2(decimal.NewFromInt(num).Mul(hundred).Div(decimal.NewFromInt(den)))
}

// costPer returns spend/count rounded to 2 places, or nil when count is 0.
func costPer(spend decimal.Decimal, count int64) *float64 {
	if count == 0 {
		return nil
	}
	v := round2(spend.Div(decimal.NewFromInt(count)))
	return &v
}

func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
