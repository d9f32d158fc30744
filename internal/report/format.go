package report

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/adpulse/adpulse/internal/model"
)

const (
	separator   = "━━━━━━━━━━━━━━━━━━━━"
	displayDate = "02/01/2006"
)

type valueKind int

const (
	kindCount valueKind = iota
	kindCurrency
	kindPercent
)

// Formatter renders report metrics as delivery text and webhook payloads.
type Formatter struct {
	printer  *message.Printer
	currency string
}

// NewFormatter creates a Formatter for a BCP 47 locale such as "pt-BR".
// Unknown locales fall back to pt-BR.
func NewFormatter(locale, currencySymbol string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.BrazilianPortuguese
	}
	if currencySymbol == "" {
		currencySymbol = "R$"
	}
	return &Formatter{
		printer:  message.NewPrinter(tag),
		currency: currencySymbol,
	}
}

// RenderInput is one report to render.
type RenderInput struct {
	Metrics     *model.ReportMetrics
	Format      *model.ReportFormat
	ClientName  string
	AccountID   string
	Window      model.ReportWindow
	GeneratedAt time.Time
}

// Rendered holds both delivery representations of a report.
type Rendered struct {
	Text string
	Body model.WebhookBody
}

// Render builds the text and the webhook body.
func (f *Formatter) Render(in RenderInput) Rendered {
	text := f.Text(in)

	formatName := model.DefaultFormatName
	if in.Format != nil && in.Format.Name != "" {
		formatName = in.Format.Name
	}

	return Rendered{
		Text: text,
		Body: model.WebhookBody{
			Payload: model.ReportPayload{
				Client:    in.ClientName,
				AccountID: in.AccountID,
				Period: model.ReportPeriod{
					Start: in.Window.Since(),
					End:   in.Window.Until(),
				},
				Metrics:     in.Metrics,
				FormatName:  formatName,
				GeneratedAt: in.GeneratedAt.UTC(),
			},
			WhatsAppText: text,
		},
	}
}

// Text renders the human-readable report. Metrics appear in format order and
// metrics without a value are left out.
func (f *Formatter) Text(in RenderInput) string {
	m := in.Metrics
	if m == nil {
		m = &model.ReportMetrics{}
	}
	metrics := model.DefaultScheduledMetrics
	if in.Format != nil && len(in.Format.Metrics) > 0 {
		metrics = in.Format.Metrics
	}

	var b strings.Builder
	b.WriteString("📊 *RELATÓRIO SEMANAL - " + strings.ToUpper(in.ClientName) + "*\n")
	b.WriteString("📅 Período: " + in.Window.StartDate.Format(displayDate) + " a " + in.Window.EndDate.Format(displayDate) + "\n")
	b.WriteString("👤 Cliente: " + in.ClientName + "\n\n")
	b.WriteString(separator + "\n\n")

	for _, metric := range metrics {
		value, ok := f.metricValue(m, metric.Key)
		if !ok {
			continue
		}
		b.WriteString(metric.Label + " " + value + "\n")
	}

	f.writeBestAd(&b, m.BestAd)
	f.writeCampaigns(&b, m.Campaigns)

	return b.String()
}

func (f *Formatter) writeBestAd(b *strings.Builder, ad model.BestAd) {
	if ad.IsEmpty() {
		return
	}
	if ad.Scope == model.BestAdScopeAll || ad.Scope == "" {
		if ad.Name == model.BestAdNotAvailable {
			return
		}
		b.WriteString("\n⭐ *Melhor Anúncio:* " + ad.Name + "\n")
		return
	}

	keys := make([]string, 0, len(ad.ByName))
	for k := range ad.ByName {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString("\n⭐ *Melhores Anúncios:*\n")
	for _, k := range keys {
		b.WriteString("• " + k + ": " + ad.ByName[k] + "\n")
	}
}

func (f *Formatter) writeCampaigns(b *strings.Builder, campaigns []model.CampaignAggregate) {
	if len(campaigns) == 0 {
		return
	}
	b.WriteString("\n" + separator + "\n")
	b.WriteString("📈 *CAMPANHAS*\n\n")

	for i, c := range campaigns {
		b.WriteString(f.printer.Sprintf("*%d. %s*\n", i+1, c.Name))
		if c.Reach > 0 {
			b.WriteString("   Alcance: " + f.count(c.Reach) + "\n")
		}
		if c.Impressions > 0 {
			b.WriteString("   Impressões: " + f.count(c.Impressions) + "\n")
		}
		if c.Spend > 0 {
			b.WriteString("   Investimento: " + f.money(c.Spend) + "\n")
		}
		if c.LinkClicks > 0 {
			b.WriteString("   Cliques: " + f.count(c.LinkClicks) + "\n")
		}
		if c.CTR > 0 {
			b.WriteString("   CTR: " + f.percent(c.CTR) + "\n")
		}
		if c.MessagesStarted > 0 {
			b.WriteString("   Mensagens: " + f.count(c.MessagesStarted) + "\n")
			if c.CostPerMessage != nil {
				b.WriteString("   Custo/Mensagem: " + f.money(*c.CostPerMessage) + "\n")
			}
		}
		if c.Purchases > 0 {
			b.WriteString("   Compras: " + f.count(c.Purchases) + "\n")
			if c.CostPerPurchase != nil {
				b.WriteString("   Custo/Compra: " + f.money(*c.CostPerPurchase) + "\n")
			}
		}
		b.WriteString("\n")
	}
}

// metricValue resolves a format key against the metrics. The second result
// is false for unknown keys and null values.
func (f *Formatter) metricValue(m *model.ReportMetrics, key string) (string, bool) {
	switch key {
	case "reach":
		return f.count(m.Reach), true
	case "impressions":
		return f.count(m.Impressions), true
	case "unclassified_actions":
		return f.count(m.UnclassifiedActions), true
	case "ctr_link_click":
		return f.percent(m.CTRLinkClick), true
	case "total_spend":
		return f.money(m.TotalSpend), true
	case "cost_per_message":
		return f.optionalMoney(m.CostPerMessage)
	case "cost_per_conversion":
		return f.optionalMoney(m.CostPerConversion)
	case "cost_per_purchase":
		return f.optionalMoney(m.CostPerPurchase)
	case "best_ad":
		if m.BestAd.Scope != model.BestAdScopeAll || m.BestAd.Name == "" {
			return "", false
		}
		return m.BestAd.Name, true
	}

	for _, action := range model.CanonicalActions {
		if countKey(action) == key {
			return f.count(m.Count(action)), true
		}
	}
	return "", false
}

// countKey returns the payload key of an action counter.
func countKey(action model.CanonicalAction) string {
	switch action {
	case model.ActionLinkClick:
		return "link_clicks"
	case model.ActionMessagingStarted:
		return "messages_started"
	case model.ActionPurchase:
		return "purchases"
	case model.ActionAddToCart:
		return "cart_additions"
	case model.ActionCheckoutInitiated:
		return "checkouts_initiated"
	case model.ActionInstagramVisit:
		return "instagram_visits"
	case model.ActionLeadConversion:
		return "conversions"
	default:
		return ""
	}
}

func (f *Formatter) count(v int64) string {
	return f.printer.Sprintf("%d", v)
}

func (f *Formatter) money(v float64) string {
	return f.currency + " " + f.printer.Sprintf("%.2f", v)
}

func (f *Formatter) optionalMoney(v *float64) (string, bool) {
	if v == nil {
		return "", false
	}
	return f.money(*v), true
}

func (f *Formatter) percent(v float64) string {
	return f.printer.Sprintf("%.2f", v) + "%"
}
