package model

import (
	"errors"
	"strings"
	"time"
)

// DefaultAPIVersion is the Graph API version used when settings leave it empty.
const DefaultAPIVersion = "v23.0"

// DefaultFormatName labels payloads rendered without a report format.
const DefaultFormatName = "Padrão"

// Client is an advertiser whose ad account is reported on.
type Client struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	AccountID      string    `json:"account_id"`
	ReportFormatID *string   `json:"report_format_id,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Metric is one line of a report format.
type Metric struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// ReportFormat is an ordered selection of metrics shown in a report.
type ReportFormat struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Metrics     []Metric  `json:"metrics"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks a format before it is stored.
func (f *ReportFormat) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("name is required")
	}
	if len(f.Metrics) == 0 {
		return errors.New("at least one metric is required")
	}
	for _, m := range f.Metrics {
		if m.Key == "" || m.Label == "" {
			return errors.New("metric key and label are required")
		}
	}
	return nil
}

// DefaultScheduledMetrics is used by scheduled reports without a format.
var DefaultScheduledMetrics = []Metric{
	{Key: "reach", Label: "👥 Alcance:"},
	{Key: "impressions", Label: "👁️ Impressões:"},
	{Key: "link_clicks", Label: "🔗 Cliques no Link:"},
	{Key: "messages_started", Label: "💬 Mensagens Iniciadas:"},
	{Key: "cost_per_message", Label: "💰 Custo por Mensagem:"},
	{Key: "instagram_visits", Label: "📱 Visitas ao Instagram:"},
	{Key: "total_spend", Label: "💲 Investimento Total:"},
}

// DefaultReportFormats are seeded for a user on request.
// Only the first is marked as the user's default.
var DefaultReportFormats = []ReportFormat{
	{
		Name:        "Mensagens",
		Description: "Formato focado em campanhas de mensagens com métricas de engajamento",
		IsDefault:   true,
		Metrics: []Metric{
			{Key: "reach", Label: "👥 Alcance:"},
			{Key: "impressions", Label: "👁️ Impressões:"},
			{Key: "ctr_link_click", Label: "🤩 CTR (Taxa de Cliques no Link):"},
			{Key: "messages_started", Label: "💬 Mensagens por Conversa Iniciada:"},
			{Key: "cost_per_message", Label: "💰 Custo por Mensagem:"},
			{Key: "total_spend", Label: "💲 Investimento Total:"},
		},
	},
	{
		Name:        "Conversões",
		Description: "Formato de conversões com métricas de mensagens e custo por conversão",
		Metrics: []Metric{
			{Key: "reach", Label: "👥 Alcance:"},
			{Key: "impressions", Label: "👁️ Impressões:"},
			{Key: "ctr_link_click", Label: "🤩 CTR (Taxa de Cliques no Link):"},
			{Key: "messages_started", Label: "💬 Mensagens por Conversa Iniciada:"},
			{Key: "cost_per_message", Label: "💰 Custo por Mensagem:"},
			{Key: "conversions", Label: "🎯 Conversões:"},
			{Key: "cost_per_conversion", Label: "💰 Custo por Conversão:"},
			{Key: "total_spend", Label: "💲 Investimento Total:"},
		},
	},
	{
		Name:        "E-commerce",
		Description: "Formato para comércio eletrônico com métricas de compras e carrinho",
		Metrics: []Metric{
			{Key: "reach", Label: "👥 Alcance:"},
			{Key: "purchases", Label: "🛍️ Compras:"},
			{Key: "cart_additions", Label: "🛒 Adição ao Carrinho:"},
			{Key: "checkouts_initiated", Label: "👤 Finalização de compra:"},
			{Key: "link_clicks", Label: "🖱️ Cliques no link:"},
			{Key: "ctr_link_click", Label: "🤩 CTR (Taxa de Atratividade):"},
			{Key: "instagram_visits", Label: "📱 Visitas ao Instagram:"},
			{Key: "total_spend", Label: "💵 Investimento:"},
		},
	},
	{
		Name:        "Alcance",
		Description: "Formato focado em alcance, impressões e engajamento",
		Metrics: []Metric{
			{Key: "reach", Label: "👥 Alcance:"},
			{Key: "impressions", Label: "👁️ Impressões:"},
			{Key: "ctr_link_click", Label: "🤩 CTR (Taxa de Cliques no Link):"},
			{Key: "link_clicks", Label: "🖱️ Cliques no link:"},
			{Key: "instagram_visits", Label: "📱 Visitas ao Instagram:"},
			{Key: "total_spend", Label: "💲 Investimento Total:"},
		},
	},
}

// Settings holds a user's ads platform credentials.
type Settings struct {
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"-"`
	APIVersion  string    `json:"api_version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasToken reports whether an access token is configured.
func (s *Settings) HasToken() bool {
	return s != nil && strings.TrimSpace(s.AccessToken) != ""
}

// Version returns the configured API version or DefaultAPIVersion.
func (s *Settings) Version() string {
	if s == nil || s.APIVersion == "" {
		return DefaultAPIVersion
	}
	return s.APIVersion
}
