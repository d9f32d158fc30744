// Package metaads reads campaign and ad insights from the Meta Graph API.
package metaads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/adpulse/adpulse/internal/metrics"
	"github.com/adpulse/adpulse/internal/model"
)

const (
	// DefaultBaseURL is the public Graph API host.
	DefaultBaseURL = "https://graph.facebook.com"
	// DefaultTimeout bounds a single Graph request.
	DefaultTimeout = 15 * time.Second
	// DefaultAdLimit caps ad-level rows per report.
	DefaultAdLimit = 100
	// DefaultMaxPages caps paging.next hops per query.
	DefaultMaxPages = 10

	accountPrefix = "act_"
	maxErrorBody  = 1024
)

// Endpoint labels used for metrics and logs.
const (
	EndpointCampaignInsights = "campaign_insights"
	EndpointAccountReach     = "account_reach"
	EndpointCampaigns        = "campaigns"
	EndpointAdInsights       = "ad_insights"
)

var (
	campaignInsightFields = []string{"campaign_name", "reach", "impressions", "spend", "actions", "cost_per_action_type", "clicks", "ctr"}
	adInsightFields       = []string{"ad_name", "campaign_name", "spend", "impressions", "actions", "reach"}
)

// Credentials identify the caller to the Graph API.
type Credentials struct {
	AccessToken string
	APIVersion  string
}

// Config configures a Client.
type Config struct {
	BaseURL           string
	DefaultAPIVersion string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxPages          int
}

// Client is a rate-limited Graph API reader.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	version    string
	limiter    *rate.Limiter
	maxPages   int
	logger     *slog.Logger
	metrics    metrics.Recorder
}

// NewClient creates a Client. A zero RequestsPerSecond disables rate limiting.
func NewClient(cfg Config, logger *slog.Logger, recorder metrics.Recorder) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid graph base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.DefaultAPIVersion == "" {
		cfg.DefaultAPIVersion = model.DefaultAPIVersion
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return &Client{
		httpClient: newHTTPClient(cfg.Timeout),
		baseURL:    base,
		version:    cfg.DefaultAPIVersion,
		limiter:    limiter,
		maxPages:   cfg.MaxPages,
		logger:     logger.With("component", "metaads"),
		metrics:    recorder,
	}, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// NormalizeAccountID adds the act_ prefix when it is missing.
func NormalizeAccountID(accountID string) string {
	accountID = strings.TrimSpace(accountID)
	if strings.HasPrefix(accountID, accountPrefix) {
		return accountID
	}
	return accountPrefix + accountID
}

// GetCampaignInsights returns one record per campaign for the window.
func (c *Client) GetCampaignInsights(ctx context.Context, creds Credentials, accountID string, window model.ReportWindow) ([]model.RawInsightRecord, error) {
	params := insightParams("campaign", campaignInsightFields, window)

	var records []model.RawInsightRecord
	err := c.getPaged(ctx, EndpointCampaignInsights, creds, c.insightsURL(creds, accountID, params), func(raw json.RawMessage) error {
		var rows []campaignInsightRow
		if err := json.Unmarshal(raw, &rows); err != nil {
			return fmt.Errorf("decode campaign insights: %w", err)
		}
		for _, row := range rows {
			records = append(records, row.toRecord())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetAccountReach returns deduplicated reach for the whole account.
func (c *Client) GetAccountReach(ctx context.Context, creds Credentials, accountID string, window model.ReportWindow) (int64, error) {
	params := insightParams("account", []string{"reach"}, window)

	var env envelope
	if err := c.get(ctx, EndpointAccountReach, creds, c.insightsURL(creds, accountID, params), &env); err != nil {
		return 0, err
	}
	if len(env.Data) == 0 {
		return 0, nil
	}
	var rows []struct {
		Reach string `json:"reach"`
	}
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return 0, fmt.Errorf("decode account reach: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return parseCount(rows[0].Reach), nil
}

// GetCampaignObjectives maps campaign name to objective.
func (c *Client) GetCampaignObjectives(ctx context.Context, creds Credentials, accountID string) (map[string]string, error) {
	params := url.Values{}
	params.Set("fields", "id,name,objective")
	u := c.accountURL(creds, accountID, "campaigns")
	u.RawQuery = params.Encode()

	objectives := make(map[string]string)
	err := c.getPaged(ctx, EndpointCampaigns, creds, u, func(raw json.RawMessage) error {
		var rows []struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			Objective string `json:"objective"`
		}
		if err := json.Unmarshal(raw, &rows); err != nil {
			return fmt.Errorf("decode campaigns: %w", err)
		}
		for _, row := range rows {
			objective := row.Objective
			if objective == "" {
				objective = "UNKNOWN"
			}
			objectives[row.Name] = objective
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objectives, nil
}

// GetAdInsights returns at most limit ad-level records for the window.
func (c *Client) GetAdInsights(ctx context.Context, creds Credentials, accountID string, window model.ReportWindow, limit int) ([]model.RawAdRecord, error) {
	if limit <= 0 {
		limit = DefaultAdLimit
	}
	params := insightParams("ad", adInsightFields, window)
	params.Set("limit", strconv.Itoa(limit))

	var env envelope
	if err := c.get(ctx, EndpointAdInsights, creds, c.insightsURL(creds, accountID, params), &env); err != nil {
		return nil, err
	}
	var rows []adInsightRow
	if len(env.Data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, fmt.Errorf("decode ad insights: %w", err)
	}
	records := make([]model.RawAdRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

func insightParams(level string, fields []string, window model.ReportWindow) url.Values {
	timeRange, _ := json.Marshal(map[string]string{
		"since": window.Since(),
		"until": window.Until(),
	})
	params := url.Values{}
	params.Set("level", level)
	params.Set("fields", strings.Join(fields, ","))
	params.Set("time_range", string(timeRange))
	return params
}

func (c *Client) accountURL(creds Credentials, accountID, edge string) *url.URL {
	version := creds.APIVersion
	if version == "" {
		version = c.version
	}
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + version + "/" + NormalizeAccountID(accountID) + "/" + edge
	return &u
}

func (c *Client) insightsURL(creds Credentials, accountID string, params url.Values) *url.URL {
	u := c.accountURL(creds, accountID, "insights")
	u.RawQuery = params.Encode()
	return u
}

// envelope is the common Graph response shape.
type envelope struct {
	Data   json.RawMessage `json:"data"`
	Paging *struct {
		Next string `json:"next"`
	} `json:"paging,omitempty"`
	Error *graphError `json:"error,omitempty"`
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// getPaged follows paging.next up to maxPages, calling fn for each data page.
func (c *Client) getPaged(ctx context.Context, endpoint string, creds Credentials, u *url.URL, fn func(json.RawMessage) error) error {
	for page := 0; u != nil && page < c.maxPages; page++ {
		var env envelope
		if err := c.get(ctx, endpoint, creds, u, &env); err != nil {
			return err
		}
		if len(env.Data) > 0 {
			if err := fn(env.Data); err != nil {
				return err
			}
		}

		u = nil
		if env.Paging != nil && env.Paging.Next != "" {
			next, err := url.Parse(env.Paging.Next)
			if err != nil {
				return fmt.Errorf("parse paging url: %w", err)
			}
			// The token travels in a header, never to a foreign host.
			if next.Host != c.baseURL.Host {
				return ErrPagingHostMismatch
			}
			u = next
		}
	}
	if u != nil {
		c.logger.Warn("graph paging stopped at page limit",
			"endpoint", endpoint,
			"max_pages", c.maxPages,
		)
	}
	return nil
}

// get issues one rate-limited GET and decodes the envelope.
func (c *Client) get(ctx context.Context, endpoint string, creds Credentials, u *url.URL, env *envelope) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &NetworkError{Op: endpoint, Err: err}
	}

	start := time.Now()
	err := c.do(ctx, creds, u, env)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	c.metrics.ObserveGraphRequest(endpoint, outcome, time.Since(start))

	if err != nil {
		c.logger.Warn("graph request failed",
			"endpoint", endpoint,
			"path", u.Path,
			"error", err,
		)
	}
	return err
}

func (c *Client) do(ctx context.Context, creds Credentials, u *url.URL, env *envelope) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: "GET " + u.Path, Err: unwrapURLError(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: "read " + u.Path, Err: err}
	}

	if jsonErr := json.Unmarshal(body, env); jsonErr != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &UpstreamError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, snippet(body)),
			}
		}
		return fmt.Errorf("decode graph response: %w", jsonErr)
	}

	if env.Error != nil {
		msg := env.Error.Message
		if msg == "" {
			msg = "ads platform error"
		}
		return &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    msg,
			Type:       env.Error.Type,
			Code:       env.Error.Code,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, snippet(body)),
		}
	}
	return nil
}

// unwrapURLError drops the request URL from transport errors.
func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

func snippet(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}

type rawAction struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

type campaignInsightRow struct {
	CampaignName string      `json:"campaign_name"`
	Objective    string      `json:"objective"`
	Reach        string      `json:"reach"`
	Impressions  string      `json:"impressions"`
	Spend        string      `json:"spend"`
	Clicks       string      `json:"clicks"`
	CTR          string      `json:"ctr"`
	Actions      []rawAction `json:"actions"`
}

func (r campaignInsightRow) toRecord() model.RawInsightRecord {
	ctr, _ := strconv.ParseFloat(r.CTR, 64)
	return model.RawInsightRecord{
		CampaignName: r.CampaignName,
		Objective:    r.Objective,
		Reach:        parseCount(r.Reach),
		Impressions:  parseCount(r.Impressions),
		Clicks:       parseCount(r.Clicks),
		Spend:        parseMoney(r.Spend),
		CTR:          ctr,
		Actions:      toActions(r.Actions),
	}
}

type adInsightRow struct {
	AdName       string      `json:"ad_name"`
	CampaignName string      `json:"campaign_name"`
	Reach        string      `json:"reach"`
	Impressions  string      `json:"impressions"`
	Spend        string      `json:"spend"`
	Actions      []rawAction `json:"actions"`
}

func (r adInsightRow) toRecord() model.RawAdRecord {
	return model.RawAdRecord{
		AdName:       r.AdName,
		CampaignName: r.CampaignName,
		Reach:        parseCount(r.Reach),
		Impressions:  parseCount(r.Impressions),
		Spend:        parseMoney(r.Spend),
		Actions:      toActions(r.Actions),
	}
}

func toActions(in []rawAction) []model.RawAction {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.RawAction, 0, len(in))
	for _, a := range in {
		out = append(out, model.RawAction{ActionType: a.ActionType, Value: parseCount(a.Value)})
	}
	return out
}

// parseCount reads Graph's stringly-typed integers. Bad input counts as 0.
func parseCount(s string) int64 {
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	// Some action values arrive as decimals.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

func parseMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
