// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/adpulse/adpulse/internal/cache"
	"github.com/adpulse/adpulse/internal/metaads"
	"github.com/adpulse/adpulse/internal/metrics"
	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/report"
	"github.com/adpulse/adpulse/internal/repository"
)

// DegradedReach marks a report whose account reach fell back to zero.
const DegradedReach = "reach"

// DefaultReportCacheTTL is used when no TTL is configured.
const DefaultReportCacheTTL = 10 * time.Minute

// Gateway is the ads platform surface used to build reports.
type Gateway interface {
	GetCampaignInsights(ctx context.Context, creds metaads.Credentials, accountID string, window model.ReportWindow) ([]model.RawInsightRecord, error)
	GetAccountReach(ctx context.Context, creds metaads.Credentials, accountID string, window model.ReportWindow) (int64, error)
	GetCampaignObjectives(ctx context.Context, creds metaads.Credentials, accountID string) (map[string]string, error)
	GetAdInsights(ctx context.Context, creds metaads.Credentials, accountID string, window model.ReportWindow, limit int) ([]model.RawAdRecord, error)
}

// SettingsStore loads a user's ads platform settings.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID string) (*model.Settings, error)
}

// ClientStore loads clients.
type ClientStore interface {
	GetClient(ctx context.Context, userID, id string) (*model.Client, error)
}

// ReportStore persists generated reports.
type ReportStore interface {
	CreateReport(ctx context.Context, r *model.Report) error
	GetReport(ctx context.Context, userID, id string) (*model.Report, error)
	ListReports(ctx context.Context, userID, clientID string, limit int) ([]*model.Report, error)
	DeleteReport(ctx context.Context, userID, id string) error
}

// ReportCache caches aggregated metrics. GetReport returns cache.ErrCacheMiss
// when the key is absent.
type ReportCache interface {
	GetReport(ctx context.Context, key string) (*model.ReportMetrics, error)
	SetReport(ctx context.Context, key string, m *model.ReportMetrics, ttl time.Duration) error
}

// ReportDeps wires a ReportService. Clients, Reports and Cache are optional.
type ReportDeps struct {
	Gateway  Gateway
	Settings SettingsStore
	Clients  ClientStore
	Reports  ReportStore
	Cache    ReportCache
	CacheTTL time.Duration
	AdLimit  int
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// ReportService generates account-level reports from the ads platform.
type ReportService struct {
	gateway  Gateway
	settings SettingsStore
	clients  ClientStore
	reports  ReportStore
	cache    ReportCache
	cacheTTL time.Duration
	adLimit  int
	metrics  metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewReportService creates a new ReportService.
func NewReportService(deps ReportDeps) *ReportService {
	if deps.Recorder == nil {
		deps.Recorder = metrics.NewNoop()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = DefaultReportCacheTTL
	}
	if deps.AdLimit <= 0 {
		deps.AdLimit = metaads.DefaultAdLimit
	}
	return &ReportService{
		gateway:  deps.Gateway,
		settings: deps.Settings,
		clients:  deps.Clients,
		reports:  deps.Reports,
		cache:    deps.Cache,
		cacheTTL: deps.CacheTTL,
		adLimit:  deps.AdLimit,
		metrics:  deps.Recorder,
		logger:   deps.Logger.With("component", "report_service"),
		now:      time.Now,
	}
}

// GenerateInput defines input for generating a report.
type GenerateInput struct {
	UserID      string
	AccountID   string
	Window      model.ReportWindow
	BestAdScope model.BestAdScope
	Source      string
	// SkipCache forces a fresh fetch. Scheduled runs always set it.
	SkipCache bool
}

// Generate fetches the window's insights and aggregates them.
func (s *ReportService) Generate(ctx context.Context, input GenerateInput) (*model.ReportMetrics, error) {
	start := s.now()
	source := input.Source
	if source == "" {
		source = metrics.SourceOnDemand
	}

	m, err := s.generate(ctx, input)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	s.metrics.ObserveReportGenerated(source, outcome, s.now().Sub(start))
	return m, err
}

func (s *ReportService) generate(ctx context.Context, input GenerateInput) (*model.ReportMetrics, error) {
	scope, err := model.ParseBestAdScope(string(input.BestAdScope))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScope, input.BestAdScope)
	}
	if strings.TrimSpace(input.AccountID) == "" {
		return nil, ErrInvalidAccount
	}
	accountID := metaads.NormalizeAccountID(input.AccountID)

	creds, err := s.Credentials(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	key := reportCacheKey(input.UserID, accountID, input.Window, scope)
	if !input.SkipCache && s.cache != nil {
		cached, err := s.cache.GetReport(ctx, key)
		switch {
		case err == nil:
			s.metrics.IncReportCacheHit()
			return cached, nil
		case errors.Is(err, cache.ErrCacheMiss):
			s.metrics.IncReportCacheMiss()
		default:
			s.logger.Warn("report cache read failed", "account_id", accountID, "error", err)
		}
	}

	m, err := s.fetch(ctx, creds, accountID, input.Window, scope)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && !m.IsDegraded() {
		if err := s.cache.SetReport(ctx, key, m, s.cacheTTL); err != nil {
			s.logger.Warn("report cache write failed", "account_id", accountID, "error", err)
		}
	}
	return m, nil
}

// Credentials resolves the user's access token and API version.
func (s *ReportService) Credentials(ctx context.Context, userID string) (metaads.Credentials, error) {
	settings, err := s.settings.GetSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSettingsNotFound) {
			return metaads.Credentials{}, ErrNotConfigured
		}
		return metaads.Credentials{}, fmt.Errorf("failed to load settings: %w", err)
	}
	if !settings.HasToken() {
		return metaads.Credentials{}, ErrNotConfigured
	}
	return metaads.Credentials{
		AccessToken: settings.AccessToken,
		APIVersion:  settings.Version(),
	}, nil
}

// fetch issues the four gateway queries concurrently. A reach failure
// degrades the report; any other failure aborts it.
func (s *ReportService) fetch(ctx context.Context, creds metaads.Credentials, accountID string, window model.ReportWindow, scope model.BestAdScope) (*model.ReportMetrics, error) {
	var (
		campaigns  []model.RawInsightRecord
		objectives map[string]string
		ads        []model.RawAdRecord
		reach      int64
		reachErr   error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		campaigns, err = s.gateway.GetCampaignInsights(gctx, creds, accountID, window)
		if err != nil {
			return fmt.Errorf("campaign insights: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		reach, reachErr = s.gateway.GetAccountReach(gctx, creds, accountID, window)
		return nil
	})
	g.Go(func() error {
		var err error
		objectives, err = s.gateway.GetCampaignObjectives(gctx, creds, accountID)
		if err != nil {
			return fmt.Errorf("campaign objectives: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		ads, err = s.gateway.GetAdInsights(gctx, creds, accountID, window, s.adLimit)
		if err != nil {
			return fmt.Errorf("ad insights: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if reachErr != nil {
		reach = 0
		s.logger.Warn("account reach unavailable, reporting zero",
			"account_id", accountID,
			"window", window.String(),
			"error", reachErr,
		)
	}

	m := report.Aggregate(report.AggregateInput{
		Campaigns:          campaigns,
		AccountReach:       reach,
		Ads:                ads,
		CampaignObjectives: objectives,
		BestAdScope:        scope,
	})
	if reachErr != nil {
		m.Degraded = append(m.Degraded, DegradedReach)
		s.metrics.IncReportDegraded(DegradedReach)
	}
	if m.UnclassifiedActions > 0 {
		s.metrics.AddUnclassifiedActions(m.UnclassifiedActions)
		s.logger.Debug("unclassified actions in report",
			"account_id", accountID,
			"count", m.UnclassifiedActions,
		)
	}
	return m, nil
}

// ClientReportInput defines input for a saved report on a client.
type ClientReportInput struct {
	UserID         string
	ClientID       string
	ReportFormatID *string
	Window         model.ReportWindow
	BestAdScope    model.BestAdScope
}

// GenerateForClient generates a report for a client's account and saves it.
// A failed generation is saved with status error before the error is returned.
func (s *ReportService) GenerateForClient(ctx context.Context, input ClientReportInput) (*model.Report, error) {
	if s.clients == nil || s.reports == nil {
		return nil, errors.New("client reports are not enabled")
	}

	client, err := s.clients.GetClient(ctx, input.UserID, input.ClientID)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if !client.IsActive {
		return nil, ErrClientInactive
	}

	formatID := input.ReportFormatID
	if formatID == nil {
		formatID = client.ReportFormatID
	}

	rec := &model.Report{
		ID:             ulid.Make().String(),
		UserID:         input.UserID,
		ClientID:       client.ID,
		ReportFormatID: formatID,
		Title:          fmt.Sprintf("Relatório %s - %s", client.Name, input.Window.String()),
		Window:         input.Window,
		Status:         model.ReportStatusCompleted,
		CreatedAt:      s.now().UTC(),
	}

	m, genErr := s.Generate(ctx, GenerateInput{
		UserID:      input.UserID,
		AccountID:   client.AccountID,
		Window:      input.Window,
		BestAdScope: input.BestAdScope,
		Source:      metrics.SourceOnDemand,
	})
	if genErr != nil {
		rec.Status = model.ReportStatusError
	} else {
		rec.Data = m
	}

	if err := s.reports.CreateReport(ctx, rec); err != nil {
		if genErr != nil {
			return nil, genErr
		}
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	if genErr != nil {
		return nil, genErr
	}
	return rec, nil
}

// GetReport returns one of the user's saved reports.
func (s *ReportService) GetReport(ctx context.Context, userID, id string) (*model.Report, error) {
	if s.reports == nil {
		return nil, ErrReportNotFound
	}
	r, err := s.reports.GetReport(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrReportNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return r, nil
}

// ListReports returns the user's saved reports, newest first, optionally
// for one client.
func (s *ReportService) ListReports(ctx context.Context, userID, clientID string, limit int) ([]*model.Report, error) {
	if s.reports == nil {
		return []*model.Report{}, nil
	}
	if limit <= 0 || limit > repository.DefaultReportListLimit {
		limit = repository.DefaultReportListLimit
	}
	return s.reports.ListReports(ctx, userID, clientID, limit)
}

// DeleteReport removes one of the user's saved reports.
func (s *ReportService) DeleteReport(ctx context.Context, userID, id string) error {
	if s.reports == nil {
		return ErrReportNotFound
	}
	if err := s.reports.DeleteReport(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrReportNotFound) {
			return ErrReportNotFound
		}
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

func reportCacheKey(userID, accountID string, window model.ReportWindow, scope model.BestAdScope) string {
	return strings.Join([]string{userID, accountID, window.Since(), window.Until(), string(scope)}, ":")
}
