package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/adpulse/adpulse/internal/handler/dto"
	"github.com/adpulse/adpulse/internal/metaads"
	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/report"
	"github.com/adpulse/adpulse/internal/service"
)

type fakeReportService struct {
	metrics *model.ReportMetrics
	err     error

	lastGenerate service.GenerateInput
	lastClient   service.ClientReportInput
	reports      map[string]*model.Report
}

func (f *fakeReportService) Generate(ctx context.Context, input service.GenerateInput) (*model.ReportMetrics, error) {
	f.lastGenerate = input
	if f.err != nil {
		return nil, f.err
	}
	return f.metrics, nil
}

func (f *fakeReportService) GenerateForClient(ctx context.Context, input service.ClientReportInput) (*model.Report, error) {
	f.lastClient = input
	if f.err != nil {
		return nil, f.err
	}
	return &model.Report{
		ID:       "rep-1",
		UserID:   input.UserID,
		ClientID: input.ClientID,
		Window:   input.Window,
		Data:     f.metrics,
		Status:   model.ReportStatusCompleted,
	}, nil
}

func (f *fakeReportService) GetReport(ctx context.Context, userID, id string) (*model.Report, error) {
	r, ok := f.reports[id]
	if !ok || r.UserID != userID {
		return nil, service.ErrReportNotFound
	}
	return r, nil
}

func (f *fakeReportService) ListReports(ctx context.Context, userID, clientID string, limit int) ([]*model.Report, error) {
	var out []*model.Report
	for _, r := range f.reports {
		if r.UserID == userID && (clientID == "" || r.ClientID == clientID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReportService) DeleteReport(ctx context.Context, userID, id string) error {
	r, ok := f.reports[id]
	if !ok || r.UserID != userID {
		return service.ErrReportNotFound
	}
	delete(f.reports, id)
	return nil
}

type fakeFormatGetter map[string]*model.ReportFormat

func (f fakeFormatGetter) Get(ctx context.Context, userID, id string) (*model.ReportFormat, error) {
	if format, ok := f[id]; ok {
		return format, nil
	}
	return nil, service.ErrFormatNotFound
}

func sampleMetrics() *model.ReportMetrics {
	m := &model.ReportMetrics{
		Reach:        1200,
		Impressions:  5400,
		TotalSpend:   150.5,
		CTRLinkClick: 1.25,
		BestAdScope:  model.BestAdScopeAll,
	}
	m.Add(model.ActionMessagingStarted, 12)
	return m
}

func newTestReportHandler(svc *fakeReportService) *ReportHandler {
	h := NewReportHandler(svc, fakeFormatGetter{}, report.NewFormatter("pt-BR", "R$"), discardLogger())
	h.now = func() time.Time { return time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC) }
	return h
}

func TestReportHandler_Generate(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "account report",
			body:       dto.GenerateReportRequest{AccountID: "123456", StartDate: "2024-01-08", EndDate: "2024-01-14"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "client report is saved",
			body:       dto.GenerateReportRequest{ClientID: "client-1", StartDate: "2024-01-08", EndDate: "2024-01-14"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing account",
			body:       dto.GenerateReportRequest{StartDate: "2024-01-08", EndDate: "2024-01-14"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_ACCOUNT",
		},
		{
			name:       "end before start",
			body:       dto.GenerateReportRequest{AccountID: "1", StartDate: "2024-01-14", EndDate: "2024-01-08"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_WINDOW",
		},
		{
			name:       "bad date",
			body:       dto.GenerateReportRequest{AccountID: "1", StartDate: "14/01/2024", EndDate: "2024-01-08"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_WINDOW",
		},
		{
			name:       "bad scope",
			body:       dto.GenerateReportRequest{AccountID: "1", StartDate: "2024-01-08", EndDate: "2024-01-14", BestAdScope: "by_adset"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_SCOPE",
		},
		{
			name:       "malformed body",
			body:       `{"account_id":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_JSON",
		},
		{
			name:       "not configured",
			body:       dto.GenerateReportRequest{AccountID: "1", StartDate: "2024-01-08", EndDate: "2024-01-14"},
			svcErr:     service.ErrNotConfigured,
			wantStatus: http.StatusPreconditionFailed,
			wantCode:   "NOT_CONFIGURED",
		},
		{
			name:       "platform error",
			body:       dto.GenerateReportRequest{AccountID: "1", StartDate: "2024-01-08", EndDate: "2024-01-14"},
			svcErr:     &metaads.UpstreamError{StatusCode: 400, Message: "Unsupported get request."},
			wantStatus: http.StatusBadGateway,
			wantCode:   "PLATFORM_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeReportService{metrics: sampleMetrics(), err: tt.svcErr}
			h := newTestReportHandler(svc)

			rec := serve(t, http.MethodPost, "/reports/generate", "/reports/generate", h.Generate, tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" {
				if got := decodeError(t, rec); got.Code != tt.wantCode {
					t.Errorf("code = %s, want %s", got.Code, tt.wantCode)
				}
			}
		})
	}
}

func TestReportHandler_GeneratePassesInput(t *testing.T) {
	svc := &fakeReportService{metrics: sampleMetrics()}
	h := newTestReportHandler(svc)

	rec := serve(t, http.MethodPost, "/reports/generate", "/reports/generate", h.Generate, dto.GenerateReportRequest{
		AccountID:   "act_99",
		StartDate:   "2024-01-08",
		EndDate:     "2024-01-14",
		BestAdScope: "by_campaign",
		Refresh:     true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	in := svc.lastGenerate
	if in.UserID != testUserID || in.AccountID != "act_99" {
		t.Errorf("input = %+v", in)
	}
	if in.BestAdScope != model.BestAdScopeByCampaign || !in.SkipCache {
		t.Errorf("scope/refresh not passed: %+v", in)
	}
	if in.Window.Since() != "2024-01-08" || in.Window.Until() != "2024-01-14" {
		t.Errorf("window = %s", in.Window)
	}

	var got model.ReportMetrics
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Reach != 1200 || got.Count(model.ActionMessagingStarted) != 12 {
		t.Errorf("metrics = %+v", got)
	}
}

func TestReportHandler_Preview(t *testing.T) {
	svc := &fakeReportService{metrics: sampleMetrics()}
	h := newTestReportHandler(svc)

	rec := serve(t, http.MethodPost, "/reports/preview", "/reports/preview", h.Preview, dto.GenerateReportRequest{
		AccountID:  "123",
		ClientName: "Loja Azul",
		StartDate:  "2024-01-08",
		EndDate:    "2024-01-14",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var got dto.PreviewResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(got.Text, "LOJA AZUL") {
		t.Errorf("text missing client header:\n%s", got.Text)
	}
	if !strings.Contains(got.Text, "08/01/2024") {
		t.Errorf("text missing period:\n%s", got.Text)
	}
}

func TestReportHandler_PreviewUnknownFormat(t *testing.T) {
	h := newTestReportHandler(&fakeReportService{metrics: sampleMetrics()})
	missing := "fmt-missing"

	rec := serve(t, http.MethodPost, "/reports/preview", "/reports/preview", h.Preview, dto.GenerateReportRequest{
		AccountID:      "123",
		StartDate:      "2024-01-08",
		EndDate:        "2024-01-14",
		ReportFormatID: &missing,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if got := decodeError(t, rec); got.Code != "FORMAT_NOT_FOUND" {
		t.Errorf("code = %s", got.Code)
	}
}

func TestReportHandler_GetAndList(t *testing.T) {
	svc := &fakeReportService{reports: map[string]*model.Report{
		"rep-1": {ID: "rep-1", UserID: testUserID, ClientID: "client-a", Status: model.ReportStatusCompleted},
		"rep-2": {ID: "rep-2", UserID: testUserID, ClientID: "client-b", Status: model.ReportStatusError},
		"rep-3": {ID: "rep-3", UserID: "other", ClientID: "client-a", Status: model.ReportStatusCompleted},
	}}
	h := newTestReportHandler(svc)

	rec := serve(t, http.MethodGet, "/reports/{id}", "/reports/rep-1", h.Get, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = serve(t, http.MethodGet, "/reports/{id}", "/reports/rep-3", h.Get, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("other user's report status = %d, want 404", rec.Code)
	}

	rec = serve(t, http.MethodGet, "/reports", "/reports?client_id=client-a", h.List, nil)
	var list dto.ListResponse[model.Report]
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].ID != "rep-1" {
		t.Errorf("list = %+v", list.Data)
	}
}

func TestReportHandler_Delete(t *testing.T) {
	svc := &fakeReportService{reports: map[string]*model.Report{
		"rep-1": {ID: "rep-1", UserID: testUserID, ClientID: "client-a", Status: model.ReportStatusCompleted},
		"rep-2": {ID: "rep-2", UserID: "other", ClientID: "client-a", Status: model.ReportStatusCompleted},
	}}
	h := newTestReportHandler(svc)

	rec := serve(t, http.MethodDelete, "/reports/{id}", "/reports/rep-1", h.Delete, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = serve(t, http.MethodGet, "/reports/{id}", "/reports/rep-1", h.Get, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}

	rec = serve(t, http.MethodDelete, "/reports/{id}", "/reports/rep-2", h.Delete, nil)
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Code != "REPORT_NOT_FOUND" {
		t.Errorf("other user's report delete status = %d, want 404", rec.Code)
	}
	if _, ok := svc.reports["rep-2"]; !ok {
		t.Error("other user's report was deleted")
	}
}
