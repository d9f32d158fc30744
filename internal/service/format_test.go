package service

import (
	"context"
	"errors"
	"testing"

	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/repository"
)

type memoryFormats struct {
	formats map[string]*model.ReportFormat
	seeded  int
}

func (m *memoryFormats) CreateFormat(_ context.Context, f *model.ReportFormat) error {
	for _, existing := range m.formats {
		if existing.UserID == f.UserID && existing.Name == f.Name {
			return repository.ErrDuplicateFormat
		}
	}
	m.formats[f.ID] = f
	return nil
}

func (m *memoryFormats) GetFormat(_ context.Context, userID, id string) (*model.ReportFormat, error) {
	f, ok := m.formats[id]
	if !ok || f.UserID != userID {
		return nil, repository.ErrFormatNotFound
	}
	return f, nil
}

func (m *memoryFormats) ListFormats(_ context.Context, userID string) ([]*model.ReportFormat, error) {
	var out []*model.ReportFormat
	for _, f := range m.formats {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memoryFormats) UpdateFormat(_ context.Context, f *model.ReportFormat) error {
	if _, err := m.GetFormat(context.Background(), f.UserID, f.ID); err != nil {
		return err
	}
	for _, existing := range m.formats {
		if existing.ID != f.ID && existing.UserID == f.UserID && existing.Name == f.Name {
			return repository.ErrDuplicateFormat
		}
	}
	if f.IsDefault {
		for _, existing := range m.formats {
			if existing.UserID == f.UserID {
				existing.IsDefault = false
			}
		}
	}
	m.formats[f.ID] = f
	return nil
}

func (m *memoryFormats) DeleteFormat(_ context.Context, userID, id string) error {
	if _, err := m.GetFormat(context.Background(), userID, id); err != nil {
		return err
	}
	delete(m.formats, id)
	return nil
}

func (m *memoryFormats) SeedDefaultFormats(_ context.Context, userID string) ([]*model.ReportFormat, error) {
	m.seeded++
	if m.seeded > 1 {
		return nil, nil
	}
	out := make([]*model.ReportFormat, 0, len(model.DefaultReportFormats))
	for i := range model.DefaultReportFormats {
		f := model.DefaultReportFormats[i]
		f.UserID = userID
		out = append(out, &f)
	}
	return out, nil
}

func TestFormatServiceCreate(t *testing.T) {
	store := &memoryFormats{formats: make(map[string]*model.ReportFormat)}
	svc := NewFormatService(store, nil)
	ctx := context.Background()

	in := CreateFormatInput{
		UserID:  "user-1",
		Name:    "  Leads ",
		Metrics: []model.Metric{{Key: "reach", Label: "👥 Alcance:"}, {Key: "conversions", Label: "🎯 Conversões:"}},
	}
	f, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if f.Name != "Leads" || f.ID == "" {
		t.Errorf("unexpected format %+v", f)
	}

	if _, err := svc.Create(ctx, in); !errors.Is(err, ErrDuplicateFormat) {
		t.Errorf("expected ErrDuplicateFormat, got %v", err)
	}

	if _, err := svc.Create(ctx, CreateFormatInput{UserID: "user-1", Name: "Empty"}); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestFormatServiceGetDeleteSeed(t *testing.T) {
	store := &memoryFormats{formats: map[string]*model.ReportFormat{
		"f1": {ID: "f1", UserID: "user-1", Name: "Mensagens"},
	}}
	svc := NewFormatService(store, nil)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "user-2", "f1"); !errors.Is(err, ErrFormatNotFound) {
		t.Errorf("other user: expected ErrFormatNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, "user-1", "f1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := svc.Delete(ctx, "user-1", "f1"); !errors.Is(err, ErrFormatNotFound) {
		t.Errorf("second delete: expected ErrFormatNotFound, got %v", err)
	}

	created, err := svc.SeedDefaults(ctx, "user-1")
	if err != nil {
		t.Fatalf("SeedDefaults failed: %v", err)
	}
	if len(created) != 4 {
		t.Errorf("seeded %d formats, want 4", len(created))
	}
	again, err := svc.SeedDefaults(ctx, "user-1")
	if err != nil || len(again) != 0 {
		t.Errorf("second seed = %d formats, err %v", len(again), err)
	}
}

func TestFormatServiceUpdate(t *testing.T) {
	metrics := []model.Metric{{Key: "reach", Label: "👥 Alcance:"}}
	store := &memoryFormats{formats: map[string]*model.ReportFormat{
		"f1": {ID: "f1", UserID: "user-1", Name: "Mensagens", Metrics: metrics, IsDefault: true},
		"f2": {ID: "f2", UserID: "user-1", Name: "Vendas", Metrics: metrics},
	}}
	svc := NewFormatService(store, nil)
	ctx := context.Background()

	name := "  Leads "
	isDefault := true
	f, err := svc.Update(ctx, UpdateFormatInput{UserID: "user-1", ID: "f2", Name: &name, IsDefault: &isDefault})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if f.Name != "Leads" || !f.IsDefault || len(f.Metrics) != 1 {
		t.Errorf("unexpected format %+v", f)
	}
	if store.formats["f1"].IsDefault {
		t.Error("previous default was not demoted")
	}

	taken := "Mensagens"
	if _, err := svc.Update(ctx, UpdateFormatInput{UserID: "user-1", ID: "f2", Name: &taken}); !errors.Is(err, ErrDuplicateFormat) {
		t.Errorf("expected ErrDuplicateFormat, got %v", err)
	}
	if _, err := svc.Update(ctx, UpdateFormatInput{UserID: "user-1", ID: "f2", Metrics: []model.Metric{}}); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("empty metrics: expected ErrInvalidFormat, got %v", err)
	}
	if _, err := svc.Update(ctx, UpdateFormatInput{UserID: "user-2", ID: "f2", Name: &name}); !errors.Is(err, ErrFormatNotFound) {
		t.Errorf("other user: expected ErrFormatNotFound, got %v", err)
	}
	if got := store.formats["f2"].Name; got != "Leads" {
		t.Errorf("rejected updates changed the stored name to %q", got)
	}
}
