package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hitoshi/redditreach/internal/gateway"
	"github.com/hitoshi/redditreach/internal/model"
)

type mockDispatcher struct {
	dispatchFn func(ctx context.Context, token string, action gateway.Action) (*gateway.Response, error)
	callCount  int
	lastAction gateway.Action
}

func (m *mockDispatcher) Dispatch(ctx context.Context, token string, action gateway.Action) (*gateway.Response, error) {
	m.callCount++
	m.lastAction = action
	if m.dispatchFn != nil {
		return m.dispatchFn(ctx, token, action)
	}
	return &gateway.Response{Data: json.RawMessage(`{}`)}, nil
}

func TestGet_ValidTypes_Dispatch(t *testing.T) {
	for _, typ := range []string{"engagement", "traffic", "conversions", "performance"} {
		t.Run(typ, func(t *testing.T) {
			dispatcher := &mockDispatcher{}
			svc := NewService(dispatcher)

			_, err := svc.Get(context.Background(), "tok", typ, "7d")
			if err != nil {
				t.Fatalf("Get(%q) returned unexpected error: %v", typ, err)
			}

			action, ok := dispatcher.lastAction.(gateway.GetAnalyticsAction)
			if !ok {
				t.Fatalf("action = %T, want gateway.GetAnalyticsAction", dispatcher.lastAction)
			}
			if action.Type != typ || action.DateRange != "7d" {
				t.Errorf("unexpected action: %+v", action)
			}
		})
	}
}

func TestGet_InvalidType_DoesNotDispatch(t *testing.T) {
	dispatcher := &mockDispatcher{}
	svc := NewService(dispatcher)

	_, err := svc.Get(context.Background(), "tok", "revenue", "30d")
	if err == nil {
		t.Fatal("expected error for invalid analytics type")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Code != model.ErrCodeInvalidAnalytics {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeInvalidAnalytics)
	}

	// 無効タイプはネットワークに到達しない
	if dispatcher.callCount != 0 {
		t.Errorf("dispatch call count = %d, want 0", dispatcher.callCount)
	}
}

func TestGet_EmptyDateRange_DefaultsTo30d(t *testing.T) {
	dispatcher := &mockDispatcher{}
	svc := NewService(dispatcher)

	if _, err := svc.Get(context.Background(), "tok", "traffic", ""); err != nil {
		t.Fatalf("Get returned unexpected error: %v", err)
	}

	action := dispatcher.lastAction.(gateway.GetAnalyticsAction)
	if action.DateRange != "30d" {
		t.Errorf("dateRange = %q, want %q", action.DateRange, "30d")
	}
}

func TestIsValidType(t *testing.T) {
	if !IsValidType("engagement") {
		t.Error("engagement should be valid")
	}
	if IsValidType("REVENUE") {
		t.Error("REVENUE should be invalid")
	}
	if IsValidType("") {
		t.Error("empty type should be invalid")
	}
}
