package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "secret", srv.Client())
}

func TestFindPet(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/pets" {
			t.Errorf("path = %s, want /v1/pets", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode([]Pet{{ID: "p1", Name: "Max", Type: "dog"}, {ID: "p2", Name: "Bella", Type: "cat"}})
	})

	p, err := c.FindPet(context.Background(), "bella")
	if err != nil {
		t.Fatalf("FindPet() error = %v", err)
	}
	if p.ID != "p2" || p.Type != "cat" {
		t.Errorf("FindPet() = %+v, want p2/cat", p)
	}
	if _, err := c.FindPet(context.Background(), "Rex"); !errors.Is(err, ErrNoPet) {
		t.Errorf("FindPet(Rex) error = %v, want ErrNoPet", err)
	}
}

func TestCreateHealthLog(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/health-logs" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var l HealthLog
		if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		l.ID = "log-1"
		json.NewEncoder(w).Encode(l)
	})

	got, err := c.CreateHealthLog(context.Background(), HealthLog{PetID: "p1", Type: "feeding", Value: 2, Unit: "cups", LoggedAt: time.Now()})
	if err != nil {
		t.Fatalf("CreateHealthLog() error = %v", err)
	}
	if got.ID != "log-1" || got.Unit != "cups" {
		t.Errorf("CreateHealthLog() = %+v", got)
	}
}

func TestListHealthLogsQuery(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("petId") != "p1" || r.URL.Query().Get("type") != "feeding" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Write([]byte(`[]`))
	})
	logs, err := c.ListHealthLogs(context.Background(), "p1", "feeding")
	if err != nil || len(logs) != 0 {
		t.Errorf("ListHealthLogs() = %v, %v", logs, err)
	}
}

func TestAPIError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	_, err := c.ListAppointments(context.Background(), "p1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadGateway || apiErr.Body != "boom" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestMemoryFilters(t *testing.T) {
	m := NewMemory(Pet{ID: "p1", Name: "Max"}, Pet{ID: "p2", Name: "Bella"})
	ctx := context.Background()
	m.CreateHealthLog(ctx, HealthLog{PetID: "p1", Type: "feeding"})
	m.CreateHealthLog(ctx, HealthLog{PetID: "p1", Type: "weight"})
	m.CreateHealthLog(ctx, HealthLog{PetID: "p2", Type: "feeding"})

	logs, _ := m.ListHealthLogs(ctx, "p1", "feeding")
	if len(logs) != 1 || logs[0].ID == "" {
		t.Errorf("ListHealthLogs(p1, feeding) = %+v", logs)
	}
	all, _ := m.ListHealthLogs(ctx, "", "")
	if len(all) != 3 {
		t.Errorf("ListHealthLogs() = %d logs, want 3", len(all))
	}

	var _ API = m
	var _ API = (*Client)(nil)
}
