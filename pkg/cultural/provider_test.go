package cultural

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func calendarTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/calendar/ramadan", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"ramadan": true})
	})
	mux.HandleFunc("/api/v1/calendar/fasting", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"fasting": false})
	})
	mux.HandleFunc("/api/v1/calendar/festivals", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("days") != "30" {
			t.Errorf("unexpected days parameter %q", r.URL.Query().Get("days"))
		}
		start := time.Date(2026, 11, 8, 0, 0, 0, 0, time.UTC)
		json.NewEncoder(w).Encode(map[string][]Festival{"festivals": {
			{Name: "Diwali", Start: start, End: start.Add(72 * time.Hour), Major: true},
		}})
	})
	return httptest.NewServer(mux)
}

func TestCalendarClientQueries(t *testing.T) {
	server := calendarTestServer(t)
	defer server.Close()

	client := NewCalendarClient(CalendarClientOptions{BaseURL: server.URL, Timeout: 2 * time.Second})
	ctx := context.Background()
	date := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

	ramadan, err := client.IsRamadan(ctx, date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ramadan {
		t.Fatal("expected ramadan flag from provider response")
	}

	fasting, err := client.IsFastingPeriod(ctx, date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fasting {
		t.Fatal("expected fasting flag to follow provider response")
	}

	festivals, err := client.UpcomingFestivals(ctx, date, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(festivals) != 1 || festivals[0].Name != "Diwali" || !festivals[0].Major {
		t.Fatalf("unexpected festivals payload: %+v", festivals)
	}
}

func TestCalendarClientUpstreamErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewCalendarClient(CalendarClientOptions{BaseURL: server.URL, Timeout: 2 * time.Second})
	ctx := context.Background()

	_, err := client.UpcomingFestivals(ctx, time.Now().UTC(), 7)
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable on 5xx, got %v", err)
	}

	// A dead endpoint reports the same sentinel as a failing one.
	server.Close()
	if _, err := client.IsRamadan(ctx, time.Now().UTC()); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable on transport failure, got %v", err)
	}
}
