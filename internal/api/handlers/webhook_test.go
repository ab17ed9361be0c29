package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/tour-availability/backend/internal/channel"
	"github.com/tour-availability/backend/internal/storage"
	"github.com/tour-availability/backend/internal/storage/models"
	ws "github.com/tour-availability/backend/internal/websocket"
)

const (
	testWebhookUser = "hooks"
	testWebhookPass = "hunter2"
)

func newWebhookServer(t *testing.T) (*mux.Router, *storage.BookingRepository) {
	t.Helper()

	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := storage.RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	repo := storage.NewBookingRepository(db)
	creds := WebhookCredentials{Username: testWebhookUser, Password: testWebhookPass}

	r := mux.NewRouter()
	r.HandleFunc("/api/webhooks/{channel}",
		ChannelWebhook(channel.DefaultRegistry(), repo, creds, (*ws.EventBroadcaster)(nil))).Methods("POST")
	return r, repo
}

func postWebhook(router *mux.Router, channelName, payload string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/"+channelName, strings.NewReader(payload))
	if authed {
		req.SetBasicAuth(testWebhookUser, testWebhookPass)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const tourHubPayload = `{
	"booking_reference": "TH-1001",
	"date": "2026-05-20",
	"time": "14:00",
	"duration_minutes": 120,
	"participants": 4,
	"customer": {"name": "Ada Lovelace"},
	"status": "confirmed"
}`

func TestChannelWebhook_RequiresAuth(t *testing.T) {
	router, _ := newWebhookServer(t)

	rec := postWebhook(router, "tourhub", tourHubPayload, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Basic") {
		t.Errorf("WWW-Authenticate = %q, want Basic challenge", got)
	}
}

func TestChannelWebhook_RejectsWhenNoCredentialsConfigured(t *testing.T) {
	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/webhooks/{channel}",
		ChannelWebhook(channel.DefaultRegistry(), storage.NewBookingRepository(db),
			WebhookCredentials{}, (*ws.EventBroadcaster)(nil))).Methods("POST")

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/tourhub", strings.NewReader(tourHubPayload))
	req.SetBasicAuth("", "")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("empty configured credentials must reject, got %d", rec.Code)
	}
}

func TestChannelWebhook_UnknownChannel(t *testing.T) {
	router, _ := newWebhookServer(t)

	rec := postWebhook(router, "unknown-ota", tourHubPayload, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestChannelWebhook_MalformedPayload(t *testing.T) {
	router, _ := newWebhookServer(t)

	cases := []struct {
		name    string
		payload string
	}{
		{"not json", "this is not json"},
		{"missing reference", `{"date": "2026-05-20", "time": "14:00"}`},
		{"bad date", `{"booking_reference": "TH-1", "date": "20/05/2026", "time": "14:00"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postWebhook(router, "tourhub", tc.payload, true)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestChannelWebhook_CreateThenUpdate(t *testing.T) {
	router, repo := newWebhookServer(t)

	rec := postWebhook(router, "tourhub", tourHubPayload, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first delivery status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var first WebhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !first.Created {
		t.Error("first delivery should report created")
	}
	if first.Status != models.StatusConfirmed {
		t.Errorf("tourhub initial status = %q, want confirmed", first.Status)
	}

	// Redelivery with a changed party size updates the same booking.
	updated := strings.Replace(tourHubPayload, `"participants": 4`, `"participants": 6`, 1)
	rec = postWebhook(router, "tourhub", updated, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("redelivery status = %d, want 200", rec.Code)
	}

	var second WebhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if second.Created {
		t.Error("redelivery should not report created")
	}
	if second.BookingID != first.BookingID {
		t.Errorf("redelivery booking = %s, want %s", second.BookingID, first.BookingID)
	}

	booking, err := repo.GetByID(context.Background(), first.BookingID)
	if err != nil || booking == nil {
		t.Fatalf("fetching booking: %v", err)
	}
	if booking.NumberOfPeople != 6 {
		t.Errorf("party size = %d, want 6 after update", booking.NumberOfPeople)
	}
}

func TestChannelWebhook_CityPassStartsPending(t *testing.T) {
	router, _ := newWebhookServer(t)

	payload := `{
		"event": "created",
		"reservation": {
			"code": "CP-88",
			"visit": {"day": "2026-06-01", "slot": "09:30"},
			"party_size": 2,
			"holder": "Grace Hopper"
		}
	}`
	rec := postWebhook(router, "citypass", payload, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp WebhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != models.StatusPending {
		t.Errorf("citypass initial status = %q, want pending", resp.Status)
	}
}

func TestChannelWebhook_ConcurrentDeliveriesConverge(t *testing.T) {
	router, repo := newWebhookServer(t)

	const deliveries = 8
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			postWebhook(router, "tourhub", tourHubPayload, true)
		}()
	}
	wg.Wait()

	bookings, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("listing bookings: %v", err)
	}
	if len(bookings) != 1 {
		t.Fatalf("bookings = %d, want exactly 1 after %d concurrent deliveries", len(bookings), deliveries)
	}
}
