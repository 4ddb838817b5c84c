package webfleet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestSignature(t *testing.T) {
	client := NewClient("acme", "monitor", "hunter2")

	params := url.Values{}
	params.Set("account", "acme")
	params.Set("action", "test")

	// md5 of "accountacmeactiontesthunter2"
	expected := "4fd4900395e1c2d012552e5f3434bede"
	if signature := client.signature(params); signature != expected {
		t.Errorf("expected %s, got %s", expected, signature)
	}
}

func newTestServerClient(handler http.HandlerFunc) (*httptest.Server, *Client) {
	server := httptest.NewServer(handler)

	client := NewClient("acme", "monitor", "hunter2")
	client.APIURL = server.URL

	return server, client
}

func TestFetchPositions(t *testing.T) {
	var receivedQuery url.Values
	server, client := newTestServerClient(func(w http.ResponseWriter, r *http.Request) {
		receivedQuery = r.URL.Query()

		w.Write([]byte("objectno,objectname,latitude,longitude,pos_time,ignition\n" +
			"TRUCK-1,Truck One,51.5,-0.12,25.08.2026 10:15:00,1\n" +
			"TRUCK-2,Truck Two,52.0,0.5,not-a-time,0\n" +
			"TRUCK-3,Truck Three,52.1,0.6,25.08.2026 10:15:30,0\n"))
	})
	defer server.Close()

	samples, err := client.FetchPositions(context.Background(), 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedQuery.Get("action") != "showObjectReportExtern" {
		t.Errorf("expected showObjectReportExtern action, got %s", receivedQuery.Get("action"))
	}
	if receivedQuery.Get("signature") == "" {
		t.Errorf("expected request to be signed")
	}

	// the unparseable row is skipped, not fatal
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}

	first := samples[0]
	if first.VehicleRef != "TRUCK-1" {
		t.Errorf("expected TRUCK-1, got %s", first.VehicleRef)
	}
	if first.Location.Latitude() != 51.5 || first.Location.Longitude() != -0.12 {
		t.Errorf("location mismapped: lat %f lon %f", first.Location.Latitude(), first.Location.Longitude())
	}
	expectedTime := time.Date(2026, 8, 25, 10, 15, 0, 0, time.UTC)
	if !first.RecordedAt.Equal(expectedTime) {
		t.Errorf("expected %s, got %s", expectedTime, first.RecordedAt)
	}
	if first.IgnitionOn == nil || !*first.IgnitionOn {
		t.Errorf("expected ignition on for TRUCK-1")
	}

	if samples[1].IgnitionOn == nil || *samples[1].IgnitionOn {
		t.Errorf("expected ignition off for TRUCK-3")
	}
}

func TestFetchPositions_Limit(t *testing.T) {
	server, client := newTestServerClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("objectno,objectname,latitude,longitude,pos_time,ignition\n" +
			"TRUCK-1,Truck One,51.5,-0.12,25.08.2026 10:15:00,1\n" +
			"TRUCK-2,Truck Two,52.0,0.5,25.08.2026 10:15:10,1\n" +
			"TRUCK-3,Truck Three,52.1,0.6,25.08.2026 10:15:30,0\n"))
	})
	defer server.Close()

	samples, err := client.FetchPositions(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(samples) != 2 {
		t.Errorf("expected limit applied, got %d samples", len(samples))
	}
}

func TestSwitchOutput(t *testing.T) {
	var receivedQuery url.Values
	server, client := newTestServerClient(func(w http.ResponseWriter, r *http.Request) {
		receivedQuery = r.URL.Query()
		w.Write([]byte(""))
	})
	defer server.Close()

	err := client.SwitchOutput(context.Background(), "TRUCK-1", "Low Bridge", true, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedQuery.Get("action") != "switchOutputExtern" {
		t.Errorf("expected switchOutputExtern action, got %s", receivedQuery.Get("action"))
	}
	if receivedQuery.Get("objectno") != "TRUCK-1" {
		t.Errorf("expected objectno TRUCK-1, got %s", receivedQuery.Get("objectno"))
	}
	if receivedQuery.Get("outputname") != "Low Bridge" {
		t.Errorf("expected outputname Low Bridge, got %s", receivedQuery.Get("outputname"))
	}
	if receivedQuery.Get("state") != "1" {
		t.Errorf("expected state 1, got %s", receivedQuery.Get("state"))
	}
	if receivedQuery.Get("duration") != "5" {
		t.Errorf("expected duration 5, got %s", receivedQuery.Get("duration"))
	}

	// the signature must cover every other parameter
	signature := receivedQuery.Get("signature")
	receivedQuery.Del("signature")
	if client.signature(receivedQuery) != signature {
		t.Errorf("signature does not match the sent parameters")
	}
}

func TestRequest_RetriesOnServerError(t *testing.T) {
	attempts := 0
	server, client := newTestServerClient(func(w http.ResponseWriter, r *http.Request) {
		attempts += 1
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("objectno,objectname,latitude,longitude,pos_time,ignition\n"))
	})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := client.FetchPositions(ctx, 10); err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}
