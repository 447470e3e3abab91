package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestServerMetricsIncrementAndScrape(t *testing.T) {
	m := NewServer()
	m.BytesSent.Add(42)
	m.ConnectedClients.Set(3)
	m.InputsDropped.Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "sabi_server_update_bytes_sent_total 42") {
		t.Fatalf("expected scraped output to contain bytes sent counter, got:\n%s", body)
	}
	if !strings.Contains(body, "sabi_server_connected_clients 3") {
		t.Fatalf("expected scraped output to contain connected clients gauge, got:\n%s", body)
	}
}

func TestClientMetricsIncrementAndScrape(t *testing.T) {
	m := NewClient()
	m.ClockCorrections.Inc()
	m.HardJumps.Inc()
	m.RewindDistance.Observe(4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "sabi_client_clock_corrections_total 1") {
		t.Fatalf("expected scraped output to contain clock corrections counter, got:\n%s", body)
	}
	if !strings.Contains(body, "sabi_client_clock_hard_jumps_total 1") {
		t.Fatalf("expected scraped output to contain hard jumps counter, got:\n%s", body)
	}
}
