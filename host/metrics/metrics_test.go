package metrics

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dispenser/core"
	"dispenser/standalone"
	"dispenser/standalone/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	status standalone.Status
	diag   *core.Diagnostics
}

func (f *fakeSource) Status() standalone.Status     { return f.status }
func (f *fakeSource) Diagnostics() *core.Diagnostics { return f.diag }

func TestMetricsObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	m.CommandHandled("goto")
	m.CommandHandled("goto")
	m.CommandHandled("list pos")
	m.Failure(standalone.EventStoreBackup, errors.New("nak"))
	m.PositionVisited(0, store.Position{DurationMS: 1500})
	m.PositionVisited(1, store.Position{DurationMS: 500})
	m.ModeChanged(standalone.ModeManual)

	if got := testutil.ToFloat64(m.commands.WithLabelValues("goto")); got != 2 {
		t.Errorf("Expected 2 goto commands, got %v", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues(standalone.EventStoreBackup)); got != 1 {
		t.Errorf("Expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.visits); got != 2 {
		t.Errorf("Expected 2 visits, got %v", got)
	}
	if got := testutil.ToFloat64(m.dispensed); got != 2 {
		t.Errorf("Expected 2s dispensed, got %v", got)
	}
	if testutil.ToFloat64(m.mode.WithLabelValues("manual")) != 1 || testutil.ToFloat64(m.mode.WithLabelValues("scheduled")) != 0 {
		t.Error("Mode gauge not switched to manual")
	}

	if _, err := New(reg); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}

func TestServerEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	m.CommandHandled("status")

	diag := core.NewDiagnostics(core.NewVirtualClock())
	diag.Record(standalone.EventMotion, errors.New("pin fault"))
	src := &fakeSource{
		status: standalone.Status{Mode: standalone.ModeManual, Positions: 3},
		diag:   diag,
	}
	srv := httptest.NewServer(NewServer(src, reg, nil).Router())
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	code, body := get("/status")
	var status struct {
		Mode      string `json:"mode"`
		Positions int    `json:"positions"`
	}
	if err := json.Unmarshal([]byte(body), &status); err != nil || code != http.StatusOK {
		t.Fatalf("Bad /status response %d %q: %v", code, body, err)
	}
	if status.Mode != "manual" || status.Positions != 3 {
		t.Errorf("Unexpected status %+v", status)
	}

	if _, body := get("/mode"); body != "manual\n" {
		t.Errorf("Unexpected /mode body %q", body)
	}

	_, body = get("/diagnostics")
	if !strings.Contains(body, `"total":1`) || !strings.Contains(body, "pin fault") {
		t.Errorf("Unexpected /diagnostics body %q", body)
	}

	_, body = get("/metrics")
	if !strings.Contains(body, `dispenser_commands_total{command="status"} 1`) {
		t.Errorf("Metrics missing command counter:\n%s", body)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/diagnostics", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || diag.Total() != 0 {
		t.Errorf("Expected diagnostics cleared, got %d total %d", resp.StatusCode, diag.Total())
	}

	if code, _ := get("/nope"); code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", code)
	}
}
