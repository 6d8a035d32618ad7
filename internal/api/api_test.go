package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MJE43/rotor-replay-go/internal/analysis"
	"github.com/MJE43/rotor-replay-go/internal/slot"
	"github.com/MJE43/rotor-replay-go/internal/store"
)

func newTestServer(t *testing.T) (*store.MemoryDB, http.Handler) {
	t.Helper()
	db := store.NewMemoryDB()
	srv := NewServer(db, Options{Model: slot.DefaultModel(), ExploitTable: slot.ExploitPayouts}, nil)
	return db, srv.Routes()
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}

func gridJSON(g slot.Grid) string {
	b, _ := json.Marshal(g.Ints())
	return string(b)
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)
	w := do(t, h, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp HealthResponse
	decode(t, w, &resp)
	if resp.Status != "healthy" {
		t.Errorf("Expected healthy, got %q", resp.Status)
	}
}

func TestIngest(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/outcomes", "application/json",
		`{"outcomes":[{"seq":1,"grid":[1,2,3,4,1,6,7,0,1]},{"seq":2,"grid":[0,0,0,2,0,2,0,0,0]}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodPost, "/api/v1/outcomes", "text/csv; charset=utf-8", "s,b1,b2,b3,b4,b5,b6,b7,b8,b9\n3,1,1,1,0,0,0,0,0,0\n")
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp IngestResponse
	decode(t, w, &resp)
	if resp.Imported != 1 || resp.Total != 3 {
		t.Errorf("Expected 1 imported of 3, got %+v", resp)
	}

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantType    string
	}{
		{"invalid code", "application/json", `{"outcomes":[{"seq":9,"grid":[1,2,3,4,1,6,7,8,9]}]}`, http.StatusBadRequest, ErrTypeMalformed},
		{"short grid", "application/json", `{"outcomes":[{"seq":9,"grid":[1,2]}]}`, http.StatusBadRequest, ErrTypeMalformed},
		{"duplicate", "application/json", `{"outcomes":[{"seq":1,"grid":[0,0,0,0,0,0,0,0,0]}]}`, http.StatusConflict, ErrTypeDuplicate},
		{"bad csv", "text/csv", "1,2,3\n", http.StatusBadRequest, ErrTypeMalformed},
		{"bad json", "application/json", `{"outcomes":`, http.StatusBadRequest, ErrTypeValidation},
		{"empty", "application/json", `{"outcomes":[]}`, http.StatusBadRequest, ErrTypeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/outcomes", tt.contentType, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			var e EngineError
			decode(t, w, &e)
			if e.Type != tt.wantType {
				t.Errorf("Expected error type %s, got %s", tt.wantType, e.Type)
			}
		})
	}
}

func TestProfitAndFrequencies(t *testing.T) {
	_, h := newTestServer(t)
	do(t, h, http.MethodPost, "/api/v1/outcomes", "application/json",
		`{"outcomes":[{"seq":1,"grid":[1,2,3,4,1,6,7,0,1]}]}`)

	w := do(t, h, http.MethodPost, "/api/v1/profit", "application/json", `{"payouts":{"iron":0}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var profit ProfitResponse
	decode(t, w, &profit)
	if profit.Profit != (analysis.Profit{1000, 2000, 3000}) {
		t.Errorf("Expected [1000 2000 3000], got %v", profit.Profit)
	}
	if profit.RunID == "" {
		t.Error("Expected the run to be recorded")
	}

	// no body means the exploit table
	w = do(t, h, http.MethodPost, "/api/v1/profit", "", "")
	decode(t, w, &profit)
	if profit.Profit != (analysis.Profit{1000, 2000, 2998}) {
		t.Errorf("Expected [1000 2000 2998], got %v", profit.Profit)
	}

	w = do(t, h, http.MethodGet, "/api/v1/frequencies/3", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var freq struct {
		Frequencies struct {
			Tier   int              `json:"tier"`
			Counts map[string]int64 `json:"counts"`
		} `json:"frequencies"`
	}
	decode(t, w, &freq)
	if freq.Frequencies.Counts["di1"] != 1 || freq.Frequencies.Counts["1"] != 1 {
		t.Errorf("Expected one iron diagonal, got %v", freq.Frequencies.Counts)
	}

	for _, bad := range []string{"0", "4", "x"} {
		w = do(t, h, http.MethodGet, "/api/v1/frequencies/"+bad, "", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("tier %s: Expected status 400, got %d", bad, w.Code)
		}
	}

	w = do(t, h, http.MethodPost, "/api/v1/profit", "application/json", `{"payouts":{"ruby":3}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown symbol, got %d", w.Code)
	}
}

func TestEvaluate(t *testing.T) {
	_, h := newTestServer(t)
	m := slot.DefaultModel()
	st := slot.State{4, 11, 17}

	w := do(t, h, http.MethodPost, "/api/v1/evaluate", "application/json", `{"grid":`+gridJSON(m.Grid(st))+`}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp EvaluateResponse
	decode(t, w, &resp)
	if resp.State != st {
		t.Errorf("Expected state %v, got %v", st, resp.State)
	}
	if !resp.Bet.Valid() {
		t.Errorf("Expected a valid bet, got %d", resp.Bet)
	}

	w = do(t, h, http.MethodPost, "/api/v1/evaluate", "application/json", `{"grid":[7,7,7,7,7,7,7,7,7]}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422, got %d", w.Code)
	}
}

func TestCalibrateCampaignAndRuns(t *testing.T) {
	db, h := newTestServer(t)
	m := slot.DefaultModel()
	var st slot.State
	var buf bytes.Buffer
	buf.WriteString(`{"outcomes":[`)
	for i := 0; i < 40; i++ {
		st = m.Advance(st, m.Offsets[(i*7)%4])
		if i > 0 {
			buf.WriteString(",")
		}
		fmt.Fprintf(&buf, `{"seq":%d,"grid":%s}`, i+1, gridJSON(m.Grid(st)))
	}
	buf.WriteString(`]}`)
	if w := do(t, h, http.MethodPost, "/api/v1/outcomes", "application/json", buf.String()); w.Code != http.StatusCreated {
		t.Fatalf("ingest failed: %d %s", w.Code, w.Body.String())
	}

	w := do(t, h, http.MethodPost, "/api/v1/calibrate", "application/json",
		`{"bands":[{"low":-100000,"high":100000},{"low":-100000,"high":100000},{"low":-100000,"high":100000}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var cal CalibrateResponse
	decode(t, w, &cal)
	if cal.Count != 81 {
		t.Errorf("Expected 81 tables inside unbounded bands, got %d", cal.Count)
	}

	w = do(t, h, http.MethodPost, "/api/v1/calibrate", "application/json", `{"candidates":{"iron":[]}}`)
	decode(t, w, &cal)
	if w.Code != http.StatusOK || cal.Count != 0 {
		t.Errorf("Expected empty calibration, got %d with %d tables", w.Code, cal.Count)
	}

	w = do(t, h, http.MethodPost, "/api/v1/campaign", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var camp CampaignResponse
	decode(t, w, &camp)
	if camp.Evaluated != 40 || len(camp.Skipped) != 0 {
		t.Errorf("Expected 40 evaluated spins, got %+v", camp.Result)
	}

	w = do(t, h, http.MethodGet, "/api/v1/runs?kind=calibrate", "", "")
	var list store.RunsList
	decode(t, w, &list)
	if list.TotalCount != 2 {
		t.Errorf("Expected 2 calibrate runs, got %d", list.TotalCount)
	}

	w = do(t, h, http.MethodGet, "/api/v1/runs/"+camp.RunID, "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for recorded run, got %d", w.Code)
	}
	w = do(t, h, http.MethodGet, "/api/v1/runs/missing", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	n, _ := db.CountOutcomes(t.Context())
	if n != 40 {
		t.Errorf("Expected 40 stored spins, got %d", n)
	}
}

func TestCalibrateRejectsOversizedSearch(t *testing.T) {
	_, h := newTestServer(t)
	values := make([]string, 600)
	for i := range values {
		values[i] = fmt.Sprint(i)
	}
	list := "[" + strings.Join(values, ",") + "]"
	var names []string
	for _, sym := range slot.Symbols()[1:] {
		names = append(names, fmt.Sprintf("%q:%s", sym.String(), list))
	}
	body := `{"candidates":{` + strings.Join(names, ",") + `}}`

	w := do(t, h, http.MethodPost, "/api/v1/calibrate", "application/json", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d: %s", w.Code, w.Body.String())
	}
	var engineErr EngineError
	decode(t, w, &engineErr)
	if engineErr.Type != ErrTypeInvalidParams {
		t.Errorf("Expected %s, got %s", ErrTypeInvalidParams, engineErr.Type)
	}
	if engineErr.Context["cause"] != "invalid calibration request" {
		t.Errorf("Expected wrapped cause in context, got %v", engineErr.Context["cause"])
	}
}

func TestCoverage(t *testing.T) {
	_, h := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/v1/coverage", "application/json",
		`{"budget":500,"seeds":{"server":"s","client":"c","nonce":1}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp CoverageResponse
	decode(t, w, &resp)
	if resp.Complete || resp.Total != 8000 || resp.Visited == 0 {
		t.Errorf("unexpected report %+v", resp)
	}
	if resp.RunID == "" {
		t.Error("Expected seeded run to be recorded")
	}

	w = do(t, h, http.MethodPost, "/api/v1/coverage", "application/json", `{"budget":-1}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}
