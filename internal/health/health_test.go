package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fetch(t *testing.T, h *Handler, path string) (int, report) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var rep report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return rec.Code, rep
}

func ok(context.Context) error { return nil }

func TestHealthz(t *testing.T) {
	t.Parallel()

	h := New(Checker{Name: "llm", Check: func(context.Context) error { return errors.New("down") }})
	code, rep := fetch(t, h, "/healthz")
	if code != http.StatusOK || rep.Status != "ok" || rep.Checks != nil {
		t.Errorf("healthz = %d %+v, want 200 ok without checks", code, rep)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{},
		},
		{
			name:       "all pass",
			checkers:   []Checker{{Name: "llm", Check: ok}, {Name: "store", Check: ok}},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"llm": "ok", "store": "ok"},
		},
		{
			name: "one fails",
			checkers: []Checker{
				{Name: "llm", Check: ok},
				{Name: "store", Check: func(context.Context) error { return errors.New("connection refused") }},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"llm": "ok", "store": "fail: connection refused"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			code, rep := fetch(t, New(tc.checkers...), "/readyz")
			if code != tc.wantCode || rep.Status != tc.wantStatus {
				t.Errorf("readyz = %d %q, want %d %q", code, rep.Status, tc.wantCode, tc.wantStatus)
			}
			if len(rep.Checks) != len(tc.wantChecks) {
				t.Fatalf("checks = %v, want %v", rep.Checks, tc.wantChecks)
			}
			for k, v := range tc.wantChecks {
				if rep.Checks[k] != v {
					t.Errorf("checks[%q] = %q, want %q", k, rep.Checks[k], v)
				}
			}
		})
	}
}

func TestReadyz_CheckHasDeadline(t *testing.T) {
	t.Parallel()

	h := New(Checker{Name: "llm", Check: func(ctx context.Context) error {
		dl, ok := ctx.Deadline()
		if !ok || time.Until(dl) > CheckTimeout {
			return errors.New("no deadline")
		}
		return nil
	}})
	if code, rep := fetch(t, h, "/readyz"); code != http.StatusOK {
		t.Errorf("readyz = %d %+v", code, rep)
	}
}

func TestAdd_ReplacesByName(t *testing.T) {
	t.Parallel()

	h := New(Checker{Name: "store", Check: func(context.Context) error { return errors.New("old") }})
	h.Add(Checker{Name: "store", Check: ok}, Checker{Name: "llm", Check: ok})

	code, rep := fetch(t, h, "/readyz")
	if code != http.StatusOK || len(rep.Checks) != 2 || rep.Checks["store"] != "ok" {
		t.Errorf("readyz = %d %+v, want the replaced store check", code, rep)
	}
}
