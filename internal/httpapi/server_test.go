package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ensembled/internal/dispatch"
	"ensembled/pkg/types"
)

type stubService struct {
	value   float64
	used    int
	err     error
	loaded  []string
	policy  string
	lastErr string
	ready   bool
}

func (s *stubService) Predict(features []float64) (float64, int, error) {
	if s.err != nil {
		return 0, 0, s.err
	}
	return s.value, s.used, nil
}
func (s *stubService) LoadedModels() []string { return s.loaded }
func (s *stubService) Policy() string         { return s.policy }
func (s *stubService) LastError() string      { return s.lastErr }
func (s *stubService) Ready() bool            { return s.ready }

type stubCache struct{ statuses []types.ArtifactStatus }

func (s *stubCache) Snapshot() []types.ArtifactStatus { return s.statuses }

func newTestServer(svc *stubService) *httptest.Server {
	return httptest.NewServer(NewMux(svc, &stubCache{statuses: []types.ArtifactStatus{
		{Name: "rf", State: types.ArtifactVerified},
		{Name: "xgb", State: types.ArtifactFailed, Error: "boom"},
	}}))
}

func postPredict(t *testing.T, url, body, contentType string) *http.Response {
	t.Helper()
	res, err := http.Post(url+"/predict", contentType, strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return res
}

func TestPredictOK(t *testing.T) {
	svc := &stubService{value: 42.5, used: 3, loaded: []string{"rf", "xgb", "lgbm"}, ready: true}
	srv := newTestServer(svc)
	defer srv.Close()

	res := postPredict(t, srv.URL, `{"features":[1,2,3]}`, "application/json")
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", res.StatusCode)
	}
	var out types.PredictResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Prediction != 42.5 || out.ModelsUsed != 3 || len(out.ModelIDs) != 3 {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestPredictContentTypeRequired(t *testing.T) {
	srv := newTestServer(&stubService{ready: true})
	defer srv.Close()

	res := postPredict(t, srv.URL, `{"features":[1]}`, "text/plain")
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status: %d", res.StatusCode)
	}
}

func TestPredictBadJSON(t *testing.T) {
	srv := newTestServer(&stubService{ready: true})
	defer srv.Close()

	res := postPredict(t, srv.URL, `{"features":`, "application/json")
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: %d", res.StatusCode)
	}
	var out types.ErrorResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if out.Code != http.StatusBadRequest || out.Error == "" {
		t.Fatalf("unexpected error payload: %+v", out)
	}
}

func TestPredictEmptyFeatures(t *testing.T) {
	srv := newTestServer(&stubService{ready: true})
	defer srv.Close()

	res := postPredict(t, srv.URL, `{"features":[]}`, "application/json")
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: %d", res.StatusCode)
	}
}

func TestPredictNotReadyIs503(t *testing.T) {
	svc := &stubService{err: dispatch.ErrNotReady("")}
	srv := newTestServer(svc)
	defer srv.Close()

	res := postPredict(t, srv.URL, `{"features":[1]}`, "application/json")
	defer res.Body.Close()
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status: %d", res.StatusCode)
	}
}

func TestPredictBadInputIs400(t *testing.T) {
	svc := &stubService{err: dispatch.ErrBadInput("model rf expects 4 features, got 1")}
	srv := newTestServer(svc)
	defer srv.Close()

	res := postPredict(t, srv.URL, `{"features":[1]}`, "application/json")
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: %d", res.StatusCode)
	}
}

func TestReadyz(t *testing.T) {
	svc := &stubService{ready: false}
	srv := newTestServer(svc)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status: %d", res.StatusCode)
	}
	var out types.ReadyResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Ready {
		t.Fatalf("readyz claims ready")
	}

	svc.ready = true
	svc.loaded = []string{"rf"}
	res2, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", res2.StatusCode)
	}
	var out2 types.ReadyResponse
	if err := json.NewDecoder(res2.Body).Decode(&out2); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out2.Ready || len(out2.Loaded) != 1 {
		t.Fatalf("unexpected ready payload: %+v", out2)
	}
}

func TestStatusAndModels(t *testing.T) {
	svc := &stubService{ready: true, policy: "serve-degraded", loaded: []string{"rf"}, lastErr: "xgb: bad dump"}
	srv := newTestServer(svc)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer res.Body.Close()
	var st types.StatusResponse
	if err := json.NewDecoder(res.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.Ready || st.Policy != "serve-degraded" || st.LastError == "" || len(st.Artifacts) != 2 {
		t.Fatalf("unexpected status: %+v", st)
	}

	res2, err := http.Get(srv.URL + "/models")
	if err != nil {
		t.Fatalf("get models: %v", err)
	}
	defer res2.Body.Close()
	var ml types.ModelsResponse
	if err := json.NewDecoder(res2.Body).Decode(&ml); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ml.Models) != 2 || ml.Models[0].Name != "rf" {
		t.Fatalf("unexpected models: %+v", ml)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	srv := newTestServer(&stubService{})
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: %d", res.StatusCode)
	}
	res2, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	res2.Body.Close()
	if res2.StatusCode != http.StatusOK {
		t.Fatalf("metrics status: %d", res2.StatusCode)
	}
}
