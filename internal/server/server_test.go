package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Brownie44l1/ripeness-api/internal/app"
	"github.com/Brownie44l1/ripeness-api/internal/config"
	"github.com/Brownie44l1/ripeness-api/internal/db"
	"github.com/Brownie44l1/ripeness-api/internal/filestorage"
	"github.com/Brownie44l1/ripeness-api/internal/model"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type fixedInterpreter struct {
	scores []float32
}

func (f *fixedInterpreter) InputShape() []int64 { return []int64{1, 224, 224, 3} }
func (f *fixedInterpreter) OutputSize() int     { return len(f.scores) }
func (f *fixedInterpreter) Close() error        { return nil }
func (f *fixedInterpreter) Invoke([]float32) ([]float32, error) {
	return f.scores, nil
}

type fixedProvider struct {
	model *model.Model
	err   error
}

func (p fixedProvider) Acquire() (*model.Model, func(), error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	return p.model, func() {}, nil
}

func ripeProvider() fixedProvider {
	return fixedProvider{model: &model.Model{
		Interpreter: &fixedInterpreter{scores: []float32{0.004, 0.006, 0.99}},
		Classes:     []string{"belum_matang", "setengah_matang", "matang"},
	}}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	cfg := &config.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		t.Fatal(err)
	}
	cfg.Environment = "test"
	cfg.AssetsDir = t.TempDir()
	return cfg
}

func newTestServer(t *testing.T, provider model.Provider, history bool) http.Handler {
	t.Helper()
	cfg := testConfig(t)

	opts := []app.OptionFunc{
		app.WithLogger(zap.NewNop()),
		app.WithProvider(provider),
	}
	if history {
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
		conn, err := db.NewConnection(context.Background(), "sqlite", dsn, false)
		if err != nil {
			t.Fatal(err)
		}
		opts = append(opts,
			app.WithDB(conn),
			app.WithStorage(filestorage.NewLocalFileStorage(t.TempDir())),
		)
	}

	a, err := app.NewApp(cfg, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(a.Close)

	s, err := NewServer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	s.SetupRoutes(a)
	return s.Handler()
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 80, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, color.RGBA{R: 220, G: 140, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, field string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if content != nil {
		part, err := w.CreateFormFile(field, "labu.jpg")
		if err != nil {
			t.Fatal(err)
		}
		part.Write(content)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, ripeProvider(), false)

	rec, body := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || body["status"] != "healthy" {
		t.Fatalf("GET /health = %d %v", rec.Code, body)
	}
}

func TestLabels(t *testing.T) {
	h := newTestServer(t, ripeProvider(), false)

	rec, body := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/labels", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	labels, _ := body["labels"].([]any)
	if len(labels) != 3 {
		t.Fatalf("labels = %v", body["labels"])
	}
	first, _ := labels[0].(map[string]any)
	if first["label"] != "belum_matang" || first["description"] == "" {
		t.Errorf("first label = %v", first)
	}
}

func TestClassifyAndHistory(t *testing.T) {
	h := newTestServer(t, ripeProvider(), true)

	rec, body := serve(h, uploadRequest(t, "image", jpegBytes(t), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if body["status"] != "ok" || body["label"] != "matang" {
		t.Fatalf("verdict = %v", body)
	}
	if body["solution"] == "" || body["description"] == "" {
		t.Errorf("guidance missing: %v", body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("no history id in %v", body)
	}

	rec, body = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/history/"+id, nil))
	if rec.Code != http.StatusOK || body["label"] != "matang" || body["image_key"] == "" {
		t.Fatalf("GET history/%s = %d %v", id, rec.Code, body)
	}

	rec, body = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET history = %d", rec.Code)
	}
	if list, _ := body["classifications"].([]any); len(list) != 1 {
		t.Errorf("history = %v", body["classifications"])
	}

	rec, _ = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/history/0b6a1c3e-7d7b-4c43-9a84-6f1f6b2f9d11", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}

	rec, _ = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestClassifyThreshold(t *testing.T) {
	h := newTestServer(t, ripeProvider(), false)

	rec, body := serve(h, uploadRequest(t, "image", jpegBytes(t), map[string]string{"threshold": "0.999"}))
	if rec.Code != http.StatusOK || body["status"] != "invalid" {
		t.Fatalf("verdict = %d %v", rec.Code, body)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "0.99") {
		t.Errorf("message = %q", msg)
	}
	if _, ok := body["label"]; ok {
		t.Error("invalid verdict carries a label")
	}

	rec, _ = serve(h, uploadRequest(t, "image", jpegBytes(t), map[string]string{"threshold": "abc"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad threshold status = %d, want 400", rec.Code)
	}
}

func TestClassifyBadInput(t *testing.T) {
	h := newTestServer(t, ripeProvider(), false)

	rec, body := serve(h, uploadRequest(t, "image", []byte("definitely not an image"), nil))
	if rec.Code != http.StatusUnprocessableEntity || body["status"] != "error" {
		t.Fatalf("garbage upload = %d %v", rec.Code, body)
	}

	rec, _ = serve(h, uploadRequest(t, "photo", jpegBytes(t), nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("wrong field status = %d, want 400", rec.Code)
	}
}

func TestClassifyModelMissing(t *testing.T) {
	h := newTestServer(t, fixedProvider{err: fmt.Errorf("%w: model/labu_model.tflite", model.ErrModelNotFound)}, false)

	rec, body := serve(h, uploadRequest(t, "image", jpegBytes(t), nil))
	if rec.Code != http.StatusInternalServerError || body["status"] != "error" {
		t.Fatalf("missing model = %d %v", rec.Code, body)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "model/labu_model.tflite") {
		t.Errorf("message = %q", msg)
	}
}

func TestPredictRawTensor(t *testing.T) {
	h := newTestServer(t, ripeProvider(), false)

	post := func(payload any) (*httptest.ResponseRecorder, map[string]any) {
		raw, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		return serve(h, req)
	}

	rec, body := post(map[string]any{"image": make([]float32, 224*224*3)})
	if rec.Code != http.StatusOK || body["label"] != "matang" {
		t.Fatalf("predict = %d %v", rec.Code, body)
	}

	rec, body = post(map[string]any{"image": make([]float32, 224*224*3), "threshold": 0.995})
	if rec.Code != http.StatusOK || body["status"] != "invalid" {
		t.Fatalf("predict with threshold = %d %v", rec.Code, body)
	}

	rec, body = post(map[string]any{"image": make([]float32, 12)})
	if rec.Code != http.StatusBadRequest || !strings.Contains(fmt.Sprint(body["message"]), "150528") {
		t.Errorf("short tensor = %d %v", rec.Code, body)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	if rec, _ := serve(h, req); rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d", rec.Code)
	}
}

func TestHistoryDisabled(t *testing.T) {
	h := newTestServer(t, ripeProvider(), false)

	rec, _ := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStaticAssets(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.AssetsDir, "matang.txt"), []byte("ripe"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewServer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/matang.txt", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ripe" {
		t.Fatalf("GET /assets/matang.txt = %d %q", rec.Code, rec.Body)
	}
}
