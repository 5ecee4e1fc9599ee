package classifier

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Brownie44l1/ripeness-api/internal/catalog"
	"github.com/Brownie44l1/ripeness-api/internal/model"
	"github.com/Brownie44l1/ripeness-api/internal/preprocess"
	"go.uber.org/zap"
)

type stubInterpreter struct {
	shape  []int64
	scores []float32
	err    error
	inputs [][]float32
}

func (s *stubInterpreter) InputShape() []int64 { return s.shape }
func (s *stubInterpreter) OutputSize() int     { return len(s.scores) }
func (s *stubInterpreter) Close() error        { return nil }

func (s *stubInterpreter) Invoke(input []float32) ([]float32, error) {
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return nil, s.err
	}
	return s.scores, nil
}

type stubProvider struct {
	model    *model.Model
	err      error
	acquired int
	released int
}

func (p *stubProvider) Acquire() (*model.Model, func(), error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	p.acquired++
	return p.model, func() { p.released++ }, nil
}

var defaultClasses = []string{"belum_matang", "setengah_matang", "matang"}

func newStub(scores []float32, classes []string) (*stubProvider, *stubInterpreter) {
	interp := &stubInterpreter{shape: []int64{1, 224, 224, 3}, scores: scores}
	return &stubProvider{model: &model.Model{Interpreter: interp, Classes: classes}}, interp
}

func newClassifier(p model.Provider) *Classifier {
	return New(p, preprocess.Default(), catalog.Default(), DefaultThreshold, zap.NewNop())
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 230, G: 160, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestClassifyRipe(t *testing.T) {
	p, interp := newStub([]float32{0.004, 0.006, 0.99}, defaultClasses)
	v := newClassifier(p).Classify(pngBytes(t))

	if v.Status != StatusOK {
		t.Fatalf("Status = %s (%s), want ok", v.Status, v.Message)
	}
	if v.Label != "matang" {
		t.Errorf("Label = %q, want matang", v.Label)
	}
	if v.Confidence < 0.989 || v.Confidence > 0.991 {
		t.Errorf("Confidence = %v, want 0.99", v.Confidence)
	}

	entry, _ := catalog.Default().Describe("matang")
	if v.Description != entry.Description || v.Solution != entry.Solution {
		t.Errorf("guidance does not match catalog: %+v", v)
	}
	if len(v.Scores) != 3 || v.Scores["belum_matang"] != 0.004 {
		t.Errorf("Scores = %v", v.Scores)
	}

	if len(interp.inputs) != 1 || len(interp.inputs[0]) != 224*224*3 {
		t.Fatalf("model invoked %d times", len(interp.inputs))
	}
	if p.released != p.acquired {
		t.Errorf("acquired %d, released %d", p.acquired, p.released)
	}
}

func TestClassifyThresholdBoundary(t *testing.T) {
	p, _ := newStub([]float32{0.01, 0.98, 0.01}, defaultClasses)
	v := newClassifier(p).ClassifyWithThreshold(pngBytes(t), 0.98)

	if v.Status != StatusOK || v.Label != "setengah_matang" {
		t.Fatalf("confidence equal to threshold gave %+v, want ok", v)
	}
}

func TestClassifyLowConfidence(t *testing.T) {
	p, _ := newStub([]float32{0.50, 0.30, 0.20}, defaultClasses)
	v := newClassifier(p).Classify(pngBytes(t))

	if v.Status != StatusInvalid {
		t.Fatalf("Status = %s, want invalid", v.Status)
	}
	if !strings.Contains(v.Message, "0.50") {
		t.Errorf("Message %q does not contain the confidence", v.Message)
	}
	if !errors.Is(v.Err, ErrLowConfidence) {
		t.Errorf("Err = %v, want ErrLowConfidence", v.Err)
	}
	if v.Label != "" || v.Description != "" {
		t.Errorf("invalid verdict leaked ok fields: %+v", v)
	}
}

func TestClassifyUnknownLabel(t *testing.T) {
	p, _ := newStub([]float32{0.001, 0.995, 0.004}, []string{"belum_matang", "unknown", "matang"})
	v := newClassifier(p).Classify(pngBytes(t))

	if v.Status != StatusInvalid {
		t.Fatalf("Status = %s, want invalid", v.Status)
	}
	if !strings.Contains(v.Message, "unknown") {
		t.Errorf("Message %q does not name the label", v.Message)
	}
	if !errors.Is(v.Err, catalog.ErrUnknownLabel) {
		t.Errorf("Err = %v, want ErrUnknownLabel", v.Err)
	}
}

func TestClassifyIndexWithoutLabel(t *testing.T) {
	p, _ := newStub([]float32{0.001, 0.001, 0.001, 0.997}, defaultClasses)
	v := newClassifier(p).Classify(pngBytes(t))

	if v.Status != StatusInvalid || !errors.Is(v.Err, catalog.ErrUnknownLabel) {
		t.Fatalf("verdict = %+v, want invalid unknown label", v)
	}
}

func TestClassifyLowConfidenceCheckedFirst(t *testing.T) {
	p, _ := newStub([]float32{0.1, 0.6, 0.3}, []string{"belum_matang", "unknown", "matang"})
	v := newClassifier(p).Classify(pngBytes(t))

	if !errors.Is(v.Err, ErrLowConfidence) {
		t.Fatalf("Err = %v, want ErrLowConfidence", v.Err)
	}
}

func TestClassifyModelMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model", "labu_model.tflite")
	loader := model.NewLoader(
		model.Config{Path: path, LabelMapPath: filepath.Join(t.TempDir(), "label_map.json")},
		model.Runtimes{},
		defaultClasses,
		zap.NewNop(),
	)

	v := newClassifier(loader).Classify(pngBytes(t))
	if v.Status != StatusError {
		t.Fatalf("Status = %s, want error", v.Status)
	}
	if !strings.Contains(v.Message, path) || !strings.Contains(v.Message, "not found") {
		t.Errorf("Message %q does not report the missing path", v.Message)
	}
	if !errors.Is(v.Err, model.ErrModelNotFound) {
		t.Errorf("Err = %v, want ErrModelNotFound", v.Err)
	}
}

func TestClassifyUndecodableImage(t *testing.T) {
	p, interp := newStub([]float32{0, 0, 1}, defaultClasses)
	v := newClassifier(p).Classify([]byte("GIF89a but not really"))

	if v.Status != StatusError {
		t.Fatalf("Status = %s, want error", v.Status)
	}
	if !errors.Is(v.Err, preprocess.ErrInvalidImage) {
		t.Errorf("Err = %v, want ErrInvalidImage", v.Err)
	}
	if !strings.Contains(v.Message, "invalid image") {
		t.Errorf("Message = %q", v.Message)
	}
	if len(interp.inputs) != 0 {
		t.Error("model invoked for an undecodable image")
	}
	if p.released != 1 {
		t.Errorf("model released %d times, want 1", p.released)
	}
}

func TestClassifyInvokeError(t *testing.T) {
	p, interp := newStub(nil, defaultClasses)
	interp.err = errors.New("delegate crashed")

	v := newClassifier(p).Classify(pngBytes(t))
	if v.Status != StatusError || !strings.Contains(v.Message, "delegate crashed") {
		t.Fatalf("verdict = %+v", v)
	}
}

func TestClassifyEmptyOutput(t *testing.T) {
	p, _ := newStub([]float32{}, defaultClasses)

	v := newClassifier(p).Classify(pngBytes(t))
	if v.Status != StatusError {
		t.Fatalf("Status = %s, want error", v.Status)
	}
}

func TestClassifyNonFiniteScores(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name   string
		scores []float32
	}{
		{"nan first", []float32{nan, 0.001, 0.999}},
		{"nan middle", []float32{0.999, nan, 0.001}},
		{"positive infinity", []float32{inf, 0, 0}},
		{"negative infinity", []float32{0.001, 0.999, -inf}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newStub(tt.scores, defaultClasses)

			v := newClassifier(p).Classify(pngBytes(t))
			if v.Status != StatusError {
				t.Fatalf("Status = %s, want error (verdict %+v)", v.Status, v)
			}
			if v.Label != "" {
				t.Errorf("error verdict carries label %q", v.Label)
			}
		})
	}
}

func TestClassifyShapeMismatch(t *testing.T) {
	p, interp := newStub([]float32{0, 0, 1}, defaultClasses)
	interp.shape = []int64{1, 192, 192, 3}

	v := newClassifier(p).Classify(pngBytes(t))
	if v.Status != StatusError || len(interp.inputs) != 0 {
		t.Fatalf("verdict = %+v, invocations = %d", v, len(interp.inputs))
	}
}

func TestClassifyProviderError(t *testing.T) {
	v := newClassifier(&stubProvider{err: errors.New("no runtime")}).Classify(pngBytes(t))
	if v.Status != StatusError || v.Message != "no runtime" {
		t.Fatalf("verdict = %+v", v)
	}
}

func TestClassifyTensor(t *testing.T) {
	p, interp := newStub([]float32{0.99, 0.005, 0.005}, defaultClasses)
	c := newClassifier(p)

	data := make([]float32, 224*224*3)
	v := c.ClassifyTensor(data, c.Threshold())
	if v.Status != StatusOK || v.Label != "belum_matang" {
		t.Fatalf("verdict = %+v", v)
	}
	if &interp.inputs[0][0] != &data[0] {
		t.Error("tensor was copied instead of passed through")
	}

	v = c.ClassifyTensor(make([]float32, 10), c.Threshold())
	if v.Status != StatusError {
		t.Fatalf("short tensor gave %s, want error", v.Status)
	}
}

func TestInterpret(t *testing.T) {
	p, err := Interpret([]float32{0.2, 0.7, 0.1}, defaultClasses)
	if err != nil {
		t.Fatal(err)
	}
	if p.Index != 1 || p.Label != "setengah_matang" || p.Confidence != 0.7 {
		t.Fatalf("Interpret = %+v", p)
	}

	// ties keep the first index
	p, _ = Interpret([]float32{0.5, 0.5}, []string{"a", "b"})
	if p.Index != 0 {
		t.Fatalf("tie resolved to %d, want 0", p.Index)
	}

	if _, err := Interpret(nil, defaultClasses); err == nil {
		t.Fatal("expected error for empty scores")
	}

	if _, err := Interpret([]float32{0.1, float32(math.NaN()), 0.9}, defaultClasses); err == nil || !strings.Contains(err.Error(), "index 1") {
		t.Fatalf("Interpret with NaN: err = %v", err)
	}
}
