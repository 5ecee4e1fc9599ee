package classifier

import (
	"errors"
	"fmt"
	"math"

	"github.com/Brownie44l1/ripeness-api/internal/catalog"
	"github.com/Brownie44l1/ripeness-api/internal/model"
	"github.com/Brownie44l1/ripeness-api/internal/preprocess"
	"go.uber.org/zap"
)

const DefaultThreshold = 0.98

// Prediction is the arg-max of one output vector.
type Prediction struct {
	Index      int
	Label      string
	Confidence float32
	Scores     map[string]float32
}

type Classifier struct {
	provider     model.Provider
	preprocessor *preprocess.Preprocessor
	catalog      *catalog.Catalog
	threshold    float64
	logger       *zap.Logger
}

func New(provider model.Provider, pre *preprocess.Preprocessor, cat *catalog.Catalog, threshold float64, logger *zap.Logger) *Classifier {
	return &Classifier{
		provider:     provider,
		preprocessor: pre,
		catalog:      cat,
		threshold:    threshold,
		logger:       logger,
	}
}

func (c *Classifier) Threshold() float64 { return c.threshold }

func (c *Classifier) InputSize() int { return c.preprocessor.Size }

func (c *Classifier) Classify(image []byte) Verdict {
	return c.ClassifyWithThreshold(image, c.threshold)
}

// ClassifyWithThreshold runs load, preprocess, invoke and interpret. It never
// returns a Go error: every failure is folded into the verdict.
func (c *Classifier) ClassifyWithThreshold(image []byte, threshold float64) Verdict {
	m, release, err := c.provider.Acquire()
	if err != nil {
		return c.fail("load", err)
	}
	defer release()

	tensor, err := c.preprocessor.Process(image)
	if err != nil {
		return c.fail("preprocess", err)
	}

	return c.run(m, tensor, threshold)
}

// ClassifyTensor skips decoding and preprocessing for input that is already a
// normalised NHWC tensor.
func (c *Classifier) ClassifyTensor(data []float32, threshold float64) Verdict {
	m, release, err := c.provider.Acquire()
	if err != nil {
		return c.fail("load", err)
	}
	defer release()

	return c.run(m, preprocess.FromData(c.preprocessor.Size, data), threshold)
}

func (c *Classifier) run(m *model.Model, tensor *preprocess.Tensor, threshold float64) Verdict {
	if want := shapeLen(m.InputShape()); want > 0 && want != len(tensor.Data) {
		return c.fail("invoke", fmt.Errorf("input has %d values, model %v expects %d", len(tensor.Data), m.InputShape(), want))
	}

	scores, err := m.Invoke(tensor.Data)
	if err != nil {
		return c.fail("invoke", err)
	}

	p, err := Interpret(scores, m.Classes)
	if err != nil {
		return c.fail("interpret", err)
	}

	v := c.decide(p, threshold)
	c.logger.Debug("classified",
		zap.String("status", string(v.Status)),
		zap.String("label", p.Label),
		zap.Float32("confidence", p.Confidence),
	)
	return v
}

func (c *Classifier) decide(p Prediction, threshold float64) Verdict {
	// Compare in the model's precision so a score equal to the threshold passes.
	if p.Confidence < float32(threshold) {
		return invalidVerdict(
			fmt.Sprintf("confidence too low (%.2f): the image is probably not a butternut squash", p.Confidence),
			fmt.Errorf("%w: %.4f < %.4f", ErrLowConfidence, p.Confidence, threshold),
		)
	}

	if p.Label == "" {
		return invalidVerdict(
			fmt.Sprintf("class index %d has no label", p.Index),
			fmt.Errorf("%w: index %d", catalog.ErrUnknownLabel, p.Index),
		)
	}

	entry, err := c.catalog.Describe(p.Label)
	if err != nil {
		return invalidVerdict(fmt.Sprintf("label %q is not recognized", p.Label), err)
	}

	return okVerdict(p, entry.Description, entry.Solution)
}

func (c *Classifier) fail(stage string, err error) Verdict {
	c.logger.Warn("classification failed", zap.String("stage", stage), zap.Error(err))
	return errorVerdict(err)
}

// Interpret picks the highest score. Label is empty when the index has no
// entry in classes.
func Interpret(scores []float32, classes []string) (Prediction, error) {
	if len(scores) == 0 {
		return Prediction{}, errors.New("model returned no scores")
	}

	best := 0
	for i, s := range scores {
		if f := float64(s); math.IsNaN(f) || math.IsInf(f, 0) {
			return Prediction{}, fmt.Errorf("model returned non-finite score %v at index %d", s, i)
		}
		if s > scores[best] {
			best = i
		}
	}

	p := Prediction{
		Index:      best,
		Confidence: scores[best],
		Scores:     make(map[string]float32, len(classes)),
	}
	if best < len(classes) {
		p.Label = classes[best]
	}
	for i, s := range scores {
		if i < len(classes) {
			p.Scores[classes[i]] = s
		}
	}
	return p, nil
}

func shapeLen(shape []int64) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}
