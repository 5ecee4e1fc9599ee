package model

import "errors"

var (
	ErrModelNotFound      = errors.New("model file not found")
	ErrClassCountMismatch = errors.New("label map does not match model output")
	ErrUnsupportedRuntime = errors.New("unsupported model runtime")
	ErrInvalidLabelMap    = errors.New("invalid label map")
)

// Metadata is the object form of the label side-car. Only Classes is required.
type Metadata struct {
	InputShape  []int64  `json:"input_shape,omitempty"`
	OutputShape []int64  `json:"output_shape,omitempty"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size,omitempty"`
}

// Interpreter is a loaded model with its tensors already allocated.
type Interpreter interface {
	// InputShape is the shape of the single input tensor, e.g. [1 224 224 3].
	InputShape() []int64
	// OutputSize is the number of values in the output vector, or 0 when the
	// runtime cannot tell before the first invocation.
	OutputSize() int
	Invoke(input []float32) ([]float32, error)
	Close() error
}

// Runtime opens model artifacts of one format.
type Runtime interface {
	Name() string
	Open(path string) (Interpreter, error)
}

type Model struct {
	Interpreter
	Path    string
	Classes []string
}

// Provider hands out a ready model for a single classification. The returned
// release func must be called once the caller is done invoking it.
type Provider interface {
	Acquire() (*Model, func(), error)
}

type Config struct {
	Path         string
	LabelMapPath string
	// Runtime is "tflite", "onnx" or "auto" (pick by file extension).
	Runtime string
}

const (
	DefaultPath         = "model/labu_model.tflite"
	DefaultLabelMapPath = "model/label_map.json"
)

func DefaultConfig() Config {
	return Config{
		Path:         DefaultPath,
		LabelMapPath: DefaultLabelMapPath,
		Runtime:      "auto",
	}
}
