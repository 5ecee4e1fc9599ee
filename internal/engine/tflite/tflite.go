package tflite

import (
	"errors"
	"fmt"

	"github.com/Brownie44l1/ripeness-api/internal/model"
	tf "github.com/mattn/go-tflite"
	"go.uber.org/zap"
)

// Runtime opens .tflite flatbuffer artifacts with the TensorFlow Lite C API.
type Runtime struct {
	NumThreads int
	Logger     *zap.Logger
}

func (r *Runtime) Name() string { return "tflite" }

func (r *Runtime) Open(path string) (model.Interpreter, error) {
	m := tf.NewModelFromFile(path)
	if m == nil {
		return nil, fmt.Errorf("failed to load tflite model %s", path)
	}

	options := tf.NewInterpreterOptions()
	if r.NumThreads > 0 {
		options.SetNumThread(r.NumThreads)
	}
	if r.Logger != nil {
		logger := r.Logger
		options.SetErrorReporter(func(msg string, _ interface{}) {
			logger.Warn("tflite", zap.String("message", msg))
		}, nil)
	}

	interp := tf.NewInterpreter(m, options)
	if interp == nil {
		options.Delete()
		m.Delete()
		return nil, errors.New("failed to create tflite interpreter")
	}

	i := &Interpreter{model: m, options: options, interp: interp}
	if err := i.prepare(); err != nil {
		i.Close()
		return nil, err
	}
	return i, nil
}

type Interpreter struct {
	model   *tf.Model
	options *tf.InterpreterOptions
	interp  *tf.Interpreter

	inputShape []int64
	outputSize int
}

func (i *Interpreter) prepare() error {
	if status := i.interp.AllocateTensors(); status != tf.OK {
		return fmt.Errorf("failed to allocate tensors: status %v", status)
	}
	if n, m := i.interp.GetInputTensorCount(), i.interp.GetOutputTensorCount(); n != 1 || m != 1 {
		return fmt.Errorf("expected one input and one output, got %d and %d", n, m)
	}

	input := i.interp.GetInputTensor(0)
	if input.Type() != tf.Float32 {
		return fmt.Errorf("expected float32 input, got %v", input.Type())
	}
	i.inputShape = make([]int64, input.NumDims())
	for d := range i.inputShape {
		i.inputShape[d] = int64(input.Dim(d))
	}
	if len(i.inputShape) != 4 || i.inputShape[3] != 3 {
		return fmt.Errorf("expected NHWC input with 3 channels, got %v", i.inputShape)
	}

	output := i.interp.GetOutputTensor(0)
	switch output.Type() {
	case tf.Float32, tf.UInt8:
	default:
		return fmt.Errorf("unsupported output type %v", output.Type())
	}
	i.outputSize = 1
	for d := 0; d < output.NumDims(); d++ {
		i.outputSize *= output.Dim(d)
	}

	return nil
}

func (i *Interpreter) InputShape() []int64 {
	return i.inputShape
}

func (i *Interpreter) OutputSize() int {
	return i.outputSize
}

func (i *Interpreter) Invoke(input []float32) ([]float32, error) {
	dst := i.interp.GetInputTensor(0).Float32s()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("expected %d input values, got %d", len(dst), len(input))
	}
	copy(dst, input)

	if status := i.interp.Invoke(); status != tf.OK {
		return nil, fmt.Errorf("inference failed: status %v", status)
	}

	output := i.interp.GetOutputTensor(0)
	if output.Type() == tf.UInt8 {
		return dequantize(output), nil
	}

	src := output.Float32s()
	out := make([]float32, len(src))
	copy(out, src)
	return out, nil
}

// dequantize maps a fully-quantized uint8 output back to real scores.
func dequantize(t *tf.Tensor) []float32 {
	q := t.QuantizationParams()
	src := t.UInt8s()
	out := make([]float32, len(src))
	for i, v := range src {
		out[i] = float32(q.Scale * float64(int(v)-q.ZeroPoint))
	}
	return out
}

func (i *Interpreter) Close() error {
	if i.interp != nil {
		i.interp.Delete()
		i.interp = nil
	}
	if i.options != nil {
		i.options.Delete()
		i.options = nil
	}
	if i.model != nil {
		i.model.Delete()
		i.model = nil
	}
	return nil
}
