package onnx

import (
	"fmt"
	"sync"

	"github.com/Brownie44l1/ripeness-api/internal/model"
	ort "github.com/yalue/onnxruntime_go"
)

var envMu sync.Mutex

// Runtime opens .onnx artifacts with ONNX Runtime.
type Runtime struct {
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// platform default lookup.
	LibraryPath string
	NumThreads  int
}

func (r *Runtime) Name() string { return "onnx" }

func (r *Runtime) initEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if r.LibraryPath != "" {
		ort.SetSharedLibraryPath(r.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

func (r *Runtime) Open(path string) (model.Interpreter, error) {
	if err := r.initEnvironment(); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model io: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("expected one input and one output, got %d and %d", len(inputs), len(outputs))
	}

	inputShape := fixedShape(inputs[0].Dimensions)
	if len(inputShape) != 4 || inputShape[3] != 3 {
		return nil, fmt.Errorf("expected NHWC input with 3 channels, got %v", inputShape)
	}
	outputShape := fixedShape(outputs[0].Dimensions)

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(inputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	options, err := r.sessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, err
	}
	if options != nil {
		defer options.Destroy()
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Interpreter{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputShape:   inputShape,
	}, nil
}

func (r *Runtime) sessionOptions() (*ort.SessionOptions, error) {
	if r.NumThreads <= 0 {
		return nil, nil
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	if err := options.SetIntraOpNumThreads(r.NumThreads); err != nil {
		options.Destroy()
		return nil, fmt.Errorf("failed to set thread count: %w", err)
	}
	return options, nil
}

// fixedShape replaces dynamic dimensions (the batch axis, usually) with 1.
func fixedShape(dims ort.Shape) []int64 {
	shape := make([]int64, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		shape[i] = d
	}
	return shape
}

type Interpreter struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputShape   []int64
}

func (i *Interpreter) InputShape() []int64 {
	return i.inputShape
}

func (i *Interpreter) OutputSize() int {
	return len(i.outputTensor.GetData())
}

func (i *Interpreter) Invoke(input []float32) ([]float32, error) {
	dst := i.inputTensor.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("expected %d input values, got %d", len(dst), len(input))
	}
	copy(dst, input)

	if err := i.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := make([]float32, len(i.outputTensor.GetData()))
	copy(out, i.outputTensor.GetData())
	return out, nil
}

func (i *Interpreter) Close() error {
	if i.inputTensor != nil {
		i.inputTensor.Destroy()
	}
	if i.outputTensor != nil {
		i.outputTensor.Destroy()
	}
	if i.session != nil {
		return i.session.Destroy()
	}
	return nil
}
