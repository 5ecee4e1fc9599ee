package preprocess

// Tensor is a single-image NHWC batch of raw 0-255 floats.
type Tensor struct {
	Shape [4]int
	Data  []float32
}

func NewTensor(size int) *Tensor {
	return &Tensor{
		Shape: [4]int{1, size, size, channels},
		Data:  make([]float32, size*size*channels),
	}
}

// FromData wraps an already-normalised buffer, e.g. one posted by a client that
// ran the pipeline itself.
func FromData(size int, data []float32) *Tensor {
	return &Tensor{
		Shape: [4]int{1, size, size, channels},
		Data:  data,
	}
}

func (t *Tensor) At(y, x, c int) float32 {
	return t.Data[(y*t.Shape[2]+x)*t.Shape[3]+c]
}

func (t *Tensor) Len() int {
	return t.Shape[0] * t.Shape[1] * t.Shape[2] * t.Shape[3]
}
