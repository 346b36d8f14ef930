package ml

import (
	"sync"

	onnxruntime "github.com/yalue/onnxruntime_go"

	"riskstrat/pkg/errors"
)

const KindONNX = "onnx"

var (
	onnxInitOnce sync.Once
	onnxInitErr  error
)

// InitONNX initializes the ONNX Runtime environment once per process.
// libraryPath may be empty to use the platform default.
func InitONNX(libraryPath string) error {
	onnxInitOnce.Do(func() {
		if libraryPath != "" {
			onnxruntime.SetSharedLibraryPath(libraryPath)
		}
		onnxInitErr = onnxruntime.InitializeEnvironment()
	})
	return onnxInitErr
}

// ONNXRegressor runs an externally trained single-output regression model.
// The graph must take "input" [1, n] float32 and produce "output" [1, 1].
type ONNXRegressor struct {
	mu        sync.Mutex
	session   *onnxruntime.DynamicAdvancedSession
	nFeatures int
	path      string
}

// LoadONNXRegressor loads a model file expecting nFeatures inputs
func LoadONNXRegressor(modelPath string, nFeatures int) (*ONNXRegressor, error) {
	if err := InitONNX(""); err != nil {
		return nil, errors.Wrap(err, "failed to initialize ONNX runtime")
	}

	options, err := onnxruntime.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}
	defer options.Destroy()

	session, err := onnxruntime.NewDynamicAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"}, options)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load ONNX model %s", modelPath)
	}

	return &ONNXRegressor{session: session, nFeatures: nFeatures, path: modelPath}, nil
}

// Kind implements Regressor
func (m *ONNXRegressor) Kind() string { return KindONNX }

// Path returns the model file the session was loaded from
func (m *ONNXRegressor) Path() string { return m.path }

// Predict implements Regressor
func (m *ONNXRegressor) Predict(x []float64) (float64, error) {
	if len(x) != m.nFeatures {
		return 0, &errors.ShapeError{Expected: m.nFeatures, Got: len(x), Position: -1}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return 0, errors.New("model session is nil")
	}

	input := make([]float32, len(x))
	for i, v := range x {
		input[i] = float32(v)
	}
	inputTensor, err := onnxruntime.NewTensor(onnxruntime.NewShape(1, int64(len(x))), input)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create input tensor")
	}
	defer inputTensor.Destroy()

	output := make([]float32, 1)
	outputTensor, err := onnxruntime.NewTensor(onnxruntime.NewShape(1, 1), output)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create output tensor")
	}
	defer outputTensor.Destroy()

	if err := m.session.Run([]onnxruntime.Value{inputTensor}, []onnxruntime.Value{outputTensor}); err != nil {
		return 0, errors.Wrap(err, "inference failed")
	}
	return float64(output[0]), nil
}

// Destroy releases the ONNX session
func (m *ONNXRegressor) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
}
