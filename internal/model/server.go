package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/Brownie44l1/pneumonia-api/internal/preprocess"
	ort "github.com/yalue/onnxruntime_go"
)

var ErrShape = errors.New("input shape mismatch")

// Runner performs one forward pass over a flat input buffer.
type Runner interface {
	Run(input []float32) ([]float32, error)
	Close() error
}

type Options struct {
	ModelPath     string
	MetadataPath  string
	SharedLibPath string
}

// Server holds the loaded classifier. It is created once at startup and is
// read-only afterwards; Run calls are serialised because the session's
// input and output tensors are shared.
type Server struct {
	Metadata Metadata

	mu     sync.Mutex
	runner Runner
}

func NewServer(opts Options) (*Server, error) {
	metadata, err := LoadMetadata(opts.MetadataPath)
	if err != nil {
		return nil, err
	}
	if !sameShape(metadata.InputShape, inputLayout) {
		return nil, fmt.Errorf("%w: model input %v, preprocessor produces %v",
			ErrShape, metadata.InputShape, inputLayout)
	}

	runner, err := newSessionRunner(opts.ModelPath, opts.SharedLibPath, metadata)
	if err != nil {
		return nil, err
	}

	return &Server{Metadata: metadata, runner: runner}, nil
}

// NewServerWithRunner wraps an already constructed runner.
func NewServerWithRunner(metadata Metadata, runner Runner) *Server {
	return &Server{Metadata: withDefaults(metadata), runner: runner}
}

func LoadMetadata(path string) (Metadata, error) {
	metaFile, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return withDefaults(metadata), nil
}

func withDefaults(m Metadata) Metadata {
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if len(m.InputShape) == 0 {
		m.InputShape = []int64{1, preprocess.ImageSize, preprocess.ImageSize, preprocess.Channels}
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = []int64{1, 1}
	}
	if m.ImageSize == 0 {
		m.ImageSize = preprocess.ImageSize
	}
	if len(m.Classes) == 0 {
		m.Classes = []string{"NORMAL", "PNEUMONIA"}
	}
	return m
}

// PredictPneumonia preprocesses an image and returns the probability of the
// pneumonia class.
func (s *Server) PredictPneumonia(r io.Reader) (float32, error) {
	tensor, err := preprocess.Preprocess(r)
	if err != nil {
		return 0, err
	}
	return s.Predict(tensor)
}

// Predict runs the model over a preprocessed tensor. The tensor's shape must
// match the model input dimension by dimension.
func (s *Server) Predict(t *preprocess.Tensor) (float32, error) {
	if !sameShape(s.Metadata.InputShape, t.Shape) {
		return 0, fmt.Errorf("%w: model input %v, tensor %v", ErrShape, s.Metadata.InputShape, t.Shape)
	}
	if len(t.Data) != t.Len() {
		return 0, fmt.Errorf("%w: tensor %v holds %d values", ErrShape, t.Shape, len(t.Data))
	}
	return s.run(t.Data)
}

// PredictTensor runs the model over a flat (1, 128, 128, 3) NHWC buffer and
// returns the first output scalar of the first batch element.
func (s *Server) PredictTensor(inputData []float32) (float32, error) {
	if !sameShape(s.Metadata.InputShape, inputLayout) {
		return 0, fmt.Errorf("%w: model input %v, expected %v", ErrShape, s.Metadata.InputShape, inputLayout)
	}
	if expected := s.Metadata.InputSize(); len(inputData) != expected {
		return 0, fmt.Errorf("%w: expected %d values (shape %v), got %d",
			ErrShape, expected, s.Metadata.InputShape, len(inputData))
	}
	return s.run(inputData)
}

func (s *Server) run(inputData []float32) (float32, error) {
	s.mu.Lock()
	outputData, err := s.runner.Run(inputData)
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}
	if len(outputData) == 0 {
		return 0, fmt.Errorf("inference failed: empty output")
	}

	p := outputData[0]
	if math.IsNaN(float64(p)) || p < 0 || p > 1 {
		return 0, fmt.Errorf("inference failed: probability %v outside [0, 1]", p)
	}
	return p, nil
}

// inputLayout is the NHWC batch shape produced by preprocess.
var inputLayout = [4]int{1, preprocess.ImageSize, preprocess.ImageSize, preprocess.Channels}

func sameShape(shape []int64, layout [4]int) bool {
	if len(shape) != len(layout) {
		return false
	}
	for i, d := range shape {
		if int(d) != layout[i] {
			return false
		}
	}
	return true
}

func (s *Server) Close() {
	if s.runner != nil {
		s.runner.Close()
	}
}

type sessionRunner struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func newSessionRunner(modelPath, sharedLibPath string, metadata Metadata) (*sessionRunner, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if sharedLibPath != "" {
		ort.SetSharedLibraryPath(sharedLibPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputShape := ort.NewShape(metadata.InputShape...)
	outputShape := ort.NewShape(metadata.OutputShape...)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &sessionRunner{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (r *sessionRunner) Run(input []float32) ([]float32, error) {
	copy(r.inputTensor.GetData(), input)

	if err := r.session.Run(); err != nil {
		return nil, err
	}

	out := r.outputTensor.GetData()
	result := make([]float32, len(out))
	copy(result, out)
	return result, nil
}

func (r *sessionRunner) Close() error {
	if r.inputTensor != nil {
		r.inputTensor.Destroy()
	}
	if r.outputTensor != nil {
		r.outputTensor.Destroy()
	}
	if r.session != nil {
		r.session.Destroy()
	}
	return ort.DestroyEnvironment()
}
