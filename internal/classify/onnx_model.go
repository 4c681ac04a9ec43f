package classify

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	onnxrt "github.com/yalue/onnxruntime_go"

	"github.com/MeKo-Tech/teavision/internal/onnx"
)

// ONNXModel runs an exported classifier through ONNX Runtime. The model
// takes a float32 [N, features] input and yields either class
// probabilities [N, classes] or integer labels [N].
type ONNXModel struct {
	path    string
	session *onnxrt.DynamicAdvancedSession
	input   onnxrt.InputOutputInfo
	output  onnxrt.InputOutputInfo
	classes []string
	width   int
}

// ONNXOptions configures NewONNXModel.
type ONNXOptions struct {
	Session onnx.SessionConfig
	// Output names the output to read; empty picks probabilities when the
	// model exposes them as a tensor, labels otherwise.
	Output  string
	Classes []string
}

// NewONNXModel loads an ONNX classifier.
func NewONNXModel(path string, opts ONNXOptions) (*ONNXModel, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if err := onnx.InitializeEnvironment(opts.Session); err != nil {
		return nil, err
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("io info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("expected 1 input, got %d", len(inputs))
	}
	in := inputs[0]
	if len(in.Dimensions) != 2 {
		return nil, fmt.Errorf("expected 2D input, got %dD", len(in.Dimensions))
	}
	out, err := selectOutput(outputs, opts.Output)
	if err != nil {
		return nil, err
	}

	sessOpts, err := onnx.NewSessionOptions(opts.Session)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sessOpts.Destroy(); err != nil {
			slog.Warn("failed to destroy session options", "error", err)
		}
	}()

	sess, err := onnxrt.NewDynamicAdvancedSession(path, []string{in.Name}, []string{out.Name}, sessOpts)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	m := &ONNXModel{path: path, session: sess, input: in, output: out, classes: opts.Classes}
	if w := in.Dimensions[1]; w > 0 {
		m.width = int(w)
	}
	slog.Debug("loaded onnx model", "path", path, "input", in.Name, "output", out.Name, "width", m.width)
	return m, nil
}

func selectOutput(outputs []onnxrt.InputOutputInfo, want string) (onnxrt.InputOutputInfo, error) {
	if want != "" {
		for _, o := range outputs {
			if o.Name == want {
				return o, nil
			}
		}
		return onnxrt.InputOutputInfo{}, fmt.Errorf("output %q not found", want)
	}

	var label *onnxrt.InputOutputInfo
	for i, o := range outputs {
		if o.OrtValueType != onnxrt.ONNXTypeTensor {
			continue
		}
		if o.DataType == onnxrt.TensorElementDataTypeFloat && strings.Contains(strings.ToLower(o.Name), "prob") {
			return o, nil
		}
		if o.DataType == onnxrt.TensorElementDataTypeInt64 && label == nil {
			label = &outputs[i]
		}
	}
	if label != nil {
		return *label, nil
	}
	return onnxrt.InputOutputInfo{}, fmt.Errorf("no usable tensor output among %d outputs", len(outputs))
}

// Predict implements Model.
func (m *ONNXModel) Predict(rows [][]float64) ([]Prediction, error) {
	if m.session == nil {
		return nil, fmt.Errorf("model %s is closed", m.path)
	}
	width := m.width
	if width == 0 && len(rows) > 0 {
		width = len(rows[0])
	}
	tensor, err := onnx.NewMatrixTensor(rows, width)
	if err != nil {
		return nil, err
	}

	input, err := onnxrt.NewTensor(onnxrt.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return nil, fmt.Errorf("tensor: %w", err)
	}
	defer func() {
		if err := input.Destroy(); err != nil {
			slog.Warn("failed to destroy input tensor", "error", err)
		}
	}()

	outputs := []onnxrt.Value{nil}
	if err := m.session.Run([]onnxrt.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				if err := o.Destroy(); err != nil {
					slog.Warn("failed to destroy output tensor", "error", err)
				}
			}
		}
	}()

	switch t := outputs[0].(type) {
	case *onnxrt.Tensor[float32]:
		return m.fromProbabilities(t.GetData(), len(rows))
	case *onnxrt.Tensor[int64]:
		return m.fromLabels(t.GetData(), len(rows))
	default:
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
}

func (m *ONNXModel) fromProbabilities(data []float32, n int) ([]Prediction, error) {
	if n == 0 || len(data)%n != 0 {
		return nil, fmt.Errorf("probability output of length %d does not split into %d rows", len(data), n)
	}
	k := len(data) / n
	out := make([]Prediction, n)
	for i := range n {
		row := data[i*k : (i+1)*k]
		best := onnx.ArgMax(row)
		p := Prediction{Label: m.className(best), Confidence: float64(row[best]), Probabilities: make(map[string]float64, k)}
		for j, v := range row {
			p.Probabilities[m.className(j)] = float64(v)
		}
		out[i] = p
	}
	return out, nil
}

func (m *ONNXModel) fromLabels(data []int64, n int) ([]Prediction, error) {
	if len(data) != n {
		return nil, fmt.Errorf("label output has %d values for %d rows", len(data), n)
	}
	out := make([]Prediction, n)
	for i, v := range data {
		out[i] = Prediction{Label: m.className(int(v)), Confidence: 1}
	}
	return out, nil
}

func (m *ONNXModel) className(i int) string {
	if i >= 0 && i < len(m.classes) {
		return m.classes[i]
	}
	return strconv.Itoa(i)
}

// Close implements Model.
func (m *ONNXModel) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
