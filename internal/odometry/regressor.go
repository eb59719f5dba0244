package odometry

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// VelocityRegressor maps one stacked tensor to a normalised body-frame
// velocity. Any estimator honouring this contract (learned model, lookup
// table, mock) can drive the pipeline.
type VelocityRegressor interface {
	Predict(ctx context.Context, stack Stack) (Velocity, error)
}

// RegressorFunc adapts a plain function to VelocityRegressor.
type RegressorFunc func(ctx context.Context, stack Stack) (Velocity, error)

// Predict calls f.
func (f RegressorFunc) Predict(ctx context.Context, stack Stack) (Velocity, error) {
	return f(ctx, stack)
}

// PredictAll runs the regressor over every stack in order and applies the
// per-axis scales. The context is checked between stacks.
func PredictAll(ctx context.Context, reg VelocityRegressor, stacks []Stack, scales Scales) ([]Velocity, error) {
	if err := scales.Validate(); err != nil {
		return nil, err
	}
	preds := make([]Velocity, len(stacks))
	for i, s := range stacks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := reg.Predict(ctx, s)
		if err != nil {
			return nil, stepError(s.Index, fmt.Errorf("regressor failed: %w", err))
		}
		preds[i] = scales.Apply(v)
	}
	return preds, nil
}

// TableRegressor replays pre-computed model output, indexed by the stack's
// starting frame.
type TableRegressor struct {
	Predictions []Velocity
}

// Predict returns the stored prediction for the stack.
func (t *TableRegressor) Predict(_ context.Context, stack Stack) (Velocity, error) {
	if stack.Index < 0 || stack.Index >= len(t.Predictions) {
		return Velocity{}, fmt.Errorf("%w: no prediction for stack %d (table holds %d)",
			ErrInvalidConfiguration, stack.Index, len(t.Predictions))
	}
	return t.Predictions[stack.Index], nil
}

// LoadTable reads one "forward lateral yaw_rate" line per stack. Blank lines
// and lines starting with '#' are skipped.
func LoadTable(r io.Reader) (*TableRegressor, error) {
	var preds []Velocity
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: line %d: expected 3 values, got %d", ErrMalformedRecord, line, len(fields))
		}
		var vals [3]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %q is not numeric", ErrMalformedRecord, line, f)
			}
			vals[i] = v
		}
		preds = append(preds, VelocityFromVec(vals[:]))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prediction table: %w", err)
	}
	return &TableRegressor{Predictions: preds}, nil
}

// LinearModel is the JSON form of a linear velocity head. Weights has three
// rows (forward, lateral, yaw rate) of GridRows*GridCols*Channels columns.
type LinearModel struct {
	GridRows int         `json:"grid_rows"`
	GridCols int         `json:"grid_cols"`
	Channels int         `json:"channels"`
	Weights  [][]float64 `json:"weights"`
	Bias     []float64   `json:"bias"`
}

// LinearRegressor average-pools a stack onto a fixed grid and applies
// y = W*x + b.
type LinearRegressor struct {
	gridRows int
	gridCols int
	channels int
	w        *mat.Dense
	b        *mat.VecDense
}

// NewLinearRegressor validates the model dimensions and builds the matrices.
func NewLinearRegressor(m LinearModel) (*LinearRegressor, error) {
	if m.GridRows <= 0 || m.GridCols <= 0 || m.Channels <= 0 {
		return nil, fmt.Errorf("%w: model grid %dx%dx%d must be positive",
			ErrInvalidConfiguration, m.GridRows, m.GridCols, m.Channels)
	}
	features := m.GridRows * m.GridCols * m.Channels
	if len(m.Weights) != 3 {
		return nil, fmt.Errorf("%w: model needs 3 weight rows, got %d", ErrShapeMismatch, len(m.Weights))
	}
	data := make([]float64, 0, 3*features)
	for i, row := range m.Weights {
		if len(row) != features {
			return nil, fmt.Errorf("%w: weight row %d has %d columns, expected %d",
				ErrShapeMismatch, i, len(row), features)
		}
		data = append(data, row...)
	}
	bias := m.Bias
	if len(bias) == 0 {
		bias = make([]float64, 3)
	}
	if len(bias) != 3 {
		return nil, fmt.Errorf("%w: model bias has %d entries, expected 3", ErrShapeMismatch, len(bias))
	}
	return &LinearRegressor{
		gridRows: m.GridRows,
		gridCols: m.GridCols,
		channels: m.Channels,
		w:        mat.NewDense(3, features, data),
		b:        mat.NewVecDense(3, append([]float64(nil), bias...)),
	}, nil
}

// LoadLinearModel decodes a LinearModel from JSON and builds the regressor.
func LoadLinearModel(r io.Reader) (*LinearRegressor, error) {
	var m LinearModel
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse model JSON: %w", err)
	}
	return NewLinearRegressor(m)
}

// Predict evaluates the linear head on the pooled stack.
func (l *LinearRegressor) Predict(_ context.Context, stack Stack) (Velocity, error) {
	if stack.Channels != l.channels {
		return Velocity{}, fmt.Errorf("%w: stack has %d channels, model expects %d",
			ErrShapeMismatch, stack.Channels, l.channels)
	}
	features, err := stack.Pool(l.gridRows, l.gridCols)
	if err != nil {
		return Velocity{}, err
	}
	var y mat.VecDense
	y.MulVec(l.w, mat.NewVecDense(len(features), features))
	y.AddVec(&y, l.b)
	return VelocityFromVec(y.RawVector().Data), nil
}
