package primitive

import (
	"cmp"
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

type computeTool struct {
	x *Executor
}

func (t *computeTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        string(types.ToolCompute),
		Description: "Evaluate a pure function over inputs without changing the world. Operations: sum, average, min, max, count, compare (two inputs, returns -1/0/1), concat.",
		Parameters: map[string]*gollem.Parameter{
			"inputs": {
				Type:        gollem.TypeArray,
				Description: "Numbers or text values",
				Items:       &gollem.Parameter{Type: gollem.TypeString},
				Required:    true,
			},
			"operation": {
				Type:        gollem.TypeString,
				Description: "One of: sum, average, min, max, count, compare, concat",
				Required:    true,
			},
		},
	}
}

func (t *computeTool) Run(_ context.Context, args map[string]any) (map[string]any, error) {
	rawOp, err := requireString(args, "operation")
	if err != nil {
		return nil, err
	}
	op, err := types.ParseComputeOperation(rawOp)
	if err != nil {
		return nil, goerr.Wrap(model.ErrInvalidOperation, err.Error(), goerr.V(model.OperationKey, rawOp))
	}
	inputs, err := computeInputs(args["inputs"])
	if err != nil {
		return nil, err
	}

	result, err := Compute(op, inputs)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"operation": string(op),
		"result":    result.Any(),
		"inputs":    len(inputs),
	}, nil
}

// computeInputs accepts a list, a JSON array string or a comma-separated
// string. Numeric strings become numbers.
func computeInputs(raw any) ([]model.Value, error) {
	var items []any
	switch x := raw.(type) {
	case nil:
		return []model.Value{}, nil
	case []any:
		items = x
	case []string:
		for _, s := range x {
			items = append(items, s)
		}
	case []float64:
		for _, f := range x {
			items = append(items, f)
		}
	case string:
		s := strings.TrimSpace(x)
		if strings.HasPrefix(s, "[") {
			if err := json.Unmarshal([]byte(s), &items); err != nil {
				return nil, goerr.Wrap(model.ErrTypeMismatch, "inputs is not a list", goerr.V(model.ValueKey, s))
			}
		} else if s != "" {
			for _, part := range strings.Split(s, ",") {
				items = append(items, part)
			}
		}
	default:
		items = []any{x}
	}

	out := make([]model.Value, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			s = strings.TrimSpace(s)
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				out = append(out, model.Number(f))
				continue
			}
			out = append(out, model.Text(s))
			continue
		}
		v, err := model.NewValue(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func numbers(op types.ComputeOperation, inputs []model.Value) ([]float64, error) {
	out := make([]float64, len(inputs))
	for i, v := range inputs {
		f, ok := v.AsNumber()
		if !ok {
			return nil, goerr.Wrap(model.ErrTypeMismatch, "operation needs numeric inputs",
				goerr.V(model.OperationKey, op), goerr.V("index", i), goerr.V("kind", v.Kind))
		}
		out[i] = f
	}
	return out, nil
}

// Compute evaluates op over inputs
func Compute(op types.ComputeOperation, inputs []model.Value) (model.Value, error) {
	switch op {
	case types.ComputeCount:
		return model.Number(float64(len(inputs))), nil

	case types.ComputeSum, types.ComputeAverage, types.ComputeMin, types.ComputeMax:
		nums, err := numbers(op, inputs)
		if err != nil {
			return model.Value{}, err
		}
		if len(nums) == 0 {
			if op == types.ComputeSum {
				return model.Number(0), nil
			}
			return model.Value{}, goerr.Wrap(model.ErrInvalidOperation, "operation needs at least one input", goerr.V(model.OperationKey, op))
		}
		acc := nums[0]
		var sum float64
		for _, n := range nums {
			sum += n
			switch op {
			case types.ComputeMin:
				acc = min(acc, n)
			case types.ComputeMax:
				acc = max(acc, n)
			}
		}
		switch op {
		case types.ComputeSum:
			return model.Number(sum), nil
		case types.ComputeAverage:
			return model.Number(sum / float64(len(nums))), nil
		default:
			return model.Number(acc), nil
		}

	case types.ComputeCompare:
		if len(inputs) != 2 {
			return model.Value{}, goerr.Wrap(model.ErrInvalidOperation, "compare needs exactly two inputs", goerr.V("inputs", len(inputs)))
		}
		a, b := inputs[0], inputs[1]
		if a.Kind != b.Kind {
			return model.Value{}, goerr.Wrap(model.ErrTypeMismatch, "cannot compare values of different kinds",
				goerr.V("left", a.Kind), goerr.V("right", b.Kind))
		}
		switch a.Kind {
		case types.ValueKindNumber:
			return model.Number(float64(cmp.Compare(a.Number, b.Number))), nil
		case types.ValueKindText:
			return model.Number(float64(strings.Compare(a.Text, b.Text))), nil
		default:
			return model.Value{}, goerr.Wrap(model.ErrTypeMismatch, "values are not comparable", goerr.V("kind", a.Kind))
		}

	case types.ComputeConcat:
		var sb strings.Builder
		for i, v := range inputs {
			if v.Kind == types.ValueKindStructured {
				return model.Value{}, goerr.Wrap(model.ErrTypeMismatch, "cannot concatenate structured values", goerr.V("index", i))
			}
			sb.WriteString(v.String())
		}
		return model.Text(sb.String()), nil
	}

	return model.Value{}, goerr.Wrap(model.ErrInvalidOperation, "unsupported compute operation", goerr.V(model.OperationKey, op))
}
