package policy

import (
	"errors"
	"fmt"

	"github.com/munet-project/unet/pkg/util"
)

// EvaluationContext is the JSON-shaped value a rule's condition and
// actions are resolved against. It is rooted at a map with at least a
// "node" key and optionally "derived" and "custom_data".
type EvaluationContext struct {
	Root map[string]any
}

// NewEvaluationContext wraps root.
func NewEvaluationContext(root map[string]any) *EvaluationContext {
	return &EvaluationContext{Root: root}
}

// fieldLookupResult distinguishes "found, value is nil" from "not found at all".
type fieldLookupResult struct {
	found bool
	value any
}

// Resolve walks ref's dotted path through ctx.Root. A missing segment
// returns an error wrapping util.ErrFieldNotFound carrying the full path.
// A segment holding an explicit nil returns (nil, nil) — distinct from
// the not-found case.
func (ctx *EvaluationContext) Resolve(ref FieldRef) (any, error) {
	res, err := resolvePath(ctx.Root, ref.Path, ref)
	if err != nil {
		return nil, err
	}
	if !res.found {
		return nil, fmt.Errorf("%w: %s", util.ErrFieldNotFound, ref.String())
	}
	return res.value, nil
}

func resolvePath(root any, path []string, ref FieldRef) (fieldLookupResult, error) {
	cur := root
	for i, seg := range path {
		if cur == nil {
			return fieldLookupResult{}, fmt.Errorf("%w: %s", util.ErrFieldNotFound, ref.String())
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return fieldLookupResult{}, fmt.Errorf("%w: %s", util.ErrFieldNotFound, ref.String())
		}
		v, present := m[seg]
		if !present {
			return fieldLookupResult{}, fmt.Errorf("%w: %s", util.ErrFieldNotFound, ref.String())
		}
		if i == len(path)-1 {
			return fieldLookupResult{found: true, value: v}, nil
		}
		cur = v
	}
	return fieldLookupResult{found: true, value: cur}, nil
}

// IsMissing reports whether err is the specific field-not-found error.
func IsMissing(err error) bool {
	return errors.Is(err, util.ErrFieldNotFound)
}
