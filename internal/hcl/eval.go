package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

func newEvalContext(name, version string) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"name":    cty.StringVal(name),
			"version": cty.StringVal(version),
		},
	}
}

func evalString(expr hcl.Expression, evalCtx *hcl.EvalContext) (string, error) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", diags
	}
	val, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", err
	}
	if val.IsNull() || !val.IsKnown() {
		return "", fmt.Errorf("value must be a known string")
	}
	var out string
	if err := gocty.FromCtyValue(val, &out); err != nil {
		return "", err
	}
	return out, nil
}

func evalStringList(expr hcl.Expression, evalCtx *hcl.EvalContext) ([]string, error) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}
	val, err := convert.Convert(val, cty.List(cty.String))
	if err != nil {
		return nil, err
	}
	if val.IsNull() || !val.IsWhollyKnown() {
		return nil, fmt.Errorf("value must be a known list of strings")
	}
	var out []string
	if err := gocty.FromCtyValue(val, &out); err != nil {
		return nil, err
	}
	return out, nil
}
