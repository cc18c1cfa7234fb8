package gitsync

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/dshills/flowsync/pkg/domain/types"
)

// flowEnv is the environment a flow filter expression is evaluated in.
type flowEnv struct {
	ID                string `expr:"id"`
	Name              string `expr:"name"`
	ProjectID         string `expr:"project_id"`
	LastTestedVersion string `expr:"last_tested_version"`
}

// FlowFilter selects which flows a project push sends.
type FlowFilter struct {
	source  string
	program *vm.Program
}

// CompileFlowFilter compiles a boolean expression over id, name,
// project_id and last_tested_version, e.g. `name startsWith "prod-"`.
// An empty source matches every flow.
func CompileFlowFilter(source string) (*FlowFilter, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return &FlowFilter{}, nil
	}

	program, err := expr.Compile(source, expr.Env(flowEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid flow filter %q: %w", source, err)
	}
	return &FlowFilter{source: source, program: program}, nil
}

// Match reports whether f passes the filter.
func (ff *FlowFilter) Match(f *types.Flow) (bool, error) {
	if ff == nil || ff.program == nil {
		return true, nil
	}

	out, err := expr.Run(ff.program, flowEnv{
		ID:                string(f.ID),
		Name:              f.Name,
		ProjectID:         string(f.ProjectID),
		LastTestedVersion: f.LastTestedVersion,
	})
	if err != nil {
		return false, fmt.Errorf("flow filter %q on %s: %w", ff.source, f.ID, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// String returns the filter source.
func (ff *FlowFilter) String() string {
	if ff == nil {
		return ""
	}
	return ff.source
}
