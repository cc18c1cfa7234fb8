package gitsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/flowsync/pkg/domain/types"
)

func TestFlowFilter(t *testing.T) {
	flow := &types.Flow{ID: "f1", Name: "prod-chat", ProjectID: "p1", LastTestedVersion: "1.2.0"}

	tests := []struct {
		source string
		want   bool
	}{
		{"", true},
		{"   ", true},
		{`name startsWith "prod-"`, true},
		{`name == "other"`, false},
		{`id in ["f1", "f2"]`, true},
		{`project_id == "p1" && last_tested_version != ""`, true},
		{`last_tested_version matches "^1\\."`, true},
		{`not (name contains "chat")`, false},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			ff, err := CompileFlowFilter(tt.source)
			require.NoError(t, err)
			got, err := ff.Match(flow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlowFilterRejectsBadExpressions(t *testing.T) {
	for _, src := range []string{`name +`, `name`, `unknown_field == 1`, `1 + 1`} {
		t.Run(src, func(t *testing.T) {
			_, err := CompileFlowFilter(src)
			assert.Error(t, err)
		})
	}
}

func TestNilFilterMatchesEverything(t *testing.T) {
	var ff *FlowFilter
	ok, err := ff.Match(&types.Flow{ID: "x"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, ff.String())
}
