package identification

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forsyde/idesyde-orchestrator/internal/storage"
	"github.com/forsyde/idesyde-orchestrator/internal/types"
)

func writeWorkloadDesign(t *testing.T, rd *storage.RunDir, name string, data []byte) {
	t.Helper()
	modelPath := filepath.Join(rd.Path(storage.AreaInputs), name)
	require.NoError(t, os.WriteFile(modelPath, data, 0o644))
	_, err := rd.WriteDesignHeader("0", "workload", types.DesignHeader{
		Category:   types.ReactiveWorkloadCategory,
		ModelPaths: []string{modelPath, filepath.Join(rd.Root(), "notes.txt")},
		Elements:   []string{"t1", "t2"},
	})
	require.NoError(t, err)
}

func TestReactiveWorkloadRuleIdentifiesWorkload(t *testing.T) {
	rd := openRunDir(t)
	workload := types.ReactiveWorkload{
		Tasks:                []string{"t1", "t2"},
		DataChannels:         []string{"c1"},
		DataGraphSrc:         []string{"t1", "c1"},
		DataGraphDst:         []string{"c1", "t2"},
		DataGraphMessageSize: []uint32{8, 8},
	}
	data, err := types.EncodeText(workload)
	require.NoError(t, err)
	writeWorkloadDesign(t, rd, "workload.json", data)

	engine, err := NewEngine(rd, BuiltinRules(), EngineConfig{})
	require.NoError(t, err)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Steps)
	require.Len(t, result.Headers, 1)
	h := result.Headers[0]
	assert.Equal(t, types.ReactiveWorkloadCategory, h.Category)
	assert.True(t, workload.Header().Equal(h))

	body, err := storage.ReadBody[types.ReactiveWorkload](h)
	require.NoError(t, err)
	assert.Equal(t, workload.Tasks, body.Tasks)
}

func TestReactiveWorkloadRuleIgnoresOtherDesigns(t *testing.T) {
	models, err := ReactiveWorkloadRule(context.Background(), []types.DesignHeader{twoTaskDesign()}, nil)
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestReactiveWorkloadRuleFailureIsAbsorbed(t *testing.T) {
	rd := openRunDir(t)
	writeWorkloadDesign(t, rd, "workload.msgpack", []byte("not msgpack"))

	engine, err := NewEngine(rd, BuiltinRules(), EngineConfig{})
	require.NoError(t, err)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Headers)
	assert.Positive(t, result.Failures)
}
