package onnx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap/zaptest"

	"github.com/straja-ai/aidetect/internal/binding"
	"github.com/straja-ai/aidetect/internal/engine"
)

func TestCheckShape(t *testing.T) {
	require.NoError(t, checkShape([]int64{-1, -1}, []int64{1, 77}))
	require.NoError(t, checkShape([]int64{1, 128}, []int64{1, 128}))
	require.ErrorIs(t, checkShape([]int64{1, 128}, []int64{1, 64}), engine.ErrShape)
	require.ErrorIs(t, checkShape([]int64{1, -1}, []int64{77}), engine.ErrShape)
	require.ErrorIs(t, checkShape([]int64{1, -1}, []int64{1, 0}), engine.ErrShape)
}

func TestElementType(t *testing.T) {
	assert.Equal(t, engine.ElementInt16, elementType(ort.TensorElementDataTypeInt16))
	assert.Equal(t, engine.ElementInt32, elementType(ort.TensorElementDataTypeInt32))
	assert.Equal(t, engine.ElementInt64, elementType(ort.TensorElementDataTypeInt64))
	assert.Equal(t, engine.ElementUint8, elementType(ort.TensorElementDataTypeUint8))
	assert.Equal(t, engine.ElementFloat32, elementType(ort.TensorElementDataTypeFloat))
	assert.Equal(t, engine.ElementUnknown, elementType(ort.TensorElementDataTypeBool))
	assert.Equal(t, engine.ElementUnknown, elementType(ort.TensorElementDataTypeDouble))
}

func TestSlotInfosCopiesDims(t *testing.T) {
	infos := []ort.InputOutputInfo{{Name: "input_ids", Dimensions: ort.NewShape(-1, 128), DataType: ort.TensorElementDataTypeInt64}}
	slots := slotInfos(infos)
	require.Len(t, slots, 1)
	assert.Equal(t, engine.SlotInfo{Name: "input_ids", Dims: []int64{-1, 128}, Element: engine.ElementInt64}, slots[0])
	infos[0].Dimensions[1] = 64
	assert.Equal(t, int64(128), slots[0].Dims[1])
}

func TestResolveSharedLibraryPath(t *testing.T) {
	assert.Equal(t, "/explicit/libonnxruntime.so", resolveSharedLibraryPath(" /explicit/libonnxruntime.so ", ""))

	t.Setenv("ONNXRUNTIME_SHARED_LIBRARY_PATH", "/env/libonnxruntime.so")
	assert.Equal(t, "/env/libonnxruntime.so", resolveSharedLibraryPath("", ""))

	t.Setenv("ONNXRUNTIME_SHARED_LIBRARY_PATH", "")
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib", "libonnxruntime.so")
	require.NoError(t, os.MkdirAll(filepath.Dir(lib), 0o755))
	require.NoError(t, os.WriteFile(lib, nil, 0o644))
	assert.Equal(t, lib, resolveSharedLibraryPath("", dir))
}

func TestLoadMissingFile(t *testing.T) {
	l := NewLoader("", zaptest.NewLogger(t))
	_, err := l.Load(filepath.Join(t.TempDir(), "missing.onnx"))
	require.ErrorIs(t, err, engine.ErrLoad)
}

// TestLoadRealModel needs AIDETECT_TEST_MODEL pointing at an ONNX model that
// takes token ids and an attention mask, plus an installed onnxruntime.
func TestLoadRealModel(t *testing.T) {
	modelPath := strings.TrimSpace(os.Getenv("AIDETECT_TEST_MODEL"))
	if modelPath == "" {
		t.Skip("AIDETECT_TEST_MODEL not set; skipping ONNX runtime test")
	}

	l := NewLoader("", zaptest.NewLogger(t))
	g, err := l.Load(modelPath)
	require.NoError(t, err)
	defer g.Close()

	layout := binding.Resolve(g.Inputs())
	require.GreaterOrEqual(t, layout.TokenIDs, 0)
	require.NoError(t, binding.Bind(g, layout, []int32{101, 7592, 102}, []int32{1, 1, 1}))
	require.NoError(t, g.Invoke())

	out, err := g.Output(0)
	require.NoError(t, err)
	assert.Positive(t, out.Len())

	// A second run reuses the same buffers.
	require.NoError(t, g.Invoke())
	require.NoError(t, g.Close())
	_, err = g.Input(0)
	require.ErrorIs(t, err, engine.ErrUninitialized)
}
