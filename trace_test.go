package netsplit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceManagerInactive(t *testing.T) {
	var nilTM *TraceManager
	assert.False(t, nilTM.Active())
	assert.NoError(t, nilTM.AddName(0, "x", "SubNetwork"))

	tm := CreateTraceManager("off", false)
	tm.AddTrace(0, TraceInst{TraceTime: "1"})
	assert.Empty(t, tm.Traces)
	assert.NoError(t, tm.WriteToFile(filepath.Join(t.TempDir(), "never.yaml"), true))
}

func TestTraceManagerOrdered(t *testing.T) {
	tm := CreateTraceManager("exp", true)
	require.NoError(t, tm.AddName(0, "netpart_0", "SubNetwork"))
	assert.Error(t, tm.AddName(0, "again", "SubNetwork"))

	tm.AddTrace(1, TraceInst{TraceTime: "2.5", TraceType: "launch"})
	tm.AddTrace(0, TraceInst{TraceTime: "0.5", TraceType: "launch"})
	tm.AddTrace(1, TraceInst{TraceTime: "1", TraceType: "launch"})

	ordered := tm.Ordered()
	require.Len(t, ordered, 3)
	assert.Equal(t, []string{"0.5", "1", "2.5"}, []string{ordered[0].TraceTime, ordered[1].TraceTime, ordered[2].TraceTime})

	filename := filepath.Join(t.TempDir(), "trace.json")
	require.NoError(t, tm.WriteToFile(filename, true))
	bytes, err := os.ReadFile(filename)
	require.NoError(t, err)

	var back TraceManager
	require.NoError(t, json.Unmarshal(bytes, &back))
	assert.Len(t, back.Traces[0], 3)
	assert.Equal(t, "netpart_0", back.NameByID[0].Name)

	assert.Error(t, tm.WriteToFile(filepath.Join(t.TempDir(), "trace.csv"), false))
}

func TestNewLogger(t *testing.T) {
	for _, verbose := range []bool{true, false} {
		logger, err := NewLogger(verbose)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
}
