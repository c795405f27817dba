package netsplit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFiles(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "topo.yaml")
	require.NoError(t, os.WriteFile(present, []byte("name: x\n"), 0o644))

	assert.NoError(t, CheckReadableFiles([]string{present, ""}))
	assert.Error(t, CheckReadableFiles([]string{filepath.Join(dir, "absent.yaml")}))

	assert.NoError(t, CheckOutputFiles([]string{filepath.Join(dir, "plan.json"), "relative.json"}))
	assert.Error(t, CheckOutputFiles([]string{filepath.Join(dir, "nodir", "plan.json")}))
}

func TestIsYAMLFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"plan.yaml", true},
		{"plan.yml", true},
		{"dir/plan.YAML", true},
		{"plan.json", false},
		{"plan", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsYAMLFile(tt.name))
		})
	}
}
