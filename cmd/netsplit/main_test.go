package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/iti/netsplit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the command tree with args and returns what it wrote to its output
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPlanThenLaunch(t *testing.T) {
	manifest := filepath.Join(t.TempDir(), "x.yaml")

	out, err := execute(t, "plan", "--kind", "dumbbell", "--parts", "2", "--out", manifest)
	require.NoError(t, err)
	assert.Contains(t, out, ": 2 sub-networks")
	assert.Contains(t, out, "launch order")

	pd, err := netsplit.ReadPlanDesc(manifest, true, nil)
	require.NoError(t, err)
	assert.Equal(t, "dumbbell", pd.Topology)
	assert.Equal(t, 2, pd.Parts)
	require.Len(t, pd.Networks, 2)

	out, err = execute(t, "launch", "--plan", manifest, "--startup", "0.5", "--slots", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "netpart_0")
	assert.Contains(t, out, "netpart_1")
}

func TestPlanSchemeOverridesParts(t *testing.T) {
	ft, err := netsplit.CreateFatTree("", netsplit.DefaultFatTreeParams())
	require.NoError(t, err)
	want := netsplit.FatTreePartitions(ft)["racks"].Parts
	require.Greater(t, want, 1)

	manifest := filepath.Join(t.TempDir(), "racks.json")
	_, err = execute(t, "plan", "--kind", "fattree", "--fill=false", "--scheme", "racks", "--parts", "1", "--out", manifest)
	require.NoError(t, err)

	pd, err := netsplit.ReadPlanDesc(manifest, false, nil)
	require.NoError(t, err)
	assert.Equal(t, want, pd.Parts)
}

func TestPlanErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		args    []string
		want    string
		notWant string
	}{
		{
			name: "unknown scheme",
			args: []string{"plan", "--kind", "fattree", "--fill=false", "--scheme", "bogus"},
			want: `no scheme "bogus"`,
		},
		{
			name:    "output checked before the topology is built",
			args:    []string{"plan", "--kind", "nonsense", "--out", filepath.Join(dir, "missing", "x.yaml")},
			want:    "directory of",
			notWant: "unknown topology kind",
		},
		{
			name: "unknown kind",
			args: []string{"plan", "--kind", "nonsense"},
			want: "unknown topology kind",
		},
		{
			name: "too many parts",
			args: []string{"plan", "--kind", "dumbbell", "--fill=false", "--parts", "5"},
			want: "partition count 5 outside",
		},
		{
			name: "describe without output",
			args: []string{"describe", "--kind", "dumbbell"},
			want: "--out is required",
		},
		{
			name: "launch of a missing manifest",
			args: []string{"launch", "--plan", filepath.Join(dir, "absent.yaml")},
			want: "absent.yaml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			if tt.notWant != "" {
				assert.NotContains(t, err.Error(), tt.notWant)
			}
		})
	}
}

func TestSchemesListsHomaSchemes(t *testing.T) {
	out, err := execute(t, "schemes", "--kind", "homa", "--fill=false")
	require.NoError(t, err)
	for _, name := range []string{"single", "tors", "halves"} {
		assert.Contains(t, out, name)
	}
}

func TestDescribeThenPlanFromFile(t *testing.T) {
	dir := t.TempDir()
	desc := filepath.Join(dir, "dumbbell.yaml")
	_, err := execute(t, "describe", "--kind", "dumbbell", "--out", desc)
	require.NoError(t, err)

	manifest := filepath.Join(dir, "plan.json")
	dot := filepath.Join(dir, "plan.dot")
	trace := filepath.Join(dir, "trace.yaml")
	out, err := execute(t, "plan", "--topo", desc, "--parts", "2", "--out", manifest, "--dot", dot, "--trace", trace)
	require.NoError(t, err)
	assert.Contains(t, out, ": 2 sub-networks")
	assert.NoError(t, netsplit.CheckReadableFiles([]string{manifest, dot, trace}))
}

func TestPlanPrintsMetrics(t *testing.T) {
	out, err := execute(t, "plan", "--kind", "dumbbell", "--parts", "1", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, `netsplit_plans_total{result="ok"} 1`)
	assert.Contains(t, out, "netsplit_partitions 1")

	// a failed run is counted too
	out, err = execute(t, "plan", "--kind", "dumbbell", "--parts", "9", "--metrics")
	require.Error(t, err)
	assert.Contains(t, out, `netsplit_plans_total{result="partition_error"} 1`)
}

func TestLaunchReportsDeadlock(t *testing.T) {
	manifest := filepath.Join(t.TempDir(), "cycle.yaml")
	pd := netsplit.PlanDesc{
		Parts: 2,
		Networks: []netsplit.SubNetworkDesc{
			{Name: "netpart_0", Index: 0, Bridges: []netsplit.BridgeDesc{{ID: "a", Role: "Responder", Peer: 1}}},
			{Name: "netpart_1", Index: 1, Bridges: []netsplit.BridgeDesc{{ID: "b", Role: "Responder", Peer: 0}}},
		},
	}
	require.NoError(t, pd.WriteToFile(manifest))

	_, err := execute(t, "launch", "--plan", manifest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, netsplit.ErrLaunchDeadlock))
}
