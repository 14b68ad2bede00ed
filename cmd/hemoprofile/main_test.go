package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/stevenson-profiler/internal/hemodynamics"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/types"
)

const congestedYAML = `vitals:
  systolic_bp: 180
  diastolic_bp: 60
symptoms: [orthopnea, rest_dyspnea]
exam:
  jvd: present
  heart_sounds: s3
  lungs: crackles
  edema: ankle
  capillary_refill_sec: 2
`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEvaluateCmd(t *testing.T) {
	obsFile := writeFile(t, "patient.yaml", congestedYAML)

	out, err := run(t, "", "evaluate", "-f", obsFile, "-i", "diuretic,vasodilator")
	require.NoError(t, err)

	var resp types.EvaluateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, hemodynamics.QuadrantB, resp.Evaluation.Quadrant)
	assert.InDelta(t, 32.0, resp.Evaluation.Coordinate.WedgePressure, 1e-9)
	require.NotNil(t, resp.Projection)
	assert.Equal(t, hemodynamics.QuadrantA, resp.Projection.Quadrant)
}

func TestEvaluateCmd_Stdin(t *testing.T) {
	out, err := run(t, congestedYAML, "evaluate", "-f", "-")
	require.NoError(t, err)

	var resp types.EvaluateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, hemodynamics.QuadrantB, resp.Evaluation.Quadrant)
}

func TestEvaluateCmd_JSONAndRecord(t *testing.T) {
	obsFile := writeFile(t, "patient.json", `{"vitals":{"systolic_bp":120,"diastolic_bp":80}}`)
	dataDir := t.TempDir()

	out, err := run(t, "", "evaluate", "-f", obsFile, "--record", "--data-dir", dataDir)
	require.NoError(t, err)

	var resp types.EvaluateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, hemodynamics.QuadrantA, resp.Evaluation.Quadrant)
	assert.NotEmpty(t, resp.RecordID)
}

func TestEvaluateCmd_Errors(t *testing.T) {
	badBP := writeFile(t, "bad.yaml", "vitals:\n  systolic_bp: 80\n  diastolic_bp: 90\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing file flag", args: []string{"evaluate"}, want: "file"},
		{name: "unreadable file", args: []string{"evaluate", "-f", filepath.Join(t.TempDir(), "nope.yaml")}, want: "read observation"},
		{name: "invalid observation", args: []string{"evaluate", "-f", badBP}, want: "vitals.diastolic_bp"},
		{name: "legacy mode accepts it", args: []string{"evaluate", "-f", badBP, "--legacy"}},
		{name: "unknown intervention", args: []string{"evaluate", "-f", badBP, "--legacy", "-i", "leeches"}, want: "leeches"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", tt.args...)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestProjectCmd(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wedge    float64
		ci       float64
		quadrant hemodynamics.Quadrant
	}{
		{name: "diuretic", args: []string{"-i", "diuretic"}, wedge: 22, ci: 2.9, quadrant: hemodynamics.QuadrantB},
		{name: "inotrope", args: []string{"-i", "inotrope"}, wedge: 28, ci: 4.0, quadrant: hemodynamics.QuadrantB},
		{name: "diuretic and vasodilator", args: []string{"-i", "diuretic", "-i", "vasodilator"}, wedge: 16, ci: 3.4, quadrant: hemodynamics.QuadrantA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"project", "--wedge", "30", "--ci", "2.8"}, tt.args...)
			out, err := run(t, "", args...)
			require.NoError(t, err)

			var resp types.ProjectResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.InDelta(t, tt.wedge, resp.Projection.Projected.WedgePressure, 1e-9)
			assert.InDelta(t, tt.ci, resp.Projection.Projected.CardiacIndex, 1e-9)
			assert.Equal(t, tt.quadrant, resp.Projection.Quadrant)
		})
	}
}

func TestClassifyCmd(t *testing.T) {
	out, err := run(t, "", "classify", "--wedge", "25", "--ci", "1.8")
	require.NoError(t, err)

	var resp types.ClassifyResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, hemodynamics.QuadrantC, resp.Quadrant)

	_, err = run(t, "", "classify", "--wedge", "-1", "--ci", "1.8")
	assert.Error(t, err)
}

func TestRulesCmd_WithTuningFile(t *testing.T) {
	tuningFile := writeFile(t, "tuning.yaml", "thresholds:\n  wedge_pressure: 20\n  cardiac_index: 2.0\n")

	out, err := run(t, "", "rules", "--tuning", tuningFile)
	require.NoError(t, err)

	var resp types.RulesResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 20.0, resp.Thresholds.WedgePressure)
	assert.Equal(t, 2.0, resp.Thresholds.CardiacIndex)
	assert.NotEmpty(t, resp.Rules)
}

func TestTuningCmds(t *testing.T) {
	dataDir := t.TempDir()

	out, err := run(t, "", "tuning", "default")
	require.NoError(t, err)
	parsed, err := hemodynamics.ParseTuning([]byte(out), false)
	require.NoError(t, err)
	assert.Equal(t, hemodynamics.DefaultTuning().Thresholds, parsed.Thresholds)

	tuningFile := writeFile(t, "icu.yaml", out)

	out, err = run(t, "", "tuning", "validate", tuningFile)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	badFile := writeFile(t, "bad.yaml", "wedge_min: 50\nwedge_max: 10\n")
	_, err = run(t, "", "tuning", "validate", badFile)
	assert.ErrorIs(t, err, hemodynamics.ErrInvalidTuning)

	_, err = run(t, "", "tuning", "save", "icu", tuningFile, "--data-dir", dataDir)
	require.NoError(t, err)

	out, err = run(t, "", "tuning", "list", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Equal(t, "icu\n", out)

	out, err = run(t, "", "tuning", "show", "icu", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "wedge_pressure")
}
