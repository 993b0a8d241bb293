package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sma-timetable/pkg/config"
)

func writeCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	var slots strings.Builder
	slots.WriteString("timeslot_id,day,period\n")
	for _, day := range []string{"Mon", "Tue", "Wed", "Thu", "Fri"} {
		for p := 1; p <= 12; p++ {
			fmt.Fprintf(&slots, "%s-%d,%s,%d\n", day, p, day, p)
		}
	}
	files := map[string]string{
		"teacher.csv":       "teacher_id,prefix,firstname,lastname,role\nT1,Mr.,Budi,Santoso,teacher\nT2,Ms.,Sari,Dewi,leader\n",
		"room.csv":          "room_id,room_name\nR1,Lab\n",
		"student_group.csv": "group_id,group_name\nG1,X-1\nG2,X-2\n",
		"subject.csv":       "subject_id,theory,practice\nMATH,2,1\nPHYS,2,0\n",
		"timeslot.csv":      slots.String(),
		"teach.csv":         "subject_id,teacher_id\nMATH,T1\nPHYS,T2\n",
		"register.csv":      "subject_id,group_id\nMATH,G1\nPHYS,G2\nART,G1\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestParseFlags(t *testing.T) {
	cfg := &config.Config{
		Scheduler: config.SchedulerConfig{DataDir: "./data", Seed: 5, TeachingPolicy: "strict"},
		Exports:   config.ExportsConfig{StorageDir: "./exports"},
	}

	opts, err := parseFlags([]string{"-seed", "42", "-view", "teacher", "-formats", "csv, PDF"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(42), opts.Seed)
	assert.Equal(t, "./data", opts.DataDir)
	assert.Equal(t, []string{"csv", "pdf"}, opts.Formats)

	_, err = parseFlags([]string{"-view", "planet"}, cfg)
	assert.Error(t, err)
	_, err = parseFlags([]string{"-formats", "docx"}, cfg)
	assert.Error(t, err)
}

func TestRunWritesExports(t *testing.T) {
	out := t.TempDir()
	opts := options{
		DataDir:       writeCatalog(t),
		OutDir:        out,
		Seed:          11,
		View:          "group",
		Formats:       []string{"csv", "xlsx"},
		Deterministic: true,
		Policy:        "strict",
		Manifest:      true,
	}

	res, err := run(context.Background(), opts, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Run.Assignments)
	assert.Equal(t, 1, res.Run.Failures)
	// One CSV, one grid per group and the manifest.
	require.Len(t, res.Files, 4)
	for _, f := range res.Files {
		_, err := os.Stat(f)
		assert.NoError(t, err, f)
	}
	assert.True(t, strings.HasSuffix(res.Files[1], "_group_G1.xlsx"))

	body, err := os.ReadFile(res.Files[3])
	require.NoError(t, err)
	var manifest runManifest
	require.NoError(t, yaml.Unmarshal(body, &manifest))
	assert.Equal(t, res.Run.ID, manifest.RunID)
	assert.Equal(t, int64(11), manifest.Seed)
	assert.Len(t, manifest.Files, 3)
	require.Len(t, manifest.Failures, 1)
	assert.Equal(t, "ART", manifest.Failures[0].SubjectID)
}

func TestRunMissingData(t *testing.T) {
	_, err := run(context.Background(), options{DataDir: t.TempDir(), OutDir: t.TempDir(), View: "group", Formats: []string{"csv"}}, zap.NewNop())
	assert.Error(t, err)
}
