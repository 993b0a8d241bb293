package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "group_id,timeslot_id,day,period,subject_id,teacher_id,room_id\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAuditCleanExport(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "output.csv", "\ufeff"+header+
		"G1,Mon-1,Mon,1,MATH,T1,R1\n"+
		"G2,Mon-1,Mon,1,BIO,T2,R2\n")

	var out bytes.Buffer
	code := run([]string{"-input", input}, &out)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "Breaking findings: 0, Optional diffs: 0")
}

func TestAuditFlagsClashesAndReservedSlots(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "output.csv", header+
		"G1,Mon-1,Mon,1,MATH,T1,R1\n"+
		"G2,Mon-1,Mon,1,BIO,T1,R2\n"+
		"G1,Mon-5,Mon,5,BIO,T2,R2\n")

	var out bytes.Buffer
	code := run([]string{"-input", input}, &out)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "teacher:T1@Mon-1 booked 2 times")
	assert.Contains(t, out.String(), "unschedulable slot Mon-5")
}

func TestAuditAgainstCatalogAndBaseline(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "teacher.csv", "teacher_id,prefix,firstname,lastname,role\nT1,Mr.,Budi,Santoso,leader\n")
	writeFile(t, dir, "room.csv", "room_id,room_name\nR1,Lab\n")
	writeFile(t, dir, "student_group.csv", "group_id,group_name\nG1,X-1\n")
	writeFile(t, dir, "subject.csv", "subject_id,theory,practice\nMATH,2,0\n")
	writeFile(t, dir, "timeslot.csv", "timeslot_id,day,period\nTue-8,Tue,8\nMon-1,Mon,1\n")
	writeFile(t, dir, "teach.csv", "subject_id,teacher_id\nMATH,T1\n")
	writeFile(t, dir, "register.csv", "subject_id,group_id\nMATH,G1\n")

	input := writeFile(t, dir, "output.csv", header+"G1,Tue-8,Tue,8,MATH,T1,R1\n")
	baseline := writeFile(t, dir, "baseline.csv", header+"G1,Mon-1,Mon,1,MATH,T1,R1\n")

	var out bytes.Buffer
	code := run([]string{"-input", input, "-data", dir, "-baseline", baseline}, &out)
	assert.Equal(t, 1, code)
	report := out.String()
	assert.Contains(t, report, "T1 teaches during the leader meeting")
	assert.Contains(t, report, "[DIFF] added: G1|Tue-8|MATH|T1|R1 (x1)")
	assert.Contains(t, report, "[DIFF] removed: G1|Mon-1|MATH|T1|R1 (x1)")
}

func TestAuditMissingInput(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 2, run([]string{"-input", filepath.Join(t.TempDir(), "nope.csv")}, &out))
}
