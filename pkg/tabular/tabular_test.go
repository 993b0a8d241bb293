package tabular

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTrimsHeadersAndBOM(t *testing.T) {
	input := "\ufeff subject_id , theory,practice \nS1, 2 ,1\n\n,,\nS2,1.5\n"

	table, err := Read("subject", strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"subject_id", "theory", "practice"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "S1", table.Rows[0].String("subject_id"))
	assert.Equal(t, 2.0, table.Rows[0].Float("theory"))
	assert.Equal(t, 1.5, table.Rows[1].Float("theory"))
	assert.Equal(t, 0.0, table.Rows[1].Float("practice"))
}

func TestReadEmptyInput(t *testing.T) {
	table, err := Read("room", strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
	assert.ErrorIs(t, table.Require("room_id"), ErrMissingColumn)
}

func TestRowFloatIsPermissive(t *testing.T) {
	row := Row{"theory": "abc", "practice": "NaN", "extra": "3"}
	assert.Equal(t, 0.0, row.Float("theory"))
	assert.Equal(t, 0.0, row.Float("practice"))
	assert.Equal(t, 0.0, row.Float("missing"))
	assert.Equal(t, 3.0, row.Float("extra"))
}

func TestRowInt(t *testing.T) {
	row := Row{"a": "8", "b": "8.0", "c": "8.5", "d": "x"}
	v, err := row.Int("a")
	require.NoError(t, err)
	assert.Equal(t, 8, v)
	v, err = row.Int("b")
	require.NoError(t, err)
	assert.Equal(t, 8, v)
	_, err = row.Int("c")
	assert.Error(t, err)
	_, err = row.Int("d")
	assert.Error(t, err)
}

func TestRequireListsMissingColumns(t *testing.T) {
	table, err := Read("teach", strings.NewReader("subject_id\nS1\n"))
	require.NoError(t, err)
	err = table.Require("subject_id", "teacher_id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teacher_id")
	assert.Equal(t, "fallback", Row{}.StringOr("x", "fallback"))
}
