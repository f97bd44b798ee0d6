package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stepimport/internal/core"
)

var _ core.TabularSource = (*CSV)(nil)

func TestParse(t *testing.T) {
	input := "\xEF\xBB\xBF=\"Coupon Code\", Affiliate \n\nSAVE10,7\n  ,  \nBAD\xff,8,extra\n"

	src, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"Coupon Code", "Affiliate"}, src.Headers())
	require.Equal(t, 2, src.RowCount())

	row, err := src.RowAt(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"SAVE10", "7"}, row)

	row, err = src.RowAt(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"BAD?", "8", "extra"}, row)

	_, err = src.RowAt(2)
	assert.Error(t, err)
	_, err = src.RowAt(-1)
	assert.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	for _, input := range []string{"", "\n\n", "\xEF\xBB\xBF"} {
		_, err := Parse(strings.NewReader(input))
		assert.ErrorIs(t, err, ErrEmptyFile, "input %q", input)
	}
}

func TestParse_HeaderOnly(t *testing.T) {
	src, err := Parse(strings.NewReader("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, src.RowCount())
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("id\n1\n2\n3\n"), 0o600))

	src, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 3, src.RowCount())

	_, err = Open(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCleanHeader(t *testing.T) {
	tests := map[string]string{
		`  Email `:        "Email",
		`="Affiliate ID"`: "Affiliate ID",
		`=Status`:         "Status",
		`'quoted'`:        "quoted",
		`=`:               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanHeader(in), "input %q", in)
	}
}
