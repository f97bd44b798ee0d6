package core

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimPreview(t *testing.T) {
	long := strings.Repeat("a", 35)
	short := strings.Repeat("b", 29)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"35 chars truncated", long, strings.Repeat("a", 30) + "..."},
		{"29 chars unchanged", short, short},
		{"exactly 30 chars gets ellipsis", strings.Repeat("c", 30), strings.Repeat("c", 30) + "..."},
		{"long integer untouched", strings.Repeat("9", 40), strings.Repeat("9", 40)},
		{"long decimal untouched", "3.14159265358979323846264338327950288", "3.14159265358979323846264338327950288"},
		{"exponent untouched", "-1.5e+300000000000000000000000000000", "-1.5e+300000000000000000000000000000"},
		{"multibyte counted by rune", strings.Repeat("é", 31), strings.Repeat("é", 30) + "..."},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrimPreview(tt.in))
		})
	}
}

func TestSession_PreviewRow(t *testing.T) {
	sess := session("PV", sliceSource{
		headers: []string{"Name", "Amount"},
		rows: [][]string{
			{strings.Repeat("x", 35), "123456789012345678901234567890123"},
			{"second", "1"},
		},
	}, 20)

	row, err := sess.PreviewRow()
	require.NoError(t, err)
	assert.Equal(t, []string{strings.Repeat("x", 30) + "...", "123456789012345678901234567890123"}, row)
	assert.Equal(t, []string{"Name", "Amount"}, sess.Columns())

	empty := session("PV", sliceSource{headers: []string{"a"}}, 20)
	row, err = empty.PreviewRow()
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestSession_Window(t *testing.T) {
	sess := Session{PerStep: 20}

	tests := []struct {
		step, rows, start, end int
	}{
		{0, 45, 0, 20},
		{1, 45, 20, 40},
		{2, 45, 40, 45},
		{3, 45, 45, 45},
		{0, 0, 0, 0},
		{math.MaxInt/20 + 1, 45, 45, 45},
		{math.MaxInt, 45, 45, 45},
	}
	for _, tt := range tests {
		sess.Step = tt.step
		start, end := sess.Window(tt.rows)
		assert.Equal(t, tt.start, start, "step %d", tt.step)
		assert.Equal(t, tt.end, end, "step %d", tt.step)
	}

	wide := Session{Step: 0, PerStep: math.MaxInt}
	start, end := wide.Window(45)
	assert.Equal(t, 0, start)
	assert.Equal(t, 45, end)
}

func TestSession_CanProcess(t *testing.T) {
	ctx := context.Background()

	assert.False(t, Session{}.CanProcess(ctx))
	assert.True(t, Session{Permission: AllowAll}.CanProcess(ctx))
}

func TestFieldMapping_ApplyEmpty(t *testing.T) {
	rec := FieldMapping(nil).Apply([]string{"id", "email", "id"}, []string{"1", " a@b.c ", "2"}, 4)

	assert.Equal(t, 4, rec.Index)
	assert.Equal(t, []string{"id", "email"}, rec.Fields)
	assert.Equal(t, "1", rec.Get("id"))
	assert.Equal(t, "a@b.c", rec.Get("email"))
}

func TestFieldMapping_ApplyMissingColumn(t *testing.T) {
	m := FieldMapping{{Column: "Status", Field: "status"}}
	rec := m.Apply([]string{"id"}, []string{"1"}, 0)

	assert.Equal(t, []string{"status"}, rec.Fields)
	assert.Equal(t, "", rec.Get("status"))
}

func TestParseMappingPairs(t *testing.T) {
	m, err := ParseMappingPairs([]string{"Coupon Code = coupon_code", "Affiliate=affiliate_id"})
	require.NoError(t, err)
	assert.Equal(t, FieldMapping{
		{Column: "Coupon Code", Field: "coupon_code"},
		{Column: "Affiliate", Field: "affiliate_id"},
	}, m)

	_, err = ParseMappingPairs([]string{"no-separator"})
	assert.Error(t, err)

	_, err = ParseMappingPairs([]string{"a=x", "b=x"})
	assert.ErrorContains(t, err, "mapped more than once")

	_, err = ParseMappingPairs([]string{"a="})
	assert.ErrorContains(t, err, "empty field name")
}

func TestMappingFromMap(t *testing.T) {
	m := MappingFromMap(map[string]string{
		"Email ":       "email",
		"Affiliate ID": " affiliate_id",
	})

	assert.Equal(t, FieldMapping{
		{Column: "Affiliate ID", Field: "affiliate_id"},
		{Column: "Email", Field: "email"},
	}, m)
	assert.Empty(t, MappingFromMap(nil))
}
