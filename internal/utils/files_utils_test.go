package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTablesFlag(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		want    []TableSelection
		wantErr bool
	}{
		{name: "Empty", flag: "", want: nil},
		{name: "Single table", flag: "orders", want: []TableSelection{{Table: "orders"}}},
		{
			name: "Tables with columns",
			flag: "orders[id, amount],customers,items[sku]",
			want: []TableSelection{
				{Table: "orders", Columns: []string{"id", "amount"}},
				{Table: "customers"},
				{Table: "items", Columns: []string{"sku"}},
			},
		},
		{name: "Spaces around names", flag: " orders [ id ] ", want: []TableSelection{{Table: "orders", Columns: []string{"id"}}}},
		{name: "Missing closing bracket", flag: "orders[id,amount", wantErr: true},
		{name: "Missing opening bracket", flag: "ordersid]", wantErr: true},
		{name: "Missing table name", flag: "[id]", wantErr: true},
		{name: "Trailing text", flag: "orders[id]x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTablesFlag(tt.flag)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitOutsideBrackets(t *testing.T) {
	assert.Equal(t, []string{"a[1,2]", "b", "c[3]"}, SplitOutsideBrackets("a[1,2],b,c[3]"))
	assert.Nil(t, SplitOutsideBrackets(""))
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "d"}, ParseList(" a,b c,, d ,"))
	assert.Nil(t, ParseList("  "))
}

func TestReadContextFiles(t *testing.T) {
	dir := t.TempDir()
	glossary := filepath.Join(dir, "glossary.md")
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(glossary, []byte("ARR means annual recurring revenue"), 0o600))
	require.NoError(t, os.WriteFile(notes, []byte("Amounts are in EUR"), 0o600))

	got, err := ReadContextFiles(glossary + ", " + notes)
	require.NoError(t, err)
	assert.Equal(t,
		"\n-- Context from file: "+glossary+" --\nARR means annual recurring revenue"+
			"\n-- Context from file: "+notes+" --\nAmounts are in EUR",
		got)

	got, err = ReadContextFiles("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ReadContextFiles(filepath.Join(dir, "missing.md"))
	assert.Error(t, err)
}

func TestDefaultOutputFilePath(t *testing.T) {
	tests := []struct {
		source, command, format string
		want                    string
	}{
		{"data/sales.csv", "profile", "json", "sales_profile.json"},
		{"orders", "analyze", "text", "orders_analyze.txt"},
		{"book.xlsx", "classify", "yml", "book_classify.yaml"},
		{"", "recommend", "", "output_recommend.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultOutputFilePath(tt.source, tt.command, tt.format))
		})
	}
}
