package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectCommand(t *testing.T) {
	tests := []struct {
		name      string
		numImages int
		keyword   string
		want      Command
	}{
		{"single ignores keyword", 1, "", Command{Kind: CommandSingleItem}},
		{"single ignores compare", 1, "compare", Command{Kind: CommandSingleItem}},
		{"single ignores invalid keyword", 1, "xyz", Command{Kind: CommandSingleItem}},
		{"empty defaults to totals", 2, "", Command{Kind: CommandTotals}},
		{"total", 2, "total", Command{Kind: CommandTotals}},
		{"TOTAL", 3, "TOTAL", Command{Kind: CommandTotals}},
		{"Total", 3, "Total", Command{Kind: CommandTotals}},
		{"compare", 2, "compare", Command{Kind: CommandCompare}},
		{"CoMpArE", 4, "CoMpArE", Command{Kind: CommandCompare}},
		{"invalid echoes keyword", 2, "xyz", Command{Kind: CommandInvalid, Keyword: "xyz"}},
		{"plural is invalid", 2, "totals", Command{Kind: CommandInvalid, Keyword: "totals"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectCommand(tt.numImages, tt.keyword))
		})
	}
}

func TestCommandKind_String(t *testing.T) {
	assert.Equal(t, "single", CommandSingleItem.String())
	assert.Equal(t, "total", CommandTotals.String())
	assert.Equal(t, "compare", CommandCompare.String())
	assert.Equal(t, "invalid", CommandInvalid.String())
}
