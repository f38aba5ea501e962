package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "wake", expected: "wake"},
		{input: " Wake ", expected: "wake"},
		{input: "Wake County\t\n", expected: "wakecounty"},
	}
	for _, row := range table {
		require.Equal(t, row.expected, NormalizeName(row.input))
	}
}

func TestFirstNonEmpty(t *testing.T) {
	require.Equal(t, "b", FirstNonEmpty("", "  ", "b", "c"))
	require.Equal(t, "", FirstNonEmpty())
}
