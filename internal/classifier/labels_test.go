package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabels(t *testing.T) {
	labels, err := ParseLabels([]byte("labels:\n  - angry\n  - happy\n  - neutral\n"))
	require.NoError(t, err)
	assert.Equal(t, []Label{"angry", "happy", "neutral"}, labels)
}

func TestParseLabels_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty document", ""},
		{"missing labels", "names: [a]\n"},
		{"empty list", "labels: []\n"},
		{"duplicates", "labels: [a, a]\n"},
		{"empty name", "labels: [\"\", b]\n"},
		{"not a list", "labels: angry\n"},
		{"numbers", "labels: [1, 2]\n"},
		{"bad yaml", "labels: [a\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLabels([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}
