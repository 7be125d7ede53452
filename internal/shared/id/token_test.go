package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name       string
		length     int
		wantLength int
	}{
		{name: "default length for zero", length: 0, wantLength: SessionTokenLength},
		{name: "default length for negative", length: -5, wantLength: SessionTokenLength},
		{name: "explicit length", length: 12, wantLength: 12},
		{name: "long token", length: 64, wantLength: 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Generate(tt.length)
			require.NoError(t, err)
			assert.Len(t, s, tt.wantLength)
			for _, c := range s {
				assert.Contains(t, alphabet, string(c))
			}
		})
	}
}

func TestGenerate_Distinct(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		token, err := Generate(SessionTokenLength)
		require.NoError(t, err)
		_, dup := seen[token]
		require.False(t, dup, "duplicate token generated")
		seen[token] = struct{}{}
	}
}
