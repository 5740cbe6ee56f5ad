package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/alarm-messenger/relay-server-go/internal/errors"
)

func TestNormalizeGroups(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil means all", nil, nil},
		{"blank means all", []string{"  "}, nil},
		{"comma string", []string{"wil26, swa11"}, []string{"WIL26", "SWA11"}},
		{"array entries", []string{"WIL26", "SWA11"}, []string{"WIL26", "SWA11"}},
		{"dedupe keeps first position", []string{"B,a,B", "A"}, []string{"B", "A"}},
		{"dashes allowed", []string{"FF-NORD"}, []string{"FF-NORD"}},
		{"empty segments skipped", []string{",A,,B,"}, []string{"A", "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeGroups(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("rejects invalid characters", func(t *testing.T) {
		for _, bad := range []string{"A;B", "A B", "Ä", "A_B"} {
			_, err := NormalizeGroups([]string{bad})
			assert.Equal(t, apperrors.ErrCodeInvalidGroups, apperrors.GetCode(err), bad)
		}
	})

	t.Run("rejects more than fifty codes", func(t *testing.T) {
		codes := make([]string, 51)
		for i := range codes {
			codes[i] = fmt.Sprintf("G%d", i)
		}
		_, err := NormalizeGroups([]string{strings.Join(codes, ",")})
		assert.Equal(t, apperrors.ErrCodeTooManyGroups, apperrors.GetCode(err))

		_, err = NormalizeGroups(codes[:50])
		assert.NoError(t, err)
	})
}

func TestNormalizeGroupCode(t *testing.T) {
	code, err := NormalizeGroupCode(" wil26 ")
	require.NoError(t, err)
	assert.Equal(t, "WIL26", code)

	_, err = NormalizeGroupCode("")
	assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))

	_, err = NormalizeGroupCode("A,B")
	assert.Equal(t, apperrors.ErrCodeInvalidGroups, apperrors.GetCode(err))
}
