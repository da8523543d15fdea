// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInfohash(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid 32", strings.Repeat("a", 32), false},
		{"valid 40", strings.Repeat("A", 40), false},
		{"valid 64", strings.Repeat("0", 64), false},
		{"too short", strings.Repeat("a", 31), true},
		{"wrong length 39", strings.Repeat("a", 39), true},
		{"non-hex char", strings.Repeat("a", 39) + "g", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseInfohash(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				o, ok := AsOutcome(err)
				require.True(t, ok)
				assert.Equal(t, KindValidation, o.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.ToLower(tt.input), h.String())
		})
	}
}
