package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRoomLabel(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  ParsedRoom
		expectErr bool
	}{
		{
			name:     "Prefixed three digits",
			raw:      "R101",
			expected: ParsedRoom{Building: "R", Floor: 1, Number: 101},
		},
		{
			name:     "Building with dash",
			raw:      "B-203",
			expected: ParsedRoom{Building: "B", Floor: 2, Number: 203},
		},
		{
			name:     "Four digits",
			raw:      "Tower 1204",
			expected: ParsedRoom{Building: "Tower", Floor: 12, Number: 1204},
		},
		{
			name:     "Explicit floor",
			raw:      "West 3F-12",
			expected: ParsedRoom{Building: "West", Floor: 3, Number: 12},
		},
		{
			name:     "Short number is the floor",
			raw:      "Annex 4",
			expected: ParsedRoom{Building: "Annex", Floor: 4, Number: 4},
		},
		{
			name:     "Extra whitespace",
			raw:      "  Main   Hall  305 ",
			expected: ParsedRoom{Building: "Main Hall", Floor: 3, Number: 305},
		},
		{
			name:      "No digits",
			raw:       "Auditorium",
			expectErr: true,
		},
		{
			name:      "Ground floor",
			raw:       "G-005",
			expectErr: true,
		},
		{
			name:      "Empty",
			raw:       "   ",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := ParseRoomLabel(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, parsed)
		})
	}
}
