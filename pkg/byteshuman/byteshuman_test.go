package byteshuman

import (
	"testing"

	"github.com/function61/gokit/assert"
)

func TestHumanize(t *testing.T) {
	for _, tc := range []struct {
		input  uint64
		output string
	}{
		{0, "0 bytes"},
		{500, "500 bytes"},
		{1024, "1.0 kB"},
		{1536, "1.5 kB"},
		{3000, "2.9 kB"},
		{1048576, "1.0 MB"},
		{5 * 1048576, "5.0 MB"},
		{1610612736, "1.5 GB"},
		{1099511627776, "1.0 TB"},
	} {
		t.Run(tc.output, func(t *testing.T) {
			assert.EqualString(t, Humanize(tc.input), tc.output)
		})
	}
}
