package common_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"legacyboot/internal/common"
)

func TestAlign(t *testing.T) {
	tests := []struct {
		x, a, up, sectors uint64
	}{
		{0, 512, 0, 0},
		{1, 512, 512, 1},
		{512, 512, 512, 1},
		{513, 512, 1024, 2},
		{7, 0, 7, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.up, common.AlignUp(tt.x, tt.a), "AlignUp(%d, %d)", tt.x, tt.a)
		assert.Equal(t, tt.sectors, common.Sectors(tt.x, tt.a), "Sectors(%d, %d)", tt.x, tt.a)
	}
}
