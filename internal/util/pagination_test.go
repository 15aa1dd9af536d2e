package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		page, size int
		from, lim  int
	}{
		{page: 1, size: 10, from: 0, lim: 10},
		{page: 3, size: 20, from: 40, lim: 20},
		{page: 0, size: 0, from: 0, lim: 10},
		{page: 2, size: 500, from: 10, lim: 10},
	}
	for _, tt := range tests {
		from, lim := Calculate(tt.page, tt.size)
		assert.Equal(t, tt.from, from)
		assert.Equal(t, tt.lim, lim)
	}
}
