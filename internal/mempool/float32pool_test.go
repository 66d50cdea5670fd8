package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 1024},
		{1, 1024},
		{1024, 1024},
		{1025, 2048},
		{3 * 256 * 256, 3 * 256 * 256}, // already a multiple of 1024
		{100000, 100352},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sizeClass(tt.n), "sizeClass(%d)", tt.n)
	}
}

func TestGetFloat32Length(t *testing.T) {
	buf := GetFloat32(300)
	require.Len(t, buf, 300)
	assert.GreaterOrEqual(t, cap(buf), 1024)
	PutFloat32(buf)
}

func TestRoundTripReuse(t *testing.T) {
	buf := GetFloat32(2048)
	buf[0] = 42
	PutFloat32(buf)

	// A same-class request may or may not hit the pooled buffer, but
	// it must always have the requested length.
	again := GetFloat32(2000)
	require.Len(t, again, 2000)
	PutFloat32(again)
}

func TestPutNil(t *testing.T) {
	assert.NotPanics(t, func() { PutFloat32(nil) })
}

func TestConcurrentAccess(t *testing.T) {
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				buf := GetFloat32(4096)
				buf[j] = float32(j)
				PutFloat32(buf)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
