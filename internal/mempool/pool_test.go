package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"small size gets minimum", 1, 1024},
		{"exactly 1024", 1024, 1024},
		{"just over 1024", 1025, 2048},
		{"224x224 plane", 224 * 224, 50176},
		{"zero size", 0, 1024},
		{"negative size", -1, 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sizeClass(tt.input))
		})
	}
}

func TestGetPutLengths(t *testing.T) {
	b := GetUint8(300)
	assert.Len(t, b, 300)
	assert.GreaterOrEqual(t, cap(b), 1024)
	PutUint8(b)

	f := GetFloat64(5000)
	assert.Len(t, f, 5000)
	PutFloat64(f)

	PutUint8(nil)
	PutFloat64(nil)
	PutInt32(nil)
}

func TestGetInt32ZeroedClearsReusedBuffers(t *testing.T) {
	b := GetInt32Zeroed(2000)
	for i := range b {
		b[i] = 7
	}
	PutInt32(b)

	again := GetInt32Zeroed(2000)
	for _, v := range again {
		assert.Zero(t, v)
	}
	PutInt32(again)
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for range 50 {
				buf := GetUint8(n)
				for j := range buf {
					buf[j] = uint8(j)
				}
				PutUint8(buf)
			}
		}(1000 + i*400)
	}
	wg.Wait()
}
