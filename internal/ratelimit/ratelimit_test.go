package ratelimit

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPacer(t *testing.T) {
	tests := []struct {
		name      string
		perSecond float64
		expectNil bool
	}{
		{"Valid rate", 10, false},
		{"Fractional rate", 0.5, false},
		{"Zero rate (unlimited)", 0, true},
		{"Negative rate (unlimited)", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPacer(tt.perSecond)
			if tt.expectNil {
				assert.Nil(t, p)
			} else {
				assert.NotNil(t, p)
			}
		})
	}
}

func TestPacer_NilDoesNotBlock(t *testing.T) {
	var p *Pacer

	start := time.Now()
	for range 1000 {
		p.Wait()
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPacer_Wait(t *testing.T) {
	// 20 commands per second: the first is immediate, the next 4 wait ~50ms each
	p := NewPacer(20)
	require.NotNil(t, p)

	start := time.Now()
	for range 5 {
		p.Wait()
	}
	duration := time.Since(start)

	assert.GreaterOrEqual(t, duration, 150*time.Millisecond)
	assert.Less(t, duration, 2*time.Second)
}

func TestNewReader(t *testing.T) {
	src := bytes.NewReader([]byte("test data"))

	assert.Same(t, src, NewReader(src, 0), "unlimited reader should be returned unchanged")
	assert.Same(t, src, NewReader(src, -5), "negative limit should mean unlimited")
	assert.NotSame(t, src, NewReader(src, 1024))
}

func TestReader_Read(t *testing.T) {
	data := make([]byte, 3*1024)
	for i := range data {
		data[i] = byte(i % 256)
	}

	// 2KB/s with a 2KB burst: the first 2KB are free, the last 1KB takes ~500ms
	reader := NewReader(bytes.NewReader(data), 2*1024)

	start := time.Now()
	result, err := io.ReadAll(reader)
	duration := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, data, result)
	assert.GreaterOrEqual(t, duration, 300*time.Millisecond)
	assert.Less(t, duration, 3*time.Second)
}

func TestReader_ChunkSize(t *testing.T) {
	data := make([]byte, 64*1024)

	// Burst is larger than the chunk cap, so each read stops at 8KB.
	reader := NewReader(bytes.NewReader(data), 1<<20)
	buf := make([]byte, len(data))

	n, err := reader.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, maxChunkSize, n)
}

func TestReader_SmallLimit(t *testing.T) {
	// A limit below the chunk cap bounds each read to the burst.
	reader := NewReader(bytes.NewReader([]byte("abcdefgh")), 4)
	buf := make([]byte, 8)

	n, err := reader.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "abcd", string(buf[:n]))
}

func TestReader_EmptyRead(t *testing.T) {
	reader := NewReader(bytes.NewReader([]byte("x")), 1)

	n, err := reader.Read(nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}
