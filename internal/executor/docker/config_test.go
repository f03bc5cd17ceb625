package docker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/snippet-api/internal/config"
)

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.ExecutorConfig{
		Enabled:   true,
		Image:     "node:22-alpine",
		Command:   []string{"node", "-e"},
		Languages: []string{"javascript"},
		MemoryMB:  64,
		CPUs:      1,
		Timeout:   3 * time.Second,
		PoolSize:  2,
	})

	assert.Equal(t, "node:22-alpine", cfg.Image)
	assert.Equal(t, []string{"node", "-e"}, cfg.Command)
	assert.Equal(t, int64(64*1024*1024), cfg.MemoryLimit)
	assert.Equal(t, 1.0, cfg.CPULimit)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.PoolSize)
	assert.Equal(t, DefaultConfig().MaxOutput, cfg.MaxOutput)

	assert.True(t, cfg.Supports("javascript"))
	assert.False(t, cfg.Supports("python"))
}

func TestBuildCommand(t *testing.T) {
	base := []string{"python", "-c"}
	cmd := buildCommand(base, "print(1)")

	assert.Equal(t, []string{"python", "-c", "print(1)"}, cmd)
	assert.Equal(t, []string{"python", "-c"}, base, "base command must not be modified")
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{limit: 5}

	n, err := b.Write([]byte("abc"))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = b.Write([]byte("defgh"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n, "writers must see the full length accepted")

	_, _ = b.Write([]byte("more"))
	assert.Equal(t, "abcde\n[output truncated]\n", b.String())

	unlimited := &cappedBuffer{}
	_, _ = unlimited.Write([]byte("everything"))
	assert.Equal(t, "everything", unlimited.String())
}
