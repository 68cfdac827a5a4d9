package ptyproc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnAndDestroy(t *testing.T) {
	p, err := Spawn("/bin/sh")
	require.NoError(t, err)
	require.NotNil(t, p.Master())
	assert.Greater(t, p.Pid(), 0)

	p.Destroy()
	// Destroy should be idempotent.
	p.Destroy()
}

func TestSetWindowSize(t *testing.T) {
	p, err := Spawn("/bin/sh")
	require.NoError(t, err)
	defer p.Destroy()

	assert.NoError(t, p.SetWindowSize(24, 80))
	// Zero values are permitted and passed through.
	assert.NoError(t, p.SetWindowSize(0, 0))
}

func TestSpawnUnknownShellFails(t *testing.T) {
	_, err := Spawn("/no/such/shell-binary")
	assert.Error(t, err)
}

func TestDestroyReapsChild(t *testing.T) {
	p, err := Spawn("/bin/sh")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		p.Destroy()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Destroy did not return: child was not reaped")
	}
}
