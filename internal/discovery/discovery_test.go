package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTXTSortedAndSkipsEmpty(t *testing.T) {
	got := TXT(map[string]string{
		"version": "1",
		"path":    "/",
		"ws":      "/ws",
		"empty":   "",
		"":        "orphan",
	})
	assert.Equal(t, []string{"path=/", "version=1", "ws=/ws"}, got)
}

func TestTXTEmpty(t *testing.T) {
	assert.Empty(t, TXT(nil))
}

func TestStartRejectsInvalidPort(t *testing.T) {
	var a Advertiser
	err := a.Start("lab", 0, nil)
	require.Error(t, err)
	assert.False(t, a.Running())
}

func TestShutdownWithoutStart(t *testing.T) {
	var a Advertiser
	a.Shutdown()
	a.Shutdown()
	assert.False(t, a.Running())
}
