package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLifecycleManager(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()

	lm := NewLifecycleManager(d)
	assert.NotNil(t, lm)
	assert.Equal(t, d, lm.daemon)
	assert.Equal(t, filepath.Join(d.config.DataDir, "ranya.pid"), lm.pidFile)
}

func TestLifecycleManagerStartStop(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()

	lm := NewLifecycleManager(d)

	err := lm.Start()
	require.NoError(t, err)

	_, err = os.Stat(lm.pidFile)
	assert.NoError(t, err)

	err = lm.Stop()
	require.NoError(t, err)

	_, err = os.Stat(lm.pidFile)
	assert.True(t, os.IsNotExist(err))
}

func TestLifecycleManagerGetPID(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()

	lm := NewLifecycleManager(d)

	err := lm.Start()
	require.NoError(t, err)
	defer lm.Stop()

	pid, err := lm.GetPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}
