package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionalMutexDisabled(t *testing.T) {
	var m OptionalMutex

	m.Lock()
	m.Lock()
	require.True(t, m.Mutex.TryLock(), "a disabled OptionalMutex never touches the underlying mutex")
	m.Mutex.Unlock()
	m.Unlock()
}

func TestOptionalMutexEnabled(t *testing.T) {
	m := OptionalMutex{UseMutex: true}

	m.Lock()
	require.False(t, m.Mutex.TryLock())
	m.Unlock()

	require.True(t, m.Mutex.TryLock())
	m.Mutex.Unlock()
}
