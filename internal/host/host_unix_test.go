//go:build unix

package host

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignalTriggersDispatch(t *testing.T) {
	p := NewProcess(nil, syscall.SIGUSR1)
	defer p.Close()

	ran := make(chan struct{})
	require.True(t, p.AddEventHandler(BeforeUnload, func() { close(ran) }))

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("handler not run after signal")
	}
	<-p.Done()
}
