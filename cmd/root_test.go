package cmd

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteCancelsContextOnSignal(t *testing.T) {
	started := make(chan struct{})
	var cmdErr error

	root := &cobra.Command{
		Use: "farsisweep",
		RunE: func(cmd *cobra.Command, _ []string) error {
			close(started)
			select {
			case <-cmd.Context().Done():
				cmdErr = cmd.Context().Err()
			case <-time.After(5 * time.Second):
			}
			return nil
		},
	}
	root.SetArgs([]string{})

	go func() {
		<-started
		if p, err := os.FindProcess(os.Getpid()); err == nil {
			_ = p.Signal(os.Interrupt)
		}
	}()

	require.NoError(t, execute(context.Background(), root))
	assert.ErrorIs(t, cmdErr, context.Canceled)
}
