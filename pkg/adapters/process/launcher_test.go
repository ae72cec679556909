package process_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/ifgate/internal/testutils"
	"github.com/aretw0/ifgate/pkg/adapters/process"
	"github.com/aretw0/ifgate/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLauncher_Launch(t *testing.T) {
	command, env := testutils.FakeInterpreterCommand()
	l := process.NewLauncher(command, nil, process.WithEnv(env...), process.WithTurnTimeout(2*time.Second))

	interp, out, err := l.Launch(context.Background(), "standard.z5")
	require.NoError(t, err)
	t.Cleanup(func() { _ = interp.Terminate() })
	assert.Contains(t, out.Text, "FAKE ADVENTURE")

	resp, err := interp.Send(context.Background(), "look")
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "West of House")
}

func TestLauncher_LaunchFailure(t *testing.T) {
	command, env := testutils.FakeInterpreterCommand()
	l := process.NewLauncher(command, nil, process.WithEnv(env...))

	interp, _, err := l.Launch(context.Background(), "crash.z5")
	assert.Nil(t, interp)
	assert.ErrorIs(t, err, domain.ErrProcessExited)
}

func TestLauncher_MissingInterpreter(t *testing.T) {
	l := process.NewLauncher("/no/such/dfrotz", nil)
	_, _, err := l.Launch(context.Background(), "zork1.z3")
	assert.ErrorIs(t, err, domain.ErrSpawn)
}
