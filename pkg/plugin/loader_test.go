package plugin

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/crew/pkg/domain/agent"
)

func TestLoaderLoadErrors(t *testing.T) {
	l := NewLoader()
	defer l.Cleanup()

	_, err := l.Load(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "plugin not found")

	_, err = l.Load(t.TempDir())
	assert.ErrorContains(t, err, "is a directory")

	notExec := filepath.Join(t.TempDir(), "plugin")
	require.NoError(t, os.WriteFile(notExec, []byte("#!/bin/sh\n"), 0600))
	_, err = l.Load(notExec)
	assert.ErrorContains(t, err, "not executable")
}

func TestHandshake(t *testing.T) {
	assert.Equal(t, "CREW_PLUGIN", HandshakeConfig.MagicCookieKey)
	assert.Contains(t, PluginMap, PluginName)
}

func buildEchoPlugin(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("builds a plugin binary")
	}
	bin := filepath.Join(t.TempDir(), "crew-plugin-echo")
	cmd := exec.Command("go", "build", "-o", bin, "../../cmd/crew-plugin-echo")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot build echo plugin: %v\n%s", err, out)
	}
	return bin
}

func TestLoaderRunsEchoPlugin(t *testing.T) {
	bin := buildEchoPlugin(t)

	l := NewLoader()
	defer l.Cleanup()

	a, err := l.Load(bin)
	require.NoError(t, err)
	assert.Equal(t, "echo", a.ID())
	assert.Equal(t, agent.PhasePlan, a.Phase())

	out, err := a.Execute(context.Background(), &agent.Context{UserRequest: "hello", Stage: "echo"})
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
}
