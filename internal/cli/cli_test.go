package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aether-kv/kvs/internal/config"
	"github.com/aether-kv/kvs/internal/engine"
)

func newTestHandler(t *testing.T) (*Handler, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	cfg := config.Config{
		DataDir:         t.TempDir(),
		Threshold:       config.DefaultThreshold,
		LogFileName:     config.DefaultLogFileName,
		CompactFileName: config.DefaultCompactFileName,
	}
	eng, err := engine.Open(cfg.DataDir, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	var out, errOut bytes.Buffer
	return NewHandler(eng, &out, &errOut), &out, &errOut
}

func TestRunSetGetRemove(t *testing.T) {
	h, out, _ := newTestHandler(t)

	require.Equal(t, 0, h.Run([]string{"set", "foo", "bar"}))
	require.Equal(t, 0, h.Run([]string{"get", "foo"}))
	require.Equal(t, "bar\n", out.String())

	out.Reset()
	require.Equal(t, 0, h.Run([]string{"rm", "foo"}))
	require.Equal(t, 0, h.Run([]string{"get", "foo"}))
	require.Equal(t, "Key not found\n", out.String())
}

func TestRunRemoveMissingKeyExitsNonZero(t *testing.T) {
	h, out, _ := newTestHandler(t)

	code := h.Run([]string{"rm", "missing"})
	require.Equal(t, 1, code)
	require.Equal(t, "Key not found\n", out.String())
}

func TestRunSetMissingArgsExitsNonZero(t *testing.T) {
	h, _, errOut := newTestHandler(t)

	code := h.Run([]string{"set", "onlykey"})
	require.Equal(t, 1, code)
	require.NotEmpty(t, errOut.String())
}

func TestRunUnknownSubcommand(t *testing.T) {
	h, _, errOut := newTestHandler(t)

	code := h.Run([]string{"frobnicate"})
	require.Equal(t, 1, code)
	require.Contains(t, errOut.String(), "unknown subcommand")
}
