package main

import (
	"bytes"
	"io"
	"testing"

	"github.com/felixgeelhaar/crew/internal/infrastructure/cli"
)

func runArgs(t *testing.T, args ...string) (int, string) {
	t.Helper()
	cli.RootCmd.SetArgs(args)
	cli.RootCmd.SetOut(io.Discard)
	t.Cleanup(func() {
		cli.RootCmd.SetArgs(nil)
		cli.RootCmd.SetOut(nil)
	})
	var stderr bytes.Buffer
	return run(&stderr), stderr.String()
}

func TestRunHelp(t *testing.T) {
	if code, _ := runArgs(t, "--help"); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	code, stderr := runArgs(t, "invalid-cmd-999")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !bytes.Contains([]byte(stderr), []byte("unknown command")) {
		t.Fatalf("unexpected stderr: %q", stderr)
	}
}

func TestRunCLIErrorPrintsHint(t *testing.T) {
	root := t.TempDir()
	if code, _ := runArgs(t, "-w", root, "config", "init"); code != 0 {
		t.Fatalf("first init: exit %d", code)
	}
	code, stderr := runArgs(t, "-w", root, "config", "init")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !bytes.Contains([]byte(stderr), []byte("Hint: Pass --force")) {
		t.Fatalf("missing hint in %q", stderr)
	}
}
