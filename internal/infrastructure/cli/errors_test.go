package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/crew/pkg/application"
	"github.com/felixgeelhaar/crew/pkg/domain"
)

func TestCLIError(t *testing.T) {
	t.Run("Error with cause", func(t *testing.T) {
		cause := errors.New("root cause")
		e := NewCLIError("something failed", "try this", cause)
		if e.Error() != "something failed: root cause" {
			t.Fatalf("unexpected: %s", e.Error())
		}
		if e.ExitCode != 1 {
			t.Fatalf("expected exit code 1, got %d", e.ExitCode)
		}
	})

	t.Run("Error without cause", func(t *testing.T) {
		e := NewCLIError("something failed", "try this", nil)
		if e.Error() != "something failed" {
			t.Fatalf("unexpected: %s", e.Error())
		}
	})

	t.Run("Unwrap returns cause", func(t *testing.T) {
		cause := errors.New("root")
		e := NewCLIError("msg", "", cause)
		if !errors.Is(e, cause) {
			t.Fatal("errors.Is should match wrapped cause")
		}
	})
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantMsg  string
		wantCode int
		wantCLI  bool
	}{
		{name: "nil returns nil", err: nil},
		{
			name:     "lock error",
			err:      fmt.Errorf("acquire workspace lock: %w", &domain.LockError{Path: "/w/.crew/plan-state/plan.lock", HolderPID: 42}),
			wantMsg:  "workspace is locked",
			wantCode: 1,
			wantCLI:  true,
		},
		{
			name:     "cancellation",
			err:      fmt.Errorf("run: %w", context.Canceled),
			wantMsg:  "run interrupted",
			wantCode: 130,
			wantCLI:  true,
		},
		{
			name:     "nested orchestrator",
			err:      application.ErrNestedOrchestrator,
			wantMsg:  "the orchestrator cannot be a stage",
			wantCode: 1,
			wantCLI:  true,
		},
		{
			name:     "io",
			err:      fmt.Errorf("write: %w", domain.ErrIO),
			wantMsg:  "could not write to the workspace",
			wantCode: 1,
			wantCLI:  true,
		},
		{name: "unmapped passes through", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			var cliErr *CLIError
			if errors.As(got, &cliErr) != tt.wantCLI {
				t.Fatalf("CLIError mismatch for %v", got)
			}
			if !tt.wantCLI {
				if got != tt.err {
					t.Fatalf("expected passthrough, got %v", got)
				}
				return
			}
			if cliErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", cliErr.Message, tt.wantMsg)
			}
			if cliErr.ExitCode != tt.wantCode {
				t.Errorf("exit code = %d, want %d", cliErr.ExitCode, tt.wantCode)
			}
			if cliErr.Hint == "" {
				t.Error("expected a hint")
			}
			if !errors.Is(got, tt.err) {
				t.Error("mapped error should wrap the original")
			}
		})
	}
}
