package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/crew/internal/infrastructure/sse"
	"github.com/felixgeelhaar/crew/internal/infrastructure/wiring"
)

// serviceOptions lets tests swap the provider or logger.
var serviceOptions []wiring.Option

func loadServices(root string) (*wiring.AppServices, error) {
	services, loadErr := wiring.BuildAppServices(root, serviceOptions...)
	if services == nil {
		return nil, NewCLIError("failed to load configuration", "Run 'crew config show' or fix .crew/config.yaml", loadErr)
	}
	if loadErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", loadErr)
	}
	return services, nil
}

func getProjectRoot() (string, error) {
	if projectPath != "" {
		abs, err := filepath.Abs(projectPath)
		if err != nil {
			return "", fmt.Errorf("invalid workspace path %q: %w", projectPath, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("workspace path %q: %w", abs, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("workspace path %q is not a directory", abs)
		}
		return abs, nil
	}
	return os.Getwd()
}

// withServices loads the services for the workspace, runs fn, then writes
// metrics when --metrics-file is set and closes the services. With
// --events-addr, pipeline events stream to /events while fn runs.
func withServices(cmd *cobra.Command, fn func(*wiring.AppServices) error) error {
	root, err := getProjectRoot()
	if err != nil {
		return err
	}
	services, err := loadServices(root)
	if err != nil {
		return err
	}
	defer services.Close()

	if eventsAddr != "" {
		stop, err := streamEvents(cmd, services)
		if err != nil {
			return NewCLIError("cannot stream events", "Pick a free address for --events-addr", err)
		}
		defer stop()
	}

	runErr := fn(services)
	if metricsFile != "" {
		if err := services.Metrics.WriteTextfile(metricsFile); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
	}
	return MapError(runErr)
}

func streamEvents(cmd *cobra.Command, services *wiring.AppServices) (func(), error) {
	h := sse.NewHandler()
	srv, err := sse.Listen(eventsAddr, h)
	if err != nil {
		return nil, err
	}
	services.Events.Register(h.Registration())
	fmt.Fprintf(cmd.ErrOrStderr(), "Streaming events on http://%s/events\n", srv.Addr())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Close(ctx); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
	}, nil
}
