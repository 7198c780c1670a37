package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/crew/pkg/domain"
)

// DumpStage writes a stage's raw output to <root>/.crewllm/<stage>.txt.
func (r *FilesystemRepository) DumpStage(stageID, output string) error {
	if r.root == "" {
		return nil
	}
	id, err := domain.NewStageID(stageID)
	if err != nil {
		return err
	}
	dir := filepath.Join(r.root, DebugDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create debug directory: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, id.String()+".txt"), []byte(output), 0600)
}
