package restyutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FilesystemOutput writes each exchange to its own file under a directory.
type FilesystemOutput struct {
	directory string
}

func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return FilesystemOutput{}, fmt.Errorf("create dump directory: %w", err)
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id+".txt"), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
