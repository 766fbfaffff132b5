package main

import (
	"fmt"
	"os"
)

const backupSuffix = ".bak"

// backupDatabase writes a byte-for-byte copy of the database file to
// <path>.bak, replacing any earlier backup. It returns the backup path and the
// number of bytes copied.
func backupDatabase(path string) (string, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("stat database %q: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("read database %q: %w", path, err)
	}

	backupPath := path + backupSuffix
	if err := os.WriteFile(backupPath, data, info.Mode().Perm()); err != nil {
		return "", 0, fmt.Errorf("write backup %q: %w", backupPath, err)
	}
	return backupPath, int64(len(data)), nil
}
