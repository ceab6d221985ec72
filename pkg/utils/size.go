package utils

import (
	"io/fs"
	"path/filepath"
)

// FolderSize returns the summed up size of all files below target.
func FolderSize(target string) (int64, error) {
	var size int64
	err := filepath.WalkDir(target, func(_ string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	return size, err
}
