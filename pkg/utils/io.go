package utils

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ReadTOMLFromFile decodes the TOML file named by filename into data.
func ReadTOMLFromFile(filename string, data interface{}) error {
	tomlData, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("unable to read TOML file %s: %w", filename, err)
	}
	return toml.Unmarshal(tomlData, data)
}

// WriteTOMLToFile writes the TOML representation of data to filename, preceded by an optional header.
// An existing file is truncated.
func WriteTOMLToFile(filename string, data interface{}, perm os.FileMode, header ...string) (err error) {
	tomlData, err := toml.Marshal(data)
	if err != nil {
		return fmt.Errorf("unable to marshal data to TOML: %w", err)
	}

	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	for _, line := range header {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("unable to write header to %s: %w", filename, err)
		}
	}

	if _, err := f.Write(tomlData); err != nil {
		return fmt.Errorf("unable to write TOML data to %s: %w", filename, err)
	}

	return f.Sync()
}
