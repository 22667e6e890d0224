package database

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
)

// DefaultExtension is the file extension migration scripts use unless configured otherwise.
const DefaultExtension = ".sql"

const utf8BOM = "\uFEFF"

var errNotRegularFile = errors.New("not a regular file")

// Dir returns the migrations directory at dirPath as an fs.FS.
func Dir(dirPath string) fs.FS {
	return os.DirFS(dirPath)
}

// ListMigrations reads migration files with extension ext from the root of fsys.
// Files are returned sorted lexicographically by name, which is the order they are applied in.
// A leading UTF-8 byte order mark is removed from the content.
func ListMigrations(fsys fs.FS, ext string) ([]MigrationFile, error) {
	if ext == "" {
		ext = DefaultExtension
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, &SourceReadError{Name: ".", Err: fmt.Errorf("failed to read migrations directory: %w", err)}
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if path.Ext(entry.Name()) != ext {
			continue
		}
		names = append(names, entry.Name())
	}

	slices.Sort(names)

	files := make([]MigrationFile, 0, len(names))
	for _, name := range names {
		content, err := readMigration(fsys, name)
		if err != nil {
			return nil, &SourceReadError{Name: name, Err: err}
		}
		files = append(files, MigrationFile{Name: name, Content: content})
	}

	return files, nil
}

func readMigration(fsys fs.FS, name string) (string, error) {
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", errNotRegularFile
	}

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return strings.TrimPrefix(string(data), utf8BOM), nil
}
