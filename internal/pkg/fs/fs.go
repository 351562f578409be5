package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Entry struct {
	path string

	listed      bool
	dirs, files map[string]Entry
}

func NewEntry(path string) Entry {
	return Entry{
		path: path,
	}
}

func (e *Entry) list() error {
	fd, err := os.Open(e.path)
	if err != nil {
		return fmt.Errorf("cannot open \"%s\" file: %s", e.path, err)
	}
	defer fd.Close()

	info, err := fd.Stat()
	if err != nil {
		return fmt.Errorf("cannot stat \"%s\": %s", e.path, err)
	}
	if !info.IsDir() {
		newPath, err := filepath.EvalSymlinks(e.path)
		if err != nil {
			return fmt.Errorf("cannot resolve symlink: %s", err)
		}

		fd, err = os.Open(newPath)
		if err != nil {
			return fmt.Errorf("cannot open \"%s\" file: %s", newPath, err)
		}
		defer fd.Close()
	}

	entries, err := fd.ReadDir(0)
	if err != nil {
		return fmt.Errorf("cannot read \"%s\" directory: %s", fd.Name(), err)
	}

	var dirs, files = make(map[string]Entry), make(map[string]Entry, 0)

	for _, entry := range entries {
		path := strings.Join([]string{e.path, entry.Name()}, string(os.PathSeparator))
		if entry.IsDir() {
			dirs[filepath.Base(path)] = NewEntry(path)
		} else {
			_, err := filepath.EvalSymlinks(path)
			if err != nil {
				files[filepath.Base(path)] = NewEntry(path)
			} else {
				dirs[filepath.Base(path)] = NewEntry(path)
			}
		}
	}
	e.dirs = dirs
	e.files = files
	e.listed = true
	return nil
}

func (e *Entry) Dirs() (map[string]Entry, error) {
	if !e.listed {
		err := e.list()
		if err != nil {
			return map[string]Entry{}, err
		}
	}
	return e.dirs, nil
}

func (e *Entry) Files() (map[string]Entry, error) {
	if !e.listed {
		err := e.list()
		if err != nil {
			return map[string]Entry{}, err
		}
	}
	return e.files, nil
}

func (e *Entry) Path() string {
	return e.path
}

func (e *Entry) Name() string {
	return filepath.Base(e.path)
}

// Child returns entry for a path relative to this one, without checking its existence.
func (e *Entry) Child(elem ...string) Entry {
	return NewEntry(filepath.Join(append([]string{e.path}, elem...)...))
}

// Resolved follows symlinks of the entry path.
func (e *Entry) Resolved() (Entry, error) {
	path, err := filepath.EvalSymlinks(e.path)
	if err != nil {
		return Entry{}, fmt.Errorf("cannot resolve symlink: %s", err)
	}
	return NewEntry(path), nil
}

func (e *Entry) ReadBytes(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(e.path, name))
	if err != nil {
		return nil, fmt.Errorf("cannot read \"%s\" attribute: %s", name, err)
	}
	return data, nil
}

// ReadAttr reads a sysfs-like attribute file, trailing whitespace is trimmed.
func (e *Entry) ReadAttr(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(e.path, name))
	if err != nil {
		return "", fmt.Errorf("cannot read \"%s\" attribute: %s", name, err)
	}
	return strings.TrimRight(string(data), " \n\t"), nil
}

// ReadUevent parses KEY=value lines of an uevent file.
func (e *Entry) ReadUevent() (map[string]string, error) {
	data, err := e.ReadAttr("uevent")
	if err != nil {
		return nil, err
	}
	var values = make(map[string]string)
	for _, line := range strings.Split(data, "\n") {
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[k] = v
	}
	return values, nil
}
