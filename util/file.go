package util

import (
	"encoding/json"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// EnsureDir creates the directory (and parents) if it does not exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return errors.Wrapf(os.MkdirAll(dir, os.ModePerm), "creating %s", dir)
}

// WriteToFile writes the strings to file separated by new lines, creating the parent directory
func WriteToFile(savePath string, content ...string) error {
	if err := EnsureDir(path.Dir(savePath)); err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(savePath, []byte(strings.Join(content, "\n")+"\n"), 0644), "writing %s", savePath)
}

// AppendToFile appends each string as a line
func AppendToFile(savePath string, content ...string) error {
	if err := EnsureDir(path.Dir(savePath)); err != nil {
		return err
	}
	f, err := os.OpenFile(savePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return errors.Wrapf(err, "opening %s", savePath)
	}
	defer f.Close()

	for _, s := range content {
		if _, err = f.WriteString(s + "\n"); err != nil {
			return errors.Wrapf(err, "appending to %s", savePath)
		}
	}
	return nil
}

// AppendJSONLine marshals v and appends it as one line (jsonl)
func AppendJSONLine(savePath string, v interface{}) error {
	bs, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshalling json line")
	}
	return AppendToFile(savePath, string(bs))
}

// RemoveContents deletes everything in the directory, keeping the directory
func RemoveContents(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(path.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
