// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package envfile reads KEY=VALUE configuration files.
//
// Blank lines and lines starting with "#"
// are skipped, as are lines without an "=" or with an empty key. Keys and
// values are trimmed of surrounding white space; everything after the first
// "=" belongs to the value.
package envfile

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Parse reads the entries from r. Later entries override earlier ones.
func Parse(r io.Reader) (map[string]string, error) {
	entries := map[string]string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		entries[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "cannot read env file")
	}
	return entries, nil
}

// Load parses the file at path. A missing file yields no entries and no
// error.
func Load(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "cannot open env file %q", path)
	}
	defer f.Close()
	entries, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "env file %q", path)
	}
	return entries, nil
}
