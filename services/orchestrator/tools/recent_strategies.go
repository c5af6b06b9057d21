// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"os"
	"sort"
	"strings"
)

// FilesystemRecentStrategies lists recently saved strategies by reading the
// strategies directory directly, newest modification time first.
type FilesystemRecentStrategies struct{}

var _ RecentStrategiesReader = FilesystemRecentStrategies{}

func (FilesystemRecentStrategies) ListRecentStrategies(ctx context.Context, strategiesDir string, n int) ([]string, error) {
	entries, err := os.ReadDir(strategiesDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	type named struct {
		name    string
		modTime int64
	}
	var yamlFiles []named
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		yamlFiles = append(yamlFiles, named{
			name:    strings.TrimSuffix(entry.Name(), ".yaml"),
			modTime: info.ModTime().UnixNano(),
		})
	}

	sort.Slice(yamlFiles, func(i, j int) bool { return yamlFiles[i].modTime > yamlFiles[j].modTime })

	if len(yamlFiles) > n {
		yamlFiles = yamlFiles[:n]
	}
	out := make([]string, len(yamlFiles))
	for i, f := range yamlFiles {
		out[i] = f.name
	}
	return out, nil
}
