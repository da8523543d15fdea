// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package pathmapper translates between daemon-local paths and
// streaming-oracle-visible paths via a longest-prefix table. It is a pure
// function, no I/O — the normalization approach (forward-slash, cleaned,
// trailing-slash trimmed) is lifted from pkg/pathcmp, which solves the
// same qBittorrent-vs-local path comparison problem.
package pathmapper

import (
	"path"
	"sort"
	"strings"
)

// Mapping is one local-prefix -> remote-prefix pair.
type Mapping struct {
	Local  string
	Remote string
}

// Mapper holds a table of mappings, longest local-prefix first.
type Mapper struct {
	mappings []Mapping
}

// New builds a Mapper from the given mappings, normalizing and sorting them
// by descending local-prefix length so the longest ancestor always wins.
func New(mappings []Mapping) *Mapper {
	normalized := make([]Mapping, 0, len(mappings))
	for _, m := range mappings {
		normalized = append(normalized, Mapping{
			Local:  normalize(m.Local),
			Remote: normalize(m.Remote),
		})
	}
	sort.SliceStable(normalized, func(i, j int) bool {
		return len(normalized[i].Local) > len(normalized[j].Local)
	})
	return &Mapper{mappings: normalized}
}

// normalize mirrors pathcmp.NormalizePath: backslashes become forward
// slashes, the path is cleaned, and any trailing slash (other than the
// root) is trimmed.
func normalize(p string) string {
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// isAncestor reports whether prefix is an ancestor of (or equal to) p,
// under normalized-path string comparison.
func isAncestor(prefix, p string) bool {
	if prefix == "" {
		return false
	}
	if prefix == p {
		return true
	}
	if prefix == "/" {
		return strings.HasPrefix(p, "/")
	}
	return strings.HasPrefix(p, prefix+"/")
}

// ToRemote translates a local path to its oracle-visible form by picking the
// longest local-prefix that is an ancestor of local, then substituting.
// Returns the normalized local path, with no substitution, if no mapping
// applies.
func (m *Mapper) ToRemote(local string) string {
	n := normalize(local)
	for _, mapping := range m.mappings {
		if isAncestor(mapping.Local, n) {
			return substitute(n, mapping.Local, mapping.Remote)
		}
	}
	return n
}

// ToLocal translates a remote (oracle-visible) path back to its local form
// using the longest remote-prefix that is an ancestor of remote.
func (m *Mapper) ToLocal(remote string) string {
	n := normalize(remote)
	longest := -1
	idx := -1
	for i, mapping := range m.mappings {
		if isAncestor(mapping.Remote, n) && len(mapping.Remote) > longest {
			longest = len(mapping.Remote)
			idx = i
		}
	}
	if idx == -1 {
		return n
	}
	return substitute(n, m.mappings[idx].Remote, m.mappings[idx].Local)
}

func substitute(p, fromPrefix, toPrefix string) string {
	rest := strings.TrimPrefix(p, fromPrefix)
	if toPrefix == "/" {
		return "/" + strings.TrimPrefix(rest, "/")
	}
	return toPrefix + rest
}

// SameFile returns true iff, after translating local to its remote-shaped
// path, either path is an ancestor of the other. Pure string comparison;
// no filesystem access.
func (m *Mapper) SameFile(local, remote string) bool {
	translated := m.ToRemote(local)
	n := normalize(remote)
	return isAncestor(translated, n) || isAncestor(n, translated)
}
