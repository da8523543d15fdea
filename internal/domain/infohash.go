// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "strings"

// Infohash is a validated torrent identifier: a hex string of length 32,
// 40, or 64. Every boundary that accepts a hash must go through
// ParseInfohash so that no other shape ever reaches the core.
type Infohash string

var validInfohashLengths = map[int]bool{32: true, 40: true, 64: true}

// ParseInfohash validates s and returns it as an Infohash, or a
// KindValidation Outcome if it is the wrong length or contains non-hex
// characters.
func ParseInfohash(s string) (Infohash, error) {
	if !validInfohashLengths[len(s)] {
		return "", Validationf("infohash %q: invalid length %d, want 32, 40, or 64", s, len(s))
	}
	for _, r := range s {
		isHex := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
		if !isHex {
			return "", Validationf("infohash %q: non-hex character %q", s, r)
		}
	}
	return Infohash(s), nil
}

// String returns the lowercase canonical form.
func (h Infohash) String() string {
	return strings.ToLower(string(h))
}
