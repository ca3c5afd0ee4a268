// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backups

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SanitizeName turns a display name into something usable as a single
// path segment. Path separators and NUL are removed, not replaced, and
// the result is NFC-normalized. With asciiOnly set, accents are stripped
// and any rune outside ASCII is dropped.
//
// Other characters some platforms reserve (":", "\", control
// characters) are left alone. Length is not limited here; see
// segmentName.
func SanitizeName(name string, asciiOnly bool) string {
	// Separators go before normalization.
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == 0 {
			return -1
		}
		return r
	}, name)

	if !asciiOnly {
		return norm.NFC.String(name)
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, name); err == nil {
		name = folded
	}
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, name)
}

// maxSegmentBytes keeps "<id> <name>.json" within the 255 byte file
// name limit of common filesystems.
const maxSegmentBytes = 255 - len(articleExt)

// segmentName is the "<id> <name>" form used for every directory and
// file in the backup tree. Long names are cut on a rune boundary to
// maxSegmentBytes; the id keeps cut names unique.
func segmentName(id int64, name string, asciiOnly bool) string {
	return truncateName(strconv.FormatInt(id, 10)+" "+SanitizeName(name, asciiOnly), maxSegmentBytes)
}

// truncateName returns the longest prefix of s that is at most n bytes
// long and does not split a UTF-8 sequence.
func truncateName(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
