// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backups_test

import (
	"strings"
	"unicode/utf8"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/helpcenter-backup/backups"
)

type namesSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&namesSuite{})

var sanitizeTests = []struct {
	about     string
	name      string
	asciiOnly bool
	expect    string
}{{
	about:  "separators and NUL are removed",
	name:   "Foo/Bar\x00Baz",
	expect: "FooBarBaz",
}, {
	about:  "plain names are unchanged",
	name:   "Getting started",
	expect: "Getting started",
}, {
	about:  "decomposed text is composed",
	name:   "Cafe\u0301",
	expect: "Caf\u00e9",
}, {
	about:  "other reserved characters are kept",
	name:   `a:b\c`,
	expect: `a:b\c`,
}, {
	about:     "ascii mode strips accents",
	name:      "Café crème",
	asciiOnly: true,
	expect:    "Cafe creme",
}, {
	about:     "ascii mode drops what it cannot transliterate",
	name:      "FAQ 日本",
	asciiOnly: true,
	expect:    "FAQ ",
}, {
	about:     "ascii mode also removes separators",
	name:      "In/Outü",
	asciiOnly: true,
	expect:    "InOutu",
}, {
	about:  "a separator between a letter and a combining mark",
	name:   "e/\u0301",
	expect: "\u00e9",
}, {
	about:  "empty",
	name:   "",
	expect: "",
}}

func (s *namesSuite) TestSanitizeName(c *gc.C) {
	for i, test := range sanitizeTests {
		c.Logf("test %d: %s", i, test.about)
		c.Check(backups.SanitizeName(test.name, test.asciiOnly), gc.Equals, test.expect)
	}
}

func (s *namesSuite) TestSanitizeNameIdempotent(c *gc.C) {
	for i, test := range sanitizeTests {
		c.Logf("test %d: %s", i, test.about)
		once := backups.SanitizeName(test.name, test.asciiOnly)
		c.Check(backups.SanitizeName(once, test.asciiOnly), gc.Equals, once)
	}
}

func (s *namesSuite) TestSegmentName(c *gc.C) {
	c.Check(backups.SegmentName(42, "Getting/started", false), gc.Equals, "42 Gettingstarted")

	long := backups.SegmentName(42, strings.Repeat("a", 300), false)
	c.Check(long, gc.HasLen, 250)
	c.Check(long, gc.Equals, "42 "+strings.Repeat("a", 247))

	// A cut that would land inside a multi-byte rune moves back to the
	// start of that rune.
	wide := backups.SegmentName(7, strings.Repeat("\u20ac", 100), false)
	c.Check(utf8.ValidString(wide), jc.IsTrue)
	c.Check(len(wide) <= 250, jc.IsTrue)
	c.Check(len(wide) > 250-utf8.UTFMax, jc.IsTrue)
	c.Check(wide, gc.Equals, "7 "+strings.Repeat("\u20ac", 82))
}
