// Package blob recovers readable text from the archived attributedBody
// column that Messages writes when the plain text column is empty.
//
// The archive format is undocumented. Extraction is a fixed sequence of
// string rewrites tuned against observed samples, so it is lossy: some
// blobs come back empty and some keep a little trailer noise.
package blob

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// BinaryData is returned when extraction fails unexpectedly.
const BinaryData = "[Binary Data]"

// Step is one named rewrite in the extraction pipeline.
type Step struct {
	Name  string
	Apply func(string) string
}

// Steps run in order; later steps assume the normalization done by earlier
// ones, so reordering changes results.
var Steps = []Step{
	{"blankControls", blankControls},
	{"dropKeywords", dropKeywords},
	{"truncateAtEndMarker", truncateAtEndMarker},
	{"stripArtifacts", stripArtifacts},
	{"collapseSpace", collapseSpace},
	{"trimLeadingJunk", trimLeadingJunk},
	{"trimSpace", strings.TrimSpace},
	{"rejectNoise", rejectNoise},
}

// Text extracts message text from an attributedBody blob. It returns ""
// for a nil blob or one with nothing readable, and BinaryData if any step
// panics.
func Text(b []byte) (out string) {
	if b == nil {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			out = BinaryData
		}
	}()

	s, err := decode(b)
	if err != nil {
		return BinaryData
	}
	return Clean(s)
}

// Clean runs Steps over already-decoded text.
func Clean(s string) string {
	for _, st := range Steps {
		s = st.Apply(s)
	}
	return s
}

// decode coerces raw bytes to UTF-8. Invalid sequences become U+FFFD, which
// blankControls then turns into spaces.
func decode(b []byte) (string, error) {
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode blob: %w", err)
	}
	return string(out), nil
}

var controlRe = regexp.MustCompile(`[\x00-\x09\x0B-\x1F\x7F-\x9F\x{FFFC}\x{FFFD}]`)

// blankControls replaces control bytes with a space rather than deleting
// them, so words on either side stay apart.
func blankControls(s string) string {
	return controlRe.ReplaceAllString(s, " ")
}

// archiveKeywords are class names and stream markers written by the
// archiver. Longer names come before names they contain.
var archiveKeywords = []string{
	"NSMutableAttributedString", "NSAttributedString",
	"NSDictionary", "NSMutableDictionary", "NSArray", "NSMutableArray",
	"NSString", "NSMutableString", "NSData", "NSValue",
	"NSColor", "NSParagraphStyle", "NSFont", "NSNumber", "NSObject",
	"streamtyped", "v1", "unarchiver", "__kIMMessagePartAttributeName", "presenting",
	"objects", "classes",
}

var keywordRes = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(archiveKeywords))
	for i, kw := range archiveKeywords {
		res[i] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(kw))
	}
	return res
}()

func dropKeywords(s string) string {
	for _, re := range keywordRes {
		s = re.ReplaceAllString(s, " ")
	}
	return s
}

// space is the whitespace class the rewrites treat as blank: ASCII space
// plus the Unicode separators and U+FEFF, which Messages leaves in bodies.
const space = `[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]`

// endMarkerRe matches the start of the archive trailer: "iI" or "i"
// followed by a digit run or one of i / | *.
var endMarkerRe = regexp.MustCompile(space + `(iI|i)` + space + `+([i/|*]|\d+)`)

func truncateAtEndMarker(s string) string {
	if loc := endMarkerRe.FindStringIndex(s); loc != nil && loc[0] > 0 {
		return s[:loc[0]]
	}
	return s
}

var (
	lonePlusRe     = regexp.MustCompile(space + `\+` + space)
	loneAtRe       = regexp.MustCompile(space + `@` + space)
	trailingIStar  = regexp.MustCompile(space + `+i` + space + `+\*` + space + `*$`)
	trailingStarRe = regexp.MustCompile(space + `+\*` + space + `*$`)
)

func stripArtifacts(s string) string {
	s = lonePlusRe.ReplaceAllString(s, " ")
	s = loneAtRe.ReplaceAllString(s, " ")
	s = trailingIStar.ReplaceAllString(s, "")
	return trailingStarRe.ReplaceAllString(s, "")
}

var spaceRunRe = regexp.MustCompile(space + `+`)

func collapseSpace(s string) string {
	return spaceRunRe.ReplaceAllString(s, " ")
}

var (
	leadingJunkRe = regexp.MustCompile(`^[\s\W_]+`)
	notOpenerRe   = regexp.MustCompile(`[^\w\s\p{Zs}"'(]`)
	replyOnlyRe   = regexp.MustCompile(`^[?!.)(]+$`)
	alnumRe       = regexp.MustCompile(`(?i)[a-z0-9]`)
)

// trimLeadingJunk drops leading punctuation except quotes and "(". A text
// made only of reply punctuation such as "?" is left alone.
func trimLeadingJunk(s string) string {
	if replyOnlyRe.MatchString(strings.TrimSpace(s)) {
		return s
	}
	return leadingJunkRe.ReplaceAllStringFunc(s, func(m string) string {
		return notOpenerRe.ReplaceAllString(m, "")
	})
}

// rejectNoise returns "" for text with no letters or digits, unless the
// text is a punctuation-only reply.
func rejectNoise(s string) string {
	if alnumRe.MatchString(s) {
		return s
	}
	if replyOnlyRe.MatchString(s) {
		return s
	}
	return ""
}
