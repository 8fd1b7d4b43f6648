// Package htmlx pulls a handful of known markers out of raw HTML text. It is
// not an HTML parser: it scans for literal tag and attribute strings and
// reports a failure as soon as an anchor is missing.
package htmlx

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTagNotFound       = errors.New("htmlx: open tag not found")
	ErrUnclosedTag       = errors.New("htmlx: matching close tag not found")
	ErrNoValue           = errors.New("htmlx: no text value in block")
	ErrAttributeNotFound = errors.New("htmlx: attribute not found")
)

// indexFrom is strings.Index starting at from; -1 when absent.
func indexFrom(s, sub string, from int) int {
	if from < 0 {
		from = 0
	}
	if from > len(s) {
		return -1
	}
	i := strings.Index(s[from:], sub)
	if i < 0 {
		return -1
	}
	return from + i
}

// ExtractTag returns the next <tag ...>...</tag> block at or after cursor and
// the position just past it. Open tags of the same name that start before the
// candidate close tag push the match one close tag further, so nested blocks
// are returned whole.
func ExtractTag(tag, buf string, cursor int) (block string, next int, err error) {
	openTag := "<" + tag
	closeTag := "</" + tag

	start := indexFrom(buf, openTag, cursor)
	if start < 0 {
		return "", cursor, fmt.Errorf("%w: %s", ErrTagNotFound, openTag)
	}

	end, nested := start, start
	for {
		end = indexFrom(buf, closeTag, end+1)
		if end < 0 {
			return "", cursor, fmt.Errorf("%w: %s", ErrUnclosedTag, closeTag)
		}
		nested = indexFrom(buf, openTag, nested+1)
		if nested < 0 || nested > end {
			break
		}
	}

	// Include the '>' of the close tag.
	next = end + len(closeTag) + 1
	if next > len(buf) {
		next = len(buf)
	}
	return buf[start:next], next, nil
}

// ExtractValue returns the text between the first '>' and the following '<'.
func ExtractValue(block string) (string, error) {
	start := strings.IndexByte(block, '>')
	if start < 0 {
		return "", ErrNoValue
	}
	end := indexFrom(block, "<", start)
	if end < 0 {
		return "", ErrNoValue
	}
	return block[start+1 : end], nil
}

// ExtractAttributeValue finds attr, then the following value="..." and
// returns the quoted content.
func ExtractAttributeValue(attr, buf string) (string, error) {
	pos := strings.Index(buf, attr)
	if pos < 0 {
		return "", fmt.Errorf("%w: %s", ErrAttributeNotFound, attr)
	}
	pos = indexFrom(buf, "value", pos)
	if pos < 0 {
		return "", fmt.Errorf("%w: value after %s", ErrAttributeNotFound, attr)
	}
	return quotedFrom(buf, pos, attr)
}

// ExtractAttribute returns the first quoted string after attr.
func ExtractAttribute(attr, buf string) (string, error) {
	pos := strings.Index(buf, attr)
	if pos < 0 {
		return "", fmt.Errorf("%w: %s", ErrAttributeNotFound, attr)
	}
	return quotedFrom(buf, pos, attr)
}

func quotedFrom(buf string, pos int, attr string) (string, error) {
	open := indexFrom(buf, `"`, pos)
	if open < 0 {
		return "", fmt.Errorf("%w: quote after %s", ErrAttributeNotFound, attr)
	}
	closing := indexFrom(buf, `"`, open+1)
	if closing < 0 {
		return "", fmt.Errorf("%w: closing quote after %s", ErrAttributeNotFound, attr)
	}
	return buf[open+1 : closing], nil
}

// PercentEncode replaces '+', '@', '/' and '=' with their %XX forms and leaves
// every other byte alone.
func PercentEncode(s string) string {
	if !strings.ContainsAny(s, "+@/=") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '+', '@', '/', '=':
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
