// Package content splits model output into a thinking block and
// alternating plain-text / fenced-code segments for independent rendering.
package content

import (
	"regexp"
	"strings"
)

const (
	thinkOpen  = "<thinking>"
	thinkClose = "</thinking>"
	fence      = "```"
)

// SegmentKind distinguishes plain text from fenced code.
type SegmentKind int

const (
	KindText SegmentKind = iota
	KindCode
)

// Segment is one renderable piece of message content.
type Segment struct {
	Kind SegmentKind
	Text string // plain text, or the code body for KindCode
	Lang string // language tag for KindCode, "text" when absent
}

// Parsed is the result of splitting a message.
type Parsed struct {
	Thought    string
	HasThought bool
	Content    string
	Segments   []Segment
}

var (
	codeBlockRe = regexp.MustCompile("(?s)```.*?```")
	codeHeadRe  = regexp.MustCompile("(?s)^```(\\w*)\\n(.*?)```")
)

// Parse extracts the thinking segment and splits the remainder.
func Parse(text string) Parsed {
	thought, rest, ok := ParseThought(text)
	return Parsed{
		Thought:    thought,
		HasThought: ok,
		Content:    rest,
		Segments:   Split(rest),
	}
}

// ParseThought extracts at most one <thinking> segment. An unterminated
// start marker (mid-stream) makes everything after it the thought.
func ParseThought(text string) (thought, rest string, ok bool) {
	start := strings.Index(text, thinkOpen)
	if start < 0 {
		return "", text, false
	}
	body := text[start+len(thinkOpen):]
	end := strings.Index(body, thinkClose)
	if end < 0 {
		return strings.TrimSpace(body), strings.TrimSpace(text[:start]), true
	}
	thought = strings.TrimSpace(body[:end])
	rest = text[:start] + body[end+len(thinkClose):]

	// A second, unterminated block is still being streamed; hide it.
	if i := strings.Index(rest, thinkOpen); i >= 0 && !strings.Contains(rest[i:], thinkClose) {
		rest = rest[:i]
	}
	return thought, strings.TrimSpace(rest), true
}

// Split breaks content on fenced code boundaries. Empty text runs are
// dropped; an unterminated fence stays plain text.
func Split(content string) []Segment {
	var segs []Segment
	last := 0
	for _, loc := range codeBlockRe.FindAllStringIndex(content, -1) {
		if loc[0] > last {
			segs = append(segs, Segment{Kind: KindText, Text: content[last:loc[0]]})
		}
		segs = append(segs, codeSegment(content[loc[0]:loc[1]]))
		last = loc[1]
	}
	if last < len(content) {
		segs = append(segs, Segment{Kind: KindText, Text: content[last:]})
	}
	return segs
}

func codeSegment(block string) Segment {
	if m := codeHeadRe.FindStringSubmatch(block); m != nil {
		lang := m[1]
		if lang == "" {
			lang = "text"
		}
		return Segment{Kind: KindCode, Lang: lang, Text: m[2]}
	}
	return Segment{Kind: KindCode, Lang: "text", Text: block[len(fence) : len(block)-len(fence)]}
}
