// Package services contains domain business logic.
package services

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reImage      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	reInlineCode = regexp.MustCompile("`([^`]*)`")
	reBoldMark   = regexp.MustCompile(`\*\*|__|~~`)
	reEmphasis   = regexp.MustCompile(`(^|[\s(])[*_]([^*_]+)[*_]([\s).,;:!?]|$)`)
	reListMarker = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+`)
	reTableSep   = regexp.MustCompile(`^\s*\|?[\s\-:|]+\|?\s*$`)
	reHardRule   = regexp.MustCompile(`^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`)
	reSpaces     = regexp.MustCompile(`[ \t]+`)
)

// abbreviations that end with a period but do not terminate a sentence.
var abbreviations = map[string]bool{
	"dr": true, "mr": true, "mrs": true, "ms": true, "prof": true,
	"sr": true, "jr": true, "st": true, "vs": true, "etc": true,
	"e.g": true, "i.e": true, "inc": true, "ltd": true, "co": true,
	"no": true, "fig": true, "approx": true, "dept": true, "est": true,
	"a.m": true, "p.m": true,
}

// StripMarkdown removes markdown syntax from a journal entry body so the
// remaining text reads as plain prose. Fenced code blocks are dropped
// entirely; link text is kept, link targets and images are not. Paragraph
// boundaries are preserved as newlines.
func StripMarkdown(body string) string {
	var out []string
	var para []string
	inFence := false

	flush := func() {
		if len(para) > 0 {
			out = append(out, strings.Join(para, " "))
			para = nil
		}
	}

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			flush()
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if trimmed == "" {
			flush()
			continue
		}
		if reHardRule.MatchString(trimmed) || reTableSep.MatchString(trimmed) {
			flush()
			continue
		}

		isItem := reListMarker.MatchString(trimmed)
		line = stripLinePrefix(trimmed)
		line = stripInline(line)
		line = strings.TrimSpace(reSpaces.ReplaceAllString(line, " "))
		if line == "" {
			continue
		}
		// List items stay separate so each becomes its own fragment
		// candidate even without terminal punctuation.
		if isItem {
			flush()
			out = append(out, line)
			continue
		}
		para = append(para, line)
	}
	flush()

	return strings.Join(out, "\n")
}

// stripLinePrefix removes block-level markers: blockquotes, headers, list
// markers and table pipes.
func stripLinePrefix(line string) string {
	for strings.HasPrefix(line, ">") {
		line = strings.TrimSpace(strings.TrimPrefix(line, ">"))
	}
	line = strings.TrimLeft(line, "#")
	line = reListMarker.ReplaceAllString(line, "")
	if strings.Contains(line, "|") {
		line = strings.ReplaceAll(line, "|", " ")
	}
	return line
}

// stripInline removes span-level markup, keeping the readable text.
func stripInline(line string) string {
	line = reImage.ReplaceAllString(line, "")
	line = reLink.ReplaceAllString(line, "$1")
	line = reInlineCode.ReplaceAllString(line, "$1")
	line = reBoldMark.ReplaceAllString(line, "")
	// Run twice: adjacent emphasis spans share boundary characters.
	line = reEmphasis.ReplaceAllString(line, "$1$2$3")
	line = reEmphasis.ReplaceAllString(line, "$1$2$3")
	line = strings.ReplaceAll(line, "*", "")
	return line
}

// Fragment splits a completed entry's markdown body into ordered candidate
// fact strings: markdown is stripped, then the text is segmented into
// sentences. Output order follows the original text; blank fragments are
// dropped. An empty body yields an empty slice, not an error.
func Fragment(body string) []string {
	stripped := StripMarkdown(body)
	if strings.TrimSpace(stripped) == "" {
		return nil
	}

	var fragments []string
	for _, para := range strings.Split(stripped, "\n") {
		fragments = append(fragments, splitSentences(para)...)
	}
	return fragments
}

// splitSentences segments a paragraph on '.', '!' and '?' followed by
// whitespace, skipping boundaries inside likely abbreviations. Decimal
// numbers never split because the period is not followed by whitespace.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		// Consume a run of terminal punctuation ("?!", "...").
		end := i
		for end+1 < len(runes) && (runes[end+1] == '.' || runes[end+1] == '!' || runes[end+1] == '?') {
			end++
		}
		// Closing quotes and brackets belong to the sentence.
		for end+1 < len(runes) && isClosing(runes[end+1]) {
			end++
		}

		atEnd := end+1 >= len(runes)
		if !atEnd && !unicode.IsSpace(runes[end+1]) {
			i = end
			continue
		}
		if r == '.' && end == i && isAbbreviation(runes[start:i]) {
			i = end
			continue
		}

		if s := strings.TrimSpace(string(runes[start : end+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = end + 1
		i = end
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}

// isAbbreviation inspects the token preceding a period. Single capital
// letters are treated as initials.
func isAbbreviation(before []rune) bool {
	end := len(before)
	start := end
	for start > 0 && (unicode.IsLetter(before[start-1]) || before[start-1] == '.') {
		start--
	}
	token := strings.TrimPrefix(string(before[start:end]), ".")
	token = strings.TrimSuffix(token, ".")
	if token == "" {
		return false
	}
	if len([]rune(token)) == 1 && unicode.IsUpper([]rune(token)[0]) {
		return true
	}
	return abbreviations[strings.ToLower(token)]
}
