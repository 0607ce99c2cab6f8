package content

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"
)

// frontmatter mirrors the YAML header of a day file.
type frontmatter struct {
	Title       string    `yaml:"title"`
	Project     string    `yaml:"project"`
	Description string    `yaml:"description"`
	Image       string    `yaml:"image"`
	Day         dayNumber `yaml:"day"`
	Color       string    `yaml:"color"`
}

// dayNumber accepts both `day: 12` and `day: "12"`.
type dayNumber int

func (d *dayNumber) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("day must be a scalar, got kind %d", node.Kind)
	}
	v := strings.TrimSpace(node.Value)
	if v == "" {
		*d = 0
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("day %q is not an integer: %w", v, err)
	}
	*d = dayNumber(n)
	return nil
}

var fence = []byte("---")

// splitFrontmatter separates a leading `---` delimited YAML block from the
// body. Files without a frontmatter block return a nil header and the full
// input as body.
func splitFrontmatter(data []byte) (header, body []byte, err error) {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	if !bytes.HasPrefix(data, fence) {
		return nil, data, nil
	}
	firstNL := bytes.IndexByte(data, '\n')
	if firstNL < 0 || len(bytes.TrimSpace(data[:firstNL])) != len(fence) {
		return nil, data, nil
	}

	rest := data[firstNL+1:]
	offset := 0
	for offset <= len(rest) {
		nl := bytes.IndexByte(rest[offset:], '\n')
		var line []byte
		if nl < 0 {
			line = rest[offset:]
		} else {
			line = rest[offset : offset+nl]
		}
		if bytes.Equal(bytes.TrimRight(line, " \t"), fence) {
			header = rest[:offset]
			if nl < 0 {
				return header, nil, nil
			}
			return header, rest[offset+nl+1:], nil
		}
		if nl < 0 {
			break
		}
		offset += nl + 1
	}
	return nil, nil, fmt.Errorf("unterminated frontmatter block")
}

func parseFrontmatter(header []byte) (frontmatter, error) {
	var fm frontmatter
	if len(bytes.TrimSpace(header)) == 0 {
		return fm, nil
	}
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return frontmatter{}, fmt.Errorf("parsing frontmatter: %w", err)
	}
	return fm, nil
}

// imagePattern matches markdown image syntax: ![alt](path "optional title").
var imagePattern = regexp.MustCompile(`!\[[^\]]*\]\(\s*<?([^)\s>]+)>?(?:\s+(?:"[^"]*"|'[^']*'))?\s*\)`)

// imageMarker stands in for a markdown image while the body is tokenized.
const imageMarker = "\x00"

// fencePattern matches the opening or closing line of a fenced code block.
var fencePattern = regexp.MustCompile("^ {0,3}(```|~~~)")

// extractImages returns the image paths referenced in body, in order of
// appearance, and the body with every image reference removed. Both markdown
// images and inline <img> tags count. Fenced code blocks are kept verbatim.
func extractImages(body string) (paths []string, stripped string) {
	var sb, prose strings.Builder
	flush := func() {
		p, s := extractProseImages(prose.String())
		paths = append(paths, p...)
		sb.WriteString(s)
		prose.Reset()
	}

	fence := ""
	for _, line := range strings.SplitAfter(body, "\n") {
		m := fencePattern.FindStringSubmatch(line)
		switch {
		case fence == "" && m != nil:
			flush()
			fence = m[1]
			sb.WriteString(line)
		case fence != "":
			sb.WriteString(line)
			if m != nil && m[1] == fence && strings.Trim(strings.TrimSpace(line), fence[:1]) == "" {
				fence = ""
			}
		default:
			prose.WriteString(line)
		}
	}
	flush()
	return paths, strings.TrimSpace(sb.String())
}

// extractProseImages handles text outside code fences.
func extractProseImages(text string) (paths []string, stripped string) {
	var inline []string
	for _, m := range imagePattern.FindAllStringSubmatch(text, -1) {
		inline = append(inline, m[1])
	}
	marked := imagePattern.ReplaceAllString(text, imageMarker)

	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(marked))
	for {
		tt := z.Next()
		raw := string(z.Raw())
		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			if src, ok := imgSource(z); ok {
				if src != "" {
					paths = append(paths, src)
				}
				continue
			}
		}
		for n := strings.Count(raw, imageMarker); n > 0 && len(inline) > 0; n-- {
			paths = append(paths, inline[0])
			inline = inline[1:]
		}
		sb.WriteString(strings.ReplaceAll(raw, imageMarker, ""))
		if tt == html.ErrorToken {
			break
		}
	}
	return paths, sb.String()
}

// imgSource reports whether the current tag is an <img>, and its src.
func imgSource(z *html.Tokenizer) (string, bool) {
	name, more := z.TagName()
	if string(name) != "img" {
		return "", false
	}
	for more {
		var key, val []byte
		key, val, more = z.TagAttr()
		if string(key) == "src" {
			return strings.TrimSpace(string(val)), true
		}
	}
	return "", true
}

var filenameDigits = regexp.MustCompile(`\d+`)

// dayFromFilename returns the first integer in name, or 0.
func dayFromFilename(name string) int {
	m := filenameDigits.FindString(name)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}
