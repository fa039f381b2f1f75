package records

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

const frontMatterDelimiter = "---"

// Record is one bibliographic entry.
type Record struct {
	Title     string    `yaml:"title"`
	Authors   []string  `yaml:"authors,omitempty"`
	Year      int       `yaml:"year,omitempty"`
	Publisher string    `yaml:"publisher,omitempty"`
	ISBN      string    `yaml:"isbn,omitempty"`
	Tags      []string  `yaml:"tags,omitempty"`
	Created   time.Time `yaml:"created,omitempty"`
	// Body is the markdown after the front matter. Render generates it when empty.
	Body string `yaml:"-"`
}

// Summary returns a one-line description such as "Dune by Frank Herbert (1965)".
func (r Record) Summary() string {
	var builder strings.Builder
	builder.WriteString(r.Title)
	if len(r.Authors) > 0 {
		builder.WriteString(" by ")
		builder.WriteString(strings.Join(r.Authors, ", "))
	}
	if r.Year != 0 {
		fmt.Fprintf(&builder, " (%d)", r.Year)
	}
	return builder.String()
}

// Render encodes the record as a markdown note with YAML front matter.
func Render(record Record) ([]byte, error) {
	frontMatter, err := yaml.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}

	body := strings.TrimSpace(record.Body)
	if body == "" {
		body = renderBody(record)
	}

	var out bytes.Buffer
	out.WriteString(frontMatterDelimiter + "\n")
	out.Write(frontMatter)
	out.WriteString(frontMatterDelimiter + "\n\n")
	out.WriteString(body)
	out.WriteString("\n")
	return out.Bytes(), nil
}

func renderBody(record Record) string {
	lines := []string{"# " + record.Title, ""}
	if len(record.Authors) > 0 {
		lines = append(lines, "- **Authors:** "+strings.Join(record.Authors, ", "))
	}
	if record.Year != 0 {
		lines = append(lines, "- **Year:** "+strconv.Itoa(record.Year))
	}
	if record.Publisher != "" {
		lines = append(lines, "- **Publisher:** "+record.Publisher)
	}
	if record.ISBN != "" {
		lines = append(lines, "- **ISBN:** "+record.ISBN)
	}
	if len(record.Tags) > 0 {
		tags := make([]string, 0, len(record.Tags))
		for _, tag := range record.Tags {
			tags = append(tags, "#"+tag)
		}
		lines = append(lines, "- **Tags:** "+strings.Join(tags, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Parse decodes a note. A note without front matter, or with front matter that
// lacks a title, takes its title from the first markdown heading.
func Parse(data []byte) (Record, error) {
	frontMatter, body, err := splitFrontMatter(string(data))
	if err != nil {
		return Record{}, err
	}

	var record Record
	if frontMatter != "" {
		if err := yaml.Unmarshal([]byte(frontMatter), &record); err != nil {
			return Record{}, fmt.Errorf("decode front matter: %w", err)
		}
	}
	record.Body = strings.TrimSpace(body)
	if strings.TrimSpace(record.Title) == "" {
		record.Title = firstHeading([]byte(record.Body))
	}
	if strings.TrimSpace(record.Title) == "" {
		return Record{}, errors.New("note has no title")
	}
	return record, nil
}

func splitFrontMatter(content string) (string, string, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(content, frontMatterDelimiter+"\n") {
		return "", content, nil
	}
	rest := content[len(frontMatterDelimiter)+1:]
	if strings.HasPrefix(rest, frontMatterDelimiter+"\n") || rest == frontMatterDelimiter {
		return "", strings.TrimPrefix(rest, frontMatterDelimiter), nil
	}
	end := strings.Index(rest, "\n"+frontMatterDelimiter)
	if end < 0 {
		return "", "", errors.New("front matter is not terminated")
	}
	frontMatter := rest[:end+1]
	body := rest[end+1+len(frontMatterDelimiter):]
	if newline := strings.IndexByte(body, '\n'); newline >= 0 {
		body = body[newline+1:]
	} else {
		body = ""
	}
	return frontMatter, body, nil
}

func firstHeading(source []byte) string {
	parser := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := parser.Parser().Parse(text.NewReader(source))

	title := ""
	_ = gast.Walk(doc, func(node gast.Node, entering bool) (gast.WalkStatus, error) {
		if !entering || title != "" {
			return gast.WalkContinue, nil
		}
		heading, ok := node.(*gast.Heading)
		if !ok {
			return gast.WalkContinue, nil
		}
		title = plainText(source, heading)
		return gast.WalkStop, nil
	})
	return title
}

func plainText(source []byte, node gast.Node) string {
	var builder strings.Builder
	_ = gast.Walk(node, func(inner gast.Node, entering bool) (gast.WalkStatus, error) {
		if !entering {
			return gast.WalkContinue, nil
		}

		switch value := inner.(type) {
		case *gast.Text:
			builder.Write(value.Segment.Value(source))
			if value.HardLineBreak() || value.SoftLineBreak() {
				builder.WriteByte(' ')
			}
		case *gast.String:
			builder.Write(value.Value)
		}

		return gast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(builder.String()), " ")
}
