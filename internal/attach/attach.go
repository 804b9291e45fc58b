// Package attach turns a local file into a pending chat attachment: images
// become inline data, everything else becomes document text.
package attach

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"astra/internal/logging"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// Kind distinguishes image attachments from document attachments.
type Kind int

const (
	KindImage Kind = iota
	KindDocument
)

func (k Kind) String() string {
	if k == KindImage {
		return "image"
	}
	return "document"
}

// MaxSize bounds the files accepted for attachment.
const MaxSize = 20 << 20

// ErrBinary is returned for files that are neither images, PDFs nor text.
var ErrBinary = errors.New("file is not an image, PDF or text document")

// Attachment is a file waiting to be sent with the next message.
type Attachment struct {
	Kind     Kind
	Name     string
	MimeType string
	// Data is raw image bytes for KindImage.
	Data []byte
	// Text is the extracted document text for KindDocument.
	Text string
}

// DataURL returns the image as a base64 data URL.
func (a *Attachment) DataURL() string {
	return "data:" + a.MimeType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// Load reads path and classifies it by mime type.
func Load(path string) (*Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxSize {
		return nil, fmt.Errorf("%s is too large (%d bytes, limit %d)", filepath.Base(path), info.Size(), MaxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	name := filepath.Base(path)
	mt := detectMime(name, data)
	logging.Attach("loading %s as %s (%d bytes)", name, mt, len(data))

	switch {
	case strings.HasPrefix(mt, "image/"):
		return &Attachment{Kind: KindImage, Name: name, MimeType: mt, Data: data}, nil
	case mt == "application/pdf":
		text, err := PDFText(data)
		if err != nil {
			logging.AttachWarn("pdf extraction failed for %s: %v", name, err)
			return nil, fmt.Errorf("could not extract text from PDF: %w", err)
		}
		return &Attachment{Kind: KindDocument, Name: name, MimeType: mt, Text: text}, nil
	case mt == "text/html":
		text, err := HTMLText(data)
		if err != nil {
			return nil, fmt.Errorf("could not extract text from HTML: %w", err)
		}
		return &Attachment{Kind: KindDocument, Name: name, MimeType: mt, Text: text}, nil
	default:
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%s: %w", name, ErrBinary)
		}
		return &Attachment{Kind: KindDocument, Name: name, MimeType: mt, Text: string(data)}, nil
	}
}

func detectMime(name string, data []byte) string {
	if mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); mt != "" {
		if base, _, err := mime.ParseMediaType(mt); err == nil {
			return base
		}
	}
	base, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return base
}

// PDFText extracts the plain text of every page, one line per page.
func PDFText(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(strings.Join(strings.Fields(pageText), " "))
		b.WriteString("\n")
	}
	return b.String(), nil
}

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]+`)
)

// HTMLText returns the visible text of an HTML document.
func HTMLText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	visibleText(doc, &sb, 0)

	s := multiSpacePattern.ReplaceAllString(sb.String(), " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = multiNewlinePattern.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(s), nil
}

func visibleText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 100 {
		return
	}
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			sb.WriteString(t)
			sb.WriteString(" ")
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template", "svg", "head":
			return
		case "p", "div", "section", "article", "h1", "h2", "h3", "h4", "h5", "h6", "li", "tr", "pre":
			sb.WriteString("\n")
		case "br":
			sb.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		visibleText(c, sb, depth+1)
	}
}
