package mailbox

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// ParseMessage decodes one raw RFC 822 message into the fields reply
// ingestion needs. The body is reduced to cleaned plain text.
func ParseMessage(uid uint32, raw []byte) (*Message, error) {
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}

	msg := &Message{
		UID:        uid,
		MessageID:  strings.TrimSpace(m.Header.Get("Message-ID")),
		InReplyTo:  splitMessageIDs(m.Header.Get("In-Reply-To")),
		References: splitMessageIDs(m.Header.Get("References")),
		Subject:    decodeHeader(m.Header.Get("Subject")),
	}

	if addr, err := mail.ParseAddress(m.Header.Get("From")); err == nil {
		msg.From = strings.ToLower(addr.Address)
	}
	if date, err := m.Header.Date(); err == nil {
		msg.Date = date
	} else {
		msg.Date = time.Now().UTC()
	}

	text, err := extractText(m.Header.Get("Content-Type"),
		m.Header.Get("Content-Transfer-Encoding"), m.Body)
	if err != nil {
		return nil, fmt.Errorf("extract body: %w", err)
	}
	msg.Body = CleanReplyBody(text)
	return msg, nil
}

// splitMessageIDs parses an In-Reply-To or References header into its
// angle-bracketed identifiers.
func splitMessageIDs(header string) []string {
	var out []string
	for _, f := range strings.Fields(header) {
		f = strings.TrimSpace(f)
		if strings.HasPrefix(f, "<") && strings.HasSuffix(f, ">") {
			out = append(out, f)
		}
	}
	return out
}

func decodeHeader(s string) string {
	dec := new(mime.WordDecoder)
	out, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return out
}

// extractText walks the MIME structure and returns the first text/plain
// part, falling back to text/html with tags stripped, then to the raw body.
func extractText(contentType, transferEncoding string, body io.Reader) (string, error) {
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return "", fmt.Errorf("multipart without boundary")
		}
		return extractMultipartText(body, boundary)
	}

	decoded, err := io.ReadAll(decodeTransfer(body, transferEncoding))
	if err != nil {
		return "", err
	}
	if mediaType == "text/html" {
		return stripHTML(string(decoded)), nil
	}
	return string(decoded), nil
}

func extractMultipartText(body io.Reader, boundary string) (string, error) {
	mr := multipart.NewReader(body, boundary)
	var htmlFallback string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		ct := part.Header.Get("Content-Type")
		mediaType, params, _ := mime.ParseMediaType(ct)
		enc := part.Header.Get("Content-Transfer-Encoding")

		switch {
		case strings.HasPrefix(mediaType, "multipart/"):
			if nested, err := extractMultipartText(part, params["boundary"]); err == nil && nested != "" {
				return nested, nil
			}
		case mediaType == "text/plain" || mediaType == "":
			decoded, err := io.ReadAll(decodeTransfer(part, enc))
			if err == nil {
				return string(decoded), nil
			}
		case mediaType == "text/html" && htmlFallback == "":
			if decoded, err := io.ReadAll(decodeTransfer(part, enc)); err == nil {
				htmlFallback = stripHTML(string(decoded))
			}
		}
	}
	return htmlFallback, nil
}

func decodeTransfer(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	default:
		return r
	}
}

var (
	htmlTagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	htmlBreakRe  = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>`)
	multiBlankRe = regexp.MustCompile(`\n{3,}`)
)

func stripHTML(s string) string {
	s = htmlBreakRe.ReplaceAllString(s, "\n")
	s = htmlTagRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	return strings.TrimSpace(multiBlankRe.ReplaceAllString(s, "\n\n"))
}

var (
	// "On Mon, Jan 2, 2026 at 3:04 PM Someone <x@y.com> wrote:"
	attributionRe = regexp.MustCompile(`(?mi)^On .{5,120} wrote:\s*$`)
	// Outlook style reply separator
	originalMsgRe = regexp.MustCompile(`(?mi)^-{2,}\s*(Original Message|Forwarded message)\s*-{2,}`)
	fromHeaderRe  = regexp.MustCompile(`(?mi)^From:\s.+@.+$`)
	sigRe         = regexp.MustCompile(`(?m)^--\s*$`)
)

// CleanReplyBody strips quoted history and signatures, keeping only the
// text the sender actually typed. Heuristic: cut at the first reply
// attribution line, quoted block, or signature delimiter.
func CleanReplyBody(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	cut := len(text)
	for _, re := range []*regexp.Regexp{attributionRe, originalMsgRe, fromHeaderRe, sigRe} {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	text = text[:cut]

	// Drop any remaining "> quoted" lines
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
