// ABOUTME: Renders a ticket's transcript lines into a single HTML document
// ABOUTME: Card layout with direction pill, ordinal, linkified markdown body

package transcript

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// markdown converts message bodies. Engineer messages arrive as group-chat
// markdown; Linkify also turns bare URLs in customer text into anchors.
var markdown = goldmark.New(goldmark.WithExtensions(extension.Linkify))

// pill colors per direction, inline so the document survives style stripping.
type pillStyle struct {
	bg, fg string
}

func pillFor(d Direction) pillStyle {
	switch d {
	case DirectionCustomerToEngineer:
		return pillStyle{bg: "#dbeafe", fg: "#1e3a8a"}
	case DirectionEngineerToCustomer:
		return pillStyle{bg: "#dcfce7", fg: "#14532d"}
	default:
		return pillStyle{bg: "#e5e7eb", fg: "#111827"}
	}
}

// RenderHTML formats the ordered transcript lines for ticket ticketID as one
// self-contained HTML document, ready to submit as a ticket comment.
// Relative media links (group-chat uploads) are resolved against baseURL.
func RenderHTML(ticketID int, lines []string, baseURL string) string {
	var cards strings.Builder
	for i, raw := range lines {
		line := ParseLine(raw)
		cards.WriteString(renderCard(i+1, line, baseURL))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Transcript #%d</title>
</head>
<body style="background:#f9fafb;margin:0;padding:0;font-family:ui-sans-serif,system-ui,sans-serif;">
  <div style="max-width:820px;margin:24px auto;padding:0 16px;">
    <div style="margin-bottom:14px;">
      <h2 style="margin:0 0 6px 0;font-size:20px;color:#111827;">Support Chat Transcript</h2>
      <div style="font-size:13px;color:#6b7280;">Ticket #%d</div>
    </div>
%s  </div>
</body>
</html>`, ticketID, ticketID, cards.String())
}

// renderCard renders a single transcript entry.
func renderCard(ordinal int, line Line, baseURL string) string {
	pill := pillFor(line.Direction)
	body := renderBody(line.Body)

	if line.MediaLink != "" {
		link := resolveLink(line.MediaLink, baseURL)
		body += fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener">Link to Media</a>`,
			html.EscapeString(link))
	}

	return fmt.Sprintf(`    <div style="border:1px solid #e5e7eb;border-radius:12px;padding:12px 14px;margin:10px 0;background:#ffffff;">
      <div style="display:flex;align-items:center;justify-content:space-between;margin-bottom:6px;">
        <span style="display:inline-block;padding:3px 10px;border-radius:999px;background:%s;color:%s;font-size:12px;font-weight:600;">%s</span>
        <span style="font-size:12px;color:#6b7280;">#%d</span>
      </div>
      <div style="font-size:14px;color:#111827;line-height:1.5;">%s</div>
    </div>
`, pill.bg, pill.fg, html.EscapeString(line.Direction.Label()), ordinal, body)
}

// renderBody converts a message body to HTML via goldmark. Goldmark escapes
// raw HTML in the source, so customer text cannot inject markup. Falls back
// to plain escaping if conversion fails.
func renderBody(body string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return html.EscapeString(body)
	}
	return buf.String()
}

// resolveLink joins group-chat relative upload paths onto the base URL.
func resolveLink(link, baseURL string) string {
	if strings.HasPrefix(link, "/") && baseURL != "" {
		return strings.TrimRight(baseURL, "/") + link
	}
	return link
}
