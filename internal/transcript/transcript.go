// ABOUTME: Transcript line vocabulary shared by the router and the renderer
// ABOUTME: Lines are stored as tagged strings and parsed back for rendering

package transcript

import (
	"fmt"
	"regexp"
	"strings"
)

// Direction tags who a transcript line travelled between.
type Direction int

const (
	// DirectionNote is a system note, neither side authored it.
	DirectionNote Direction = iota

	// DirectionCustomerToEngineer is an inbound customer message.
	DirectionCustomerToEngineer

	// DirectionEngineerToCustomer is an outbound engineer message.
	DirectionEngineerToCustomer
)

// Label returns the human-readable direction label used in rendered output.
func (d Direction) Label() string {
	switch d {
	case DirectionCustomerToEngineer:
		return "Customer → Engineer"
	case DirectionEngineerToCustomer:
		return "Engineer → Customer"
	default:
		return "Note"
	}
}

// Line is a parsed transcript entry.
type Line struct {
	Direction Direction
	Body      string
	MediaLink string
}

// Line constructors produce the stored wire form. The prefixes are part of
// the persisted snapshot format, so they never change shape.

// CustomerText records an inbound customer text message.
func CustomerText(text string) string {
	return "Customer to ENG: " + text
}

// EngineerText records an outbound engineer text message.
func EngineerText(text string) string {
	return "ENG to Customer: " + text
}

// CustomerMedia records inbound customer media. Kind is "image" or "file";
// the link points at the group-chat upload of the relayed media.
func CustomerMedia(kind, caption, link string) string {
	if link == "" {
		return fmt.Sprintf("Customer sent %s: %s", kind, caption)
	}
	return fmt.Sprintf("Customer sent %s: %s <%s>", kind, caption, link)
}

// EngineerFile records an outbound engineer file, noting the media type it
// was delivered as.
func EngineerFile(name, mediaType string) string {
	return fmt.Sprintf("ENG sent file: %s (as %s)", name, mediaType)
}

// Note records a system note.
func Note(text string) string {
	return text
}

var (
	customerTextRE  = regexp.MustCompile(`(?i)^Customer to ENG:\s*(.*)$`)
	engineerTextRE  = regexp.MustCompile(`(?i)^ENG to Customer:\s*(.*)$`)
	customerMediaRE = regexp.MustCompile(`(?i)^Customer sent (?:image|file):\s*(.*?)(?:\s*<(.+?)>)?\s*$`)
	engineerFileRE  = regexp.MustCompile(`(?i)^ENG sent file:\s*(.*?)(?:\s*\(as [^)]+\))?(?:\s*<(.+?)>)?\s*$`)
)

// ParseLine decodes a stored line back into its direction, body, and optional
// media link. Unrecognized lines come back as notes with the raw content.
func ParseLine(raw string) Line {
	raw = strings.TrimRight(raw, "\n")

	if m := customerTextRE.FindStringSubmatch(raw); m != nil {
		return Line{Direction: DirectionCustomerToEngineer, Body: m[1]}
	}
	if m := engineerTextRE.FindStringSubmatch(raw); m != nil {
		return Line{Direction: DirectionEngineerToCustomer, Body: m[1]}
	}
	if m := customerMediaRE.FindStringSubmatch(raw); m != nil {
		return Line{Direction: DirectionCustomerToEngineer, Body: m[1], MediaLink: m[2]}
	}
	if m := engineerFileRE.FindStringSubmatch(raw); m != nil {
		return Line{Direction: DirectionEngineerToCustomer, Body: m[1], MediaLink: m[2]}
	}
	return Line{Direction: DirectionNote, Body: raw}
}
