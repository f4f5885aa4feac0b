// ABOUTME: Structured topic keys binding a group-chat topic to a channel contact
// ABOUTME: Encodes "contact | label" with a single documented separator rule

package topic

import "strings"

// Separator divides the contact identity from the human-readable label.
// Decoding always splits on the first occurrence, so the contact portion can
// never contain it; encoding sanitizes it out of the label.
const Separator = " | "

// Make builds the topic key for a contact and subject. Any separator
// characters inside the subject are rewritten so the key stays decodable.
func Make(contact, subject string) string {
	label := strings.ReplaceAll(subject, "|", "/")
	label = strings.TrimSpace(label)
	if label == "" {
		label = "support"
	}
	return contact + Separator + label
}

// Contact extracts the contact identity from a topic key: everything before
// the first separator, trimmed. Topics without a separator are returned
// whole, matching how a bare contact would have been encoded.
func Contact(topic string) string {
	head, _, _ := strings.Cut(topic, "|")
	return strings.TrimSpace(head)
}
