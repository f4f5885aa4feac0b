// Package bridge is the session/routing core of support-bridge.
//
// It maps customer contact identities on the messaging channel to open
// support conversations, drives the ticket intake flow for first-contact
// messages, relays text and media between the channel and the group-chat
// topic bound to each conversation, and expires idle sessions.
//
// The bridge holds no state of its own beyond the dedupe cache: all session
// state lives in the store, and all network effects go through the three
// collaborator interfaces in clients.go. At most one conversation is open
// per contact and per ticket at any time.
//
// Collaborator failures are transient: they are logged and the event is
// still acknowledged, because the upstream webhook sources redeliver on
// error responses. Unroutable events (no conversation for a topic, malformed
// payloads) are silent no-ops.
package bridge
