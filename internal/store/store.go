// ABOUTME: Session store owning conversations, intakes, and pending transcripts
// ABOUTME: Every mutation persists an atomic JSON snapshot to disk

package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"
)

// IntakeStage identifies where a contact is in the ticket intake flow.
type IntakeStage string

const (
	// StageAwaitingSubject means the contact was prompted for a subject line.
	StageAwaitingSubject IntakeStage = "awaiting_subject"

	// StageAwaitingDescription means the subject is recorded and the contact was
	// prompted for a description.
	StageAwaitingDescription IntakeStage = "awaiting_description"
)

// Conversation is the live binding between a channel contact and a ticket/topic.
// TicketID 0 means ticket creation failed at intake time; the conversation runs
// in degraded mode and its transcript cannot be flushed.
type Conversation struct {
	Contact      string    `json:"contact"`
	TicketID     int       `json:"ticket"`
	Topic        string    `json:"topic"`
	LastActivity time.Time `json:"last_activity"`
}

// Intake tracks an in-progress ticket intake for a contact with no open
// conversation. StartedAt is refreshed on every stage advance so stale intakes
// can be swept alongside idle conversations.
type Intake struct {
	Contact   string      `json:"contact"`
	Stage     IntakeStage `json:"stage"`
	Subject   string      `json:"subject,omitempty"`
	StartedAt time.Time   `json:"started_at"`
}

// snapshot is the persisted document layout. Ticket IDs are string keys because
// JSON objects only key on strings.
type snapshot struct {
	Conversations map[string]*Conversation `json:"conversations"`
	Transcripts   map[string][]string      `json:"transcripts"`
	Intakes       map[string]*Intake       `json:"intakes"`
}

// Store holds all session state in memory and mirrors it to a JSON snapshot
// file after every mutation. The mutex covers the full
// read-modify-write-persist sequence so concurrent webhook handlers never
// interleave a partial update; the file on disk is always a consistent whole.
//
// A failed persist is logged and the operation is NOT rolled back: in-memory
// state stays authoritative for the life of the process.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger

	conversations map[string]*Conversation
	transcripts   map[string][]string
	intakes       map[string]*Intake
}

// Open loads the snapshot at path, or starts empty if the file is missing or
// malformed. A corrupt snapshot never prevents startup.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:          path,
		logger:        logger.With("component", "store"),
		conversations: make(map[string]*Conversation),
		transcripts:   make(map[string][]string),
		intakes:       make(map[string]*Intake),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		s.logger.Warn("snapshot unreadable, starting empty", "path", path, "error", err)
		return s, nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("snapshot malformed, starting empty", "path", path, "error", err)
		return s, nil
	}
	if snap.Conversations != nil {
		s.conversations = snap.Conversations
	}
	if snap.Transcripts != nil {
		s.transcripts = snap.Transcripts
	}
	if snap.Intakes != nil {
		s.intakes = snap.Intakes
	}
	return s, nil
}

// GetConversation returns the open conversation for a contact, if any.
func (s *Store) GetConversation(contact string) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[contact]
	if !ok {
		return Conversation{}, false
	}
	return *c, true
}

// PutConversation creates or replaces the conversation for its contact.
func (s *Store) PutConversation(c Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := c
	s.conversations[c.Contact] = &stored
	s.persistLocked()
}

// RemoveConversation deletes the conversation for a contact. Removing an
// absent contact is a no-op.
func (s *Store) RemoveConversation(contact string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[contact]; !ok {
		return
	}
	delete(s.conversations, contact)
	s.persistLocked()
}

// TouchConversation refreshes the last-activity timestamp for a contact's
// conversation. Unknown contacts are ignored.
func (s *Store) TouchConversation(contact string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[contact]
	if !ok {
		return
	}
	c.LastActivity = at
	s.persistLocked()
}

// Conversations returns a copy of all open conversations, ordered by contact
// for deterministic sweeps.
func (s *Store) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Contact < out[j].Contact })
	return out
}

// AppendTranscript appends a formatted line to the ticket's transcript.
// Lines for a ticket keep the order their triggering events were processed in.
func (s *Store) AppendTranscript(ticketID int, line string) {
	if ticketID == 0 {
		// Degraded ticketless conversation: nowhere to flush, nothing to keep.
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ticketKey(ticketID)
	s.transcripts[key] = append(s.transcripts[key], line)
	s.persistLocked()
}

// Transcript returns a copy of the pending lines for a ticket without
// clearing them.
func (s *Store) Transcript(ticketID int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.transcripts[ticketKey(ticketID)]
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

// TakeTranscript returns all pending lines for a ticket and clears them.
// Called after a successful flush to the ticketing system.
func (s *Store) TakeTranscript(ticketID int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ticketKey(ticketID)
	lines := s.transcripts[key]
	delete(s.transcripts, key)
	s.persistLocked()
	return lines
}

// GetIntake returns the in-progress intake for a contact, if any.
func (s *Store) GetIntake(contact string) (Intake, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intakes[contact]
	if !ok {
		return Intake{}, false
	}
	return *in, true
}

// PutIntake creates or replaces the intake record for its contact.
func (s *Store) PutIntake(in Intake) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := in
	s.intakes[in.Contact] = &stored
	s.persistLocked()
}

// RemoveIntake deletes the intake record for a contact.
func (s *Store) RemoveIntake(contact string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intakes[contact]; !ok {
		return
	}
	delete(s.intakes, contact)
	s.persistLocked()
}

// Intakes returns a copy of all in-progress intakes, ordered by contact.
func (s *Store) Intakes() []Intake {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Intake, 0, len(s.intakes))
	for _, in := range s.intakes {
		out = append(out, *in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Contact < out[j].Contact })
	return out
}

// persistLocked writes the snapshot via a temp file and rename so a crash
// mid-write never leaves a partial document. Must be called with mu held.
// Persist failures are warnings: durability is traded for availability.
func (s *Store) persistLocked() {
	snap := snapshot{
		Conversations: s.conversations,
		Transcripts:   s.transcripts,
		Intakes:       s.intakes,
	}
	data, err := json.Marshal(&snap)
	if err != nil {
		s.logger.Warn("snapshot encode failed", "error", err)
		return
	}

	dir := filepath.Dir(s.path)
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			s.logger.Warn("snapshot dir create failed", "path", dir, "error", err)
			return
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		s.logger.Warn("snapshot write failed", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Warn("snapshot rename failed", "path", s.path, "error", err)
	}
}

// ticketKey converts a ticket ID to the string form used as a JSON object key.
func ticketKey(ticketID int) string {
	return strconv.Itoa(ticketID)
}
