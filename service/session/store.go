package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// storageKey is versioned so that payload format changes invalidate stored
// sessions instead of producing partial decodes. Bump the suffix when the
// Session shape changes.
const storageKey = "ajolink_session_v3"

// Session is a restored wallet pairing. EncryptionKey is opaque material
// owned by the signing-agent SDK; it is persisted verbatim and never
// interpreted here.
type Session struct {
	AccountID     string    `json:"account_id"`
	Network       string    `json:"network"`
	PairingTopic  string    `json:"pairing_topic"`
	PeerName      string    `json:"peer_name,omitempty"`
	PeerURL       string    `json:"peer_url,omitempty"`
	EncryptionKey []byte    `json:"encryption_key,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store persists the wallet pairing session across restarts.
type Store struct {
	kv *KV
}

// NewStore creates a session store on top of the given key-value store.
func NewStore(kv *KV) *Store {
	return &Store{kv: kv}
}

// Save persists the session under the versioned storage key.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if sess == nil {
		return errors.New("session is nil")
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, storageKey, payload)
}

// Load returns the saved session, or nil when none exists. Absent or
// malformed stored data yields (nil, nil): a session we cannot decode is
// treated the same as no session, so a format change never wedges startup.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	payload, err := s.kv.Get(ctx, storageKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, nil
	}
	if sess.AccountID == "" || sess.Network == "" {
		return nil, nil
	}
	return &sess, nil
}

// Clear removes any saved session. Clearing an empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, storageKey)
}
