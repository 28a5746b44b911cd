package sync

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/crypto/nacl/box"
)

// InvitationVersion is the only envelope version this package writes or
// reads.
const InvitationVersion = 1

// Invitation is the encrypted envelope handed to a circle's prospective
// member. Its on-disk location is .chora/access/<circle_id>/<username>.enc;
// this package builds and opens envelopes but does not read or write that
// file.
type Invitation struct {
	Version         int       `json:"version"`
	Username        string    `json:"username"`
	CircleID        string    `json:"circle_id"`
	EncryptedKeyB64 string    `json:"encrypted_key_b64"`
	CreatedAt       time.Time `json:"created_at"`
}

// Invite seals circleKey to recipientPublicKey using an anonymous NaCl
// box: only the holder of the matching private key can recover circleKey;
// no sender identity is embedded, matching an invitation that any circle
// member may issue.
func Invite(username, circleID string, circleKey []byte, recipientPublicKey *[32]byte, now time.Time) (Invitation, error) {
	if len(circleKey) == 0 {
		return Invitation{}, fmt.Errorf("circle key must not be empty")
	}
	sealed, err := box.SealAnonymous(nil, circleKey, recipientPublicKey, rand.Reader)
	if err != nil {
		return Invitation{}, fmt.Errorf("seal invitation: %w", err)
	}
	return Invitation{
		Version:         InvitationVersion,
		Username:        username,
		CircleID:        circleID,
		EncryptedKeyB64: base64.StdEncoding.EncodeToString(sealed),
		CreatedAt:       now,
	}, nil
}

// Accept decrypts inv with the recipient's key pair, returning the
// original circle key. Decryption with any other key pair fails.
func Accept(inv Invitation, recipientPublicKey, recipientPrivateKey *[32]byte) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(inv.EncryptedKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode encrypted key: %w", err)
	}
	key, ok := box.OpenAnonymous(nil, sealed, recipientPublicKey, recipientPrivateKey)
	if !ok {
		return nil, fmt.Errorf("decryption failed: key does not match this invitation")
	}
	return key, nil
}

// GenerateRecipientKey returns a fresh X25519 key pair for an invitation
// recipient.
func GenerateRecipientKey() (publicKey, privateKey *[32]byte, err error) {
	return box.GenerateKey(rand.Reader)
}
