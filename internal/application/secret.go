package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrMalformedFeedHash reports a stored feed hash that cannot be decoded or
// was produced by a different argon2 version.
var ErrMalformedFeedHash = errors.New("malformed feed secret hash")

const (
	feedSecretBytes = 32
	feedHashScheme  = "argon2id"
)

// FeedSecretParams tunes the argon2id derivation applied to calendar feed
// secrets before they are stored. Only the hash ever reaches the store.
type FeedSecretParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultFeedSecretParams follows the argon2id interactive profile.
var DefaultFeedSecretParams = FeedSecretParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// issueFeedSecret returns a fresh URL-safe secret for a feed URL together with
// the PHC string ($argon2id$v=19$m=..,t=..,p=..$salt$key) to persist.
func issueFeedSecret(params FeedSecretParams) (secret, encoded string, err error) {
	raw := make([]byte, feedSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate feed secret: %w", err)
	}
	secret = base64.RawURLEncoding.EncodeToString(raw)

	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", "", fmt.Errorf("generate feed salt: %w", err)
	}
	h := feedSecretHash{params: params, salt: salt}
	h.key = h.derive(secret, params.KeyLength)
	return secret, h.String(), nil
}

// feedSecretHash is a decoded PHC string.
type feedSecretHash struct {
	params FeedSecretParams
	salt   []byte
	key    []byte
}

func (h feedSecretHash) derive(secret string, keyLength uint32) []byte {
	return argon2.IDKey([]byte(secret), h.salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, keyLength)
}

// matches compares secret against the stored key in constant time.
func (h feedSecretHash) matches(secret string) bool {
	candidate := h.derive(secret, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(h.key, candidate) == 1
}

func (h feedSecretHash) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		feedHashScheme, argon2.Version,
		h.params.Memory, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

func parseFeedSecretHash(encoded string) (feedSecretHash, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != feedHashScheme {
		return feedSecretHash{}, ErrMalformedFeedHash
	}
	if fields[2] != "v="+strconv.Itoa(argon2.Version) {
		return feedSecretHash{}, ErrMalformedFeedHash
	}

	var h feedSecretHash
	for _, pair := range strings.Split(fields[3], ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return feedSecretHash{}, ErrMalformedFeedHash
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return feedSecretHash{}, ErrMalformedFeedHash
		}
		switch name {
		case "m":
			h.params.Memory = uint32(n)
		case "t":
			h.params.Iterations = uint32(n)
		case "p":
			if n > 255 {
				return feedSecretHash{}, ErrMalformedFeedHash
			}
			h.params.Parallelism = uint8(n)
		default:
			return feedSecretHash{}, ErrMalformedFeedHash
		}
	}
	if h.params.Memory == 0 || h.params.Iterations == 0 || h.params.Parallelism == 0 {
		return feedSecretHash{}, ErrMalformedFeedHash
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return feedSecretHash{}, ErrMalformedFeedHash
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return feedSecretHash{}, ErrMalformedFeedHash
	}
	h.params.SaltLength = uint32(len(h.salt))
	h.params.KeyLength = uint32(len(h.key))
	return h, nil
}
