package application

import (
	"errors"
	"strings"
	"testing"
)

var testFeedSecretParams = FeedSecretParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func TestIssueFeedSecret(t *testing.T) {
	t.Parallel()

	secret, encoded, err := issueFeedSecret(testFeedSecretParams)
	if err != nil {
		t.Fatalf("issueFeedSecret returned error: %v", err)
	}
	if len(secret) != 43 || strings.ContainsAny(secret, "+/=") {
		t.Fatalf("expected 43 URL-safe characters, got %q", secret)
	}
	if strings.Contains(encoded, secret) {
		t.Fatalf("stored hash must not contain the secret")
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected hash layout %q", encoded)
	}

	stored, err := parseFeedSecretHash(encoded)
	if err != nil {
		t.Fatalf("parseFeedSecretHash returned error: %v", err)
	}
	if stored.String() != encoded {
		t.Fatalf("expected parsed hash to re-encode unchanged")
	}
	if !stored.matches(secret) {
		t.Fatalf("expected issued secret to match")
	}
	if stored.matches(secret + "x") {
		t.Fatalf("expected altered secret to be rejected")
	}

	other, _, err := issueFeedSecret(testFeedSecretParams)
	if err != nil {
		t.Fatalf("issueFeedSecret returned error: %v", err)
	}
	if other == secret {
		t.Fatalf("expected distinct secrets per feed")
	}
}

func TestParseFeedSecretHashRejectsMalformed(t *testing.T) {
	t.Parallel()

	_, valid, err := issueFeedSecret(testFeedSecretParams)
	if err != nil {
		t.Fatalf("issueFeedSecret returned error: %v", err)
	}
	fields := strings.Split(valid, "$")

	cases := map[string]string{
		"empty":         "",
		"wrong scheme":  strings.Replace(valid, "argon2id", "argon2i", 1),
		"wrong version": strings.Replace(valid, "v=19", "v=16", 1),
		"unknown param": strings.Replace(valid, "p=1", "q=1", 1),
		"zero memory":   strings.Replace(valid, "m=1024", "m=0", 1),
		"bad salt":      strings.Join([]string{"", fields[1], fields[2], fields[3], "!!", fields[5]}, "$"),
		"missing key":   strings.Join([]string{"", fields[1], fields[2], fields[3], fields[4], ""}, "$"),
	}
	for name, encoded := range cases {
		if _, err := parseFeedSecretHash(encoded); !errors.Is(err, ErrMalformedFeedHash) {
			t.Fatalf("%s: expected ErrMalformedFeedHash, got %v", name, err)
		}
	}
}
