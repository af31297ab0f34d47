package imghash

import (
	"encoding/base64"
	"testing"
)

func TestHash_StableForIdenticalContent(t *testing.T) {
	data := []byte("fake image bytes")
	if Hash(data) != Hash([]byte("fake image bytes")) {
		t.Error("identical content produced different hashes")
	}
	if Hash(data) == Hash([]byte("other image bytes")) {
		t.Error("different content produced the same hash")
	}
}

func TestHashBase64_MatchesRawHash(t *testing.T) {
	data := []byte{0x89, 0x50, 0x4e, 0x47, 0x01, 0x02}
	encoded := base64.StdEncoding.EncodeToString(data)

	got, err := HashBase64(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Hash(data) {
		t.Errorf("HashBase64 = %s, want %s", got, Hash(data))
	}
}

func TestHashBase64_InvalidInput(t *testing.T) {
	if _, err := HashBase64("not!!base64"); err == nil {
		t.Error("expected error for invalid base64")
	}
}
