package resume

import "testing"

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	key := testKey()
	tok := New(1, 2, 5, 9, 1_000_000)
	signed := tok.EncodeSigned(key)
	if len(signed) != SignedTokenSize {
		t.Fatalf("expected %d bytes, got %d", SignedTokenSize, len(signed))
	}
	decoded, ok := DecodeSigned(signed, key)
	if !ok {
		t.Fatalf("expected valid decode")
	}
	if decoded != tok {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, tok)
	}
}

func TestDecodeTamperedPayloadFails(t *testing.T) {
	key := testKey()
	tok := New(1, 2, 5, 9, 1_000_000)
	signed := tok.EncodeSigned(key)
	signed[0] ^= 0xFF
	if _, ok := DecodeSigned(signed, key); ok {
		t.Fatalf("expected tampered payload to fail verification")
	}
}

func TestDecodeWrongKeyFails(t *testing.T) {
	tok := New(1, 2, 5, 9, 1_000_000)
	signed := tok.EncodeSigned(testKey())
	if _, ok := DecodeSigned(signed, []byte("different-key-different-key-0000")); ok {
		t.Fatalf("expected wrong key to fail verification")
	}
}

func TestDecodeShortTokenFails(t *testing.T) {
	if _, ok := DecodeSigned([]byte{1, 2, 3}, testKey()); ok {
		t.Fatalf("expected short token to fail")
	}
}

func TestIsValidTimestamp(t *testing.T) {
	tok := New(1, 2, 5, 9, 100_000)
	if !tok.IsValidTimestamp(DefaultExpiryMs, 100_000, DefaultMaxClockSkewMs) {
		t.Fatalf("expected token issued now to be valid")
	}
	if !tok.IsValidTimestamp(DefaultExpiryMs, 100_000+DefaultExpiryMs, DefaultMaxClockSkewMs) {
		t.Fatalf("expected token to be valid right at the expiry boundary")
	}
	if tok.IsValidTimestamp(DefaultExpiryMs, 100_000+DefaultExpiryMs+1, DefaultMaxClockSkewMs) {
		t.Fatalf("expected token past expiry to be invalid")
	}
	if tok.IsValidTimestamp(DefaultExpiryMs, 50_000, DefaultMaxClockSkewMs) {
		t.Fatalf("expected future-dated token beyond skew to be invalid")
	}
}
