package vault

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/nidhogg/virem/internal/resonance"
)

var testOrder = []string{"joy", "fear", "calm"}

func testKey() []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i * 7)
	}
	return key
}

func testState() resonance.State {
	return resonance.State{
		Weights:   map[string]float64{"joy": 0.8, "fear": 0.25, "calm": 0.0},
		UpdatedAt: time.Unix(1735689600, 123456789),
	}
}

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testOrder)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

func TestNewCodecRejects(t *testing.T) {
	if _, err := NewCodec(nil); err == nil {
		t.Error("empty order: expected error")
	}
	if _, err := NewCodec([]string{"joy", "joy"}); err == nil {
		t.Error("duplicate label: expected error")
	}
	if _, err := NewCodec([]string{""}); err == nil {
		t.Error("empty label: expected error")
	}
}

func TestSerializeDeterministic(t *testing.T) {
	c := newTestCodec(t)

	// Two independently constructed, value-equal states.
	a, err := c.Serialize(testState())
	if err != nil {
		t.Fatalf("serialize a: %v", err)
	}
	b, err := c.Serialize(testState())
	if err != nil {
		t.Fatalf("serialize b: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("value-equal states produced different bytes")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	want := testState()

	data, err := c.Serialize(want)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := c.Deserialize(data)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	for _, l := range testOrder {
		if got.Weights[l] != want.Weights[l] {
			t.Errorf("%s = %v, want %v", l, got.Weights[l], want.Weights[l])
		}
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, want.UpdatedAt)
	}
}

func TestSerializeRejectsMismatchedState(t *testing.T) {
	c := newTestCodec(t)

	if _, err := c.Serialize(resonance.State{
		Weights: map[string]float64{"joy": 0.5},
	}); err == nil {
		t.Error("missing labels: expected error")
	}
	if _, err := c.Serialize(resonance.State{
		Weights: map[string]float64{"joy": 0.5, "fear": 0.5, "rage": 0.5},
	}); err == nil {
		t.Error("wrong label set: expected error")
	}
}

func TestDeserializeMalformed(t *testing.T) {
	c := newTestCodec(t)
	data, err := c.Serialize(testState())
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("XXXX"), data[4:]...)},
		{"truncated header", data[:8]},
		{"truncated body", data[:len(data)-3]},
		{"trailing bytes", append(append([]byte{}, data...), 0x00)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := c.Deserialize(tc.data); !errors.Is(err, ErrMalformedRecord) {
				t.Errorf("got %v, want ErrMalformedRecord", err)
			}
		})
	}
}

func TestDeserializeRejectsOutOfRangeWeight(t *testing.T) {
	// A codec with a different label set sees valid layout but wrong labels.
	c := newTestCodec(t)
	other, err := NewCodec([]string{"joy", "fear", "rage"})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	data, err := c.Serialize(testState())
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if _, err := other.Deserialize(data); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("label mismatch: got %v, want ErrMalformedRecord", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	key := testKey()

	plaintext, err := c.Serialize(testState())
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	record, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := Decrypt(record, key)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Error("round-trip plaintext mismatch")
	}
}

func TestEncryptFreshNonce(t *testing.T) {
	key := testKey()
	plaintext := []byte("same plaintext")

	a, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("encrypt a: %v", err)
	}
	b, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("encrypt b: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext produced identical records (nonce reuse)")
	}
}

func TestKeyMaterialErrors(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		key := make([]byte, n)
		if _, err := Encrypt([]byte("x"), key); !errors.Is(err, ErrKeyMaterial) {
			t.Errorf("encrypt with %d-byte key: got %v, want ErrKeyMaterial", n, err)
		}
		if _, err := Decrypt([]byte("x"), key); !errors.Is(err, ErrKeyMaterial) {
			t.Errorf("decrypt with %d-byte key: got %v, want ErrKeyMaterial", n, err)
		}
	}
}

func TestDecryptWrongKey(t *testing.T) {
	record, err := Encrypt([]byte("secret state"), testKey())
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	wrong := testKey()
	wrong[0] ^= 0xFF
	if _, err := Decrypt(record, wrong); !errors.Is(err, ErrAuthentication) {
		t.Errorf("got %v, want ErrAuthentication", err)
	}
}

func TestDecryptMalformed(t *testing.T) {
	key := testKey()
	if _, err := Decrypt(nil, key); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("nil record: got %v, want ErrMalformedRecord", err)
	}
	if _, err := Decrypt([]byte("too short"), key); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("short record: got %v, want ErrMalformedRecord", err)
	}

	record, err := Encrypt([]byte("secret state"), key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	record[0] ^= 0xFF // corrupt magic
	if _, err := Decrypt(record, key); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("bad magic: got %v, want ErrMalformedRecord", err)
	}
}

func TestTamperDetectionEveryBit(t *testing.T) {
	key := testKey()
	record, err := Encrypt([]byte("emotional state snapshot"), key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	// Flip every single bit past the magic (nonce, ciphertext, and tag).
	// Each corruption must fail authentication, never return plaintext.
	for i := len(recordMagic); i < len(record); i++ {
		for bit := 0; bit < 8; bit++ {
			tampered := make([]byte, len(record))
			copy(tampered, record)
			tampered[i] ^= 1 << bit

			got, err := Decrypt(tampered, key)
			if !errors.Is(err, ErrAuthentication) {
				t.Fatalf("byte %d bit %d: got err=%v, want ErrAuthentication", i, bit, err)
			}
			if got != nil {
				t.Fatalf("byte %d bit %d: leaked plaintext on failure", i, bit)
			}
		}
	}
}
