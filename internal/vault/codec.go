// Package vault serializes resonance state into a deterministic byte layout
// and seals it with AES-256-GCM. The codec is stateless per call and never
// touches storage; sinks move the sealed records around.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/nidhogg/virem/internal/resonance"
)

// KeySize is the only accepted key length (AES-256).
const KeySize = 32

var (
	// ErrKeyMaterial is returned when the supplied key bytes are unusable.
	ErrKeyMaterial = errors.New("vault: malformed key material")
	// ErrAuthentication is returned when a record fails tag verification.
	// Any single flipped bit in the record surfaces as this error.
	ErrAuthentication = errors.New("vault: record authentication failed")
	// ErrMalformedRecord is returned when the byte layout of a record or a
	// serialized state is invalid.
	ErrMalformedRecord = errors.New("vault: malformed record")
)

// stateMagic prefixes serialized plaintext; recordMagic prefixes sealed records.
var (
	stateMagic  = []byte("VRS1")
	recordMagic = []byte("VLT1")
)

// Codec encodes resonance state in a fixed label order so that value-equal
// states always produce identical bytes.
type Codec struct {
	order []string
}

// NewCodec creates a codec bound to a label order. The order must match the
// priority order of the store whose snapshots it will encode.
func NewCodec(order []string) (*Codec, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("vault: codec needs at least one label")
	}
	seen := make(map[string]struct{}, len(order))
	for _, name := range order {
		if name == "" {
			return nil, fmt.Errorf("vault: empty label name")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("vault: duplicate label %q", name)
		}
		seen[name] = struct{}{}
	}
	out := make([]string, len(order))
	copy(out, order)
	return &Codec{order: out}, nil
}

// Serialize encodes a state snapshot as:
//
//	magic "VRS1" | int64 unix-nano timestamp | uint16 label count |
//	per label: uint16 name length | name bytes | uint64 float64 bits
//
// Labels are written in codec order; all integers are big-endian.
func (c *Codec) Serialize(st resonance.State) ([]byte, error) {
	if len(st.Weights) != len(c.order) {
		return nil, fmt.Errorf("vault: state has %d labels, codec expects %d", len(st.Weights), len(c.order))
	}

	var buf bytes.Buffer
	buf.Write(stateMagic)
	binary.Write(&buf, binary.BigEndian, st.UpdatedAt.UnixNano())
	binary.Write(&buf, binary.BigEndian, uint16(len(c.order)))
	for _, name := range c.order {
		w, ok := st.Weights[name]
		if !ok {
			return nil, fmt.Errorf("vault: state missing label %q", name)
		}
		binary.Write(&buf, binary.BigEndian, uint16(len(name)))
		buf.WriteString(name)
		binary.Write(&buf, binary.BigEndian, math.Float64bits(w))
	}
	return buf.Bytes(), nil
}

// Deserialize decodes a serialized state. All-or-nothing: any layout
// violation returns ErrMalformedRecord and no partial state.
func (c *Codec) Deserialize(data []byte) (resonance.State, error) {
	var zero resonance.State

	r := bytes.NewReader(data)
	magic := make([]byte, len(stateMagic))
	if _, err := io.ReadFull(r, magic); err != nil || !bytes.Equal(magic, stateMagic) {
		return zero, fmt.Errorf("%w: bad state magic", ErrMalformedRecord)
	}

	var nanos int64
	if err := binary.Read(r, binary.BigEndian, &nanos); err != nil {
		return zero, fmt.Errorf("%w: truncated timestamp", ErrMalformedRecord)
	}
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return zero, fmt.Errorf("%w: truncated label count", ErrMalformedRecord)
	}
	if int(count) != len(c.order) {
		return zero, fmt.Errorf("%w: %d labels, codec expects %d", ErrMalformedRecord, count, len(c.order))
	}

	weights := make(map[string]float64, count)
	for i, want := range c.order {
		var nameLen uint16
		if err := binary.Read(r, binary.BigEndian, &nameLen); err != nil {
			return zero, fmt.Errorf("%w: truncated label %d", ErrMalformedRecord, i)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return zero, fmt.Errorf("%w: truncated label %d", ErrMalformedRecord, i)
		}
		if string(name) != want {
			return zero, fmt.Errorf("%w: label %d is %q, want %q", ErrMalformedRecord, i, name, want)
		}
		var bits uint64
		if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
			return zero, fmt.Errorf("%w: truncated weight %d", ErrMalformedRecord, i)
		}
		w := math.Float64frombits(bits)
		if math.IsNaN(w) || w < 0 || w > 1 {
			return zero, fmt.Errorf("%w: weight for %q outside [0,1]", ErrMalformedRecord, want)
		}
		weights[want] = w
	}
	if r.Len() != 0 {
		return zero, fmt.Errorf("%w: %d trailing bytes", ErrMalformedRecord, r.Len())
	}

	return resonance.State{
		Weights:   weights,
		UpdatedAt: time.Unix(0, nanos),
	}, nil
}

// Encrypt seals plaintext with AES-256-GCM under a fresh random nonce.
// Record layout: magic "VLT1" | nonce | ciphertext+tag.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("vault: generate nonce: %w", err)
	}
	record := make([]byte, 0, len(recordMagic)+len(nonce)+len(plaintext)+gcm.Overhead())
	record = append(record, recordMagic...)
	record = append(record, nonce...)
	return gcm.Seal(record, nonce, plaintext, nil), nil
}

// Decrypt opens a sealed record. Tag failures surface as ErrAuthentication,
// layout failures as ErrMalformedRecord; no partial plaintext either way.
func Decrypt(record, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(record) < len(recordMagic)+gcm.NonceSize()+gcm.Overhead() {
		return nil, fmt.Errorf("%w: record too short", ErrMalformedRecord)
	}
	if !bytes.Equal(record[:len(recordMagic)], recordMagic) {
		return nil, fmt.Errorf("%w: bad record magic", ErrMalformedRecord)
	}
	body := record[len(recordMagic):]
	nonce, ct := body[:gcm.NonceSize()], body[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrKeyMaterial, len(key), KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMaterial, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMaterial, err)
	}
	return gcm, nil
}
