package bcache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// Digest is a SHA-256 cache key.
type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// IsZero reports whether d was never computed.
func (d Digest) IsZero() bool { return d == Digest{} }

// KeyBuilder hashes the inputs of a build. Every value is length-prefixed,
// so adjacent values cannot run into each other.
type KeyBuilder struct {
	h hash.Hash
}

// NewKey returns an empty KeyBuilder.
func NewKey() *KeyBuilder {
	k := &KeyBuilder{h: sha256.New()}
	k.String(fmt.Sprintf("cplr-build/%d", schemaVersion))
	return k
}

// String adds s.
func (k *KeyBuilder) String(s string) *KeyBuilder {
	return k.Bytes([]byte(s))
}

// Strings adds every element of list and its length.
func (k *KeyBuilder) Strings(list []string) *KeyBuilder {
	k.length(uint64(len(list)))
	for _, s := range list {
		k.String(s)
	}
	return k
}

// Bytes adds b.
func (k *KeyBuilder) Bytes(b []byte) *KeyBuilder {
	k.length(uint64(len(b)))
	_, _ = k.h.Write(b)
	return k
}

// File adds the name and content of the file at path.
func (k *KeyBuilder) File(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sum := sha256.New()
	if _, err := io.Copy(sum, f); err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}
	k.String(path)
	k.Bytes(sum.Sum(nil))
	return nil
}

// Sum returns the key.
func (k *KeyBuilder) Sum() Digest {
	var out Digest
	copy(out[:], k.h.Sum(nil))
	return out
}

func (k *KeyBuilder) length(n uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], n)
	_, _ = k.h.Write(buf[:])
}
