package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// GetBool reads a one-byte boolean. Absent keys yield def.
func GetBool(b Bucket, key string, def bool) (bool, error) {
	raw, err := get(b, key, 1)
	if err != nil || raw == nil {
		return def, err
	}
	return raw[0] != 0, nil
}

// PutBool stores a one-byte boolean.
func PutBool(b Bucket, key string, value bool) error {
	var v byte
	if value {
		v = 1
	}
	return b.Put(key, []byte{v})
}

// GetUint32 reads a big-endian 32-bit word. Absent keys yield def.
func GetUint32(b Bucket, key string, def uint32) (uint32, error) {
	raw, err := get(b, key, 4)
	if err != nil || raw == nil {
		return def, err
	}
	return binary.BigEndian.Uint32(raw), nil
}

// PutUint32 stores a big-endian 32-bit word.
func PutUint32(b Bucket, key string, value uint32) error {
	return b.Put(key, binary.BigEndian.AppendUint32(nil, value))
}

// GetUint8 reads a single unsigned byte. Absent keys yield def.
func GetUint8(b Bucket, key string, def uint8) (uint8, error) {
	raw, err := get(b, key, 1)
	if err != nil || raw == nil {
		return def, err
	}
	return raw[0], nil
}

// PutUint8 stores a single unsigned byte.
func PutUint8(b Bucket, key string, value uint8) error {
	return b.Put(key, []byte{value})
}

// GetString reads UTF-8 text. Absent keys yield def.
func GetString(b Bucket, key string, def string) (string, error) {
	raw, err := b.Get(key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return string(raw), nil
}

// PutString stores UTF-8 text.
func PutString(b Bucket, key string, value string) error {
	return b.Put(key, []byte(value))
}

// get returns nil, nil when the key is absent.
func get(b Bucket, key string, size int) ([]byte, error) {
	raw, err := b.Get(key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) != size {
		return nil, fmt.Errorf("%w: key %s has %d bytes, want %d", ErrMalformed, key, len(raw), size)
	}
	return raw, nil
}
