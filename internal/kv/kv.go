// Package kv implements the String/Int value family (component C2): SET,
// GET, GETSET, DEL, EXISTS, INCRBY, and RANDOMKEY. Values are a small tagged
// union rather than a bare string, mirroring the original server's
// KeyType::KV payload which distinguishes an integer representation from a
// string one.
package kv

import (
	"strconv"

	"github.com/escanordb/escanor/internal/keyspace"
	"github.com/escanordb/escanor/internal/randstr"
	"github.com/escanordb/escanor/internal/shardmap"
)

// Kind tags which representation a Value holds.
type Kind int

const (
	KindString Kind = iota
	KindInt
)

// Value is a KV-family value: either a string or an integer.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
}

// String returns the value rendered as a string, regardless of Kind.
func (v Value) String() string {
	if v.Kind == KindInt {
		return strconv.FormatInt(v.Int, 10)
	}
	return v.Str
}

// Error is a command-level error carrying the exact reply text the original
// server produces, so handlers can surface it verbatim.
type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrWrongType       Error = "WRONGTYPE"
	ErrNotString       Error = "ERR value is not a string"
	ErrNotInteger      Error = "ERR string cannot be represented as integer"
	ErrKeyNotFound     Error = "KEY_NOT_FOUND"
)

// Store holds every KV-family value and enforces the keyspace directory's
// single-family-per-key invariant on writes.
type Store struct {
	dir    *keyspace.Directory
	values *shardmap.Map[Value]
}

// New creates a Store backed by dir, the shared keyspace directory.
func New(dir *keyspace.Directory) *Store {
	return &Store{dir: dir, values: shardmap.New[Value]()}
}

// Set stores value as a plain string under key, claiming it for the KV
// family. It fails with ErrWrongType if key already belongs to another
// family.
func (s *Store) Set(key, value string) error {
	if ok, owner := s.dir.Claim(key, keyspace.KV); !ok {
		return wrongType(owner)
	}
	s.values.Set(key, Value{Kind: KindString, Str: value})
	return nil
}

// GetSet stores value under key and returns whatever was there before. If
// the prior value was an Int, this fails with ErrNotString rather than
// silently coercing it — an intentionally asymmetric rule inherited from the
// original server (SET overwrites any KV value; GETSET only strings).
func (s *Store) GetSet(key, value string) (prev Value, existed bool, err error) {
	if ok, owner := s.dir.Claim(key, keyspace.KV); !ok {
		return Value{}, false, wrongType(owner)
	}
	var captured Value
	var capturedExisted bool
	var rejectErr error
	s.values.Update(key, func(cur Value, existed bool) (Value, bool) {
		captured, capturedExisted = cur, existed
		if existed && cur.Kind == KindInt {
			rejectErr = ErrNotString
			return cur, false
		}
		return Value{Kind: KindString, Str: value}, true
	})
	if rejectErr != nil {
		return Value{}, false, rejectErr
	}
	return captured, capturedExisted, nil
}

// SetValue stores a fully-formed Value at key, claiming it for the KV
// family. Unlike Set, it preserves the caller's Kind (String or Int)
// rather than always writing a string; it exists for the snapshot loader,
// which restores values with their original representation intact.
func (s *Store) SetValue(key string, v Value) error {
	if ok, owner := s.dir.Claim(key, keyspace.KV); !ok {
		return wrongType(owner)
	}
	s.values.Set(key, v)
	return nil
}

// Get returns the value stored at key.
func (s *Store) Get(key string) (Value, bool) {
	return s.values.Get(key)
}

// Exists reports whether key holds a KV-family value.
func (s *Store) Exists(key string) bool {
	_, ok := s.values.Get(key)
	return ok
}

// Del removes key from the store and the keyspace directory.
func (s *Store) Del(key string) bool {
	_, existed := s.values.Delete(key)
	if existed {
		s.dir.Release(key)
	}
	return existed
}

// IncrBy adds delta to the integer at key, creating it with value delta if
// absent. An existing Int value stays Int; an existing String value that
// parses as an integer is written back as text, preserving its String
// kind (mirroring the original server, which distinguishes "was always an
// integer" from "was a numeric string" in how it re-stores the result).
// It fails if the existing value is a string that does not parse. The
// returned Value's Kind tells the caller which reply shape to use: Int
// replies as an integer, String replies as a bulk string of the digits.
func (s *Store) IncrBy(key string, delta int64) (Value, error) {
	if ok, owner := s.dir.Claim(key, keyspace.KV); !ok {
		return Value{}, wrongType(owner)
	}
	var incrErr error
	result, _ := s.values.Update(key, func(cur Value, existed bool) (Value, bool) {
		if !existed {
			return Value{Kind: KindInt, Int: delta}, true
		}
		switch cur.Kind {
		case KindInt:
			return Value{Kind: KindInt, Int: cur.Int + delta}, true
		default:
			n, err := strconv.ParseInt(cur.Str, 10, 64)
			if err != nil {
				incrErr = ErrNotInteger
				return cur, false
			}
			sum := n + delta
			return Value{Kind: KindString, Str: strconv.FormatInt(sum, 10), Int: sum}, true
		}
	})
	if incrErr != nil {
		return Value{}, incrErr
	}
	return result, nil
}

// RandomKey returns a freshly minted 25-character nonce. Per the original
// server's behavior (preserved here, not "fixed" — see the open-question
// resolutions), this does not sample an existing key from the keyspace.
func (s *Store) RandomKey() string {
	return randstr.Nonce25()
}

// Size returns the number of KV-family keys.
func (s *Store) Size() int {
	return s.values.Len()
}

// Clear removes every KV-family value and returns the count removed. It does
// not touch the keyspace directory; callers doing a full FLUSHDB clear the
// directory separately.
func (s *Store) Clear() int {
	return s.values.Clear()
}

func wrongType(owner keyspace.Family) error {
	if owner == keyspace.None {
		return nil
	}
	return ErrWrongType
}
