// Package position implements dense fractional position keys used to give
// list and text elements a stable, concurrently-insertable order. A
// position compares strictly between any two positions it was generated
// between, regardless of which replica generated it or in what order
// concurrent inserts are later observed.
package position

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/rand"
)

// jitterCap bounds how far from the low boundary a generated digit is
// allowed to land. Keeping it small means repeated appends near one end
// (the common list-push pattern) generate short, near-constant-length
// keys instead of an ever-deepening path, since most of the available
// digit span at the low end is left untouched for the next insertion.
const jitterCap = 16

// Position is a dense, totally ordered key identifying a list or text
// element's place among its siblings. Ordering compares Path first, then
// StoreID, then Clock, matching spec.md's tie-break rule for positions
// generated concurrently with identical jitter draws.
type Position struct {
	Path    []byte
	StoreID uint32
	Clock   uint64
	isMax   bool
}

// Min compares less than every position Between ever generates.
var Min = Position{Path: nil}

// Max compares greater than every position Between ever generates.
var Max = Position{isMax: true}

// IsMin reports whether p is the Min sentinel.
func (p Position) IsMin() bool { return !p.isMax && len(p.Path) == 0 }

// IsMax reports whether p is the Max sentinel.
func (p Position) IsMax() bool { return p.isMax }

// Compare returns -1, 0, or 1 as p compares less than, equal to, or
// greater than q.
func (p Position) Compare(q Position) int {
	if p.isMax || q.isMax {
		switch {
		case p.isMax && q.isMax:
			return 0
		case p.isMax:
			return 1
		default:
			return -1
		}
	}
	if c := bytes.Compare(p.Path, q.Path); c != 0 {
		return c
	}
	if p.StoreID != q.StoreID {
		if p.StoreID < q.StoreID {
			return -1
		}
		return 1
	}
	if p.Clock != q.Clock {
		if p.Clock < q.Clock {
			return -1
		}
		return 1
	}
	return 0
}

// Less reports whether p sorts strictly before q.
func (p Position) Less(q Position) bool { return p.Compare(q) < 0 }

// orderError mirrors storeerr.ErrPositionOrder without importing it here,
// keeping this package dependency-free; store.go wraps it appropriately.
type orderError struct {
	low, high Position
}

func (e *orderError) Error() string {
	return fmt.Sprintf("position: low (%x) does not compare less than high (%x)", e.low.Path, e.high.Path)
}

// IsOrderError reports whether err was returned because low >= high.
func IsOrderError(err error) bool {
	_, ok := err.(*orderError)
	return ok
}

// Between generates a position strictly greater than low and strictly
// less than high, stamped with the issuing store id and clock for
// deterministic tie-breaking against any other position generated with
// the same path bytes. low must compare strictly less than high.
func Between(storeID uint32, clock uint64, low, high Position) (Position, error) {
	if !low.Less(high) {
		return Position{}, &orderError{low: low, high: high}
	}
	path := between(low.Path, high.Path, high.isMax)
	return Position{Path: path, StoreID: storeID, Clock: clock}, nil
}

// between computes a byte path strictly between lowPath and highPath
// (highPath is ignored, treated as unbounded, when highUnbounded is set).
// It walks both paths one digit at a time and stops at the first digit
// where a value fits strictly between them.
func between(lowPath, highPath []byte, highUnbounded bool) []byte {
	var out []byte
	for i := 0; ; i++ {
		lv := 0
		lok := i < len(lowPath)
		if lok {
			lv = int(lowPath[i])
		}

		hv := 256
		hok := !highUnbounded && i < len(highPath)
		if hok {
			hv = int(highPath[i])
		}

		if hv-lv > 1 {
			span := hv - lv - 1
			jcap := span
			if jcap > jitterCap {
				jcap = jitterCap
			}
			jitter := 0
			if jcap > 0 {
				jitter = rand.Intn(jcap)
			}
			digit := lv + 1 + jitter
			out = append(out, byte(digit))
			return out
		}

		// hv-lv <= 1: no integer strictly between at this digit.
		// Either low has a real digit here (must tie to stay >= low and
		// go deeper to eventually exceed it), or low has run out and lv
		// is 0: a tie against hv == 0, or already below hv == 1. A path
		// never ends on that 0, since no path sorts between a path and
		// its own 0-extension, so the next digit is resolved deeper.
		out = append(out, byte(lv))
	}
}

// Extend deterministically derives the position of the element immediately
// following base within a run of elements inserted together (see the Text
// kernel's run-coalescing: a multi-rune insert mints one OpId per rune but
// only transmits the run's first position, and peers reconstruct the rest
// with Extend instead of re-running the randomized Between algorithm, which
// would not reproduce the same bytes on every replica). Appending any byte
// to base.Path yields a path that is still a proper extension of base.Path,
// hence strictly greater than base and — since base itself already compared
// strictly less than the run's upper bound at some earlier byte — still
// strictly less than that bound too.
func Extend(base Position, storeID uint32, clock uint64) Position {
	path := make([]byte, len(base.Path)+1)
	copy(path, base.Path)
	path[len(base.Path)] = 0x80
	return Position{Path: path, StoreID: storeID, Clock: clock}
}

// Encode renders a wire-stable byte representation: a version header
// byte, then big-endian StoreID and Clock, then the raw path bytes.
func Encode(p Position) []byte {
	buf := make([]byte, 0, 1+4+8+len(p.Path))
	if p.isMax {
		buf = append(buf, 0xFF)
		return buf
	}
	buf = append(buf, 0x01)
	buf = append(buf,
		byte(p.StoreID>>24), byte(p.StoreID>>16), byte(p.StoreID>>8), byte(p.StoreID))
	for shift := 56; shift >= 0; shift -= 8 {
		buf = append(buf, byte(p.Clock>>uint(shift)))
	}
	buf = append(buf, p.Path...)
	return buf
}

// Decode parses bytes produced by Encode.
func Decode(b []byte) (Position, error) {
	if len(b) == 1 && b[0] == 0xFF {
		return Max, nil
	}
	if len(b) < 13 || b[0] != 0x01 {
		return Position{}, fmt.Errorf("position: malformed encoding")
	}
	storeID := uint32(b[1])<<24 | uint32(b[2])<<16 | uint32(b[3])<<8 | uint32(b[4])
	var clock uint64
	for i := 0; i < 8; i++ {
		clock = clock<<8 | uint64(b[5+i])
	}
	path := append([]byte(nil), b[13:]...)
	return Position{Path: path, StoreID: storeID, Clock: clock}, nil
}

// MarshalJSON renders the position as its hex-encoded wire form, so it can
// live inside a kernel's JSON patch fragment (list/text insert entries).
func (p Position) MarshalJSON() ([]byte, error) {
	return []byte(`"` + hex.EncodeToString(Encode(p)) + `"`), nil
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (p *Position) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("position: invalid JSON encoding %q", data)
	}
	b, err := hex.DecodeString(string(data[1 : len(data)-1]))
	if err != nil {
		return fmt.Errorf("position: decode JSON: %w", err)
	}
	decoded, err := Decode(b)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}
