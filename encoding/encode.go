// Package encoding implements the type encoder (spec §4.2): canonical
// 256-bit word encoding for each primitive type, and the digest used for
// dynamic strings/bytes. The digest is Keccak-256 — "a 256-bit
// cryptographic hash used across the ecosystem" per spec §9 DESIGN
// NOTES, fixed by the downstream engine's ABI and not negotiable by the
// compiler. See DESIGN.md for why go-ethereum was chosen to provide it.
package encoding

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/forte-labs/policy-compiler/ast"
)

// maxUint256 is 2^256 - 1, the ceiling every encoded word must respect.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// CheckUint256Range rejects a value that does not fit in an unsigned
// 256-bit word, the same defensive-bounds-check idiom the teacher applies
// throughout its safe numeric conversions (vm.SafeInt64ToUint32 etc).
func CheckUint256Range(v *big.Int) error {
	if v.Sign() < 0 {
		return fmt.Errorf("value %s is negative, cannot encode as uint256", v)
	}
	if v.Cmp(maxUint256) > 0 {
		return fmt.Errorf("value %s exceeds the uint256 maximum", v)
	}
	return nil
}

// ParseUintLiteral parses a decimal or 0x-prefixed hex integer literal of
// arbitrary size. Large hex/decimal values that exceed 64 bits must be
// preserved exactly (spec §4.5); big.Int never truncates.
func ParseUintLiteral(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	neg := false
	if strings.HasPrefix(raw, "-") {
		neg = true
		raw = raw[1:]
	}
	var v *big.Int
	var ok bool
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		v, ok = new(big.Int).SetString(raw[2:], 16)
	} else {
		v, ok = new(big.Int).SetString(raw, 10)
	}
	if !ok {
		return nil, fmt.Errorf("invalid integer literal: %q", raw)
	}
	if neg {
		v = v.Neg(v)
	}
	return v, nil
}

// ParseBool parses the literal barewords `true`/`false` (spec §4.1).
func ParseBool(raw string) (bool, error) {
	switch raw {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean literal: %q", raw)
	}
}

// ParseAddress validates a 160-bit hex address and returns it normalized
// to EIP-55 mixed-case checksum form (spec §4.1, §6 "Addresses validate
// via standard 160-bit hex with checksum normalization").
func ParseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address literal: %q", raw)
	}
	return common.HexToAddress(raw), nil
}

// ParseBytes parses a 0x-prefixed hex bytes literal of any length.
func ParseBytes(raw string) ([]byte, error) {
	raw = strings.TrimPrefix(raw, "0x")
	raw = strings.TrimPrefix(raw, "0X")
	if len(raw)%2 != 0 {
		raw = "0" + raw
	}
	b := make([]byte, len(raw)/2)
	for i := range b {
		v, err := strconv.ParseUint(raw[2*i:2*i+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid bytes literal: %q", raw)
		}
		b[i] = byte(v)
	}
	return b, nil
}

// Digest256 hashes an ABI-encoded payload to the 256-bit word pushed for a
// dynamic string/bytes literal (spec §4.2). It is the single point the
// engine-ABI-mandated digest is bound, so swapping digests later means
// editing exactly this function.
func Digest256(encoded []byte) *big.Int {
	sum := crypto.Keccak256(encoded)
	return new(big.Int).SetBytes(sum)
}

// abiStringType and abiBytesType are resolved once; abi.NewType never
// fails for these built-in kinds.
var (
	abiStringType, _ = abi.NewType("string", "", nil)
	abiBytesType, _  = abi.NewType("bytes", "", nil)
)

// Encode is the general literal encoder used inside expressions: a 256-bit
// word for every primitive type, per the canonical encodings in spec §3
// and the dynamic-type hashing rule in §4.2.
func Encode(raw string, t ast.PrimitiveType) (*big.Int, error) {
	switch t {
	case ast.UINT256:
		v, err := ParseUintLiteral(raw)
		if err != nil {
			return nil, err
		}
		if err := CheckUint256Range(v); err != nil {
			return nil, err
		}
		return v, nil

	case ast.BOOL:
		b, err := ParseBool(raw)
		if err != nil {
			return nil, err
		}
		if b {
			return big.NewInt(1), nil
		}
		return big.NewInt(0), nil

	case ast.ADDRESS:
		addr, err := ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		return new(big.Int).SetBytes(addr.Bytes()), nil

	case ast.STRING:
		s := strings.Trim(raw, `"`)
		args := abi.Arguments{{Type: abiStringType}}
		packed, err := args.Pack(s)
		if err != nil {
			return nil, fmt.Errorf("ABI-encoding string literal: %w", err)
		}
		return Digest256(packed), nil

	case ast.BYTES:
		b, err := ParseBytes(raw)
		if err != nil {
			return nil, err
		}
		args := abi.Arguments{{Type: abiBytesType}}
		packed, err := args.Pack(b)
		if err != nil {
			return nil, fmt.Errorf("ABI-encoding bytes literal: %w", err)
		}
		return Digest256(packed), nil

	default:
		return nil, fmt.Errorf("cannot encode a literal of type %s", t)
	}
}

// EncodePacked encodes a mapped-tracker key or value using the packed
// (non-ABI) representation spec §4.2 calls out as distinct from the
// general literal path: the raw bytes hashed directly rather than first
// wrapped in an ABI-encoded dynamic-type tuple.
func EncodePacked(raw string, t ast.PrimitiveType) (*big.Int, error) {
	switch t {
	case ast.STRING:
		return Digest256([]byte(strings.Trim(raw, `"`))), nil
	case ast.BYTES:
		b, err := ParseBytes(raw)
		if err != nil {
			return nil, err
		}
		return Digest256(b), nil
	default:
		return Encode(raw, t)
	}
}
