// Package blockhash computes the 64-bit non-cryptographic block hash
// Senders and Hashers record into the journal. It is adapted from the
// teacher's resume-verification hash routine, trimmed to the one
// algorithm spec.md §4.9 calls for (no algorithm negotiation byte).
package blockhash

import "encoding/binary"

const (
	prime1 uint64 = 11400714785074694791
	prime2 uint64 = 14029467366897019727
	prime3 uint64 = 1609587929392839161
	prime4 uint64 = 9650029242287828579
	prime5 uint64 = 2870177450012600261
)

// prime1Plus2 is prime1+prime2 reduced mod 2^64 (the addition overflows
// uint64 as a constant expression, so the wrapped value is precomputed).
const prime1Plus2 uint64 = 6983438078262162902

// Sum64 computes the xxHash64 digest of b with seed 0.
func Sum64(b []byte) uint64 {
	n := len(b)
	var h uint64
	if n >= 32 {
		v1 := prime1Plus2
		v2 := prime2
		v3 := uint64(0)
		v4 := ^prime1 + 1 // 0 - prime1 mod 2^64

		for len(b) >= 32 {
			v1 = round(v1, binary.LittleEndian.Uint64(b[0:8]))
			v2 = round(v2, binary.LittleEndian.Uint64(b[8:16]))
			v3 = round(v3, binary.LittleEndian.Uint64(b[16:24]))
			v4 = round(v4, binary.LittleEndian.Uint64(b[24:32]))
			b = b[32:]
		}

		h = rotl(v1, 1) + rotl(v2, 7) + rotl(v3, 12) + rotl(v4, 18)
		h = merge(h, v1)
		h = merge(h, v2)
		h = merge(h, v3)
		h = merge(h, v4)
	} else {
		h = prime5
	}

	h += uint64(n)

	for len(b) >= 8 {
		k1 := round(0, binary.LittleEndian.Uint64(b[:8]))
		h ^= k1
		h = rotl(h, 27)*prime1 + prime4
		b = b[8:]
	}

	if len(b) >= 4 {
		h ^= uint64(binary.LittleEndian.Uint32(b[:4])) * prime1
		h = rotl(h, 23)*prime2 + prime3
		b = b[4:]
	}

	for _, c := range b {
		h ^= uint64(c) * prime5
		h = rotl(h, 11) * prime1
	}

	return avalanche(h)
}

func round(acc, input uint64) uint64 {
	acc += input * prime2
	acc = rotl(acc, 31)
	acc *= prime1
	return acc
}

func merge(acc, val uint64) uint64 {
	acc ^= round(0, val)
	acc = acc*prime1 + prime4
	return acc
}

func avalanche(h uint64) uint64 {
	h ^= h >> 33
	h *= prime2
	h ^= h >> 29
	h *= prime3
	h ^= h >> 32
	return h
}

func rotl(x uint64, r uint) uint64 {
	return (x << r) | (x >> (64 - r))
}
