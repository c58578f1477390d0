package hashutil

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

type HashAlgo string

const (
	HashAlgoSHA256 HashAlgo = "sha256"
	HashAlgoBLAKE3 HashAlgo = "blake3"
)

// HashBytes returns the hash of bytes as a hex string using the specified algorithm.
// Supported algorithms: "sha256" and "blake3".
func HashBytes(data []byte, algo HashAlgo) (string, error) {
	switch algo {
	case HashAlgoSHA256:
		return hashBytesSha256(data), nil
	case HashAlgoBLAKE3:
		return hashBytesBlake3(data), nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
}

func hashBytesSha256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func hashBytesBlake3(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// SHA256Hex is a direct sha256 hex digest, used wherever the spec pins the
// algorithm explicitly (content-hash dedup, artifact sha256 records).
func SHA256Hex(data []byte) string {
	return hashBytesSha256(data)
}

// SHA1Hex is used for url_key derivation (spec §4.1: url_key = sha1(canonical)).
func SHA1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// MD5Hex8 returns the first 8 hex characters of the md5 digest, used for
// storage filename collision suffixes (spec §4.11).
func MD5Hex8(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])[:8]
}

// BLAKE3Hex is used for non-spec-mandated hashes: manifest config_hash and
// JS fingerprint-family grouping.
func BLAKE3Hex(data []byte) string {
	return hashBytesBlake3(data)
}
