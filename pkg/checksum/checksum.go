package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"strings"
)

// HashType represents different hash algorithms
type HashType string

const (
	HashTypeMD5    HashType = "md5"
	HashTypeSHA1   HashType = "sha1"
	HashTypeSHA256 HashType = "sha256"
	HashTypeSHA384 HashType = "sha384"
	HashTypeSHA512 HashType = "sha512"
)

// DetectHashType detects the hash type from an explicit prefix or, failing that, the hex length
func DetectHashType(checksum string) HashType {
	checksum = strings.TrimSpace(checksum)

	if prefix, _, ok := strings.Cut(checksum, ":"); ok {
		switch HashType(strings.ToLower(strings.TrimSpace(prefix))) {
		case HashTypeMD5:
			return HashTypeMD5
		case HashTypeSHA1:
			return HashTypeSHA1
		case HashTypeSHA256:
			return HashTypeSHA256
		case HashTypeSHA384:
			return HashTypeSHA384
		case HashTypeSHA512:
			return HashTypeSHA512
		}
	}

	if idx := strings.Index(checksum, ":"); idx >= 0 {
		checksum = strings.TrimSpace(checksum[idx+1:])
	}

	switch len(checksum) {
	case 32:
		return HashTypeMD5
	case 40:
		return HashTypeSHA1
	case 96:
		return HashTypeSHA384
	case 128:
		return HashTypeSHA512
	default:
		return HashTypeSHA256
	}
}

// CreateHasher creates the appropriate hash.Hash for the given type
func CreateHasher(hashType HashType) (hash.Hash, error) {
	switch hashType {
	case HashTypeMD5:
		return md5.New(), nil
	case HashTypeSHA1:
		return sha1.New(), nil
	case HashTypeSHA256:
		return sha256.New(), nil
	case HashTypeSHA384:
		return sha512.New384(), nil
	case HashTypeSHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash type: %s", hashType)
	}
}

// ParseChecksum extracts the checksum value and type from "type:hex" or a bare hex string
func ParseChecksum(checksum string) (value string, hashType HashType, err error) {
	checksum = strings.TrimSpace(checksum)
	if checksum == "" {
		return "", "", fmt.Errorf("empty checksum")
	}

	value = checksum
	if _, v, ok := strings.Cut(checksum, ":"); ok {
		value = strings.TrimSpace(v)
	}
	hashType = DetectHashType(checksum)

	if !isHexString(value) {
		return "", "", fmt.Errorf("invalid checksum %q: not a hex digest", checksum)
	}
	if _, err := CreateHasher(hashType); err != nil {
		return "", "", err
	}
	return strings.ToLower(value), hashType, nil
}

// ChecksumsMatch compares two hex digests case-insensitively, ignoring type prefixes
func ChecksumsMatch(expected, actual string) bool {
	strip := func(s string) string {
		if _, v, ok := strings.Cut(s, ":"); ok {
			s = v
		}
		return strings.ToLower(strings.TrimSpace(s))
	}
	return strip(expected) != "" && strip(expected) == strip(actual)
}

// isHexString checks if a string contains only hexadecimal characters
func isHexString(s string) bool {
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return len(s) > 0
}
