package hash

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

func (a Algorithm) newHasher() (hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", a)
	}
}

// Checksum - контрольная сумма в каноническом виде "algorithm:hex".
type Checksum struct {
	Algorithm Algorithm
	Hex       string
}

func (c Checksum) String() string {
	return string(c.Algorithm) + ":" + c.Hex
}

// Calculate считает сумму данных выбранным алгоритмом.
func Calculate(algorithm Algorithm, data []byte) (Checksum, error) {
	hasher, err := algorithm.newHasher()
	if err != nil {
		return Checksum{}, err
	}

	hasher.Write(data)
	return Checksum{Algorithm: algorithm, Hex: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// Parse принимает "sha256:ABC..." или просто hex, тогда алгоритм берется
// из defaultAlgorithm. Длина hex проверяется по алгоритму.
func Parse(value string, defaultAlgorithm Algorithm) (Checksum, error) {
	value = strings.TrimSpace(value)
	algorithm := defaultAlgorithm
	digest := value

	if i := strings.IndexByte(value, ':'); i >= 0 {
		algorithm = Algorithm(strings.ToLower(value[:i]))
		digest = value[i+1:]
	}

	hasher, err := algorithm.newHasher()
	if err != nil {
		return Checksum{}, err
	}

	digest = strings.ToLower(digest)
	raw, err := hex.DecodeString(digest)
	if err != nil {
		return Checksum{}, errors.New("checksum is not hex encoded")
	}
	if len(raw) != hasher.Size() {
		return Checksum{}, fmt.Errorf("checksum length %d does not match %s", len(raw), algorithm)
	}

	return Checksum{Algorithm: algorithm, Hex: digest}, nil
}
