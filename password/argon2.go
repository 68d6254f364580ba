package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// MinLength is the shortest accepted password, in bytes.
	MinLength = 10

	minMemoryKB    uint32 = 8 * 1024
	minIterations  uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	phcAlgorithm          = "argon2id"
)

var (
	// ErrTooShort is returned by Hash for passwords under MinLength bytes.
	ErrTooShort = fmt.Errorf("password must be at least %d bytes", MinLength)
	// ErrMalformedHash is returned for stored hashes that are not argon2id PHC strings.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Params are the Argon2id cost parameters.
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams returns the production cost parameters.
func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate checks p against the minimum accepted costs.
func (p Params) Validate() error {
	switch {
	case p.Memory < minMemoryKB:
		return fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	case p.Iterations < minIterations:
		return errors.New("password iterations must be >= 1")
	case p.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case p.SaltLength < minSaltLength:
		return fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case p.KeyLength < minKeyLength:
		return fmt.Errorf("password key length must be >= %d", minKeyLength)
	}
	return nil
}

// Hasher hashes and verifies passwords with Argon2id.
type Hasher struct {
	params Params
	// dummy is verified against when the user does not exist so that both
	// paths cost one Argon2 derivation.
	dummy string
}

// NewHasher validates params and returns a Hasher.
func NewHasher(params Params) (*Hasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	h := &Hasher{params: params}
	dummy, err := h.Hash("jwtauth-timing-equaliser")
	if err != nil {
		return nil, err
	}
	h.dummy = dummy
	return h, nil
}

// Hash derives a PHC-encoded hash of plain. The password bytes are used as
// given, without Unicode normalisation.
func (h *Hasher) Hash(plain string) (string, error) {
	if len(plain) < MinLength {
		return "", ErrTooShort
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plain), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm,
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// Verify reports whether plain matches encoded. The comparison is constant
// time in the length of the derived key.
func (h *Hasher) Verify(plain, encoded string) (bool, error) {
	stored, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(plain), stored.salt, stored.params.Iterations, stored.params.Memory, stored.params.Parallelism, stored.params.KeyLength)
	return subtle.ConstantTimeCompare(key, stored.key) == 1, nil
}

// VerifyDummy burns one derivation with the hasher's own parameters. Call it
// on the unknown-user path of a login.
func (h *Hasher) VerifyDummy(plain string) {
	_, _ = h.Verify(plain, h.dummy)
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the hasher's current ones.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	stored, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	p := stored.params
	return p.Memory < h.params.Memory ||
		p.Iterations < h.params.Iterations ||
		p.Parallelism < h.params.Parallelism ||
		p.KeyLength != h.params.KeyLength, nil
}

type phcHash struct {
	params Params
	salt   []byte
	key    []byte
}

func decodePHC(encoded string) (*phcHash, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != phcAlgorithm {
		return nil, ErrMalformedHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(fields[2], "v="))
	if err != nil || !strings.HasPrefix(fields[2], "v=") || version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, fields[2])
	}

	params, err := decodeParams(fields[3])
	if err != nil {
		return nil, err
	}

	salt, err := decodeB64(fields[4])
	if err != nil || uint32(len(salt)) < minSaltLength {
		return nil, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}
	key, err := decodeB64(fields[5])
	if err != nil || len(key) == 0 {
		return nil, fmt.Errorf("%w: bad key", ErrMalformedHash)
	}
	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(key))

	return &phcHash{params: params, salt: salt, key: key}, nil
}

func decodeParams(field string) (Params, error) {
	var p Params
	seen := map[string]bool{}
	for _, kv := range strings.Split(field, ",") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok || seen[name] {
			return Params{}, fmt.Errorf("%w: bad parameter %q", ErrMalformedHash, kv)
		}
		seen[name] = true

		switch name {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < minMemoryKB {
				return Params{}, fmt.Errorf("%w: bad memory", ErrMalformedHash)
			}
			p.Memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < minIterations {
				return Params{}, fmt.Errorf("%w: bad iterations", ErrMalformedHash)
			}
			p.Iterations = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || uint8(v) < minParallelism {
				return Params{}, fmt.Errorf("%w: bad parallelism", ErrMalformedHash)
			}
			p.Parallelism = uint8(v)
		default:
			return Params{}, fmt.Errorf("%w: unknown parameter %q", ErrMalformedHash, name)
		}
	}
	if len(seen) != 3 {
		return Params{}, fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}
	return p, nil
}

// decodeB64 accepts both padded and unpadded standard base64.
func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
