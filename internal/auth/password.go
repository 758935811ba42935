package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB   uint32 = 8 * 1024
	minSaltLength uint32 = 16
	minKeyLength  uint32 = 16
)

const (
	algorithmID       = "argon2id"
	legacyAlgorithmID = "argon2i"
)

// ErrInvalidHash is returned when a stored hash is not a parseable PHC string.
var ErrInvalidHash = errors.New("invalid password hash")

// Argon2Params tunes the Argon2id cost.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params matches the OWASP baseline for interactive logins.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher runs Argon2 on a bounded number of concurrent slots so that a burst
// of logins cannot take every CPU away from request handling.
type Hasher struct {
	params Argon2Params
	slots  chan struct{}
}

// NewHasher validates params. workers <= 0 uses GOMAXPROCS.
func NewHasher(params Argon2Params, workers int) (*Hasher, error) {
	if params.Memory < minMemoryKB {
		return nil, errors.New("argon2 memory must be >= 8192 KB")
	}
	if params.Time < 1 || params.Parallelism < 1 {
		return nil, errors.New("argon2 time and parallelism must be >= 1")
	}
	if params.SaltLength < minSaltLength || params.KeyLength < minKeyLength {
		return nil, errors.New("argon2 salt and key length must be >= 16")
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Hasher{
		params: params,
		slots:  make(chan struct{}, workers),
	}, nil
}

func (h *Hasher) acquire(ctx context.Context) error {
	select {
	case h.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hasher) release() {
	<-h.slots
}

// Hash returns the PHC-encoded Argon2id hash of password.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	h.release()

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches the encoded hash. Both argon2id and
// legacy argon2i hashes are accepted.
func (h *Hasher) Verify(ctx context.Context, encodedHash, password string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	if err := h.acquire(ctx); err != nil {
		return false, err
	}
	var computed []byte
	if parsed.algorithm == legacyAlgorithmID {
		computed = argon2.Key([]byte(password), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.hash)))
	} else {
		computed = argon2.IDKey([]byte(password), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.hash)))
	}
	h.release()

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

type parsedPHC struct {
	algorithm   string
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

func parsePHC(encodedHash string) (*parsedPHC, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrInvalidHash
	}
	if parts[1] != algorithmID && parts[1] != legacyAlgorithmID {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidHash, parts[1])
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, fmt.Errorf("%w: unsupported version", ErrInvalidHash)
	}

	parsed := &parsedPHC{algorithm: parts[1]}
	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, ErrInvalidHash
		}
		v, err := strconv.ParseUint(kv[1], 10, 32)
		if err != nil || v == 0 {
			return nil, ErrInvalidHash
		}
		switch kv[0] {
		case "m":
			parsed.memory = uint32(v)
		case "t":
			parsed.time = uint32(v)
		case "p":
			if v > 255 {
				return nil, ErrInvalidHash
			}
			parsed.parallelism = uint8(v)
		default:
			return nil, ErrInvalidHash
		}
	}
	if parsed.memory == 0 || parsed.time == 0 || parsed.parallelism == 0 {
		return nil, ErrInvalidHash
	}

	salt, err := decodeB64(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, ErrInvalidHash
	}
	hash, err := decodeB64(parts[5])
	if err != nil || len(hash) == 0 {
		return nil, ErrInvalidHash
	}
	parsed.salt = salt
	parsed.hash = hash
	return parsed, nil
}

// decodeB64 accepts both padded and unpadded standard base64, since hashes
// produced by other Argon2 implementations differ on padding.
func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
