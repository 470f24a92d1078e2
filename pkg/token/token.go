// Package token builds and parses the config token: the encrypted,
// compressed and URL-safe encoding of every receiver's settings plus the
// global settings, carried in the addon URL path.
//
// Pipeline: settings codec per receiver, JSON envelope, raw DEFLATE,
// XChaCha20-Poly1305 with a random nonce, base64 (URL alphabet, no padding).
package token

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"syncribullet/pkg/interfaces"
	"syncribullet/pkg/settings"
	"syncribullet/pkg/types"
)

// InsecureDevKey is the publicly known fallback secret used when
// PRIVATE_ENCRYPTION_KEY is unset. Anyone can read tokens built with it;
// never deploy with it.
const InsecureDevKey = "__SECRET_DOM_DO_NOT_USE_OR_YOU_WILL_BE_FIRED"

const (
	// MaxTokenLength bounds the token so it fits a URL path segment.
	MaxTokenLength = 2048

	// PayloadVersion is written in the envelope "v" field.
	PayloadVersion = 1

	maxPayloadSize = 64 << 10
	hkdfInfo       = "syncribullet config token"
)

var (
	ErrInvalidToken = errors.New("invalid config token")
	ErrTokenTooLong = errors.New("config token too long")
)

// InvalidTokenError records which parse stage rejected a token.
// It matches ErrInvalidToken with errors.Is.
type InvalidTokenError struct {
	Stage string
	Err   error
}

func (e *InvalidTokenError) Error() string {
	return fmt.Sprintf("invalid config token (%s): %v", e.Stage, e.Err)
}

func (e *InvalidTokenError) Unwrap() error { return e.Err }

func (e *InvalidTokenError) Is(target error) bool { return target == ErrInvalidToken }

func invalid(stage string, err error) error {
	return &InvalidTokenError{Stage: stage, Err: err}
}

// Payload is the decoded content of a token.
type Payload struct {
	Receivers map[types.ReceiverID]types.UserConfig
	Globals   types.GlobalSettings
}

// ReceiverLookup resolves receiver ids; satisfied by the receiver registry.
type ReceiverLookup interface {
	Get(id types.ReceiverID) (interfaces.Receiver, bool)
}

// Codec builds and parses tokens with one key.
type Codec struct {
	aead      cipher.AEAD
	receivers ReceiverLookup
}

// NewCodec derives the token key from secret.
func NewCodec(secret string, receivers ReceiverLookup) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init token cipher: %w", err)
	}
	return &Codec{aead: aead, receivers: receivers}, nil
}

type envelope struct {
	Version   int                         `json:"v"`
	Receivers map[types.ReceiverID]string `json:"r"`
	Globals   types.GlobalSettings        `json:"g"`
}

// Build encodes the receiver configs and global settings into a token.
// Tokens over MaxTokenLength fail with ErrTokenTooLong.
func (c *Codec) Build(configs map[types.ReceiverID]types.UserConfig, globals types.GlobalSettings) (string, error) {
	env := envelope{
		Version:   PayloadVersion,
		Receivers: make(map[types.ReceiverID]string, len(configs)),
		Globals:   globals,
	}
	for id, cfg := range configs {
		r, ok := c.receivers.Get(id)
		if !ok {
			return "", fmt.Errorf("build token: unknown receiver %q", id)
		}
		encoded, err := settings.Encode(r, cfg)
		if err != nil {
			return "", fmt.Errorf("build token: %w", err)
		}
		env.Receivers[id] = encoded
	}

	plain, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	tok, err := c.seal(plain)
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	if len(tok) > MaxTokenLength {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTokenTooLong, len(tok), MaxTokenLength)
	}
	return tok, nil
}

// Parse decodes a token. Every failure matches ErrInvalidToken.
func (c *Codec) Parse(tok string) (Payload, error) {
	if len(tok) > MaxTokenLength {
		return Payload{}, invalid("length", ErrTokenTooLong)
	}
	plain, err := c.open(tok)
	if err != nil {
		return Payload{}, err
	}

	raw, globals, err := splitPayload(plain)
	if err != nil {
		return Payload{}, invalid("payload", err)
	}

	p := Payload{
		Receivers: make(map[types.ReceiverID]types.UserConfig, len(raw)),
		Globals:   globals,
	}
	for name, encoded := range raw {
		id, err := types.ParseReceiverID(name)
		if err != nil {
			return Payload{}, invalid("receiver", err)
		}
		r, ok := c.receivers.Get(id)
		if !ok {
			return Payload{}, invalid("receiver", fmt.Errorf("receiver %q not registered", id))
		}
		cfg, err := settings.Decode(r, encoded)
		if err != nil {
			return Payload{}, invalid("settings", fmt.Errorf("%s: %w", id, err))
		}
		p.Receivers[id] = cfg
	}
	return p, nil
}

// ParseOrEmpty parses tok and falls back to an empty payload. Inbound
// requests treat an unreadable token as "nothing configured".
func (c *Codec) ParseOrEmpty(tok string) (Payload, error) {
	p, err := c.Parse(tok)
	if err != nil {
		return Payload{Receivers: map[types.ReceiverID]types.UserConfig{}}, err
	}
	return p, nil
}

func (c *Codec) seal(plain []byte) (string, error) {
	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := zw.Write(plain); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+buf.Len()+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, buf.Bytes(), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *Codec) open(tok string) ([]byte, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return nil, invalid("encoding", err)
	}
	ns := c.aead.NonceSize()
	if len(sealed) < ns+c.aead.Overhead() {
		return nil, invalid("encoding", errors.New("token too short"))
	}
	compressed, err := c.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return nil, invalid("decrypt", err)
	}

	zr := flate.NewReader(bytes.NewReader(compressed))
	defer zr.Close()
	plain, err := io.ReadAll(io.LimitReader(zr, maxPayloadSize+1))
	if err != nil {
		return nil, invalid("decompress", err)
	}
	if len(plain) > maxPayloadSize {
		return nil, invalid("decompress", errors.New("payload too large"))
	}
	return plain, nil
}

// splitPayload accepts the versioned envelope and the two legacy shapes:
// a [settings, globals] tuple and a bare settings object.
func splitPayload(plain []byte) (map[string]string, types.GlobalSettings, error) {
	trimmed := bytes.TrimSpace(plain)
	if len(trimmed) == 0 {
		return nil, types.GlobalSettings{}, errors.New("empty payload")
	}

	switch trimmed[0] {
	case '[':
		var tuple []json.RawMessage
		if err := json.Unmarshal(trimmed, &tuple); err != nil {
			return nil, types.GlobalSettings{}, err
		}
		if len(tuple) != 2 {
			return nil, types.GlobalSettings{}, fmt.Errorf("tuple has %d elements", len(tuple))
		}
		var receivers map[string]string
		if err := json.Unmarshal(tuple[0], &receivers); err != nil {
			return nil, types.GlobalSettings{}, err
		}
		var globals types.GlobalSettings
		if err := json.Unmarshal(tuple[1], &globals); err != nil {
			return nil, types.GlobalSettings{}, err
		}
		return receivers, globals, nil

	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, types.GlobalSettings{}, err
		}
		if _, versioned := fields["v"]; !versioned {
			var receivers map[string]string
			if err := json.Unmarshal(trimmed, &receivers); err != nil {
				return nil, types.GlobalSettings{}, err
			}
			return receivers, types.GlobalSettings{}, nil
		}

		var env struct {
			Version   int                  `json:"v"`
			Receivers map[string]string    `json:"r"`
			Globals   types.GlobalSettings `json:"g"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, types.GlobalSettings{}, err
		}
		if env.Version != PayloadVersion {
			return nil, types.GlobalSettings{}, fmt.Errorf("unsupported payload version %d", env.Version)
		}
		return env.Receivers, env.Globals, nil
	}

	return nil, types.GlobalSettings{}, errors.New("payload is not an object or tuple")
}
