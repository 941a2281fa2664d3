package newebpay

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/smallbiznis/periodpay/internal/payment/domain"
)

var (
	ErrDecode     = errors.New("decode_error")
	ErrInvalidKey = errors.New("invalid_key")
)

// Codec produces and consumes the gateway's AES-256-CBC envelope.
//
// Outbound payloads use PKCS#7 padding. Inbound payloads are space padded by
// the gateway, so decryption runs without unpadding and strips 0x00-0x20
// instead. The two paths must stay asymmetric.
type Codec struct {
	key []byte
	iv  []byte
}

func NewCodec(key, iv string) (*Codec, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: hash key must be 32 bytes, got %d", ErrInvalidKey, len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: hash iv must be %d bytes, got %d", ErrInvalidKey, aes.BlockSize, len(iv))
	}
	return &Codec{key: []byte(key), iv: []byte(iv)}, nil
}

// Encrypt form-encodes the record in field order and encrypts it.
func (c *Codec) Encrypt(record domain.Record) (string, error) {
	return c.EncryptPlaintext(EncodeForm(record.Fields()))
}

// EncryptPlaintext encrypts an already serialized payload.
func (c *Codec) EncryptPlaintext(plain string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	padded := pkcs7Pad([]byte(plain), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, padded)
	return hex.EncodeToString(out), nil
}

// Decrypt opens a gateway envelope and returns it as JSON. A form-encoded
// plaintext is converted into a JSON object of string values.
func (c *Codec) Decrypt(ciphertext string) (json.RawMessage, error) {
	data, err := hex.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not a multiple of the block size", ErrDecode)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(plain, data)
	plain = stripControl(plain)

	if json.Valid(plain) {
		return json.RawMessage(plain), nil
	}
	if doc, ok := formToJSON(string(plain)); ok {
		return doc, nil
	}
	return nil, fmt.Errorf("%w: plaintext is neither json nor form data", ErrDecode)
}

func (c *Codec) DecryptInto(ciphertext string, out any) error {
	raw, err := c.Decrypt(ciphertext)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// TradeSha is the gateway's integrity digest over an envelope.
func (c *Codec) TradeSha(ciphertext string) string {
	sum := sha256.Sum256([]byte("HashKey=" + string(c.key) + "&" + ciphertext + "&HashIV=" + string(c.iv)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// EncodeForm serializes fields as application/x-www-form-urlencoded,
// keeping their order.
func EncodeForm(fields []domain.Field) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		writeFormComponent(&b, f.Key)
		b.WriteByte('=')
		writeFormComponent(&b, f.Value)
	}
	return b.String()
}

const upperhex = "0123456789ABCDEF"

func writeFormComponent(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			b.WriteByte(ch)
		case ch == '*' || ch == '-' || ch == '.' || ch == '_':
			b.WriteByte(ch)
		case ch == ' ':
			b.WriteByte('+')
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[ch>>4])
			b.WriteByte(upperhex[ch&0x0f])
		}
	}
}

func formToJSON(plain string) (json.RawMessage, bool) {
	if plain == "" || !strings.Contains(plain, "=") {
		return nil, false
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	seen := map[string]bool{}
	for _, pair := range strings.Split(plain, "&") {
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, false
		}
		k, err := url.QueryUnescape(key)
		if err != nil || k == "" {
			return nil, false
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, false
		}
		if seen[k] {
			continue
		}
		seen[k] = true

		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		writeJSONString(&buf, k)
		buf.WriteByte(':')
		writeJSONString(&buf, v)
	}
	if len(seen) == 0 {
		return nil, false
	}
	buf.WriteByte('}')
	return buf.Bytes(), true
}

func writeJSONString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encode terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
}

func stripControl(b []byte) []byte {
	out := b[:0]
	for _, ch := range b {
		if ch > 0x20 {
			out = append(out, ch)
		}
	}
	return out
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}
