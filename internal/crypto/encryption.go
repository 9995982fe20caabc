package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// maxChunkSize defines the maximum allowed chunk size for stream decryption
	// to prevent memory exhaustion attacks
	maxChunkSize = 10 * 1024 * 1024 // 10MB maximum chunk size

	// chunkSize is the plaintext size sealed per stream frame.
	chunkSize = 4096

	// tokenVersion prefixes every sealed field token.
	tokenVersion byte = 0x01
)

var (
	ErrInvalidToken = errors.New("invalid ciphertext token")
	ErrOpenFailed   = errors.New("message authentication failed")

	ErrTruncatedStream = errors.New("encrypted stream is truncated")
)

// FieldEncryption seals and opens individual field values with AES-256-GCM.
// It is safe for concurrent use: the AEAD is built once from an immutable key.
type FieldEncryption struct {
	aead cipher.AEAD
}

// NewFieldEncryption builds the AEAD for key, which must be 16, 24 or 32 bytes.
func NewFieldEncryption(key []byte) (*FieldEncryption, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return &FieldEncryption{aead: aead}, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}

// Seal encrypts plaintext under a fresh random nonce and returns the
// url-safe token version||nonce||ciphertext.
func (e *FieldEncryption) Seal(plaintext []byte) (string, error) {
	nonceSize := e.aead.NonceSize()
	buf := make([]byte, 1+nonceSize, 1+nonceSize+len(plaintext)+e.aead.Overhead())
	buf[0] = tokenVersion
	nonce := buf[1 : 1+nonceSize]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := e.aead.Seal(buf, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Any malformed token or authentication failure is an error.
func (e *FieldEncryption) Open(token string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	nonceSize := e.aead.NonceSize()
	if len(raw) < 1+nonceSize+e.aead.Overhead() {
		return nil, fmt.Errorf("%w: token too short", ErrInvalidToken)
	}
	if raw[0] != tokenVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrInvalidToken, raw[0])
	}
	nonce, sealed := raw[1:1+nonceSize], raw[1+nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}
	return plaintext, nil
}

// EncryptStream encrypts data from reader to writer as a sequence of
// length-prefixed frames of at most chunkSize plaintext bytes. Each frame's AAD
// binds its index and whether it is the last frame, so DecryptStream rejects
// frames that were dropped, reordered or cut off. Empty input still produces one
// final frame.
func (e *FieldEncryption) EncryptStream(reader io.Reader, writer io.Writer) error {
	cur := make([]byte, chunkSize)
	next := make([]byte, chunkSize)

	n, eof, err := readChunk(reader, cur)
	if err != nil {
		return err
	}
	for index := uint64(0); ; index++ {
		var m int
		if !eof {
			if m, eof, err = readChunk(reader, next); err != nil {
				return err
			}
		}
		final := eof && m == 0
		if err := e.writeFrame(writer, cur[:n], index, final); err != nil {
			return err
		}
		if final {
			return nil
		}
		cur, next = next, cur
		n = m
	}
}

// readChunk fills buf as far as the reader allows. eof is set once the reader is
// exhausted.
func readChunk(reader io.Reader, buf []byte) (n int, eof bool, err error) {
	n, err = io.ReadFull(reader, buf)
	switch {
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		return n, true, nil
	case err != nil:
		return n, false, fmt.Errorf("failed to read from input stream: %w", err)
	}
	return n, false, nil
}

func (e *FieldEncryption) writeFrame(writer io.Writer, plaintext []byte, index uint64, final bool) error {
	nonceSize := e.aead.NonceSize()
	frame := make([]byte, nonceSize, nonceSize+len(plaintext)+e.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, frame); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	frame = e.aead.Seal(frame, frame[:nonceSize], plaintext, frameAAD(index, final))

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(frame)))
	if _, err := writer.Write(length[:]); err != nil {
		return fmt.Errorf("failed to write chunk length: %w", err)
	}
	if _, err := writer.Write(frame); err != nil {
		return fmt.Errorf("failed to write to output stream: %w", err)
	}
	return nil
}

// frameAAD is the big-endian frame index followed by 1 for the final frame.
func frameAAD(index uint64, final bool) []byte {
	var aad [9]byte
	binary.BigEndian.PutUint64(aad[:8], index)
	if final {
		aad[8] = 1
	}
	return aad[:]
}

// DecryptStream reverses EncryptStream. It fails with ErrTruncatedStream when the
// input ends before the final frame and with ErrOpenFailed when a frame is out of
// place. Frames already opened have been written to writer by then, so callers
// must discard the output on error.
func (e *FieldEncryption) DecryptStream(reader io.Reader, writer io.Writer) error {
	var lengthBytes [4]byte
	nonceSize := e.aead.NonceSize()
	for index := uint64(0); ; index++ {
		_, err := io.ReadFull(reader, lengthBytes[:])
		if err == io.EOF {
			return fmt.Errorf("%w: no final frame after %d frames", ErrTruncatedStream, index)
		}
		if err != nil {
			return fmt.Errorf("%w: failed to read chunk length: %w", ErrTruncatedStream, err)
		}

		length := binary.BigEndian.Uint32(lengthBytes[:])
		if length < uint32(nonceSize+e.aead.Overhead()) {
			return fmt.Errorf("invalid chunk size: %d", length)
		}
		if length > maxChunkSize {
			return fmt.Errorf("chunk size %d exceeds maximum allowed size %d", length, maxChunkSize)
		}

		frame := make([]byte, length)
		if _, err := io.ReadFull(reader, frame); err != nil {
			return fmt.Errorf("%w: failed to read encrypted chunk: %w", ErrTruncatedStream, err)
		}

		final := false
		plaintext, err := e.aead.Open(nil, frame[:nonceSize], frame[nonceSize:], frameAAD(index, false))
		if err != nil {
			final = true
			plaintext, err = e.aead.Open(nil, frame[:nonceSize], frame[nonceSize:], frameAAD(index, true))
		}
		if err != nil {
			return fmt.Errorf("%w: frame %d: %w", ErrOpenFailed, index, err)
		}
		if _, err := writer.Write(plaintext); err != nil {
			return fmt.Errorf("failed to write to output stream: %w", err)
		}

		if final {
			var trailing [1]byte
			if _, err := io.ReadFull(reader, trailing[:]); err == nil {
				return fmt.Errorf("%w: data after final frame", ErrOpenFailed)
			}
			return nil
		}
	}
}
