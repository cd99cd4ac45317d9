// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"fmt"
)

const (
	integrityPad = 0xff
	nextHeader   = 0x07
	// HMAC-SHA1-96
	authCodeSize = 12
	// AES-CBC-128 key length, taken from the front of K2
	confidentialityKeySize = 16
)

func hmacSHA1(key []byte, data ...[]byte) []byte {
	h := hmac.New(sha1.New, key)
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

func randomBytes(n int) []byte {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return buf
}

// encryptPayload encrypts with AES-CBC-128 per section 13.29, prefixing the IV.
// Pad bytes count up from 1 and are followed by the pad length.
func encryptPayload(payload, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:confidentialityKeySize])
	if err != nil {
		return nil, err
	}

	padLen := (aes.BlockSize - (len(payload)+1)%aes.BlockSize) % aes.BlockSize
	plain := make([]byte, len(payload)+padLen+1)
	copy(plain, payload)
	for i := 1; i <= padLen; i++ {
		plain[len(payload)+i-1] = uint8(i)
	}
	plain[len(plain)-1] = uint8(padLen)

	buf := make([]byte, aes.BlockSize+len(plain))
	iv := buf[:aes.BlockSize]
	copy(iv, randomBytes(aes.BlockSize))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(buf[aes.BlockSize:], plain)

	return buf, nil
}

func decryptPayload(buf, key []byte) ([]byte, error) {
	if len(buf) < 2*aes.BlockSize || len(buf)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is %d bytes", ErrDecrypt, len(buf))
	}

	block, err := aes.NewCipher(key[:confidentialityKeySize])
	if err != nil {
		return nil, err
	}

	plain := make([]byte, len(buf)-aes.BlockSize)
	cipher.NewCBCDecrypter(block, buf[:aes.BlockSize]).CryptBlocks(plain, buf[aes.BlockSize:])

	padLen := int(plain[len(plain)-1])
	if padLen >= aes.BlockSize || padLen+1 > len(plain) {
		return nil, fmt.Errorf("%w: pad length %d", ErrDecrypt, padLen)
	}
	end := len(plain) - 1 - padLen
	for i := 0; i < padLen; i++ {
		if plain[end+i] != uint8(i+1) {
			return nil, fmt.Errorf("%w: bad padding", ErrDecrypt)
		}
	}

	return plain[:end], nil
}

// appendTrailer adds the integrity pad, pad length, next header and auth code
// to a session header and payload.
func appendTrailer(msg, k1 []byte) []byte {
	padLen := (4 - (len(msg)+2)%4) % 4
	for i := 0; i < padLen; i++ {
		msg = append(msg, integrityPad)
	}
	msg = append(msg, uint8(padLen), nextHeader)
	return append(msg, hmacSHA1(k1, msg)[:authCodeSize]...)
}

// checkTrailer verifies the auth code and returns msg without the trailer
func checkTrailer(msg, k1 []byte) ([]byte, error) {
	if len(msg) < authCodeSize+2 {
		return nil, fmt.Errorf("%w: no integrity trailer", ErrMalformedPacket)
	}

	n := len(msg) - authCodeSize
	if msg[n-1] != nextHeader {
		return nil, fmt.Errorf("%w: next header %#02x", ErrMalformedPacket, msg[n-1])
	}
	padLen := int(msg[n-2])
	if padLen > 3 || n-2-padLen < 0 {
		return nil, fmt.Errorf("%w: integrity pad length %d", ErrMalformedPacket, padLen)
	}

	if !hmac.Equal(hmacSHA1(k1, msg[:n])[:authCodeSize], msg[n:]) {
		return nil, ErrIntegrity
	}

	return msg[:n-2-padLen], nil
}
