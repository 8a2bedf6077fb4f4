// Package password implements the glibc crypt(3)-compatible password
// hashing used to seed a node's OS template (§4.8): $1$ (md5), $5$
// (sha256) and $6$ (sha512) crypt, each with a random 8-character salt.
//
// Grounded on original_source/xcat3/common/password_utils.py's
// crypt_passwd dispatch (method name -> prefix, pass-through if already
// hashed); the algorithms themselves follow Poul-Henning Kamp's md5crypt
// and Ulrich Drepper's sha256-crypt/sha512-crypt specifications, since no
// library in the pack implements glibc crypt(3) compatibility and the
// output format is an interop requirement (the hash must be readable by
// /etc/shadow on the provisioned node), not a design preference — see
// DESIGN.md.
package password

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"hash"
	"strings"
)

const (
	MethodMD5    = "md5"
	MethodSHA256 = "sha256"
	MethodSHA512 = "sha512"
)

const (
	md5Prefix    = "$1$"
	sha256Prefix = "$5$"
	sha512Prefix = "$6$"
)

var ErrUnknownMethod = errors.New("password: unknown crypt method")

const b64Alphabet = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

func b64From24Bit(b2, b1, b0 byte, n int) string {
	w := uint32(b2)<<16 | uint32(b1)<<8 | uint32(b0)
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = b64Alphabet[w&0x3f]
		w >>= 6
	}
	return string(out)
}

func randomSalt(n int) (string, error) {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}

// Crypt hashes password with the given method (md5/sha256/sha512,
// defaulting to sha256 as original_source does), generating a random
// 8-character salt. A password that already carries a $1$/$5$/$6$ prefix
// is returned unchanged, matching crypt_passwd's already-encrypted guard.
func Crypt(passwd, method string) (string, error) {
	if len(passwd) >= 3 && (passwd[:3] == md5Prefix || passwd[:3] == sha256Prefix || passwd[:3] == sha512Prefix) {
		return passwd, nil
	}
	salt, err := randomSalt(8)
	if err != nil {
		return "", err
	}
	return CryptWithSalt(passwd, method, salt)
}

// CryptWithSalt is the deterministic core used by Crypt and by tests that
// need a reproducible hash for a known salt.
func CryptWithSalt(passwd, method, salt string) (string, error) {
	switch method {
	case MethodMD5:
		return md5Crypt(passwd, salt), nil
	case MethodSHA512:
		return shaCrypt(sha512Prefix, passwd, salt, 5000, 64), nil
	case MethodSHA256, "":
		return shaCrypt(sha256Prefix, passwd, salt, 5000, 32), nil
	default:
		return "", ErrUnknownMethod
	}
}

func md5Crypt(passwd, salt string) string {
	salt = trimSalt(salt, 8)
	p := []byte(passwd)
	s := []byte(salt)

	altCtx := md5.New()
	altCtx.Write(p)
	altCtx.Write(s)
	altCtx.Write(p)
	alt := altCtx.Sum(nil)

	ctx := md5.New()
	ctx.Write(p)
	ctx.Write([]byte(md5Prefix))
	ctx.Write(s)

	for pl := len(p); pl > 0; pl -= 16 {
		n := pl
		if n > 16 {
			n = 16
		}
		ctx.Write(alt[:n])
	}
	for i := len(p); i > 0; i >>= 1 {
		if i&1 != 0 {
			ctx.Write([]byte{0})
		} else {
			ctx.Write(p[:1])
		}
	}
	result := ctx.Sum(nil)

	for round := 0; round < 1000; round++ {
		c := md5.New()
		if round&1 != 0 {
			c.Write(p)
		} else {
			c.Write(result)
		}
		if round%3 != 0 {
			c.Write(s)
		}
		if round%7 != 0 {
			c.Write(p)
		}
		if round&1 != 0 {
			c.Write(result)
		} else {
			c.Write(p)
		}
		result = c.Sum(nil)
	}

	var sb strings.Builder
	sb.WriteString(md5Prefix)
	sb.WriteString(salt)
	sb.WriteByte('$')
	sb.WriteString(b64From24Bit(result[0], result[6], result[12], 4))
	sb.WriteString(b64From24Bit(result[1], result[7], result[13], 4))
	sb.WriteString(b64From24Bit(result[2], result[8], result[14], 4))
	sb.WriteString(b64From24Bit(result[3], result[9], result[15], 4))
	sb.WriteString(b64From24Bit(result[4], result[10], result[5], 4))
	sb.WriteString(b64From24Bit(0, 0, result[11], 2))
	return sb.String()
}

func shaCrypt(prefix, passwd, salt string, rounds, size int) string {
	salt = trimSalt(salt, 16)
	p := []byte(passwd)
	s := []byte(salt)

	newHash := func() hash.Hash {
		if size == 32 {
			return sha256.New()
		}
		return sha512.New()
	}

	b := newHash()
	b.Write(p)
	b.Write(s)
	b.Write(p)
	altResult := b.Sum(nil)

	a := newHash()
	a.Write(p)
	a.Write(s)

	for pl := len(p); pl > 0; pl -= size {
		n := pl
		if n > size {
			n = size
		}
		a.Write(altResult[:n])
	}
	for cnt := len(p); cnt > 0; cnt >>= 1 {
		if cnt&1 != 0 {
			a.Write(altResult)
		} else {
			a.Write(p)
		}
	}
	diA := a.Sum(nil)

	dp := newHash()
	for i := 0; i < len(p); i++ {
		dp.Write(p)
	}
	dpResult := dp.Sum(nil)
	pSeq := repeatTo(dpResult, len(p))

	ds := newHash()
	repeatCount := 16 + int(diA[0])
	for i := 0; i < repeatCount; i++ {
		ds.Write(s)
	}
	dsResult := ds.Sum(nil)
	sSeq := repeatTo(dsResult, len(s))

	cResult := diA
	for round := 0; round < rounds; round++ {
		c := newHash()
		if round&1 != 0 {
			c.Write(pSeq)
		} else {
			c.Write(cResult)
		}
		if round%3 != 0 {
			c.Write(sSeq)
		}
		if round%7 != 0 {
			c.Write(pSeq)
		}
		if round&1 != 0 {
			c.Write(cResult)
		} else {
			c.Write(pSeq)
		}
		cResult = c.Sum(nil)
	}

	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(salt)
	sb.WriteByte('$')
	if size == 32 {
		sb.WriteString(b64From24Bit(cResult[0], cResult[10], cResult[20], 4))
		sb.WriteString(b64From24Bit(cResult[21], cResult[1], cResult[11], 4))
		sb.WriteString(b64From24Bit(cResult[12], cResult[22], cResult[2], 4))
		sb.WriteString(b64From24Bit(cResult[3], cResult[13], cResult[23], 4))
		sb.WriteString(b64From24Bit(cResult[24], cResult[4], cResult[14], 4))
		sb.WriteString(b64From24Bit(cResult[15], cResult[25], cResult[5], 4))
		sb.WriteString(b64From24Bit(cResult[6], cResult[16], cResult[26], 4))
		sb.WriteString(b64From24Bit(cResult[27], cResult[7], cResult[17], 4))
		sb.WriteString(b64From24Bit(cResult[18], cResult[28], cResult[8], 4))
		sb.WriteString(b64From24Bit(cResult[9], cResult[19], cResult[29], 4))
		sb.WriteString(b64From24Bit(0, cResult[31], cResult[30], 3))
	} else {
		sb.WriteString(b64From24Bit(cResult[0], cResult[21], cResult[42], 4))
		sb.WriteString(b64From24Bit(cResult[22], cResult[43], cResult[1], 4))
		sb.WriteString(b64From24Bit(cResult[44], cResult[2], cResult[23], 4))
		sb.WriteString(b64From24Bit(cResult[3], cResult[24], cResult[45], 4))
		sb.WriteString(b64From24Bit(cResult[25], cResult[46], cResult[4], 4))
		sb.WriteString(b64From24Bit(cResult[47], cResult[5], cResult[26], 4))
		sb.WriteString(b64From24Bit(cResult[6], cResult[27], cResult[48], 4))
		sb.WriteString(b64From24Bit(cResult[28], cResult[49], cResult[7], 4))
		sb.WriteString(b64From24Bit(cResult[50], cResult[8], cResult[29], 4))
		sb.WriteString(b64From24Bit(cResult[9], cResult[30], cResult[51], 4))
		sb.WriteString(b64From24Bit(cResult[31], cResult[52], cResult[10], 4))
		sb.WriteString(b64From24Bit(cResult[53], cResult[11], cResult[32], 4))
		sb.WriteString(b64From24Bit(cResult[12], cResult[33], cResult[54], 4))
		sb.WriteString(b64From24Bit(cResult[34], cResult[55], cResult[13], 4))
		sb.WriteString(b64From24Bit(cResult[56], cResult[14], cResult[35], 4))
		sb.WriteString(b64From24Bit(cResult[15], cResult[36], cResult[57], 4))
		sb.WriteString(b64From24Bit(cResult[37], cResult[58], cResult[16], 4))
		sb.WriteString(b64From24Bit(cResult[59], cResult[17], cResult[38], 4))
		sb.WriteString(b64From24Bit(cResult[18], cResult[39], cResult[60], 4))
		sb.WriteString(b64From24Bit(cResult[40], cResult[61], cResult[19], 4))
		sb.WriteString(b64From24Bit(cResult[62], cResult[20], cResult[41], 4))
		sb.WriteString(b64From24Bit(0, 0, cResult[63], 2))
	}
	return sb.String()
}

func repeatTo(src []byte, n int) []byte {
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = src[i%len(src)]
	}
	return out
}

func trimSalt(salt string, max int) string {
	if i := strings.IndexByte(salt, '$'); i >= 0 {
		salt = salt[:i]
	}
	if len(salt) > max {
		salt = salt[:max]
	}
	return salt
}
