package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCryptWithSalt_SHA256ReferenceVector(t *testing.T) {
	got, err := CryptWithSalt("Hello world!", MethodSHA256, "saltstring")
	require.NoError(t, err)
	assert.Equal(t, "$5$saltstring$5B8vYYiY.CVt1RlTTf8KbXBH3hsxY/GNooZaBBGWEc5", got)
}

func TestCryptWithSalt_SHA512ReferenceVector(t *testing.T) {
	got, err := CryptWithSalt("Hello world!", MethodSHA512, "saltstring")
	require.NoError(t, err)
	assert.Equal(t, "$6$saltstring$svn8UoSVapNtMuq1ukKS4tPQd8iKwSMHWjl/O817G3uBnIFNjnQJuesI68u4OTLiBFdcbYEdFCoEOfaS35inz1", got)
}

func TestCryptWithSalt_MD5Deterministic(t *testing.T) {
	a, err := CryptWithSalt("s3cret", MethodMD5, "abcdefgh")
	require.NoError(t, err)
	b, err := CryptWithSalt("s3cret", MethodMD5, "abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "$1$abcdefgh$"))

	c, err := CryptWithSalt("s3cret", MethodMD5, "zyxwvuts")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestCrypt_AlreadyHashedPassthrough(t *testing.T) {
	already := "$6$saltstring$svn8UoSVapNtMuq1ukKS4tPQd8iKwSMHWjl/O817G3uBnIFNjnQJuesI68u4OTLiBFdcbYEdFCoEOfaS35inz1"
	got, err := Crypt(already, MethodSHA256)
	require.NoError(t, err)
	assert.Equal(t, already, got)
}

func TestCrypt_RandomSaltVaries(t *testing.T) {
	a, err := Crypt("s3cret", MethodSHA256)
	require.NoError(t, err)
	b, err := Crypt("s3cret", MethodSHA256)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "independent calls should draw independent salts")
	assert.True(t, strings.HasPrefix(a, "$5$"))
}

func TestCryptWithSalt_UnknownMethod(t *testing.T) {
	_, err := CryptWithSalt("s3cret", "bogus", "saltstring")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}
