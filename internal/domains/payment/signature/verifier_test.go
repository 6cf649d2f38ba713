package signature

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event":"x"}`)
	good := Compute("s", body)

	flip := func(s string) string {
		b := []byte(s)
		if b[0] == 'a' {
			b[0] = 'b'
		} else {
			b[0] = 'a'
		}
		return string(b)
	}

	var tests = []struct {
		name   string
		body   []byte
		header string
		secret string
		want   bool
	}{
		{name: "valid signature", body: body, header: good, secret: "s", want: true},
		{name: "one character flipped", body: body, header: flip(good), secret: "s", want: false},
		{name: "wrong secret", body: body, header: good, secret: "t", want: false},
		{name: "body re-serialized with spaces", body: []byte(`{"event": "x"}`), header: good, secret: "s", want: false},
		{name: "empty header", body: body, header: "", secret: "s", want: false},
		{name: "truncated header", body: body, header: good[:10], secret: "s", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Verify(tt.body, tt.header, tt.secret))
		})
	}
}

func TestCompute_KnownVector(t *testing.T) {
	t.Parallel()

	// HMAC-SHA256 with key "key" over the classic pangram.
	got := Compute("key", []byte("The quick brown fox jumps over the lazy dog"))
	require.Equal(t, "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8", got)
	require.Len(t, Compute("s", []byte(`{"event":"x"}`)), 64)
}

func TestVerifier_Check(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event":"order.completed"}`)

	t.Run("verified and rejected", func(t *testing.T) {
		t.Parallel()
		v, err := NewVerifier(Config{Secret: "s"})
		require.NoError(t, err)
		require.Equal(t, Verified, v.Check(body, Compute("s", body)))
		require.Equal(t, Rejected, v.Check(body, Compute("other", body)))
		require.False(t, Rejected.Accepted())
	})

	t.Run("no secret is unverified but accepted", func(t *testing.T) {
		t.Parallel()
		v, err := NewVerifier(Config{})
		require.NoError(t, err)
		res := v.Check(body, "")
		require.Equal(t, Unverified, res)
		require.True(t, res.Accepted())
	})

	t.Run("bypass requires non-production marker", func(t *testing.T) {
		t.Parallel()
		_, err := NewVerifier(Config{Secret: "s", DevBypass: true})
		require.ErrorIs(t, err, ErrBypassInProduction)

		v, err := NewVerifier(Config{Secret: "s", DevBypass: true, NonProduction: true})
		require.NoError(t, err)
		require.Equal(t, Bypassed, v.Check(body, "garbage"))
	})
}
