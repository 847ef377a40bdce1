package inverter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashes(t *testing.T) {
	// well-known digests of the empty string
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8428e", hashUTF8MD5(nil))
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", hashUTF8SHA256(nil))

	assert.Len(t, hashUTF8MD5([]byte("customer:webui:secret")), 32)
	assert.Len(t, hashUTF8SHA256([]byte("customer:webui:secret")), 64)

	// deterministic
	assert.Equal(t, hashUTF8SHA256([]byte("abc")), hashUTF8SHA256([]byte("abc")))
}

func TestParseDigestChallenge(t *testing.T) {
	params := parseDigestChallenge(`Digest nonce="abc123", realm="webui", qop="auth", Algorithm=SHA256`)
	assert.Equal(t, "abc123", params["nonce"])
	assert.Equal(t, "webui", params["realm"])
	assert.Equal(t, "auth", params["qop"])
	assert.Equal(t, "SHA256", params["algorithm"], "keys should be lowercased")
}

func TestChallengeIsStale(t *testing.T) {
	assert.True(t, challengeIsStale(`Digest nonce="n", realm="r", stale="true"`))
	assert.True(t, challengeIsStale(`Digest nonce="n", realm="r", stale=TRUE`))
	assert.False(t, challengeIsStale(`Digest nonce="n", realm="r"`))
}

func TestApplyChallenge(t *testing.T) {
	t.Run("Negotiation", func(t *testing.T) {
		for _, tc := range []struct {
			name       string
			advertised string
			want       string
		}{
			{"SHA256", `algorithm="SHA256"`, algorithmSHA256},
			{"MD5Only", `algorithm="MD5"`, algorithmMD5},
			{"Both", `algorithm="MD5,SHA256"`, algorithmSHA256},
			{"Absent", `qop="auth"`, algorithmSHA256},
		} {
			t.Run(tc.name, func(t *testing.T) {
				d := newDigestSession(algorithmSHA256)
				err := d.applyChallenge(`Digest nonce="n1", realm="webui", `+tc.advertised, true)
				require.NoError(t, err)
				assert.Equal(t, tc.want, d.algorithm)
			})
		}
	})

	t.Run("PinnedSkipsNegotiation", func(t *testing.T) {
		d := newDigestSession(algorithmMD5)
		err := d.applyChallenge(`Digest nonce="n1", realm="webui", algorithm="SHA256"`, false)
		require.NoError(t, err)
		assert.Equal(t, algorithmMD5, d.algorithm, "pinned algorithm must survive the challenge")
	})

	t.Run("ResetsCounter", func(t *testing.T) {
		d := newDigestSession(algorithmSHA256)
		require.NoError(t, d.applyChallenge(`Digest nonce="n1", realm="webui"`, true))
		d.authorization("customer", "secret", "GET", froniusLoginPath)
		d.subsequentLogin = true
		require.Equal(t, 2, d.nc)

		require.NoError(t, d.applyChallenge(`Digest nonce="n2", realm="webui"`, true))
		assert.Equal(t, 1, d.nc, "counter restarts at 1 for a new nonce")
		assert.False(t, d.subsequentLogin)
		assert.Equal(t, "n2", d.nonce)
	})

	t.Run("MissingParams", func(t *testing.T) {
		d := newDigestSession(algorithmSHA256)
		assert.Error(t, d.applyChallenge(`Digest nonce="n1"`, true))
		assert.Error(t, d.applyChallenge(`Digest realm="webui"`, true))
	})
}

func TestAuthorization(t *testing.T) {
	d := newDigestSession(algorithmSHA256)
	d.realm = "webui"
	d.nonce = "abc"
	d.cnonce = "deadbeef"

	header := d.authorization("customer", "secret", "GET", froniusLoginPath)
	params := parseDigestChallenge(header)

	assert.Equal(t, "customer", params["username"])
	assert.Equal(t, "webui", params["realm"])
	assert.Equal(t, "abc", params["nonce"])
	assert.Equal(t, froniusLoginPath, params["uri"])
	assert.Equal(t, "SHA256", params["algorithm"])
	assert.Equal(t, "auth", params["qop"])
	assert.Equal(t, "00000001", params["nc"])

	ha1 := hashUTF8SHA256([]byte("customer:webui:secret"))
	ha2 := hashUTF8SHA256([]byte("GET:" + froniusLoginPath))
	want := hashUTF8SHA256([]byte(ha1 + ":abc:00000001:deadbeef:auth:" + ha2))
	assert.Equal(t, want, params["response"])

	// counter is monotonic across requests on the same nonce
	assert.Equal(t, 2, d.nc)
	second := parseDigestChallenge(d.authorization("customer", "secret", "GET", froniusLoginPath))
	assert.Equal(t, "00000002", second["nc"])
	assert.Equal(t, 3, d.nc)
}

func TestDigestSessionReset(t *testing.T) {
	d := newDigestSession(algorithmMD5)
	require.NoError(t, d.applyChallenge(`Digest nonce="n1", realm="webui"`, false))
	d.authorization("customer", "secret", "GET", froniusLoginPath)
	d.subsequentLogin = true

	d.reset()
	assert.Empty(t, d.nonce)
	assert.Equal(t, 1, d.nc)
	assert.False(t, d.subsequentLogin)
	assert.Equal(t, algorithmMD5, d.algorithm, "reset keeps the algorithm")
}
