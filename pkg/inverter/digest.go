package inverter

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	algorithmMD5    = "MD5"
	algorithmSHA256 = "SHA256"

	// maxLoginAttempts bounds how often a handshake is retried before the
	// failure surfaces to the caller.
	maxLoginAttempts = 3
)

// hashUTF8MD5 returns the hex MD5 digest of b. 32 hex characters.
func hashUTF8MD5(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// hashUTF8SHA256 returns the hex SHA256 digest of b. 64 hex characters.
func hashUTF8SHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// digestSession holds the state of one digest challenge-response session.
// The nonce-use counter starts at 1 and increases monotonically; the server
// uses it to detect replayed requests. Not safe for concurrent use; the
// owning backend serializes access.
type digestSession struct {
	realm     string
	nonce     string
	algorithm string
	cnonce    string

	// nc is the nonce-use counter included in every authenticated request.
	nc int

	// subsequentLogin is false until the first successful login under the
	// current challenge, and is reset whenever the server re-challenges.
	subsequentLogin bool

	loginAttempts int
}

func newDigestSession(algorithm string) *digestSession {
	return &digestSession{
		algorithm: algorithm,
		nc:        1,
	}
}

func (d *digestSession) hash(s string) string {
	if d.algorithm == algorithmMD5 {
		return hashUTF8MD5([]byte(s))
	}
	return hashUTF8SHA256([]byte(s))
}

// applyChallenge resets the session to a server-issued challenge: new realm
// and nonce, counter back to 1, first-login flag cleared. When negotiate is
// true the algorithm follows the server's advertisement, defaulting to
// SHA256; otherwise the session keeps its pinned algorithm.
func (d *digestSession) applyChallenge(header string, negotiate bool) error {
	params := parseDigestChallenge(header)
	realm, nonce := params["realm"], params["nonce"]
	if realm == "" || nonce == "" {
		return errors.New("digest challenge missing realm or nonce")
	}
	d.realm = realm
	d.nonce = nonce
	if negotiate {
		if adv := params["algorithm"]; strings.Contains(adv, algorithmMD5) && !strings.Contains(adv, algorithmSHA256) {
			d.algorithm = algorithmMD5
		} else {
			d.algorithm = algorithmSHA256
		}
	}
	d.nc = 1
	d.cnonce = newCnonce()
	d.subsequentLogin = false
	return nil
}

// reset discards the session so the next login starts from a fresh challenge.
func (d *digestSession) reset() {
	d.nonce = ""
	d.nc = 1
	d.subsequentLogin = false
}

// authorization computes the Authorization header value for one request and
// increments the nonce-use counter. The response digest binds the
// credentials, realm, nonce, counter, client nonce, method, and resource.
func (d *digestSession) authorization(user, password, method, uri string) string {
	ha1 := d.hash(user + ":" + d.realm + ":" + password)
	ha2 := d.hash(method + ":" + uri)
	nc := fmt.Sprintf("%08x", d.nc)
	response := d.hash(strings.Join([]string{ha1, d.nonce, nc, d.cnonce, "auth", ha2}, ":"))
	d.nc++
	return fmt.Sprintf(
		`Digest username="%s", realm="%s", nonce="%s", uri="%s", algorithm=%s, qop=auth, nc=%s, cnonce="%s", response="%s"`,
		user, d.realm, d.nonce, uri, d.algorithm, nc, d.cnonce, response,
	)
}

// parseDigestChallenge splits a WWW-Authenticate style value into its
// key/value parameters. Keys are lowercased, values unquoted. The values the
// inverters send never contain commas.
func parseDigestChallenge(header string) map[string]string {
	header = strings.TrimSpace(header)
	header = strings.TrimPrefix(header, "Digest ")
	params := make(map[string]string)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		params[strings.ToLower(strings.TrimSpace(k))] = strings.Trim(strings.TrimSpace(v), `"`)
	}
	return params
}

// challengeIsStale reports whether a 401 challenge marked the previous nonce
// as stale, meaning the credentials were fine but the session expired.
func challengeIsStale(header string) bool {
	return strings.EqualFold(parseDigestChallenge(header)["stale"], "true")
}

func newCnonce() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%016x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
