package pagination

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCursor_RoundTrip(t *testing.T) {
	c := Cursor{
		Sid: "0b6f4c1e",
		T:   TableRecords,
		Off: 200,
		Ps:  50,
		Rg:  "Kab. Bogor",
		Cr:  "Ginger",
		Yr:  2023,
	}
	tok, err := EncodeCursor(c)
	require.NoError(t, err)
	// token should be url-safe base64 (no '+', '/', '=')
	require.False(t, strings.ContainsAny(tok, "+/="), "token contains non-url-safe chars: %q", tok)

	out, err := DecodeCursor(tok)
	require.NoError(t, err)
	require.Equal(t, 1, out.V)
	require.NotZero(t, out.Iat)
	require.Equal(t, c.Sid, out.Sid)
	require.Equal(t, c.T, out.T)
	require.Equal(t, c.Off, out.Off)
	require.Equal(t, c.Ps, out.Ps)
	require.Equal(t, c.Rg, out.Rg)
	require.Equal(t, c.Cr, out.Cr)
	require.Equal(t, c.Yr, out.Yr)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	cases := []string{
		"",    // empty
		"!!!", // not base64
		base64.RawURLEncoding.EncodeToString([]byte("not-json")),
		mustB64(`{"v":1}`),
		mustB64(`{"v":1,"sid":"","t":"wide","off":0,"ps":10}`),
		mustB64(`{"v":1,"sid":"x","t":"sheets","off":0,"ps":10}`),
		mustB64(`{"v":1,"sid":"x","t":"records","off":-1,"ps":10}`),
		mustB64(`{"v":1,"sid":"x","t":"records","off":0,"ps":0}`),
		mustB64(`{"v":1,"sid":"x","t":"records","off":0,"ps":5,"yr":-3}`),
	}
	for i, tok := range cases {
		_, err := DecodeCursor(tok)
		require.Error(t, err, "case %d: token %q", i, tok)
	}
}

func TestNextOffset(t *testing.T) {
	require.Equal(t, 0, NextOffset(-5, 0))
	require.Equal(t, 10, NextOffset(10, 0))
	require.Equal(t, 25, NextOffset(10, 15))
}

func FuzzDecodeCursor(f *testing.F) {
	seeds := []string{
		"", "abc", mustB64(`{"v":1}`), mustB64(`{"sid":"x"}`),
		mustB64(`{"v":1,"sid":"s","t":"clusters","off":0,"ps":1}`),
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, token string) {
		_, _ = DecodeCursor(token)
	})
}

func mustB64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
