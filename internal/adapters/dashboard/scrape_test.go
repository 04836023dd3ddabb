package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCSRFToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		want   string
		wantOK bool
	}{
		{name: "prefixed token", body: "CSRF_TOKEN:abc123", want: "abc123", wantOK: true},
		{name: "trailing newline", body: "CSRF_TOKEN:abc123\n", want: "abc123", wantOK: true},
		{name: "extra fields keep second", body: "CSRF_TOKEN:abc:def", want: "abc", wantOK: true},
		{name: "no delimiter", body: "<html>login</html>"},
		{name: "empty token", body: "CSRF_TOKEN:"},
		{name: "empty body"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseCSRFToken(tc.body)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseAccountID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		want   string
		wantOK bool
	}{
		{
			name:   "embedded in wizard config",
			body:   "<script>\nvar wizard = {\n  accountId: \"acct-42\",\n  plan: \"sandbox\"\n};\n</script>",
			want:   "acct-42",
			wantOK: true,
		},
		{name: "first match wins", body: `accountId: "a", accountId: "b",`, want: "a", wantOK: true},
		{name: "missing trailing comma", body: `accountId: "acct-42"}`},
		{name: "empty identifier", body: `accountId: "",`},
		{name: "absent", body: "<html>please log in</html>"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseAccountID(tc.body)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
