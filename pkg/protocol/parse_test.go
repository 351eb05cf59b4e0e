package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Grammar(t *testing.T) {
	tests := []struct {
		line string
		want Unit
	}{
		{"login alice secret", Login{User: "alice", Pass: "secret"}},
		{"register bob pw", Register{User: "bob", Pass: "pw"}},
		{"login-token abc.def", TokenLogin{Token: "abc.def"}},
		{"logout", Logout{}},
		{"list-rooms", ListRooms{}},
		{`enter "AI Programming"`, Enter{Room: "AI Programming"}},
		{"leave", Leave{}},
		{`send "hello there"`, Send{Text: "hello there"}},
		{`recv 7 alice "hi all"`, Recv{ID: 7, User: "alice", Text: "hi all"}},
		{"sync 0", Sync{ID: 0}},
		{"ok LOGIN_OK tok", Ok{Code: OkLogin, Data: "tok"}},
		{"ok LEAVE_OK", Ok{Code: OkLeave}},
		{"err REGISTER", Err{Code: ErrRegister}},
		{"ping", Ping{}},
		{"pong", Pong{}},
		{"  ping  \r", Ping{}},
		{"send\t\"tabbed\"", Send{Text: "tabbed"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.line))
		})
	}
}

func TestParse_BlankIsEOF(t *testing.T) {
	for _, line := range []string{"", " ", "\t\r\n"} {
		assert.Equal(t, EOF{}, Parse(line), "line %q", line)
	}
}

func TestParse_MalformedIsInvalid(t *testing.T) {
	lines := []string{
		"shout hello",
		"LOGIN alice secret",
		"login alice",
		"login alice secret extra",
		"logout now",
		"enter",
		"send hello world",
		"recv x alice hi",
		"recv -1 alice hi",
		"recv 1 alice",
		"recv 99999999999999999999999 alice hi",
		"sync",
		"sync 1.5",
		"sync -3",
		"ok",
		"ok NOPE",
		"ok LOGIN_OK a b",
		"err",
		"err login",
		"err LOGIN extra",
		`send "unterminated`,
		`send trailing\`,
		"ping pong",
	}

	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			var got Unit
			require.NotPanics(t, func() { got = Parse(line) })
			assert.Equal(t, KindInvalid, got.Kind())
		})
	}
}

func TestParse_RejectsInvalidUTF8(t *testing.T) {
	lines := []string{
		"login alice pa\xffss",
		"send \"caf\xc3\"",
		"\xfe",
	}
	for _, line := range lines {
		assert.Equal(t, Invalid{}, Parse(line), "line %q", line)
	}
	assert.Equal(t, Send{Text: "café"}, Parse(`send "café"`))
}

func TestRoundTrip(t *testing.T) {
	units := []Unit{
		Login{User: "alice", Pass: "s3cret"},
		Login{User: "alice", Pass: `pa"ss word\`},
		Register{User: "bob", Pass: ""},
		TokenLogin{Token: "MTcwMDAwMDAwMHxabc-_="},
		Logout{},
		ListRooms{},
		Enter{Room: "AI Programming"},
		Leave{},
		Send{Text: "hello"},
		Send{Text: "multi word\twith \"quotes\" and \\ slashes\nand lines"},
		Send{Text: ""},
		Recv{ID: 0, User: "ai", Text: "line one\r\nline two"},
		Recv{ID: 12345, User: "carol", Text: "ünïcødé ✓"},
		Sync{ID: 0},
		Sync{ID: 42},
		Ok{Code: OkRooms, Data: "general,AI Ideas*"},
		Ok{Code: OkLogout},
		Err{Code: ErrNotInRoom},
		Ping{},
		Pong{},
	}

	for _, u := range units {
		t.Run(u.String(), func(t *testing.T) {
			assert.Equal(t, u, Parse(u.String()))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "login-token", KindTokenLogin.String())
	assert.Equal(t, "list-rooms", KindListRooms.String())
	assert.Equal(t, "unknown", Kind(999).String())
}

func TestTokenize(t *testing.T) {
	args, err := Tokenize(` a  "b c" "" d\ e "f\"g" `)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b c", "", "d e", `f"g`}, args)

	args, err = Tokenize("")
	require.NoError(t, err)
	assert.Empty(t, args)

	_, err = Tokenize(`"open`)
	assert.Error(t, err)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "plain", Quote("plain"))
	assert.Equal(t, `""`, Quote(""))
	assert.Equal(t, `"two words"`, Quote("two words"))
	assert.Equal(t, `"a\\b"`, Quote(`a\b`))
}
