package protocol

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type builder func(args []string) Unit

var builders = map[string]builder{
	KindLogin.String():      buildCredentials(func(u, p string) Unit { return Login{User: u, Pass: p} }),
	KindRegister.String():   buildCredentials(func(u, p string) Unit { return Register{User: u, Pass: p} }),
	KindTokenLogin.String(): buildOne(func(s string) Unit { return TokenLogin{Token: s} }),
	KindLogout.String():     buildBare(Logout{}),
	KindListRooms.String():  buildBare(ListRooms{}),
	KindEnter.String():      buildOne(func(s string) Unit { return Enter{Room: s} }),
	KindLeave.String():      buildBare(Leave{}),
	KindSend.String():       buildOne(func(s string) Unit { return Send{Text: s} }),
	KindRecv.String():       buildRecv,
	KindSync.String():       buildSync,
	KindOk.String():         buildOk,
	KindErr.String():        buildErr,
	KindPing.String():       buildBare(Ping{}),
	KindPong.String():       buildBare(Pong{}),
}

// Parse turns one line into a Unit. It never fails: blank input yields EOF
// and anything outside the grammar, including bytes that are not UTF-8,
// yields Invalid.
func Parse(s string) Unit {
	if !utf8.ValidString(s) {
		return Invalid{}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return EOF{}
	}

	command, rest := s, ""
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		command, rest = s[:i], s[i:]
	}

	build, ok := builders[command]
	if !ok {
		return Invalid{}
	}

	args, err := Tokenize(rest)
	if err != nil {
		return Invalid{}
	}
	return build(args)
}

func buildBare(u Unit) builder {
	return func(args []string) Unit {
		if len(args) != 0 {
			return Invalid{}
		}
		return u
	}
}

func buildOne(f func(string) Unit) builder {
	return func(args []string) Unit {
		if len(args) != 1 {
			return Invalid{}
		}
		return f(args[0])
	}
}

func buildCredentials(f func(user, pass string) Unit) builder {
	return func(args []string) Unit {
		if len(args) != 2 {
			return Invalid{}
		}
		return f(args[0], args[1])
	}
}

func buildRecv(args []string) Unit {
	if len(args) != 3 {
		return Invalid{}
	}
	id, ok := parseOffset(args[0])
	if !ok {
		return Invalid{}
	}
	return Recv{ID: id, User: args[1], Text: args[2]}
}

func buildSync(args []string) Unit {
	if len(args) != 1 {
		return Invalid{}
	}
	id, ok := parseOffset(args[0])
	if !ok {
		return Invalid{}
	}
	return Sync{ID: id}
}

func buildOk(args []string) Unit {
	if len(args) < 1 || len(args) > 2 {
		return Invalid{}
	}
	code, ok := ParseOkCode(args[0])
	if !ok {
		return Invalid{}
	}
	var data string
	if len(args) == 2 {
		data = args[1]
	}
	return Ok{Code: code, Data: data}
}

func buildErr(args []string) Unit {
	if len(args) != 1 {
		return Invalid{}
	}
	code, ok := ParseErrCode(args[0])
	if !ok {
		return Invalid{}
	}
	return Err{Code: code}
}

func parseOffset(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
