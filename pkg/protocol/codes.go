package protocol

// OkCode is the closed set of success identifiers carried by ok units.
type OkCode string

const (
	OkLogin    OkCode = "LOGIN_OK"
	OkRegister OkCode = "REGISTER_OK"
	OkLogout   OkCode = "LOGOUT_OK"
	OkRooms    OkCode = "ROOMS"
	OkEnter    OkCode = "ENTER_OK"
	OkLeave    OkCode = "LEAVE_OK"
)

// ErrCode is the closed set of failure identifiers carried by err units.
type ErrCode string

const (
	ErrLogin     ErrCode = "LOGIN"
	ErrRegister  ErrCode = "REGISTER"
	ErrToken     ErrCode = "TOKEN"
	ErrAuth      ErrCode = "AUTH"
	ErrRoom      ErrCode = "ROOM"
	ErrNotInRoom ErrCode = "NOT_IN_ROOM"
	ErrRate      ErrCode = "RATE"
)

var okCodes = map[OkCode]struct{}{
	OkLogin: {}, OkRegister: {}, OkLogout: {}, OkRooms: {}, OkEnter: {}, OkLeave: {},
}

var errCodes = map[ErrCode]struct{}{
	ErrLogin: {}, ErrRegister: {}, ErrToken: {}, ErrAuth: {}, ErrRoom: {}, ErrNotInRoom: {}, ErrRate: {},
}

// ParseOkCode reports whether s names a known ok identifier.
func ParseOkCode(s string) (OkCode, bool) {
	_, ok := okCodes[OkCode(s)]
	return OkCode(s), ok
}

// ParseErrCode reports whether s names a known err identifier.
func ParseErrCode(s string) (ErrCode, bool) {
	_, ok := errCodes[ErrCode(s)]
	return ErrCode(s), ok
}
