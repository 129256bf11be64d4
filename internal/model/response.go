package model

// Envelope is the JSON body every endpoint answers with:
// {"data": ..., "error": bool, "msg": string}.
type Envelope struct {
	Data  any    `json:"data"`
	Error bool   `json:"error"`
	Msg   string `json:"msg"`
}

// OK wraps a successful result.
func OK(data any, msg string) Envelope {
	return Envelope{Data: data, Error: false, Msg: msg}
}

// Fail wraps a failure message; data is always null.
func Fail(msg string) Envelope {
	return Envelope{Data: nil, Error: true, Msg: msg}
}
