package supabase

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/julianstephens/habitual/internal/backend"
)

// errorBody covers the GoTrue (v1 and v2) and PostgREST error shapes.
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func (b errorBody) message() string {
	for _, m := range []string{b.Msg, b.ErrorDescription, b.Message, b.Error} {
		if m != "" {
			return m
		}
	}
	return ""
}

func (b errorBody) code() string {
	if b.ErrorCode != "" {
		return b.ErrorCode
	}
	var s string
	if err := json.Unmarshal(b.Code, &s); err == nil {
		return s
	}
	return b.Error
}

func decodeError(path string, status int, data []byte) error {
	var body errorBody
	_ = json.Unmarshal(data, &body)

	msg := body.message()
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	if msg == "" {
		msg = fmt.Sprintf("%d %s", status, http.StatusText(status))
	}

	e := &backend.Error{
		Status:  status,
		Code:    body.code(),
		Message: msg,
	}

	switch {
	case strings.HasPrefix(path, authPath) && status < http.StatusInternalServerError:
		e.Kind = backend.KindAuth
	case e.Code == backend.CodeRowLevelSecurity, status == http.StatusUnauthorized, status == http.StatusForbidden:
		e.Kind = backend.KindAccess
	case status < http.StatusInternalServerError:
		e.Kind = backend.KindInvalid
	default:
		e.Kind = backend.KindUnknown
	}
	return e
}
