package backend

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
)

// Error is the decoded body of a non 2xx response.
type Error struct {
	Status int    `json:"-"`
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%d/%d] %s", e.Status, e.Code, e.Msg)
}

func IsErrorCodes(err error, codes ...int) bool {
	var e *Error
	if errors.As(err, &e) {
		return slices.Contains(codes, e.Code)
	}

	return false
}

// IsUnauthorized reports whether the backend refused the token, whatever
// code the body carried.
func IsUnauthorized(err error) bool {
	var e *Error
	return errors.As(err, &e) && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusNotFound
}
