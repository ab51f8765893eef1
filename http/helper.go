package http

import (
	"errors"
	"math"
)

var errInvalidNumber = errors.New("invalid number")

func atoi(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, errInvalidNumber
	}

	var n int
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, errInvalidNumber
		}
		if n > (math.MaxInt-int(c-'0'))/10 {
			return 0, errInvalidNumber
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
