package http

type StatusCode uint16

const (
	StatusOK                  StatusCode = 200 // RFC 7231, 6.3.1
	StatusBadRequest          StatusCode = 400 // RFC 7231, 6.5.1
	StatusNotFound            StatusCode = 404 // RFC 7231, 6.5.4
	StatusInternalServerError StatusCode = 500 // RFC 7231, 6.6.1
)

var unknownStatusCode = "Unknown Status Code"

func (code StatusCode) Text() string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusBadRequest:
		return "Bad Request"
	case StatusNotFound:
		return "Not Found"
	case StatusInternalServerError:
		return "Internal Server Error"
	}
	return unknownStatusCode
}
