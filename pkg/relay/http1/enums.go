package http1

import "strconv"

// Schema is the protocol version of a message.
type Schema uint8

const (
	SchemaUnknown Schema = iota
	SchemaHTTP10
	SchemaHTTP11
)

var schemaNames = [...]string{
	SchemaUnknown: "",
	SchemaHTTP10:  "HTTP/1.0",
	SchemaHTTP11:  "HTTP/1.1",
}

// String returns the wire form, or "" for SchemaUnknown.
func (s Schema) String() string {
	if int(s) < len(schemaNames) {
		return schemaNames[s]
	}
	return ""
}

// ParseSchema maps a version token to a Schema. Unrecognized tokens yield
// SchemaUnknown; rejecting them is left to request processing.
func ParseSchema(b []byte) Schema {
	for s := SchemaHTTP10; int(s) < len(schemaNames); s++ {
		if string(b) == schemaNames[s] {
			return s
		}
	}
	return SchemaUnknown
}

// Method is a request verb. Only GET and HEAD are served; every other verb
// parses to MethodUnknown.
type Method uint8

const (
	MethodUnknown Method = iota
	MethodGET
	MethodHEAD
)

var methodNames = [...]string{
	MethodUnknown: "UNKNOWN",
	MethodGET:     "GET",
	MethodHEAD:    "HEAD",
}

func (m Method) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return methodNames[MethodUnknown]
}

// ParseMethod maps a verb token to a Method. Methods are case-sensitive.
func ParseMethod(b []byte) Method {
	for m := MethodGET; int(m) < len(methodNames); m++ {
		if string(b) == methodNames[m] {
			return m
		}
	}
	return MethodUnknown
}

// Status is a numeric response status code. Zero means unset.
type Status uint16

const (
	StatusUnknown              Status = 0
	StatusOK                   Status = 200
	StatusNoContent            Status = 204
	StatusNotModified          Status = 304
	StatusBadRequest           Status = 400
	StatusNotFound             Status = 404
	StatusUnsupportedMediaType Status = 415
	StatusInternalServerError  Status = 500
	StatusNotImplemented       Status = 501
)

var statusReasons = map[Status]string{
	StatusOK:                   "OK",
	StatusNoContent:            "No Content",
	StatusNotModified:          "Not Modified",
	StatusBadRequest:           "Bad Request",
	StatusNotFound:             "Not Found",
	StatusUnsupportedMediaType: "Unsupported Media Type",
	StatusInternalServerError:  "Internal Server Error",
	StatusNotImplemented:       "Not Implemented",
}

// Code returns the numeric status code.
func (s Status) Code() int {
	return int(s)
}

// Reason returns the standard reason phrase, or "" if the code is unmapped.
func (s Status) Reason() string {
	return statusReasons[s]
}

// Valid reports whether s fits a three-digit status line.
func (s Status) Valid() bool {
	return s >= 100 && s <= 999
}

func (s Status) String() string {
	if s == StatusUnknown {
		return "unknown"
	}
	if r := s.Reason(); r != "" {
		return strconv.Itoa(int(s)) + " " + r
	}
	return strconv.Itoa(int(s))
}
