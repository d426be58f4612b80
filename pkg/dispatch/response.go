package dispatch

import "net/http"

// Class is the response taxonomy shared by every gateway operation,
// regardless of which surface (webhook, ops API, CLI) carried it.
type Class string

const (
	ClassSuccess         Class = "success"
	ClassValidationError Class = "validation-error"
	ClassNotFound        Class = "not-found"
	ClassPartialFailure  Class = "partial-failure"
	ClassInternalError   Class = "internal-error"
)

// Response is the outcome of one dispatched operation. Failed and Total
// are populated for broadcast fan-outs; a partial failure reports overall
// ok at the transport level but enumerates how many targets failed.
type Response struct {
	Class   Class  `json:"class"`
	Message string `json:"message"`
	Failed  int    `json:"failed,omitempty"`
	Total   int    `json:"total,omitempty"`
}

// HTTPStatus maps the class onto an HTTP status code. Partial failure is
// 200: the operation itself worked, the body carries the failure count.
func (r Response) HTTPStatus() int {
	switch r.Class {
	case ClassSuccess, ClassPartialFailure:
		return http.StatusOK
	case ClassValidationError:
		return http.StatusBadRequest
	case ClassNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func success(msg string) Response {
	return Response{Class: ClassSuccess, Message: msg}
}

func validationError(msg string) Response {
	return Response{Class: ClassValidationError, Message: msg}
}

func notFound(msg string) Response {
	return Response{Class: ClassNotFound, Message: msg}
}

func internalError(msg string) Response {
	return Response{Class: ClassInternalError, Message: msg}
}
