package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

func creatorMismatchError(annoID, inputCreator, requester string) *DomainError {
	return domainError(http.StatusConflict, "CREATOR_MISMATCH",
		fmt.Sprintf("anno(%s): input creator(%s) does not match requesting user(%s), not created", annoID, inputCreator, requester), nil)
}

func duplicateIDError(annoID string) *DomainError {
	return domainError(http.StatusConflict, "DUPLICATE_ANNOTATION_ID",
		fmt.Sprintf("anno(%s): already exists, failed to create", annoID), nil)
}

// notFoundError covers both genuinely absent annotations and
// authorization failures: a caller without rights learns nothing about
// the record's existence.
func notFoundError(annoID string) *DomainError {
	return domainError(http.StatusNotFound, "ANNOTATION_NOT_FOUND",
		fmt.Sprintf("anno(%s) not found", annoID), nil)
}

func unknownFormatError(format string) *DomainError {
	return domainError(http.StatusBadRequest, "UNKNOWN_OUTPUT_FORMAT",
		fmt.Sprintf("unknown output format(%s)", format), nil)
}

func conversionError(message string) *DomainError {
	return domainError(http.StatusInternalServerError, "FORMAT_CONVERSION_ERROR", message, nil)
}
