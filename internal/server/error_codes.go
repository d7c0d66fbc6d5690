package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument   = 1000
	ErrCodeInvalidJSON       = 1001
	ErrCodeRequestTooLarge   = 1002
	ErrCodeInvalidQuery      = 1003
	ErrCodeInvalidID         = 1004
	ErrCodeInvalidFormat     = 1005
	ErrCodeInvalidRange      = 1006
	ErrCodeMissingField      = 1007
	ErrCodeInvalidObjectID   = 1008
	ErrCodeInvalidEventType  = 1009
	ErrCodeInvalidWebhookURL = 1010
	ErrCodeInvalidCursor     = 1011
	ErrCodeMissingConfirm    = 1012

	// Domain state (2xxx)
	ErrCodeNotFound                = 2000
	ErrCodeSourceNotFound          = 2001
	ErrCodeFlowNotFound            = 2002
	ErrCodeObjectNotFound          = 2003
	ErrCodeWebhookNotFound         = 2004
	ErrCodeDeletionRequestNotFound = 2005
	ErrCodeSegmentOverlap          = 2101
	ErrCodeIDExists                = 2102
	ErrCodeReadOnlyFlow            = 2201

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003
	ErrCodeFileTooLarge      = 3004

	// Internal/system (4xxx)
	ErrCodeInternal           = 4001
	ErrCodeStoreFailure       = 4002
	ErrCodeObjectStoreFailure = 4003
	ErrCodeNotImplemented     = 4005
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 403:
		return ErrCodeForbidden
	case 404:
		return ErrCodeNotFound
	case 409:
		return ErrCodeIDExists
	case 413:
		return ErrCodeFileTooLarge
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	case 501:
		return ErrCodeNotImplemented
	default:
		return 0
	}
}
