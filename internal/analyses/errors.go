package analyses

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrSpendCeiling  = errors.New("monthly spend ceiling reached")
	ErrFileTooLarge  = errors.New("file exceeds the upload limit")
	ErrTextTooShort  = errors.New("script text is too short to analyze")
	ErrAlreadyFinal  = errors.New("analysis already reached a terminal status")
	ErrInvalidStatus = errors.New("invalid status transition")
)

const (
	ErrorCodeValidation = "VALIDATION_ERROR"
	ErrorCodeExtraction = "EXTRACTION_FAILED"
	ErrorCodeStorage    = "STORAGE_ERROR"
	ErrorCodeBudget     = "BUDGET_EXCEEDED"
	ErrorCodeInternal   = "INTERNAL_ERROR"
)
