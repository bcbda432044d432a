package utils

import "time"

// Application Constants
const (
	AppName = "eta-prediction-service"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Authentication
	AdminRole          = "admin"
	AdminTokenTTL      = 12 * time.Hour
	RequestIDHeader    = "X-Request-ID"
	ContextKeyRequest  = "request_id"
	ContextKeySubject  = "subject"
	ContextKeyUserRole = "user_role"

	// Route prediction
	MaxRouteDistanceKM = 1000.0

	// Request handling
	PredictionTimeout = 10 * time.Second
)

// Base speeds (km/h) assumed when only coordinates are known.
const (
	TruckBaseSpeed   = 50.0
	BikeBaseSpeed    = 40.0
	DefaultBaseSpeed = 60.0
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrInvalidToken      = "invalid token"
	ErrTokenExpired      = "token expired"
	ErrInternalServer    = "internal server error"
	ErrUnauthorized      = "unauthorized"
	ErrForbidden         = "forbidden"
	ErrValidationFailed  = "validation failed"
	ErrModelsUnavailable = "models not loaded"
)

// Error Codes
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeUnknownValue   = "UNKNOWN_CATEGORY"
	CodeInvalidModel   = "INVALID_MODEL"
	CodeModelNotLoaded = "MODEL_NOT_LOADED"
	CodeUnavailable    = "SERVICE_UNAVAILABLE"
	CodePrediction     = "PREDICTION_ERROR"
	CodeBatchTooLarge  = "BATCH_TOO_LARGE"
	CodeInvalidRoute   = "INVALID_ROUTE"
)

// Cache Keys
const (
	CachePredictionPrefix = "predict:"
)
