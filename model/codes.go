package model

// ErrorCode is the machine readable code carried in a failed response envelope.
type ErrorCode string

const (
	CodeUnauthorized            ErrorCode = "UNAUTHORIZED"
	CodeForbidden               ErrorCode = "FORBIDDEN"
	CodeAuthFailed              ErrorCode = "AUTH_FAILED"
	CodeTokenExpired            ErrorCode = "TOKEN_EXPIRED"
	CodeTokenInvalid            ErrorCode = "TOKEN_INVALID"
	CodeValidationError         ErrorCode = "VALIDATION_ERROR"
	CodeBriefNotFound           ErrorCode = "BRIEF_NOT_FOUND"
	CodeUserNotFound            ErrorCode = "USER_NOT_FOUND"
	CodeDeliverableNotFound     ErrorCode = "DELIVERABLE_NOT_FOUND"
	CodeDiscussionNotFound      ErrorCode = "DISCUSSION_NOT_FOUND"
	CodeNotificationNotFound    ErrorCode = "NOTIFICATION_NOT_FOUND"
	CodeRouteNotFound           ErrorCode = "ROUTE_NOT_FOUND"
	CodeInternalServerError     ErrorCode = "INTERNAL_SERVER_ERROR"
	CodeBriefAlreadyExists      ErrorCode = "BRIEF_ALREADY_EXISTS"
	CodeInvalidStatusTransition ErrorCode = "INVALID_STATUS_TRANSITION"
)

// Form choices offered when submitting a brief.
var (
	WebsiteTypes = []string{
		"Corporate",
		"E-commerce",
		"Portfolio",
		"Hotel/Hospitality",
		"Restaurant",
		"Healthcare",
		"Education",
		"Non-profit",
		"Blog/News",
		"Entertainment",
	}

	FontPreferences = []string{"Modern", "Classic", "Playful", "Minimalist", "Elegant"}

	MoodThemes = []string{"Elegant", "Minimalist", "Fun", "Professional", "Techy", "Creative", "Bold", "Warm"}
)
