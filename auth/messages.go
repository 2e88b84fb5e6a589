package auth

import "github.com/jrsteele09/go-brief-portal/model"

const defaultAuthErrorMessage = "An error occurred. Please try again."

var authErrorMessages = map[model.ErrorCode]string{
	model.CodeUnauthorized:         "Please log in to continue.",
	model.CodeForbidden:            "You do not have permission to access this resource.",
	model.CodeAuthFailed:           "Invalid email or password. Please check your credentials.",
	model.CodeTokenExpired:         "Your session has expired. Please log in again.",
	model.CodeTokenInvalid:         "Invalid or malformed token. Please log in again.",
	model.CodeValidationError:      "Please check your input and try again.",
	model.CodeBriefNotFound:        "The requested brief could not be found.",
	model.CodeUserNotFound:         "User account not found.",
	model.CodeDeliverableNotFound:  "The requested deliverable could not be found.",
	model.CodeDiscussionNotFound:   "The requested discussion could not be found.",
	model.CodeNotificationNotFound: "The requested notification could not be found.",
	model.CodeRouteNotFound:        "The requested page could not be found.",
	model.CodeInternalServerError:  "An unexpected error occurred. Please try again later.",
}

// AuthErrorMessage returns the user facing message for an error code.
func AuthErrorMessage(code model.ErrorCode) string {
	if msg, ok := authErrorMessages[code]; ok {
		return msg
	}
	return defaultAuthErrorMessage
}
