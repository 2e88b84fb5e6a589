package portal

import (
	"github.com/jrsteele09/go-brief-portal/auth"
	"github.com/jrsteele09/go-brief-portal/gateway"
	"github.com/jrsteele09/go-brief-portal/model"
)

const (
	TryAgainMessage    = "Unable to reach the server. Please check your connection and try again."
	NotFoundMessage    = "The requested resource was not found."
	briefFallback      = "An error occurred while managing briefs."
	discussionFallback = "An error occurred while managing discussions."
)

// Messages shared by the brief and discussion tables.
var commonMessages = map[model.ErrorCode]string{
	model.CodeBriefNotFound:           "Brief not found.",
	model.CodeUserNotFound:            "User not found.",
	model.CodeUnauthorized:            "You are not authorized to perform this action.",
	model.CodeInternalServerError:     "An error occurred while processing your request.",
	model.CodeAuthFailed:              "Authentication failed.",
	model.CodeTokenExpired:            "Your session has expired.",
	model.CodeTokenInvalid:            "Invalid token.",
	model.CodeRouteNotFound:           "API endpoint not found.",
	model.CodeDeliverableNotFound:     "Deliverable not found.",
	model.CodeDiscussionNotFound:      "Discussion not found.",
	model.CodeNotificationNotFound:    "Notification not found.",
	model.CodeBriefAlreadyExists:      "A brief with this name already exists.",
	model.CodeInvalidStatusTransition: "Invalid status transition.",
}

var briefMessages = map[model.ErrorCode]string{
	model.CodeValidationError: "Please check your brief data and try again.",
	model.CodeForbidden:       "You do not have permission to access this brief.",
}

var discussionMessages = map[model.ErrorCode]string{
	model.CodeValidationError: "Please check your message and try again.",
	model.CodeForbidden:       "You do not have permission to access this discussion.",
}

func lookup(specific map[model.ErrorCode]string, code model.ErrorCode, fallback string) string {
	if msg, ok := specific[code]; ok {
		return msg
	}
	if msg, ok := commonMessages[code]; ok {
		return msg
	}
	return fallback
}

// BriefErrorMessage maps a backend error code raised by a brief operation.
func BriefErrorMessage(code model.ErrorCode) string {
	return lookup(briefMessages, code, briefFallback)
}

// DiscussionErrorMessage maps a backend error code raised by a discussion operation.
func DiscussionErrorMessage(code model.ErrorCode) string {
	return lookup(discussionMessages, code, discussionFallback)
}

// ErrorMessage turns a failed call into the message shown to the user.
// Transport failures ask the user to try again. Codes go through table,
// or the general auth table when table is nil. A 404 without a code is
// reported as a missing resource.
func ErrorMessage(err error, table func(model.ErrorCode) string) string {
	if table == nil {
		table = auth.AuthErrorMessage
	}
	if gateway.IsTransport(err) {
		return TryAgainMessage
	}
	if code := gateway.CodeOf(err); code != "" {
		return table(code)
	}
	if gateway.KindOf(err) == gateway.KindNotFound {
		return NotFoundMessage
	}
	return table("")
}
