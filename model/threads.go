package model

import "time"

type DeliverableType string

const (
	DeliverableFigma     DeliverableType = "FIGMA"
	DeliverablePrototype DeliverableType = "PROTOTYPE"
	DeliverableWebsite   DeliverableType = "WEBSITE"
	DeliverableDocument  DeliverableType = "DOCUMENT"
)

// Deliverable is a link artifact attached to a brief by admin staff.
type Deliverable struct {
	ID          string          `json:"id"`
	BriefID     string          `json:"briefId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Link        string          `json:"link"`
	Type        DeliverableType `json:"type"`
	AddedAt     time.Time       `json:"addedAt"`
}

type CreateDeliverableRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Link        string          `json:"link"`
	Type        DeliverableType `json:"type"`
}

type DeliverableList struct {
	Deliverables []Deliverable `json:"deliverables"`
}

// Author is the trimmed user embedded in a discussion message.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Discussion is a message in a brief's conversation thread.
type Discussion struct {
	ID          string    `json:"id"`
	BriefID     string    `json:"briefId"`
	UserID      string    `json:"userId"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	IsFromAdmin bool      `json:"isFromAdmin"`
	User        *Author   `json:"user,omitempty"`
	Brief       *BriefRef `json:"brief,omitempty"`
}

type CreateDiscussionRequest struct {
	Message string `json:"message"`
}

type DiscussionList struct {
	Discussions []Discussion `json:"discussions"`
}

type NotificationType string

const (
	NotificationStatusUpdate     NotificationType = "STATUS_UPDATE"
	NotificationNewMessage       NotificationType = "NEW_MESSAGE"
	NotificationDeliverableAdded NotificationType = "DELIVERABLE_ADDED"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	BriefID   string           `json:"briefId"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	IsRead    bool             `json:"isRead"`
	Timestamp time.Time        `json:"timestamp"`
	Type      NotificationType `json:"type"`
	Brief     *BriefRef        `json:"brief,omitempty"`
}

type MarkNotificationReadRequest struct {
	IsRead bool `json:"isRead"`
}

type NotificationList struct {
	Notifications []Notification `json:"notifications"`
}

type UnreadCount struct {
	UnreadCount int `json:"unreadCount"`
}
