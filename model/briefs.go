package model

import (
	"strings"
	"time"
)

// BriefStatus is a step in the brief workflow.
type BriefStatus string

const (
	StatusPending    BriefStatus = "PENDING"
	StatusReviewed   BriefStatus = "REVIEWED"
	StatusInProgress BriefStatus = "IN_PROGRESS"
	StatusCompleted  BriefStatus = "COMPLETED"
)

// BriefStatuses lists the workflow in order.
var BriefStatuses = []BriefStatus{StatusPending, StatusReviewed, StatusInProgress, StatusCompleted}

// ParseBriefStatus normalises a status string, accepting "in-progress" style names.
func ParseBriefStatus(s string) (BriefStatus, bool) {
	normalised := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for _, status := range BriefStatuses {
		if string(status) == normalised {
			return status, true
		}
	}
	return "", false
}

func (s *BriefStatus) UnmarshalText(b []byte) error {
	if status, ok := ParseBriefStatus(string(b)); ok {
		*s = status
		return nil
	}
	*s = BriefStatus(b)
	return nil
}

type Brief struct {
	ID                 string        `json:"id"`
	ClientID           string        `json:"clientId"`
	ProjectName        string        `json:"projectName"`
	ProjectDescription string        `json:"projectDescription"`
	WebsiteType        string        `json:"websiteType"`
	BrandName          string        `json:"brandName"`
	BrandSlogan        *string       `json:"brandSlogan,omitempty"`
	MainColor          string        `json:"mainColor"`
	SecondaryColor     *string       `json:"secondaryColor,omitempty"`
	FontPreference     string        `json:"fontPreference"`
	MoodTheme          []string      `json:"moodTheme"`
	ReferenceLinks     []string      `json:"referenceLinks"`
	LogoAssets         *string       `json:"logoAssets,omitempty"`
	AdditionalNotes    *string       `json:"additionalNotes,omitempty"`
	Status             BriefStatus   `json:"status"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
	Deliverables       []Deliverable `json:"deliverables,omitempty"`
	Discussions        []Discussion  `json:"discussions,omitempty"`
}

// BriefRef is the trimmed brief embedded in discussions and notifications.
type BriefRef struct {
	ProjectName string `json:"projectName"`
}

type BriefStatistics struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Reviewed   int `json:"reviewed"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
}

// Count returns the number of briefs statistics attribute to status.
func (s BriefStatistics) Count(status BriefStatus) int {
	switch status {
	case StatusPending:
		return s.Pending
	case StatusReviewed:
		return s.Reviewed
	case StatusInProgress:
		return s.InProgress
	case StatusCompleted:
		return s.Completed
	}
	return 0
}

type CreateBriefRequest struct {
	ProjectName        string   `json:"projectName" yaml:"projectName"`
	ProjectDescription string   `json:"projectDescription" yaml:"projectDescription"`
	WebsiteType        string   `json:"websiteType" yaml:"websiteType"`
	BrandName          string   `json:"brandName" yaml:"brandName"`
	BrandSlogan        *string  `json:"brandSlogan,omitempty" yaml:"brandSlogan,omitempty"`
	MainColor          string   `json:"mainColor" yaml:"mainColor"`
	SecondaryColor     *string  `json:"secondaryColor,omitempty" yaml:"secondaryColor,omitempty"`
	FontPreference     string   `json:"fontPreference" yaml:"fontPreference"`
	MoodTheme          []string `json:"moodTheme" yaml:"moodTheme"`
	ReferenceLinks     []string `json:"referenceLinks" yaml:"referenceLinks"`
	LogoAssets         *string  `json:"logoAssets,omitempty" yaml:"logoAssets,omitempty"`
	AdditionalNotes    *string  `json:"additionalNotes,omitempty" yaml:"additionalNotes,omitempty"`
}

type UpdateBriefStatusRequest struct {
	Status BriefStatus `json:"status"`
}

// BriefList is the payload of the brief list endpoint.
type BriefList struct {
	Briefs []Brief `json:"briefs"`
	Total  int     `json:"total"`
}
