package models

import (
	"time"
)

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventActive    EventStatus = "active"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"
	EventPostponed EventStatus = "postponed"
	EventSoldOut   EventStatus = "sold_out"
)

var eventStatuses = []EventStatus{
	EventDraft, EventPublished, EventActive, EventCancelled, EventCompleted, EventPostponed, EventSoldOut,
}

func EventStatuses() []EventStatus {
	out := make([]EventStatus, len(eventStatuses))
	copy(out, eventStatuses)
	return out
}

func (s EventStatus) Valid() bool {
	for _, v := range eventStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Bookable reports whether tickets for an event in this status can be sold.
func (s EventStatus) Bookable() bool {
	return s == EventPublished || s == EventActive
}

type Event struct {
	ID           string      `db:"id" json:"id"`
	Title        string      `db:"title" json:"title"`
	Description  string      `db:"description" json:"description"`
	StartDate    time.Time   `db:"start_date" json:"start_date"`
	EndDate      time.Time   `db:"end_date" json:"end_date"`
	Location     string      `db:"location" json:"location"`
	Status       EventStatus `db:"status" json:"status"`
	MaxAttendees int         `db:"max_attendees" json:"max_attendees"` // 0 means unlimited
	CategoryID   string      `db:"category_id" json:"category_id"`
	ImageURL     string      `db:"image_url" json:"image_url"`
	OrganizerID  string      `db:"organizer_id" json:"organizer_id"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`

	Category *Category `db:"-" json:"category,omitempty"`
}

// EventPatch carries the optional attributes of an event update.
type EventPatch struct {
	Title        *string      `json:"title,omitempty"`
	Description  *string      `json:"description,omitempty"`
	StartDate    *time.Time   `json:"start_date,omitempty"`
	EndDate      *time.Time   `json:"end_date,omitempty"`
	Location     *string      `json:"location,omitempty"`
	Status       *EventStatus `json:"status,omitempty"`
	MaxAttendees *int         `json:"max_attendees,omitempty"`
	CategoryID   *string      `json:"category_id,omitempty"`
	ImageURL     *string      `json:"image_url,omitempty"`
}

// Apply copies every set field of p onto a copy of e.
func (p EventPatch) Apply(e Event) Event {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.StartDate != nil {
		e.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		e.EndDate = *p.EndDate
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.MaxAttendees != nil {
		e.MaxAttendees = *p.MaxAttendees
	}
	if p.CategoryID != nil {
		e.CategoryID = *p.CategoryID
	}
	if p.ImageURL != nil {
		e.ImageURL = *p.ImageURL
	}
	return e
}

type Category struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items       []T `json:"items"`
	Total       int `json:"total"`
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	LastPage    int `json:"last_page"`
}

const DefaultPerPage = 15

// NewPage builds a page descriptor, clamping page and perPage to sane values.
func NewPage[T any](items []T, total, page, perPage int) Page[T] {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	last := (total + perPage - 1) / perPage
	if last == 0 {
		last = 1
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, CurrentPage: page, PerPage: perPage, LastPage: last}
}
