// Package data holds the entities shared by the NearHelp stores and services.
package data

import (
	"html/template"
	"time"
)

type User struct {
	ID           int64     `json:"id" db:"id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	Version      int       `json:"version" db:"version"`
}

// UserRef is the (id, name) pair used wherever another entity points at a user.
type UserRef struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type Profile struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Following []UserRef `json:"following"`
	Followers []UserRef `json:"followers"`
}

type Task struct {
	ID          int64     `json:"id" db:"id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Due         time.Time `json:"due" db:"due"`
	Location    string    `json:"location" db:"location"`
	Lat         float64   `json:"lat" db:"lat"`
	Lng         float64   `json:"lng" db:"lng"`
	WillPay     bool      `json:"willpay" db:"willpay"`
	Bounty      float64   `json:"bounty" db:"bounty"`
	Completed   bool      `json:"completed" db:"completed"`
	UserID      int64     `json:"user_id" db:"user_id"`
	Version     int       `json:"version" db:"version"`
}

// TaskView is a task with its owner and comments resolved for display.
type TaskView struct {
	Task
	Owner           UserRef       `json:"user"`
	Comments        []Comment     `json:"comments"`
	DescriptionHTML template.HTML `json:"description_html"`
	DateMonthDay    string        `json:"date_month_day"`
}

type TaskSummary struct {
	ID    int64  `json:"id" db:"id"`
	Title string `json:"title" db:"title"`
}

type Helper struct {
	ID          int64      `json:"id" db:"id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	TaskID      int64      `json:"task_id" db:"task_id"`
	HelperID    int64      `json:"helper_id" db:"helper_id"`
	CreatorID   int64      `json:"creator_id" db:"creator_id"`
	Notified    bool       `json:"notified" db:"notified"`
	Accepted    bool       `json:"accepted" db:"accepted"`
	Completed   bool       `json:"completed" db:"completed"`
	CompletedOn *time.Time `json:"completed_on,omitempty" db:"completed_on"`

	Volunteer         UserRef `json:"helper" db:"-"`
	TaskTitle         string  `json:"task_title,omitempty" db:"-"`
	PrettyCompletedOn string  `json:"pretty_completed_on,omitempty" db:"-"`
}

type Comment struct {
	ID        int64     `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Content   string    `json:"content" db:"content"`
	UserID    int64     `json:"user_id" db:"user_id"`
	TaskID    int64     `json:"task_id" db:"task_id"`

	Author      UserRef       `json:"user" db:"-"`
	ContentHTML template.HTML `json:"content_html" db:"-"`
	PrettyAt    string        `json:"pretty_at" db:"-"`
}

// Notification kinds.
const (
	KindFollow    = "follow"
	KindHelpOffer = "help_offer"
	KindComment   = "comment"
)

type Notification struct {
	ID        int64     `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UserID    int64     `json:"user_id" db:"user_id"`
	FromID    int64     `json:"from_id" db:"from_id"`
	Kind      string    `json:"kind" db:"kind"`
	Ref       int64     `json:"ref" db:"ref"`
	Subject   string    `json:"subject" db:"subject"`
	Read      bool      `json:"read" db:"read"`

	From UserRef `json:"from" db:"-"`
}
