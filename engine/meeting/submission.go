package meeting

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/minutemate/minutemate/engine/core"
)

type Platform string

const (
	PlatformGoogleMeet Platform = "google-meet"
	PlatformZoom       Platform = "zoom"
	PlatformTeams      Platform = "teams"
)

func (p Platform) IsValid() bool {
	switch p {
	case PlatformGoogleMeet, PlatformZoom, PlatformTeams:
		return true
	}
	return false
}

// Submission is one captured meeting handed to the pipeline. It is never
// mutated after NewSubmission returns.
type Submission struct {
	MeetingID    string    `json:"meeting_id"              validate:"required,max=200"`
	Title        string    `json:"title,omitempty"         validate:"max=500"`
	Platform     Platform  `json:"platform"                validate:"required"`
	Transcript   string    `json:"transcript"              validate:"required"`
	ManagerEmail string    `json:"manager_email,omitempty" validate:"omitempty,email"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

type Input struct {
	MeetingID    string
	Title        string
	Platform     string
	Transcript   string
	ManagerEmail string
	SubmittedAt  time.Time
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func NewSubmission(in Input) (Submission, error) {
	sub := Submission{
		MeetingID:    strings.TrimSpace(in.MeetingID),
		Title:        strings.TrimSpace(in.Title),
		Platform:     Platform(strings.ToLower(strings.TrimSpace(in.Platform))),
		Transcript:   strings.TrimSpace(in.Transcript),
		ManagerEmail: strings.TrimSpace(in.ManagerEmail),
		SubmittedAt:  in.SubmittedAt.UTC(),
	}
	if sub.Platform == "" {
		sub.Platform = PlatformGoogleMeet
	}
	if in.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	if !sub.Platform.IsValid() {
		return Submission{}, fmt.Errorf("%w: unknown platform %q", core.ErrInvalidSubmission, in.Platform)
	}
	if err := validate.Struct(sub); err != nil {
		return Submission{}, fmt.Errorf("%w: %w", core.ErrInvalidSubmission, err)
	}
	return sub, nil
}

func (s Submission) DisplayName() string {
	if s.Title != "" {
		return s.Title
	}
	return s.MeetingID
}
