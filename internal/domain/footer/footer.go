// Package footer implements the page footer behaviors: the copyright year,
// the "Show More" content toggle and the newsletter subscription intercept.
package footer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	labelShowMore = "Show More"
	labelShowLess = "Show Less"
)

// Anchors switches individual footer behaviors on or off. A disabled anchor
// removes the corresponding markup and turns its action into a no-op.
type Anchors struct {
	Year      bool `default:"true" usage:"Render the copyright year"`
	Toggle    bool `default:"true" usage:"Render the Show More/Show Less toggle"`
	Subscribe bool `default:"true" usage:"Render the newsletter subscription form"`
}

// Year returns the calendar year of now.
func Year(now time.Time) int {
	return now.Year()
}

// Toggle is the visibility state of the additional footer content.
type Toggle struct {
	Expanded bool
}

// Flip returns the toggle in the opposite state.
func (t Toggle) Flip() Toggle {
	return Toggle{Expanded: !t.Expanded}
}

// Display returns the CSS display mode for the additional content.
func (t Toggle) Display() string {
	if t.Expanded {
		return "block"
	}
	return "none"
}

// Label returns the text for the toggle control, naming the action a click
// would perform next.
func (t Toggle) Label() string {
	if t.Expanded {
		return labelShowLess
	}
	return labelShowMore
}

// Subscriber records a newsletter subscription.
type Subscriber interface {
	Subscribe(ctx context.Context, email string) error
}

// NormalizeEmail returns the stored form of an address: trimmed and lower
// case. Every path that stores or looks up a subscriber applies it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Confirmation is the outcome of a subscription submit.
type Confirmation struct {
	Email   string
	Message string
}

// Service handles subscription form submissions.
type Service struct {
	subscriber Subscriber
	lg         *zap.Logger
}

// NewService creates a Service delivering addresses to subscriber.
func NewService(subscriber Subscriber, lg *zap.Logger) *Service {
	return &Service{subscriber: subscriber, lg: lg}
}

// Submit hands email to the subscriber and returns the confirmation shown to
// the visitor. The address is not validated. Subscriber failures are logged
// and never reach the visitor.
func (s *Service) Submit(ctx context.Context, email string) Confirmation {
	if err := s.subscriber.Subscribe(ctx, email); err != nil {
		s.lg.Error("Subscription delivery failed", zap.Error(err))
	}
	return Confirmation{
		Email:   email,
		Message: fmt.Sprintf("Thank you for subscribing with email: %s", email),
	}
}

// LogSubscriber is a placeholder Subscriber that only logs the address.
type LogSubscriber struct {
	lg *zap.Logger
}

// NewLogSubscriber returns a LogSubscriber writing to lg.
func NewLogSubscriber(lg *zap.Logger) *LogSubscriber {
	return &LogSubscriber{lg: lg}
}

func (s *LogSubscriber) Subscribe(_ context.Context, email string) error {
	s.lg.Info("Newsletter subscription", zap.String("email", email))
	return nil
}
