// Package notify delivers one-time codes to phone numbers and email
// addresses.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrNoChannel is returned when no notifier handles an identity kind.
var ErrNoChannel = errors.New("notify: no channel for identity kind")

// Notifier delivers a message to a phone number or email address. It may fail
// transiently; callers decide whether a failure matters.
type Notifier interface {
	Send(ctx context.Context, to domain.Identity, msg Message) error
}

// Message is a rendered code notification.
type Message struct {
	Purpose   domain.OtpPurpose
	Code      string
	ExpiresIn time.Duration
	Subject   string
	Body      string
}

// DeliveryError records which channel failed to deliver a message.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("notify: %s delivery failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func deliveryError(channel string, err error) error {
	if err == nil {
		return nil
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return err
	}
	return &DeliveryError{Channel: channel, Err: err}
}

// Render builds the subject and body for a code notification.
func Render(purpose domain.OtpPurpose, code string, expiresIn time.Duration) Message {
	title := FormatPurpose(string(purpose))
	return Message{
		Purpose:   purpose,
		Code:      code,
		ExpiresIn: expiresIn,
		Subject:   fmt.Sprintf("%s Code", title),
		Body: fmt.Sprintf("Your %s code is %s. It expires in %s. Do not share it with anyone.",
			strings.ToLower(title), code, humanDuration(expiresIn)),
	}
}

// FormatPurpose turns "password_reset" into "Password Reset".
func FormatPurpose(purpose string) string {
	p := strings.ReplaceAll(purpose, "_", " ")
	return cases.Title(language.English).String(p)
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a moment"
	case d%time.Minute == 0:
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	default:
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	}
}

// Router dispatches to a notifier per identity kind.
type Router struct {
	Phone Notifier
	Email Notifier
}

func (r *Router) Send(ctx context.Context, to domain.Identity, msg Message) error {
	var n Notifier
	switch to.Kind {
	case domain.KindPhone:
		n = r.Phone
	case domain.KindEmail:
		n = r.Email
	}
	if n == nil {
		return deliveryError(string(to.Kind), ErrNoChannel)
	}
	return deliveryError(string(to.Kind), n.Send(ctx, to, msg))
}
