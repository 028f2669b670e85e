// Package classify maps raw failures to a closed error taxonomy.
//
// Every failure that can reach a caller is funneled through Classify, which
// assigns one of a fixed set of kinds carrying a retryability flag, severity,
// and remediation hints. Classification never fails: unrecognized input maps
// to InternalError.
package classify

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/lekhoa/enhanceq/internal/core/domain"
)

// Severity ranks how disruptive a failure kind is for the caller
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Kind is one entry of the error taxonomy. Kinds are package-level constants
// in spirit: defined at build time, never mutated at runtime.
type Kind struct {
	Code        string
	Retryable   bool
	Severity    Severity
	Suggestions []string
}

var (
	NetworkError = Kind{
		Code: "network_error", Retryable: true, Severity: SeverityHigh,
		Suggestions: []string{"check your connection", "retry in a moment"},
	}
	RateLimited = Kind{
		Code: "rate_limited", Retryable: true, Severity: SeverityMedium,
		Suggestions: []string{"wait before retrying"},
	}
	ServiceUnavailable = Kind{
		Code: "service_unavailable", Retryable: true, Severity: SeverityHigh,
		Suggestions: []string{"the service is temporarily down", "retry later"},
	}
	PayloadTooLarge = Kind{
		Code: "payload_too_large", Retryable: false, Severity: SeverityMedium,
		Suggestions: []string{"use a smaller source image"},
	}
	InvalidInput = Kind{
		Code: "invalid_input", Retryable: false, Severity: SeverityMedium,
		Suggestions: []string{"check the request parameters"},
	}
	ProcessingTimeout = Kind{
		Code: "processing_timeout", Retryable: true, Severity: SeverityHigh,
		Suggestions: []string{"the job took too long", "try again"},
	}
	DuplicateInFlight = Kind{
		Code: "duplicate_in_flight", Retryable: false, Severity: SeverityLow,
		Suggestions: []string{"an identical request is already running"},
	}
	Cancelled = Kind{
		Code: "cancelled", Retryable: false, Severity: SeverityLow,
	}
	InternalError = Kind{
		Code: "internal_error", Retryable: true, Severity: SeverityHigh,
		Suggestions: []string{"retry; report if it persists"},
	}

	// Domain kinds surfaced from the remote error payload
	SubjectNotInFrame = Kind{
		Code: "subject_not_in_frame", Retryable: false, Severity: SeverityMedium,
		Suggestions: []string{"recapture with the subject fully visible"},
	}
	UnsupportedFormat = Kind{
		Code: "unsupported_format", Retryable: false, Severity: SeverityMedium,
		Suggestions: []string{"convert the source to a supported format"},
	}
)

// domainKinds maps remote domain codes to their taxonomy entry. Codes not
// listed here fall back to InvalidInput.
var domainKinds = map[string]Kind{
	"subject_not_in_frame": SubjectNotInFrame,
	"unsupported_format":   UnsupportedFormat,
}

// Classified wraps an underlying error with its taxonomy entry and a stable
// request id for correlation.
type Classified struct {
	Kind      Kind
	RequestID string
	Message   string
	cause     error
}

func (c *Classified) Error() string {
	if c.Message != "" {
		return c.Kind.Code + ": " + c.Message
	}
	return c.Kind.Code
}

func (c *Classified) Unwrap() error { return c.cause }

// NewClassified builds a Classified for a kind decided by the caller
// (e.g. DuplicateInFlight, Cancelled) without running the mapping rules.
func NewClassified(kind Kind, message string) *Classified {
	return &Classified{Kind: kind, RequestID: newRequestID(), Message: message}
}

// Classify maps a raw failure to its taxonomy entry. Rules are applied in
// priority order; anything unrecognized becomes InternalError. Classify never
// panics on unknown input.
func Classify(err error) *Classified {
	c := &Classified{RequestID: newRequestID()}
	if err != nil {
		c.cause = err
		c.Message = err.Error()
	}
	c.Kind = kindOf(err)

	slog.Debug("classified error",
		"kind", c.Kind.Code,
		"retryable", c.Kind.Retryable,
		"severity", c.Kind.Severity,
		"request_id", c.RequestID,
		"error", err,
	)
	return c
}

func kindOf(err error) Kind {
	if err == nil {
		return InternalError
	}

	// Already classified: keep the original kind.
	var pre *Classified
	if errors.As(err, &pre) {
		return pre.Kind
	}

	if errors.Is(err, context.Canceled) {
		return Cancelled
	}

	// Transport-layer failures produce no response at all.
	if isTransport(err) {
		return NetworkError
	}

	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return kindOfAPI(apiErr)
	}

	if strings.Contains(strings.ToLower(err.Error()), "unavailable") {
		return ServiceUnavailable
	}

	return InternalError
}

func kindOfAPI(apiErr *domain.APIError) Kind {
	switch apiErr.StatusCode {
	case 429:
		return RateLimited
	case 503:
		return ServiceUnavailable
	case 413:
		return PayloadTooLarge
	case 400:
		if kind, ok := domainKinds[apiErr.DomainCode]; ok {
			return kind
		}
		return InvalidInput
	}

	if strings.Contains(strings.ToLower(apiErr.Message), "unavailable") {
		return ServiceUnavailable
	}

	return InternalError
}

func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT)
}

// newRequestID returns a time-ordered id so correlated log lines sort
// chronologically.
func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
