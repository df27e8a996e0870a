package llm

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a terminal completion failure. Provider errors carry no
// stable structure across SDKs, so classification inspects message text.
type Kind int

const (
	// KindTransient covers everything not recognized below. Safe to
	// suggest a retry to the visitor.
	KindTransient Kind = iota
	// KindConfig means credentials or model configuration are broken.
	// The detailed cause is logged server-side only.
	KindConfig
	// KindRateLimited means the provider rejected the request for quota
	// or rate reasons. No automatic retry.
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "transient"
	}
}

// Error wraps a completion failure with its classification and the last
// model attempted.
type Error struct {
	Kind  Kind
	Model string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("completion failed (%s, model %s): %v", e.Kind, e.Model, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the classification from an error chain, defaulting to
// transient.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindTransient
}

var configMarkers = []string{
	"api key",
	"apikey",
	"unauthorized",
	"authentication",
	"invalid_api_key",
	"model_not_found",
	"does not exist",
	"no such model",
	"missing",
	"gateway",
}

var rateMarkers = []string{
	"429",
	"rate limit",
	"rate_limit",
	"too many requests",
	"quota",
	"overloaded",
}

// Classify buckets a raw provider error by its message content.
func Classify(err error) Kind {
	msg := strings.ToLower(err.Error())
	for _, m := range rateMarkers {
		if strings.Contains(msg, m) {
			return KindRateLimited
		}
	}
	for _, m := range configMarkers {
		if strings.Contains(msg, m) {
			return KindConfig
		}
	}
	return KindTransient
}
