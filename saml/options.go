package saml

import (
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// spOptions are options that apply to the ServiceProvider itself, rather
// than to a single ParseResponse call.
type spOptions struct {
	logger hclog.Logger
	clock  clockwork.Clock
}

func spOptionsDefault() spOptions {
	return spOptions{
		logger: hclog.NewNullLogger(),
		clock:  clockwork.NewRealClock(),
	}
}

func getSPOptions(opt ...Option) spOptions {
	opts := spOptionsDefault()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger sets a structured logger on the ServiceProvider. Defaults to
// a null logger that discards everything.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*spOptions); ok {
			if l != nil {
				o.logger = l
			}
		}
	}
}

// WithClock overrides the clock used for all timing validations. Intended
// for tests; production callers should rely on the default real clock.
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		switch o := o.(type) {
		case *spOptions:
			if c != nil {
				o.clock = c
			}
		case *parseOptions:
			if c != nil {
				o.clock = c
			}
		}
	}
}

// parseOptions are per-ParseResponse validation options, matching the
// Options data described for the Response validator.
type parseOptions struct {
	clock clockwork.Clock

	allowedClockDrift float64
	matchesRequestID  *string
	checkDuplicatedAttributes bool

	skipAudienceValidation           bool
	skipAuthnStatementValidation     bool
	skipConditionsValidation         bool
	skipDestinationValidation        bool
	skipRecipientCheck               bool
	skipSubjectConfirmationValidation bool

	softOverride *bool
}

func parseOptionsDefault() parseOptions {
	return parseOptions{
		clock:             clockwork.NewRealClock(),
		allowedClockDrift: 0,
	}
}

func getParseOptions(opt ...Option) parseOptions {
	opts := parseOptionsDefault()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithAllowedClockDrift sets the number of seconds of tolerance applied to
// every timing comparison performed during validation.
func WithAllowedClockDrift(seconds float64) Option {
	return func(o interface{}) {
		if o, ok := o.(*parseOptions); ok {
			o.allowedClockDrift = seconds
		}
	}
}

// WithMatchesRequestID requires the Response's InResponseTo attribute to
// equal requestID, failing validation predicate #9 otherwise.
func WithMatchesRequestID(requestID string) Option {
	return func(o interface{}) {
		if o, ok := o.(*parseOptions); ok {
			o.matchesRequestID = &requestID
		}
	}
}

// WithCheckDuplicatedAttributes enables predicate #6, rejecting Responses
// whose AttributeStatement carries the same Attribute Name more than once.
func WithCheckDuplicatedAttributes() Option {
	return func(o interface{}) {
		if o, ok := o.(*parseOptions); ok {
			o.checkDuplicatedAttributes = true
		}
	}
}

// InsecureSkipAudienceValidation disables predicate #13. Testing only.
func InsecureSkipAudienceValidation() Option {
	return func(o interface{}) {
		if o, ok := o.(*parseOptions); ok {
			o.skipAudienceValidation = true
		}
	}
}

// InsecureSkipAuthnStatementValidation disables predicate #12. Testing only.
func InsecureSkipAuthnStatementValidation() Option {
	return func(o interface{}) {
		if o, ok := o.(*parseOptions); ok {
			o.skipAuthnStatementValidation = true
		}
	}
}

// InsecureSkipConditionsValidation disables predicates #10 and #11. Testing only.
func InsecureSkipConditionsValidation() Option {
	return func(o interface{}) {
		if o, ok := o.(*parseOptions); ok {
			o.skipConditionsValidation = true
		}
	}
}

// InsecureSkipDestinationValidation disables predicate #14. Testing only.
func InsecureSkipDestinationValidation() Option {
	return func(o interface{}) {
		if o, ok := o.(*parseOptions); ok {
			o.skipDestinationValidation = true
		}
	}
}

// InsecureSkipRecipientCheck disables the Recipient portion of predicate #17. Testing only.
func InsecureSkipRecipientCheck() Option {
	return func(o interface{}) {
		if o, ok := o.(*parseOptions); ok {
			o.skipRecipientCheck = true
		}
	}
}

// InsecureSkipSubjectConfirmationValidation disables predicate #17. Testing only.
func InsecureSkipSubjectConfirmationValidation() Option {
	return func(o interface{}) {
		if o, ok := o.(*parseOptions); ok {
			o.skipSubjectConfirmationValidation = true
		}
	}
}

// WithSoft overrides Settings.Soft for a single call.
func WithSoft(soft bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*parseOptions); ok {
			o.softOverride = &soft
		}
	}
}
