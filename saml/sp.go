package saml

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

// ServiceProvider wraps a Settings value with the ambient concerns
// (logging, clock) that every ParseResponse call shares.
type ServiceProvider struct {
	cfg    *Settings
	logger hclog.Logger
	clock  clockwork.Clock
}

// NewServiceProvider creates a new ServiceProvider.
//
// Options:
// - WithLogger
// - WithClock
func NewServiceProvider(cfg *Settings, opt ...Option) (*ServiceProvider, error) {
	const op = "saml.NewServiceProvider"

	if cfg == nil {
		return nil, fmt.Errorf("%s: no settings provided: %w", op, ErrInvalidParameter)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: insufficient settings: %w", op, err)
	}

	opts := getSPOptions(opt...)

	return &ServiceProvider{
		cfg:    cfg,
		logger: opts.logger,
		clock:  opts.clock,
	}, nil
}

// Config returns the service provider settings.
func (sp *ServiceProvider) Config() *Settings {
	return sp.cfg
}

// ParseResponse decodes, decrypts, verifies, and extracts the fields of a
// SAML Response addressed to this ServiceProvider. The ServiceProvider's
// clock is used unless the caller supplies its own via WithClock.
//
// Options:
// - WithAllowedClockDrift
// - WithMatchesRequestID
// - WithCheckDuplicatedAttributes
// - InsecureSkipAudienceValidation
// - InsecureSkipAuthnStatementValidation
// - InsecureSkipConditionsValidation
// - InsecureSkipDestinationValidation
// - InsecureSkipRecipientCheck
// - InsecureSkipSubjectConfirmationValidation
// - WithSoft
// - WithClock
func (sp *ServiceProvider) ParseResponse(rawPayload string, opt ...Option) (*Response, error) {
	const op = "saml.ServiceProvider.ParseResponse"

	allOpts := append([]Option{WithClock(sp.clock)}, opt...)

	resp, err := ParseResponse(sp.cfg, rawPayload, allOpts...)
	if err != nil {
		sp.logger.Debug("failed to parse saml response", "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return resp, nil
}
