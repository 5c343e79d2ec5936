// Package verify confirms phone ownership with one-time SMS codes.
package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"callme/internal/config"

	"github.com/twilio/twilio-go"
	verifyv2 "github.com/twilio/twilio-go/rest/verify/v2"
)

var (
	ErrNotConfigured   = errors.New("verify: provider not configured")
	ErrInvalidArgument = errors.New("verify: invalid argument")
	ErrProvider        = errors.New("verify: provider error")
)

// Verifier sends and checks verification codes. No provider SDK calls happen
// outside this package.
type Verifier interface {
	Start(ctx context.Context, phone string) error
	Check(ctx context.Context, phone, code string) (bool, error)
}

// verifyAPI is the part of the Twilio Verify v2 client used here.
type verifyAPI interface {
	CreateVerification(serviceSid string, params *verifyv2.CreateVerificationParams) (*verifyv2.VerifyV2Verification, error)
	CreateVerificationCheck(serviceSid string, params *verifyv2.CreateVerificationCheckParams) (*verifyv2.VerifyV2VerificationCheck, error)
}

type TwilioVerifier struct {
	api        verifyAPI
	serviceSID string
}

func NewTwilioVerifier(cfg config.TwilioConfig) (*TwilioVerifier, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.VerifySID == "" {
		return nil, ErrNotConfigured
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioVerifier{api: client.VerifyV2, serviceSID: cfg.VerifySID}, nil
}

func (v *TwilioVerifier) Start(ctx context.Context, phone string) error {
	if strings.TrimSpace(phone) == "" {
		return ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &verifyv2.CreateVerificationParams{}
	params.SetTo(phone)
	params.SetChannel("sms")
	if _, err := v.api.CreateVerification(v.serviceSID, params); err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return nil
}

// Check reports whether code is the approved code for phone.
func (v *TwilioVerifier) Check(ctx context.Context, phone, code string) (bool, error) {
	if strings.TrimSpace(phone) == "" || strings.TrimSpace(code) == "" {
		return false, ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	params := &verifyv2.CreateVerificationCheckParams{}
	params.SetTo(phone)
	params.SetCode(code)
	res, err := v.api.CreateVerificationCheck(v.serviceSID, params)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return res != nil && res.Status != nil && *res.Status == "approved", nil
}
