package verify

import (
	"context"
	"errors"
	"testing"

	"callme/internal/config"

	verifyv2 "github.com/twilio/twilio-go/rest/verify/v2"
)

type stubAPI struct {
	to, channel, code string
	status            string
	err               error
}

func (s *stubAPI) CreateVerification(_ string, p *verifyv2.CreateVerificationParams) (*verifyv2.VerifyV2Verification, error) {
	s.to, s.channel = *p.To, *p.Channel
	return &verifyv2.VerifyV2Verification{}, s.err
}

func (s *stubAPI) CreateVerificationCheck(_ string, p *verifyv2.CreateVerificationCheckParams) (*verifyv2.VerifyV2VerificationCheck, error) {
	s.to, s.code = *p.To, *p.Code
	if s.err != nil {
		return nil, s.err
	}
	status := s.status
	return &verifyv2.VerifyV2VerificationCheck{Status: &status}, nil
}

func TestNewTwilioVerifier_RequiresConfig(t *testing.T) {
	if _, err := NewTwilioVerifier(config.TwilioConfig{AccountSID: "AC1"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestStart_SendsSMS(t *testing.T) {
	api := &stubAPI{}
	v := &TwilioVerifier{api: api, serviceSID: "VA1"}
	if err := v.Start(context.Background(), "+491701234"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if api.to != "+491701234" || api.channel != "sms" {
		t.Fatalf("unexpected params to=%q channel=%q", api.to, api.channel)
	}
}

func TestCheck(t *testing.T) {
	api := &stubAPI{status: "approved"}
	v := &TwilioVerifier{api: api, serviceSID: "VA1"}
	ok, err := v.Check(context.Background(), "+1", "123456")
	if err != nil || !ok {
		t.Fatalf("expected approved, got ok=%v err=%v", ok, err)
	}

	api.status = "pending"
	ok, _ = v.Check(context.Background(), "+1", "000000")
	if ok {
		t.Fatalf("pending must not be approved")
	}

	api.err = errors.New("boom")
	if _, err := v.Check(context.Background(), "+1", "1"); !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
	if _, err := v.Check(context.Background(), "+1", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
