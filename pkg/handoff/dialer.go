package handoff

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/harunnryd/atena/pkg/errorsx"
	"github.com/harunnryd/atena/pkg/resilience"
)

type Config struct {
	AccountSID   string `mapstructure:"account_sid"`
	AuthToken    string `mapstructure:"auth_token"`
	CallerID     string `mapstructure:"caller_id"`
	TargetNumber string `mapstructure:"target_number"`
	VoiceURL     string `mapstructure:"voice_url"`
	MaxRetries   int    `mapstructure:"max_retries"`
}

type callCreator interface {
	CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error)
}

// Dialer bridges a human agent onto an escalated call via the Twilio REST
// API. It is optional; when unconfigured the transfer is delegated to the
// voice runtime instead.
type Dialer struct {
	cfg    Config
	client callCreator
	retry  resilience.RetryPolicy
}

func NewDialer(cfg Config) *Dialer {
	return &Dialer{
		cfg:   cfg,
		retry: resilience.NewRetryPolicy(cfg.MaxRetries, 500*time.Millisecond),
	}
}

// Configured reports whether the dialer has credentials and a target.
func (d *Dialer) Configured() bool {
	return strings.TrimSpace(d.cfg.AccountSID) != "" &&
		strings.TrimSpace(d.cfg.AuthToken) != "" &&
		strings.TrimSpace(d.cfg.TargetNumber) != ""
}

// Target returns the configured human agent number.
func (d *Dialer) Target() string { return d.cfg.TargetNumber }

// Dial rings the human agent and returns the new call sid.
func (d *Dialer) Dial(ctx context.Context, target string) (string, error) {
	_ = ctx
	if !d.Configured() {
		return "", errorsx.Wrap(errors.New("handoff dialer not configured"), errorsx.ReasonHandoffDial)
	}
	if strings.TrimSpace(target) == "" {
		target = d.cfg.TargetNumber
	}
	client := d.client
	if client == nil {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: d.cfg.AccountSID,
			Password: d.cfg.AuthToken,
		})
		client = rest.Api
	}
	params := &api.CreateCallParams{}
	params.SetTo(target)
	params.SetFrom(d.cfg.CallerID)
	if d.cfg.VoiceURL != "" {
		params.SetUrl(d.cfg.VoiceURL)
	}
	var sid string
	err := d.retry.Do(func() error {
		resp, err := client.CreateCall(params)
		if err != nil {
			return err
		}
		if resp == nil || resp.Sid == nil {
			return errors.New("missing call sid")
		}
		sid = *resp.Sid
		return nil
	})
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonHandoffDial)
	}
	return sid, nil
}
