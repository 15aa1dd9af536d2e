package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Skotchmaster/hospital_portal/internal/config"
)

var (
	ErrInvalidCredential = errors.New("google: credential rejected")
	ErrAudienceMismatch  = errors.New("google: credential issued for another client")
	ErrEmailNotVerified  = errors.New("google: email is not verified")
	ErrClientIDMissing   = errors.New("google: client id is not configured")
)

var validIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

type Profile struct {
	Subject       string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Picture       string
}

type tokenInfo struct {
	Aud           string   `json:"aud"`
	Iss           string   `json:"iss"`
	Sub           string   `json:"sub"`
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	GivenName     string   `json:"given_name"`
	FamilyName    string   `json:"family_name"`
	Picture       string   `json:"picture"`
}

// tokeninfo reports booleans as strings.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	*b = flexBool(s == "true")
	return nil
}

type Verifier struct {
	clientID   string
	endpoint   string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[*Profile]
}

func NewVerifier(cfg config.GoogleConfig) *Verifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Verifier{
		clientID: cfg.ClientID,
		endpoint: cfg.TokenInfoURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cb: gobreaker.NewCircuitBreaker[*Profile](gobreaker.Settings{
			Name:        "google-tokeninfo",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// a rejected credential says nothing about the health of the endpoint
			IsSuccessful: func(err error) bool {
				return err == nil ||
					errors.Is(err, ErrInvalidCredential) ||
					errors.Is(err, ErrAudienceMismatch) ||
					errors.Is(err, ErrEmailNotVerified)
			},
		}),
	}
}

// Verify fails closed when no client id is configured, since the audience
// could not be checked.
func (v *Verifier) Verify(ctx context.Context, credential string) (*Profile, error) {
	if v.clientID == "" {
		return nil, ErrClientIDMissing
	}
	return v.cb.Execute(func() (*Profile, error) {
		return v.fetch(ctx, credential)
	})
}

func (v *Verifier) fetch(ctx context.Context, credential string) (*Profile, error) {
	u, err := url.Parse(v.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse tokeninfo url: %w", err)
	}
	q := u.Query()
	q.Set("id_token", credential)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("tokeninfo failed with status: %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, ErrInvalidCredential
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if !validIssuers[info.Iss] {
		return nil, ErrInvalidCredential
	}
	if info.Aud != v.clientID {
		return nil, ErrAudienceMismatch
	}
	if info.Email == "" || !bool(info.EmailVerified) {
		return nil, ErrEmailNotVerified
	}

	return &Profile{
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: true,
		GivenName:     info.GivenName,
		FamilyName:    info.FamilyName,
		Picture:       info.Picture,
	}, nil
}
