package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dstevens79/eve-corp-auth/core"
)

type routedHTTPDoer struct {
	responses map[string]routedResponse
	requests  []*http.Request
}

type routedResponse struct {
	status int
	body   string
}

func (d *routedHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	d.requests = append(d.requests, req)
	response, ok := d.responses[req.URL.Path]
	if !ok {
		return nil, fmt.Errorf("unexpected request to %s", req.URL.Path)
	}
	status := response.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(response.body)),
	}, nil
}

func (d *routedHTTPDoer) authHeaderFor(path string) string {
	for _, req := range d.requests {
		if req.URL.Path == path {
			return req.Header.Get("Authorization")
		}
	}
	return ""
}

func signedAccessToken(t *testing.T, characterID int64, name string, scopes any) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  fmt.Sprintf("CHARACTER:EVE:%d", characterID),
		"name": name,
		"iss":  "https://login.eveonline.com",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	if scopes != nil {
		claims["scp"] = scopes
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newTestResolver(doer HTTPDoer, mutate func(*Config)) *Resolver {
	cfg := Config{HTTPClient: doer}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewResolver(cfg)
}

func corpHorizonsResponses(ceoID int64) map[string]routedResponse {
	return map[string]routedResponse{
		"/characters/90000001/": {
			body: `{"name":"Avi Sable","corporation_id":98000001}`,
		},
		"/corporations/98000001/": {
			body: fmt.Sprintf(
				`{"name":"Calm Horizons","ticker":"CALM","alliance_id":99000001,"ceo_id":%d,"member_count":57}`,
				ceoID,
			),
		},
		"/alliances/99000001/": {
			body: `{"name":"Quiet Accord"}`,
		},
		"/characters/90000001/roles/": {
			body: `{"roles":[]}`,
		},
	}
}

func TestResolverResolvesCorporationLeader(t *testing.T) {
	doer := &routedHTTPDoer{responses: corpHorizonsResponses(90000001)}
	resolver := newTestResolver(doer, nil)

	token := signedAccessToken(t, 90000001, "Avi Sable", []string{"publicData", "esi-corporations.read_corporation_membership.v1"})
	resolved, err := resolver.Resolve(context.Background(), core.ExchangedCredential{AccessToken: token})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.CharacterID != 90000001 {
		t.Fatalf("character id = %d", resolved.CharacterID)
	}
	if resolved.CharacterName != "Avi Sable" {
		t.Fatalf("character name = %q", resolved.CharacterName)
	}
	if resolved.OrganizationID != 98000001 || resolved.OrganizationName != "Calm Horizons" {
		t.Fatalf("organization = %d %q", resolved.OrganizationID, resolved.OrganizationName)
	}
	if resolved.AllianceName != "Quiet Accord" {
		t.Fatalf("alliance = %q", resolved.AllianceName)
	}
	if !resolved.IsOrgLeader {
		t.Fatalf("expected leader flag for CEO")
	}
	if len(resolved.GrantedScopes) != 2 || resolved.GrantedScopes[0] != "publicData" {
		t.Fatalf("scopes = %v", resolved.GrantedScopes)
	}
	if auth := doer.authHeaderFor("/characters/90000001/roles/"); auth != "" {
		t.Fatalf("roles endpoint should not be called for the CEO, saw %q", auth)
	}
}

func TestResolverMarksOfficerFromRoles(t *testing.T) {
	responses := corpHorizonsResponses(90009999)
	responses["/characters/90000001/roles/"] = routedResponse{body: `{"roles":["Director","Hangar_Take_1"]}`}
	doer := &routedHTTPDoer{responses: responses}
	resolver := newTestResolver(doer, nil)

	token := signedAccessToken(t, 90000001, "Avi Sable", "publicData")
	resolved, err := resolver.Resolve(context.Background(), core.ExchangedCredential{AccessToken: token})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.IsOrgLeader {
		t.Fatalf("expected non-leader")
	}
	if !resolved.IsOrgOfficer {
		t.Fatalf("expected officer flag from Director role")
	}
	if len(resolved.GrantedScopes) != 1 || resolved.GrantedScopes[0] != "publicData" {
		t.Fatalf("scopes = %v", resolved.GrantedScopes)
	}
	auth := doer.authHeaderFor("/characters/90000001/roles/")
	if !strings.HasPrefix(auth, "Bearer ") {
		t.Fatalf("roles lookup must carry the access token, got %q", auth)
	}
}

func TestResolverPlainMemberHasNoStandingFlags(t *testing.T) {
	doer := &routedHTTPDoer{responses: corpHorizonsResponses(90009999)}
	resolver := newTestResolver(doer, nil)

	token := signedAccessToken(t, 90000001, "Avi Sable", nil)
	resolved, err := resolver.Resolve(context.Background(), core.ExchangedCredential{AccessToken: token})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.IsOrgLeader || resolved.IsOrgOfficer {
		t.Fatalf("expected plain member, got leader=%v officer=%v", resolved.IsOrgLeader, resolved.IsOrgOfficer)
	}
	if len(resolved.GrantedScopes) != 0 {
		t.Fatalf("scopes = %v", resolved.GrantedScopes)
	}
}

func TestResolverRejectsForeignSubject(t *testing.T) {
	doer := &routedHTTPDoer{responses: map[string]routedResponse{}}
	resolver := newTestResolver(doer, nil)

	claims := jwt.MapClaims{"sub": "user-123", "exp": time.Now().Add(time.Hour).Unix()}
	token, signErr := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	if signErr != nil {
		t.Fatalf("sign token: %v", signErr)
	}

	_, err := resolver.Resolve(context.Background(), core.ExchangedCredential{AccessToken: token})
	if err == nil {
		t.Fatalf("expected rejection")
	}
	if !errors.Is(err, ErrCharacterNotResolved) {
		t.Fatalf("expected ErrCharacterNotResolved, got %v", err)
	}
	if len(doer.requests) != 0 {
		t.Fatalf("expected no lookups for a rejected subject")
	}
}

func TestResolverRejectsMissingAccessToken(t *testing.T) {
	resolver := newTestResolver(&routedHTTPDoer{}, nil)
	_, err := resolver.Resolve(context.Background(), core.ExchangedCredential{})
	if !errors.Is(err, ErrCharacterNotResolved) {
		t.Fatalf("expected ErrCharacterNotResolved, got %v", err)
	}
}

func TestResolverSurfacesAffiliationFailure(t *testing.T) {
	doer := &routedHTTPDoer{responses: map[string]routedResponse{
		"/characters/90000001/": {status: http.StatusServiceUnavailable, body: `{}`},
	}}
	resolver := newTestResolver(doer, nil)

	token := signedAccessToken(t, 90000001, "Avi Sable", "publicData")
	_, err := resolver.Resolve(context.Background(), core.ExchangedCredential{AccessToken: token})
	if !errors.Is(err, ErrCharacterNotResolved) {
		t.Fatalf("expected ErrCharacterNotResolved, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 503") {
		t.Fatalf("expected upstream status in error, got %v", err)
	}
}

func TestResolverVerifiesSignatureWithKeyfunc(t *testing.T) {
	doer := &routedHTTPDoer{responses: corpHorizonsResponses(90000001)}
	resolver := newTestResolver(doer, func(cfg *Config) {
		cfg.Keyfunc = func(token *jwt.Token) (any, error) {
			return []byte("other-key"), nil
		}
	})

	token := signedAccessToken(t, 90000001, "Avi Sable", "publicData")
	_, err := resolver.Resolve(context.Background(), core.ExchangedCredential{AccessToken: token})
	if !errors.Is(err, ErrCharacterNotResolved) {
		t.Fatalf("expected signature rejection, got %v", err)
	}
}

func TestResolverMemberCount(t *testing.T) {
	doer := &routedHTTPDoer{responses: corpHorizonsResponses(90000001)}
	resolver := newTestResolver(doer, nil)

	count, err := resolver.MemberCount(context.Background(), 98000001)
	if err != nil {
		t.Fatalf("MemberCount() error = %v", err)
	}
	if count != 57 {
		t.Fatalf("member count = %d", count)
	}
}

func TestCharacterIDFromSubject(t *testing.T) {
	cases := []struct {
		subject string
		want    int64
		wantErr bool
	}{
		{subject: "CHARACTER:EVE:90000001", want: 90000001},
		{subject: "  CHARACTER:EVE:42  ", want: 42},
		{subject: "CHARACTER:EVE:", wantErr: true},
		{subject: "CHARACTER:EVE:-5", wantErr: true},
		{subject: "user-123", wantErr: true},
		{subject: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := characterIDFromSubject(tc.subject)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("characterIDFromSubject(%q) expected error", tc.subject)
			}
			continue
		}
		if err != nil {
			t.Fatalf("characterIDFromSubject(%q) error = %v", tc.subject, err)
		}
		if got != tc.want {
			t.Fatalf("characterIDFromSubject(%q) = %d, want %d", tc.subject, got, tc.want)
		}
	}
}

func TestCharacterNotResolvedErrorToServiceError(t *testing.T) {
	cause := fmt.Errorf("upstream unavailable")
	rejection := &CharacterNotResolvedError{Cause: cause}

	serviceErr := rejection.ToServiceError()
	if serviceErr.Category != goerrors.CategoryAuth {
		t.Fatalf("category = %v", serviceErr.Category)
	}
	if serviceErr.TextCode != core.AuthErrorIdentityRejected {
		t.Fatalf("text code = %q", serviceErr.TextCode)
	}
	if serviceErr.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", serviceErr.Code)
	}
	if !strings.Contains(serviceErr.Message, "upstream unavailable") {
		t.Fatalf("message = %q", serviceErr.Message)
	}
}
