package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dstevens79/eve-corp-auth/core"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxResponseBodyBytes  = 1 << 20 // 1 MiB

	DefaultESIBaseURL = "https://esi.evetech.net/latest"

	characterSubjectPrefix = "CHARACTER:EVE:"
)

var ErrCharacterNotResolved = errors.New("identity: character not resolved")

// CharacterNotResolvedError reports a token whose holder could not be
// turned into a verified character with corporation standing.
type CharacterNotResolvedError struct {
	Cause error
}

func (e *CharacterNotResolvedError) Error() string {
	if e == nil || e.Cause == nil {
		return ErrCharacterNotResolved.Error()
	}
	return ErrCharacterNotResolved.Error() + ": " + e.Cause.Error()
}

func (e *CharacterNotResolvedError) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.Cause == nil {
		return ErrCharacterNotResolved
	}
	return errors.Join(ErrCharacterNotResolved, e.Cause)
}

func (e *CharacterNotResolvedError) ToServiceError() *goerrors.Error {
	message := ErrCharacterNotResolved.Error()
	if e != nil && e.Cause != nil {
		message = e.Error()
	}
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(core.AuthErrorIdentityRejected)
}

func characterNotResolved(cause error) error {
	return &CharacterNotResolvedError{Cause: cause}
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Keyfunc resolves the signing key for access-token verification. When
// nil the resolver decodes claims without checking the signature; the
// tokens were just issued by the token endpoint over TLS.
type Keyfunc func(token *jwt.Token) (any, error)

type Config struct {
	HTTPClient     HTTPDoer
	RequestTimeout time.Duration
	ESIBaseURL     string
	Keyfunc        Keyfunc

	// LeadershipRoles are the in-game corporation roles that mark a
	// character as an officer. The CEO is always the leader.
	LeadershipRoles []string
}

// Resolver verifies SSO access tokens and resolves the holder's
// character and corporation standing through ESI.
type Resolver struct {
	httpClient      HTTPDoer
	requestTimeout  time.Duration
	esiBaseURL      string
	keyfunc         Keyfunc
	leadershipRoles map[string]struct{}
}

func NewResolver(cfg Config) *Resolver {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	esiBaseURL := strings.TrimRight(strings.TrimSpace(cfg.ESIBaseURL), "/")
	if esiBaseURL == "" {
		esiBaseURL = DefaultESIBaseURL
	}

	roles := cfg.LeadershipRoles
	if len(roles) == 0 {
		roles = []string{"Director", "Personnel_Manager"}
	}
	leadershipRoles := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		trimmed := strings.TrimSpace(role)
		if trimmed == "" {
			continue
		}
		leadershipRoles[strings.ToLower(trimmed)] = struct{}{}
	}

	return &Resolver{
		httpClient:      httpClient,
		requestTimeout:  requestTimeout,
		esiBaseURL:      esiBaseURL,
		keyfunc:         cfg.Keyfunc,
		leadershipRoles: leadershipRoles,
	}
}

func DefaultResolver() *Resolver {
	return NewResolver(Config{})
}

func (r *Resolver) Resolve(ctx context.Context, cred core.ExchangedCredential) (core.CharacterIdentity, error) {
	if r == nil {
		return core.CharacterIdentity{}, characterNotResolved(nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	claims, err := r.tokenClaims(cred.AccessToken)
	if err != nil {
		return core.CharacterIdentity{}, characterNotResolved(err)
	}
	characterID, err := characterIDFromSubject(claims.Subject)
	if err != nil {
		return core.CharacterIdentity{}, characterNotResolved(err)
	}

	affiliation, err := r.fetchCharacter(ctx, characterID)
	if err != nil {
		return core.CharacterIdentity{}, characterNotResolved(err)
	}
	corporation, err := r.fetchCorporation(ctx, affiliation.CorporationID)
	if err != nil {
		return core.CharacterIdentity{}, characterNotResolved(err)
	}

	allianceName := ""
	if corporation.AllianceID != 0 {
		alliance, allianceErr := r.fetchAlliance(ctx, corporation.AllianceID)
		if allianceErr == nil {
			allianceName = alliance.Name
		}
	}

	isLeader := corporation.CEOID == characterID
	isOfficer := false
	if !isLeader {
		roles, rolesErr := r.fetchCharacterRoles(ctx, characterID, cred.AccessToken)
		if rolesErr == nil {
			isOfficer = r.hasLeadershipRole(roles)
		}
	}

	characterName := claims.Name
	if characterName == "" {
		characterName = affiliation.Name
	}

	resolved := core.CharacterIdentity{
		CharacterID:      characterID,
		CharacterName:    characterName,
		OrganizationID:   affiliation.CorporationID,
		OrganizationName: corporation.Name,
		AllianceName:     allianceName,
		GrantedScopes:    claims.Scopes,
		IsOrgLeader:      isLeader,
		IsOrgOfficer:     isOfficer,
	}
	if err := resolved.Validate(); err != nil {
		return core.CharacterIdentity{}, characterNotResolved(err)
	}
	return resolved, nil
}

func (r *Resolver) MemberCount(ctx context.Context, organizationID int64) (int, error) {
	if r == nil {
		return 0, characterNotResolved(nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	corporation, err := r.fetchCorporation(ctx, organizationID)
	if err != nil {
		return 0, err
	}
	return corporation.MemberCount, nil
}

type tokenClaims struct {
	Subject string
	Name    string
	Scopes  []string
}

type ssoClaims struct {
	Name   string `json:"name"`
	Scopes any    `json:"scp"`
	jwt.RegisteredClaims
}

func (r *Resolver) tokenClaims(accessToken string) (tokenClaims, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return tokenClaims{}, fmt.Errorf("identity: access token is required")
	}

	claims := &ssoClaims{}
	if r.keyfunc != nil {
		parser := jwt.NewParser(jwt.WithExpirationRequired())
		token, err := parser.ParseWithClaims(accessToken, claims, jwt.Keyfunc(r.keyfunc))
		if err != nil {
			return tokenClaims{}, fmt.Errorf("identity: verify access token: %w", err)
		}
		if !token.Valid {
			return tokenClaims{}, fmt.Errorf("identity: access token is not valid")
		}
	} else {
		parser := jwt.NewParser()
		if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
			return tokenClaims{}, fmt.Errorf("identity: decode access token: %w", err)
		}
	}

	return tokenClaims{
		Subject: strings.TrimSpace(claims.RegisteredClaims.Subject),
		Name:    strings.TrimSpace(claims.Name),
		Scopes:  scopesFromClaim(claims.Scopes),
	}, nil
}

// scopesFromClaim accepts both the single-scope string form and the
// multi-scope array form of the scp claim.
func scopesFromClaim(value any) []string {
	switch typed := value.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return []string{}
		}
		return []string{trimmed}
	case []string:
		scopes := make([]string, 0, len(typed))
		for _, item := range typed {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				scopes = append(scopes, trimmed)
			}
		}
		return scopes
	case []any:
		scopes := make([]string, 0, len(typed))
		for _, item := range typed {
			text, ok := item.(string)
			if !ok {
				continue
			}
			if trimmed := strings.TrimSpace(text); trimmed != "" {
				scopes = append(scopes, trimmed)
			}
		}
		return scopes
	default:
		return []string{}
	}
}

func characterIDFromSubject(subject string) (int64, error) {
	subject = strings.TrimSpace(subject)
	if !strings.HasPrefix(subject, characterSubjectPrefix) {
		return 0, fmt.Errorf("identity: unexpected token subject %q", subject)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(subject, characterSubjectPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("identity: invalid character id in subject %q", subject)
	}
	return id, nil
}

func (r *Resolver) hasLeadershipRole(roles []string) bool {
	for _, role := range roles {
		if _, ok := r.leadershipRoles[strings.ToLower(strings.TrimSpace(role))]; ok {
			return true
		}
	}
	return false
}

type characterRecord struct {
	Name          string `json:"name"`
	CorporationID int64  `json:"corporation_id"`
}

type corporationRecord struct {
	Name        string `json:"name"`
	Ticker      string `json:"ticker"`
	AllianceID  int64  `json:"alliance_id"`
	CEOID       int64  `json:"ceo_id"`
	MemberCount int    `json:"member_count"`
}

type allianceRecord struct {
	Name string `json:"name"`
}

type characterRolesRecord struct {
	Roles []string `json:"roles"`
}

func (r *Resolver) fetchCharacter(ctx context.Context, characterID int64) (characterRecord, error) {
	var record characterRecord
	err := r.getJSON(ctx, fmt.Sprintf("%s/characters/%d/", r.esiBaseURL, characterID), "", &record)
	if err != nil {
		return characterRecord{}, err
	}
	if record.CorporationID == 0 {
		return characterRecord{}, fmt.Errorf("identity: character %d has no corporation", characterID)
	}
	return record, nil
}

func (r *Resolver) fetchCorporation(ctx context.Context, corporationID int64) (corporationRecord, error) {
	var record corporationRecord
	err := r.getJSON(ctx, fmt.Sprintf("%s/corporations/%d/", r.esiBaseURL, corporationID), "", &record)
	if err != nil {
		return corporationRecord{}, err
	}
	return record, nil
}

func (r *Resolver) fetchAlliance(ctx context.Context, allianceID int64) (allianceRecord, error) {
	var record allianceRecord
	err := r.getJSON(ctx, fmt.Sprintf("%s/alliances/%d/", r.esiBaseURL, allianceID), "", &record)
	if err != nil {
		return allianceRecord{}, err
	}
	return record, nil
}

func (r *Resolver) fetchCharacterRoles(ctx context.Context, characterID int64, accessToken string) ([]string, error) {
	var record characterRolesRecord
	err := r.getJSON(
		ctx,
		fmt.Sprintf("%s/characters/%d/roles/", r.esiBaseURL, characterID),
		accessToken,
		&record,
	)
	if err != nil {
		return nil, err
	}
	return record.Roles, nil
}

func (r *Resolver) getJSON(ctx context.Context, endpoint string, accessToken string, target any) error {
	requestCtx := ctx
	cancel := func() {}
	if r.requestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, r.requestTimeout)
	}
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if accessToken = strings.TrimSpace(accessToken); accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	res, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	body, readErr := io.ReadAll(io.LimitReader(res.Body, maxResponseBodyBytes+1))
	if readErr != nil {
		return fmt.Errorf("identity: read response: %w", readErr)
	}
	if int64(len(body)) > maxResponseBodyBytes {
		return fmt.Errorf("identity: response exceeds %d bytes", maxResponseBodyBytes)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("identity: %s returned status %d", endpoint, res.StatusCode)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("identity: decode response: %w", err)
	}
	return nil
}

var (
	_ core.IdentityResolver = (*Resolver)(nil)
	_ core.MemberCounter    = (*Resolver)(nil)
)
