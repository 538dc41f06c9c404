package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/dstevens79/eve-corp-auth/core"
)

// CredentialRegistryStore keeps one corporation credential record per
// organization id. Registering an already-known organization replaces
// the record in place so its registration history survives.
type CredentialRegistryStore struct {
	db   *bun.DB
	repo repository.Repository[*orgCredentialRecord]
	now  func() time.Time
}

func (s *CredentialRegistryStore) Register(ctx context.Context, in core.RegisterOrgInput) (core.OrgCredential, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.OrgCredential{}, fmt.Errorf("sqlstore: credential registry store is not configured")
	}
	if in.OrganizationID == 0 {
		return core.OrgCredential{}, fmt.Errorf("sqlstore: organization id is required")
	}
	scopes := normalizeScopeList(in.Scopes)
	if len(scopes) == 0 {
		return core.OrgCredential{}, fmt.Errorf("%w: organization %d", core.ErrScopesEmpty, in.OrganizationID)
	}
	refreshToken := strings.TrimSpace(in.RefreshToken)
	if refreshToken == "" {
		return core.OrgCredential{}, fmt.Errorf("sqlstore: refresh token is required")
	}

	now := s.clock()
	var saved core.OrgCredential
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, found, findErr := s.findTx(ctx, tx, in.OrganizationID)
		if findErr != nil {
			return findErr
		}

		record := &orgCredentialRecord{
			OrganizationID:   in.OrganizationID,
			OrganizationName: strings.TrimSpace(in.OrganizationName),
			Ticker:           strings.TrimSpace(in.Ticker),
			ClientIDOverride: strings.TrimSpace(in.ClientIDOverride),
			RefreshToken:     refreshToken,
			Scopes:           scopes,
			RegisteredBy:     strings.TrimSpace(in.RegisteredBy),
			RegisteredAt:     now,
			Active:           true,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if found {
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
			record.MemberCount = existing.MemberCount
			if _, updateErr := tx.NewUpdate().
				Model(record).
				Where("?TableAlias.id = ?", record.ID).
				Exec(ctx); updateErr != nil {
				return updateErr
			}
			saved = record.toDomain()
			return nil
		}

		record.ID = uuid.NewString()
		created, createErr := s.repo.CreateTx(ctx, tx, record)
		if createErr != nil {
			return createErr
		}
		saved = created.toDomain()
		return nil
	})
	if err != nil {
		return core.OrgCredential{}, err
	}
	return saved, nil
}

func (s *CredentialRegistryStore) Get(ctx context.Context, organizationID int64) (core.OrgCredential, bool, error) {
	if s == nil || s.repo == nil {
		return core.OrgCredential{}, false, fmt.Errorf("sqlstore: credential registry store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("organization_id", "=", strconv.FormatInt(organizationID, 10)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.OrgCredential{}, false, err
	}
	if len(records) == 0 {
		return core.OrgCredential{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *CredentialRegistryStore) ListActive(ctx context.Context) ([]core.OrgCredential, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: credential registry store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("active", "=", strconv.FormatBool(true)),
		repository.OrderBy("organization_id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.OrgCredential, 0, len(records))
	for _, record := range records {
		credential := record.toDomain()
		if credential.Configured() {
			out = append(out, credential)
		}
	}
	return out, nil
}

func (s *CredentialRegistryStore) SetActive(ctx context.Context, organizationID int64, active bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential registry store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*orgCredentialRecord)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", s.clock()).
		Where("organization_id = ?", organizationID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: organization %d", core.ErrOrganizationNotRegistered, organizationID)
	}
	return nil
}

func (s *CredentialRegistryStore) Remove(ctx context.Context, organizationID int64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential registry store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*orgCredentialRecord)(nil)).
		Where("organization_id = ?", organizationID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: organization %d", core.ErrOrganizationNotRegistered, organizationID)
	}
	return nil
}

func (s *CredentialRegistryStore) IsConfigured(ctx context.Context, organizationID int64) (bool, error) {
	record, found, err := s.Get(ctx, organizationID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return record.Configured(), nil
}

func (s *CredentialRegistryStore) RecordRefresh(ctx context.Context, in core.RefreshOrgInput) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential registry store is not configured")
	}
	refreshedAt := in.RefreshedAt
	if refreshedAt.IsZero() {
		refreshedAt = s.clock()
	}

	query := s.db.NewUpdate().
		Model((*orgCredentialRecord)(nil)).
		Set("last_refresh_at = ?", refreshedAt.UTC()).
		Set("updated_at = ?", s.clock()).
		Where("organization_id = ?", in.OrganizationID)
	if token := strings.TrimSpace(in.RefreshToken); token != "" {
		query = query.Set("refresh_token = ?", token)
	}
	if in.MemberCount > 0 {
		query = query.Set("member_count = ?", in.MemberCount)
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: organization %d", core.ErrOrganizationNotRegistered, in.OrganizationID)
	}
	return nil
}

func (s *CredentialRegistryStore) findTx(ctx context.Context, tx bun.Tx, organizationID int64) (*orgCredentialRecord, bool, error) {
	record := &orgCredentialRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.organization_id = ?", organizationID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return record, true, nil
}

func (s *CredentialRegistryStore) clock() time.Time {
	if s != nil && s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}
