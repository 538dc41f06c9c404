package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/dstevens79/eve-corp-auth/core"
)

// UserStore persists principals. Permissions are not stored; they are
// re-derived from the role on every read so catalog changes take effect
// without a data migration.
type UserStore struct {
	db   *bun.DB
	repo repository.Repository[*userRecord]
	now  func() time.Time
}

func (s *UserStore) Save(ctx context.Context, principal core.Principal) (core.Principal, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.Principal{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	if err := principal.Validate(); err != nil {
		return core.Principal{}, err
	}

	now := s.clock()
	record := newUserRecord(principal, now)

	var saved core.Principal
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, found, findErr := s.findTx(ctx, tx, record.ID)
		if findErr != nil {
			return findErr
		}
		if found {
			record.CreatedAt = existing.CreatedAt
			if _, updateErr := tx.NewUpdate().
				Model(record).
				Where("?TableAlias.id = ?", record.ID).
				Exec(ctx); updateErr != nil {
				return updateErr
			}
			saved = record.toDomain()
			return nil
		}
		created, createErr := s.repo.CreateTx(ctx, tx, record)
		if createErr != nil {
			return createErr
		}
		saved = created.toDomain()
		return nil
	})
	if err != nil {
		return core.Principal{}, err
	}
	return saved, nil
}

func (s *UserStore) Get(ctx context.Context, id string) (core.Principal, error) {
	if s == nil || s.repo == nil {
		return core.Principal{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return core.Principal{}, fmt.Errorf("%w: empty id", core.ErrPrincipalNotFound)
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", trimmed),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Principal{}, err
	}
	if len(records) == 0 {
		return core.Principal{}, fmt.Errorf("%w: %s", core.ErrPrincipalNotFound, trimmed)
	}
	return records[0].toDomain(), nil
}

func (s *UserStore) FindByCharacter(ctx context.Context, characterID int64) (core.Principal, bool, error) {
	if s == nil || s.repo == nil {
		return core.Principal{}, false, fmt.Errorf("sqlstore: user store is not configured")
	}
	if characterID == 0 {
		return core.Principal{}, false, nil
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("character_id", "=", strconv.FormatInt(characterID, 10)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Principal{}, false, err
	}
	if len(records) == 0 {
		return core.Principal{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *UserStore) List(ctx context.Context) ([]core.Principal, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: user store is not configured")
	}
	records, _, err := s.repo.List(ctx, repository.OrderBy("id ASC"))
	if err != nil {
		return nil, err
	}
	out := make([]core.Principal, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *UserStore) SetActive(ctx context.Context, id string, active bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: user store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	result, err := s.db.NewUpdate().
		Model((*userRecord)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", s.clock()).
		Where("id = ?", trimmed).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", core.ErrPrincipalNotFound, trimmed)
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: user store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	result, err := s.db.NewDelete().
		Model((*userRecord)(nil)).
		Where("id = ?", trimmed).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", core.ErrPrincipalNotFound, trimmed)
	}
	return nil
}

func (s *UserStore) findTx(ctx context.Context, tx bun.Tx, id string) (*userRecord, bool, error) {
	record := &userRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
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

func (s *UserStore) clock() time.Time {
	if s != nil && s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}
