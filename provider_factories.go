package corpauth

import (
	"github.com/dstevens79/eve-corp-auth/core"
	"github.com/dstevens79/eve-corp-auth/identity"
	"github.com/dstevens79/eve-corp-auth/security"
	"github.com/dstevens79/eve-corp-auth/sso"
	sqlstore "github.com/dstevens79/eve-corp-auth/store/sql"
)

func EVESSOProvider(cfg sso.Config) (core.ExchangeProvider, error) {
	return sso.NewProvider(cfg)
}

func ESIIdentityResolver(cfg identity.Config) core.IdentityResolver {
	return identity.NewResolver(cfg)
}

func AppKeySecrets(keyMaterial []byte, opts ...security.Option) (core.SecretProvider, error) {
	return security.NewAppKeySecretProvider(keyMaterial, opts...)
}

func KeyringSecrets(current core.SecretProvider, opts ...security.KeyringOption) (core.SecretProvider, error) {
	return security.NewKeyringSecretProvider(current, opts...)
}

// SQLStores resolves bun-backed stores from a persistence client or a
// *bun.DB, mirroring the shapes BuildStores accepts.
func SQLStores(persistenceClient any) (core.StoreProvider, error) {
	factory := sqlstore.NewRepositoryFactory()
	return factory.BuildStores(persistenceClient)
}

// OpenSQLStores opens a database by driver name (postgres or sqlite)
// and builds the stores over it.
func OpenSQLStores(driver, dsn string) (core.StoreProvider, error) {
	db, err := sqlstore.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	factory, err := sqlstore.NewRepositoryFactoryFromDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return factory, nil
}

// WithSQLStores wires a store provider's registry and user store into
// the service in one option.
func WithSQLStores(provider core.StoreProvider) []Option {
	if provider == nil {
		return nil
	}
	return []Option{
		WithCredentialRegistry(provider.CredentialRegistry()),
		WithUserStore(provider.UserStore()),
	}
}
