package sqlstore

import "github.com/dstevens79/eve-corp-auth/core"

var (
	_ core.CredentialRegistry = (*CredentialRegistryStore)(nil)
	_ core.CredentialRegistry = (*CachedCredentialRegistry)(nil)
	_ core.UserStore          = (*UserStore)(nil)
	_ core.StoreProvider      = (*RepositoryFactory)(nil)
)
