package sqlstore

import "github.com/goliatone/go-provisioning/core"

var (
	_ core.StoreSession        = (*Session)(nil)
	_ core.StoreSessionFactory = (*DirectoryStore)(nil)
	_ core.StoreSessionFactory = uncachedSessions{}
	_ core.StoreProvider       = (*DirectoryStore)(nil)
	_ core.SessionStoreFactory = (*DirectoryStoreFactory)(nil)
)
