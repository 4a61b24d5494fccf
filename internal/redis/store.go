package redis

// Store bundles the three Redis-backed stores behind one value, which
// is what the fallback decorator wraps.
type Store struct {
	*TallyStore
	*VoteGuard
	*AdminStore
}

func NewStore(client *Client) *Store {
	return &Store{
		TallyStore: NewTallyStore(client),
		VoteGuard:  NewVoteGuard(client),
		AdminStore: NewAdminStore(client),
	}
}
