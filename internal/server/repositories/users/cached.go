package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedRepository caches GetUserByID, which runs on every bearer-authenticated
// request. Other methods pass through.
type CachedRepository struct {
	Repository
	byID *expirable.LRU[int64, models.User]
}

// NewCachedRepository wraps next with an LRU of the given size whose entries
// expire after ttl.
func NewCachedRepository(next Repository, size int, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		Repository: next,
		byID:       expirable.NewLRU[int64, models.User](size, nil, ttl),
	}
}

func (c *CachedRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := c.byID.Get(id); ok {
		return &u, nil
	}

	u, err := c.Repository.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.byID.Add(id, *u)
	return u, nil
}

// Len reports the number of cached principals.
func (c *CachedRepository) Len() int {
	return c.byID.Len()
}
