package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Staby-Guy/pidgeon/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// Contacts stores the contact relation as two reverse Redis set memberships.
type Contacts struct {
	client redis.UniversalClient
}

func NewContacts(client redis.UniversalClient) *Contacts {
	return &Contacts{client: client}
}

var _ ContactStore = (*Contacts)(nil)

// AddContact writes both directions in one MULTI/EXEC. Re-adding is a no-op.
func (c *Contacts) AddContact(ctx context.Context, userID, contactID string) error {
	defer metrics.ObserveStore("contact_add", time.Now())

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, contactsKey(userID), contactID)
		pipe.SAdd(ctx, contactsKey(contactID), userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add contact: %w", err)
	}
	return nil
}

func (c *Contacts) RemoveContact(ctx context.Context, userID, contactID string) error {
	defer metrics.ObserveStore("contact_remove", time.Now())

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, contactsKey(userID), contactID)
		pipe.SRem(ctx, contactsKey(contactID), userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove contact: %w", err)
	}
	return nil
}

func (c *Contacts) IsContact(ctx context.Context, userID, contactID string) (bool, error) {
	defer metrics.ObserveStore("contact_is_member", time.Now())

	ok, err := c.client.SIsMember(ctx, contactsKey(userID), contactID).Result()
	if err != nil {
		return false, fmt.Errorf("is contact: %w", err)
	}
	return ok, nil
}

func (c *Contacts) GetContacts(ctx context.Context, userID string) ([]string, error) {
	defer metrics.ObserveStore("contact_list", time.Now())

	ids, err := c.client.SMembers(ctx, contactsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get contacts: %w", err)
	}
	return ids, nil
}
