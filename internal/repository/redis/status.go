package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const statusTTL = time.Hour

type StatusRepo struct {
	Client *redis.Client
}

func NewStatusRepo(client *redis.Client) *StatusRepo {
	return &StatusRepo{Client: client}
}

func (r *StatusRepo) SetStatus(ctx context.Context, documentID, status string) error {
	return r.Client.Set(ctx, "document_status:"+documentID, status, statusTTL).Err()
}

func (r *StatusRepo) GetStatus(ctx context.Context, documentID string) (string, error) {
	status, err := r.Client.Get(ctx, "document_status:"+documentID).Result()
	if err == redis.Nil {
		return "", nil
	}
	return status, err
}
