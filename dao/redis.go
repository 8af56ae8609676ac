package dao

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/Skryldev/people/config"
	"github.com/Skryldev/people/internal/errors"
	"github.com/Skryldev/people/models"
)

// replaceScript sets a hash field only when it already exists, so Update
// never creates a record.
var replaceScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// RedisStore keeps people in one Redis hash: field = NIF, value = the same
// YAML document the serial store writes.
type RedisStore struct {
	client *redis.Client
	key    string
}

// OpenRedisStore connects to c.Addr and verifies the connection.
func OpenRedisStore(ctx context.Context, c config.Redis) (*RedisStore, error) {
	key := c.Key
	if key == "" {
		key = "people"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "redis store: ping %s", c.Addr)
	}
	return &RedisStore{client: rdb, key: key}, nil
}

func (s *RedisStore) Read(ctx context.Context, nif string) (*models.Person, error) {
	val, err := s.client.HGet(ctx, s.key, nif).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis store: read %s", nif)
	}
	return decodeRedisValue(val)
}

// ReadAll returns people sorted by NIF.
func (s *RedisStore) ReadAll(ctx context.Context) ([]*models.Person, error) {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis store: read all")
	}
	people := make([]*models.Person, 0, len(all))
	for _, val := range all {
		p, err := decodeRedisValue(val)
		if err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	sort.Slice(people, func(i, j int) bool { return people[i].NIF < people[j].NIF })
	return people, nil
}

func (s *RedisStore) Insert(ctx context.Context, p *models.Person) error {
	val, err := encodeRedisValue(p)
	if err != nil {
		return err
	}
	added, err := s.client.HSetNX(ctx, s.key, p.NIF, val).Result()
	if err != nil {
		return errors.Wrapf(err, "redis store: insert %s", p.NIF)
	}
	if !added {
		return ErrDuplicate
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, p *models.Person) error {
	val, err := encodeRedisValue(p)
	if err != nil {
		return err
	}
	replaced, err := replaceScript.Run(ctx, s.client, []string{s.key}, p.NIF, val).Int()
	if err != nil {
		return errors.Wrapf(err, "redis store: update %s", p.NIF)
	}
	if replaced == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, nif string) error {
	return errors.Wrapf(s.client.HDel(ctx, s.key, nif).Err(), "redis store: delete %s", nif)
}

func (s *RedisStore) DeleteAll(ctx context.Context) error {
	return errors.Wrap(s.client.Del(ctx, s.key).Err(), "redis store: delete all")
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.HLen(ctx, s.key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "redis store: count")
	}
	return int(n), nil
}

func (s *RedisStore) Close() error {
	return errors.Wrap(s.client.Close(), "redis store: close")
}

func encodeRedisValue(p *models.Person) (string, error) {
	b, err := yaml.Marshal(newSerialRecord(p))
	if err != nil {
		return "", errors.Wrapf(err, "redis store: encode %s", p.NIF)
	}
	return string(b), nil
}

func decodeRedisValue(val string) (*models.Person, error) {
	var rec serialRecord
	if err := yaml.Unmarshal([]byte(val), &rec); err != nil {
		return nil, errors.Wrap(err, "redis store: decode")
	}
	return rec.person()
}

var (
	_ Store   = (*RedisStore)(nil)
	_ Counter = (*RedisStore)(nil)
)
