package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const deleteIfScript = `
local current = redis.call("GET", KEYS[1])
if current == false or current ~= ARGV[1] then
  return 0
end
for i = 2, #KEYS do
  redis.call("DEL", KEYS[i])
end
redis.call("PUBLISH", ARGV[2], ARGV[3])
return 1
`

var deleteIfLua = redis.NewScript(deleteIfScript)

// Redis is a [Backend] over a shared Redis keyspace. Keys are laid out as
// prefix:namespace:key and every write publishes a [Change] on
// prefix:namespace:changes in the same MULTI/EXEC block.
type Redis struct {
	redis     redis.UniversalClient
	prefix    string
	namespace string
}

// NewRedis creates a Redis backend. An empty prefix defaults to "sk".
func NewRedis(client redis.UniversalClient, prefix, namespace string) *Redis {
	if prefix == "" {
		prefix = "sk"
	}
	if namespace == "" {
		namespace = "default"
	}
	return &Redis{redis: client, prefix: prefix, namespace: namespace}
}

func (r *Redis) key(k string) string {
	return r.prefix + ":" + r.namespace + ":" + k
}

func (r *Redis) channel() string {
	return r.prefix + ":" + r.namespace + ":changes"
}

func (r *Redis) changePayload(ctx context.Context, keys []string, deleted bool) string {
	data, _ := json.Marshal(Change{Keys: keys, Deleted: deleted, Writer: WriterFrom(ctx)})
	return string(data)
}

// Get implements [Backend] with a single MGET.
func (r *Redis) Get(ctx context.Context, keys ...string) ([][]byte, error) {
	if err := checkKeys(keys); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	vals, err := r.redis.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	out := make([][]byte, len(keys))
	for i, v := range vals {
		switch s := v.(type) {
		case string:
			out[i] = []byte(s)
		case nil:
		default:
			return nil, fmt.Errorf("%w: unexpected MGET value %T", ErrUnavailable, v)
		}
	}
	return out, nil
}

// Put implements [Backend].
func (r *Redis) Put(ctx context.Context, entries ...Entry) error {
	keys := entryKeys(entries)
	if err := checkKeys(keys); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	payload := r.changePayload(ctx, keys, false)
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, r.key(e.Key), e.Value, 0)
		}
		pipe.Publish(ctx, r.channel(), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete implements [Backend].
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if err := checkKeys(keys); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	payload := r.changePayload(ctx, keys, true)
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, full...)
		pipe.Publish(ctx, r.channel(), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteIf implements [Backend] as a single Lua script so the comparison and
// the deletion cannot interleave with another writer.
func (r *Redis) DeleteIf(ctx context.Context, guardKey string, expected []byte, keys ...string) (bool, error) {
	if err := checkKeys(append([]string{guardKey}, keys...)); err != nil {
		return false, err
	}
	scriptKeys := make([]string, 0, len(keys)+1)
	scriptKeys = append(scriptKeys, r.key(guardKey))
	for _, k := range keys {
		scriptKeys = append(scriptKeys, r.key(k))
	}
	res, err := deleteIfLua.Run(ctx, r.redis, scriptKeys,
		string(expected), r.channel(), r.changePayload(ctx, keys, true)).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res == 1, nil
}

// Watch implements [Watcher] over Redis Pub/Sub. The subscription is
// confirmed before Watch returns so no write issued afterwards is missed.
func (r *Redis) Watch(ctx context.Context) (<-chan Change, error) {
	sub := r.redis.Subscribe(ctx, r.channel())
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := make(chan Change, watchBuffer)
	msgs := sub.Channel()
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
