package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRedis answers GET and SET from a map so the store runs without a
// server. Dialing always fails.
type memRedis struct {
	mu   sync.Mutex
	data map[string]string
	keys []string
	fail error
}

func newMemRedisStore(t *testing.T, prefix string) (*RedisDocumentStore, *memRedis) {
	t.Helper()
	mem := &memRedis{data: map[string]string{}}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	client.AddHook(mem)
	s := NewRedisDocumentStoreWithClient(client, prefix)
	t.Cleanup(func() { _ = s.Close() })
	return s, mem
}

func (m *memRedis) DialHook(redis.DialHook) redis.DialHook {
	return func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("dial disabled")
	}
}

func (m *memRedis) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(context.Context, []redis.Cmder) error {
		return errors.New("pipelines not supported")
	}
}

func (m *memRedis) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.fail != nil {
			cmd.SetErr(m.fail)
			return m.fail
		}
		args := cmd.Args()
		key := fmt.Sprint(args[1])
		m.keys = append(m.keys, key)
		switch c := cmd.(type) {
		case *redis.StringCmd:
			v, ok := m.data[key]
			if !ok {
				c.SetErr(redis.Nil)
				return redis.Nil
			}
			c.SetVal(v)
		case *redis.StatusCmd:
			switch v := args[2].(type) {
			case []byte:
				m.data[key] = string(v)
			default:
				m.data[key] = fmt.Sprint(v)
			}
			c.SetVal("OK")
		default:
			err := fmt.Errorf("unsupported command %s", cmd.Name())
			cmd.SetErr(err)
			return err
		}
		return nil
	}
}

func TestRedisDocumentStore_InProcess(t *testing.T) {
	s, mem := newMemRedisStore(t, "controlgen:")
	exerciseDocumentStore(t, s)

	assert.Contains(t, mem.data, "controlgen:objectives.json")
	for _, k := range mem.keys {
		assert.Contains(t, k, "controlgen:")
	}
}

func TestRedisDocumentStore_MissingKeyIsNotFound(t *testing.T) {
	s, _ := newMemRedisStore(t, "controlgen:")

	_, err := s.Load(context.Background(), "control_variants.json")
	require.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, redis.Nil)
}

func TestRedisDocumentStore_ErrorsAreWrapped(t *testing.T) {
	s, mem := newMemRedisStore(t, "controlgen:")
	boom := errors.New("connection reset")
	mem.fail = boom

	_, err := s.Load(context.Background(), "objectives.json")
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "objectives.json")

	err = s.Save(context.Background(), "objectives.json", []byte(`{}`))
	require.ErrorIs(t, err, boom)
}
