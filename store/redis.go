package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rustyeddy/stockdata/id"
	"github.com/rustyeddy/stockdata/market"
	"go.uber.org/zap"
)

// DefaultRedisPrefix namespaces every key written by Redis.
const DefaultRedisPrefix = "stockdata:"

// Redis keeps one sorted set of snapshot ids per (interval, symbol), scored
// by fetch time in milliseconds, and one hash per snapshot holding its blob.
//
//	<prefix>snapshots:<interval>:<SYMBOL>  ZSET id -> fetched_at ms
//	<prefix>snapshot:<id>                  HASH symbol interval fetched_at data
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis wraps client. ttl of zero keeps snapshots forever.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (r *Redis) indexKey(symbol string, iv market.Interval) string {
	return fmt.Sprintf("%ssnapshots:%s:%s", r.prefix, iv, symbol)
}

func (r *Redis) blobKey(id string) string {
	return r.prefix + "snapshot:" + id
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Save(ctx context.Context, symbol string, iv market.Interval, fetchedAt time.Time, tb *market.Table) (Info, error) {
	symbol, err := checkKey(symbol, iv)
	if err != nil {
		return Info{}, err
	}
	data, err := encodeBytes(tb)
	if err != nil {
		return Info{}, err
	}

	info := Info{
		ID:        id.NewAt(fetchedAt),
		Symbol:    symbol,
		Interval:  iv,
		FetchedAt: fetchedAt.UTC(),
		Size:      int64(len(data)),
	}
	blob := r.blobKey(info.ID)
	index := r.indexKey(symbol, iv)

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, blob,
			"symbol", symbol,
			"interval", string(iv),
			"fetched_at", strconv.FormatInt(info.FetchedAt.UnixNano(), 10),
			"data", data,
		)
		p.ZAdd(ctx, index, redis.Z{
			Score:  float64(info.FetchedAt.UnixMilli()),
			Member: info.ID,
		})
		if r.ttl > 0 {
			p.Expire(ctx, blob, r.ttl)
		}
		return nil
	})
	if err != nil {
		return Info{}, fmt.Errorf("failed to save snapshot: %w", err)
	}

	r.logger.Info("data saved", zap.String("key", blob), zap.Int("rows", tb.Len()))
	return info, nil
}

func (r *Redis) Load(ctx context.Context, symbol string, iv market.Interval) (*market.Table, Info, error) {
	symbol, err := checkKey(symbol, iv)
	if err != nil {
		return nil, Info{}, err
	}
	index := r.indexKey(symbol, iv)

	// newest first; expired blobs leave dangling ids behind
	ids, err := r.client.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to read snapshot index: %w", err)
	}
	for _, sid := range ids {
		fields, err := r.client.HGetAll(ctx, r.blobKey(sid)).Result()
		if err != nil {
			return nil, Info{}, fmt.Errorf("failed to read snapshot %s: %w", sid, err)
		}
		if len(fields) == 0 {
			if err := r.client.ZRem(ctx, index, sid).Err(); err != nil {
				r.logger.Warn("failed to prune expired snapshot id",
					zap.String("key", index),
					zap.String("id", sid),
					zap.Error(err))
			}
			continue
		}
		info, err := blobInfo(sid, fields)
		if err != nil {
			return nil, Info{}, err
		}
		tb, err := decodeBytes([]byte(fields["data"]))
		if err != nil {
			return nil, Info{}, fmt.Errorf("decode snapshot %s: %w", sid, err)
		}
		r.logger.Info("data loaded", zap.String("key", r.blobKey(sid)), zap.Int("rows", tb.Len()))
		return tb, info, nil
	}
	return nil, Info{}, notFound(symbol, iv)
}

func (r *Redis) List(ctx context.Context, symbol string, iv market.Interval) ([]Info, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	ivPat, symPat := "*", "*"
	if iv != "" {
		ivPat = string(iv)
	}
	if symbol != "" {
		symPat = symbol
	}

	var keys []string
	iter := r.client.Scan(ctx, 0, fmt.Sprintf("%ssnapshots:%s:%s", r.prefix, ivPat, symPat), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan snapshot keys: %w", err)
	}

	var out []Info
	for _, key := range keys {
		ids, err := r.client.ZRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, err
		}
		for _, sid := range ids {
			vals, err := r.client.HMGet(ctx, r.blobKey(sid), "symbol", "interval", "fetched_at").Result()
			if err != nil {
				return nil, err
			}
			fields := map[string]string{}
			for i, name := range []string{"symbol", "interval", "fetched_at"} {
				if s, ok := vals[i].(string); ok {
					fields[name] = s
				}
			}
			if len(fields) == 0 {
				continue
			}
			info, err := blobInfo(sid, fields)
			if err != nil {
				return nil, err
			}
			if n, err := r.client.HStrLen(ctx, r.blobKey(sid), "data").Result(); err == nil {
				info.Size = n
			}
			out = append(out, info)
		}
	}
	sortInfos(out)
	return out, nil
}

func blobInfo(sid string, fields map[string]string) (Info, error) {
	ns, err := strconv.ParseInt(fields["fetched_at"], 10, 64)
	if err != nil {
		return Info{}, fmt.Errorf("snapshot %s: bad fetched_at %q", sid, fields["fetched_at"])
	}
	return Info{
		ID:        sid,
		Symbol:    fields["symbol"],
		Interval:  market.Interval(fields["interval"]),
		FetchedAt: time.Unix(0, ns).UTC(),
		Size:      int64(len(fields["data"])),
	}, nil
}

func (r *Redis) Close() error {
	err := r.client.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}
