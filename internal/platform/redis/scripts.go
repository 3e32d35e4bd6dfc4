package redis

import goredis "github.com/redis/go-redis/v9"

// KEYS: jobs, wait, delayed, dedupe marker per job.
// ARGV: now ms, dedupe ttl ms, then id, delay ms, record per job.
var enqueueScript = goredis.NewScript(`
local now = tonumber(ARGV[1])
local ttl = ARGV[2]
local added = 0
local n = (#ARGV - 2) / 3
for i = 1, n do
  local base = 2 + (i - 1) * 3
  local id = ARGV[base + 1]
  local delay = tonumber(ARGV[base + 2])
  if redis.call('SET', KEYS[3 + i], '1', 'NX', 'PX', ttl) then
    redis.call('HSET', KEYS[1], id, ARGV[base + 3])
    if delay > 0 then
      redis.call('ZADD', KEYS[3], now + delay, id)
    else
      redis.call('RPUSH', KEYS[2], id)
    end
    added = added + 1
  end
end
return added
`)

// KEYS: jobs, wait, delayed, active, paused, deliveries.
// ARGV: now ms.
var dequeueScript = goredis.NewScript(`
local now = tonumber(ARGV[1])
local due = redis.call('ZRANGEBYSCORE', KEYS[3], '-inf', now)
for _, id in ipairs(due) do
  redis.call('ZREM', KEYS[3], id)
  redis.call('RPUSH', KEYS[2], id)
end
if redis.call('EXISTS', KEYS[5]) == 1 then
  return false
end
local id = redis.call('LPOP', KEYS[2])
if not id then
  return false
end
redis.call('ZADD', KEYS[4], now, id)
local count = redis.call('HINCRBY', KEYS[6], id, 1)
return {id, redis.call('HGET', KEYS[1], id), count}
`)

// KEYS: active, jobs, completed, deliveries. ARGV: id.
var completeScript = goredis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('HDEL', KEYS[2], ARGV[1])
redis.call('HDEL', KEYS[4], ARGV[1])
redis.call('INCR', KEYS[3])
return 1
`)

// KEYS: active, failed. ARGV: id, reason.
var failScript = goredis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
return 1
`)

// KEYS: active, wait. ARGV: cutoff ms (exclusive).
var requeueStalledScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('LPUSH', KEYS[2], id)
end
return #ids
`)
