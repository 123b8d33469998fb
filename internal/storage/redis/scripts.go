package redis

const (
	// savePrefsScript applies a staged batch of writes to a namespace hash
	// atomically. ARGV[1] is the number of field/value pairs that follow;
	// any remaining arguments are fields to delete.
	savePrefsScript = `
local prefs_key = KEYS[1]     -- pillbox:prefs:{namespace}

local puts = tonumber(ARGV[1])
local idx = 2

for i = 1, puts do
  redis.call('HSET', prefs_key, ARGV[idx], ARGV[idx + 1])
  idx = idx + 2
end

local deleted = 0
while idx <= #ARGV do
  deleted = deleted + redis.call('HDEL', prefs_key, ARGV[idx])
  idx = idx + 1
end

return puts + deleted
`
)
