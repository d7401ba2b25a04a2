package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeClient is a minimal in-memory stand-in for Client, exercising the
// same list/set/string semantics go-redis provides. No mocking library
// appears anywhere in the retrieved corpus, so the fake is hand-written,
// the same way the teacher's internal/store tests use a temp-file SQLite
// database rather than a mock.
type fakeClient struct {
	lists   map[string][]string
	sets    map[string]map[string]struct{}
	strings map[string]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		lists:   make(map[string][]string),
		sets:    make(map[string]map[string]struct{}),
		strings: make(map[string]string),
	}
}

func (f *fakeClient) LPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	items := toStrings(values)
	for i := len(items) - 1; i >= 0; i-- {
		f.lists[key] = append([]string{items[i]}, f.lists[key]...)
	}
	return intCmd(int64(len(f.lists[key])))
}

func (f *fakeClient) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.lists[key] = append(f.lists[key], toStrings(values)...)
	return intCmd(int64(len(f.lists[key])))
}

func (f *fakeClient) LPop(_ context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(context.Background())
	list := f.lists[key]
	if len(list) == 0 {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	head := list[0]
	f.lists[key] = list[1:]
	cmd.SetVal(head)
	return cmd
}

func (f *fakeClient) SAdd(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	if f.sets[key] == nil {
		f.sets[key] = make(map[string]struct{})
	}
	n := 0
	for _, m := range toStrings(members) {
		if _, ok := f.sets[key][m]; !ok {
			f.sets[key][m] = struct{}{}
			n++
		}
	}
	return intCmd(int64(n))
}

func (f *fakeClient) SRem(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	n := 0
	for _, m := range toStrings(members) {
		if _, ok := f.sets[key][m]; ok {
			delete(f.sets[key], m)
			n++
		}
	}
	return intCmd(int64(n))
}

func (f *fakeClient) LRem(_ context.Context, key string, count int64, value interface{}) *redis.IntCmd {
	target := toStrings([]interface{}{value})[0]
	list := f.lists[key]
	removed := int64(0)
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v == target && (count <= 0 || removed < count) {
			removed++
			continue
		}
		out = append(out, v)
	}
	f.lists[key] = out
	return intCmd(removed)
}

func (f *fakeClient) Get(_ context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(context.Background())
	v, ok := f.strings[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (f *fakeClient) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.strings[key] = toStrings([]interface{}{value})[0]
	return redis.NewStatusCmd(context.Background())
}

func (f *fakeClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	n := int64(0)
	for _, k := range keys {
		if _, ok := f.lists[k]; ok {
			delete(f.lists, k)
			n++
		}
		if _, ok := f.strings[k]; ok {
			delete(f.strings, k)
			n++
		}
	}
	return intCmd(n)
}

func (f *fakeClient) LLen(_ context.Context, key string) *redis.IntCmd {
	return intCmd(int64(len(f.lists[key])))
}

func (f *fakeClient) SCard(_ context.Context, key string) *redis.IntCmd {
	return intCmd(int64(len(f.sets[key])))
}

func (f *fakeClient) LRange(_ context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	list := f.lists[key]
	n := int64(len(list))
	if n == 0 {
		return redis.NewStringSliceCmd(context.Background())
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start < 0 {
		start = 0
	}
	if start > stop {
		cmd := redis.NewStringSliceCmd(context.Background())
		cmd.SetVal([]string{})
		return cmd
	}
	cmd := redis.NewStringSliceCmd(context.Background())
	cmd.SetVal(append([]string{}, list[start:stop+1]...))
	return cmd
}

func (f *fakeClient) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	members := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		members = append(members, m)
	}
	cmd := redis.NewStringSliceCmd(context.Background())
	cmd.SetVal(members)
	return cmd
}

// intCmd builds an IntCmd whose Val() is v; redis.NewIntCmd's variadic
// arguments are the command's arguments, not its result.
func intCmd(v int64) *redis.IntCmd {
	cmd := redis.NewIntCmd(context.Background())
	cmd.SetVal(v)
	return cmd
}

func toStrings(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		switch t := v.(type) {
		case string:
			out[i] = t
		case []byte:
			out[i] = string(t)
		default:
			out[i] = ""
		}
	}
	return out
}
