package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"nutripal/internal/core/ai/cache"
	"nutripal/internal/core/ai/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	calls   int
	last    *provider.Request
	content string
	err     error
	delay   time.Duration
}

func (f *fakeProvider) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	f.calls++
	f.last = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Response{Content: f.content}, nil
}

func (f *fakeProvider) GetModel() string          { return "fake" }
func (f *fakeProvider) GetTimeout() time.Duration { return time.Second }
func (f *fakeProvider) Close() error              { return nil }

func TestCompleteBuildsMessages(t *testing.T) {
	p := &fakeProvider{content: `{"ok":true}`}
	s := NewService(p, nil, time.Second)

	out, err := s.Complete(context.Background(), Call{Capability: "intent", System: "sys", Prompt: "  hello  "})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	require.Len(t, p.last.Messages, 2)
	assert.Equal(t, "system", p.last.Messages[0].Role)
	assert.Equal(t, "hello", p.last.Messages[1].Content)
	assert.True(t, p.last.JSONMode)
}

func TestCompleteUsesCacheForCacheableCalls(t *testing.T) {
	p := &fakeProvider{content: "cached"}
	c := cache.NewManager(cache.Config{MaxSize: 10, TTL: time.Minute})
	defer c.Close()
	s := NewService(p, c, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := s.Complete(ctx, Call{Capability: "lookup", Prompt: "1 banana", Cacheable: true})
		require.NoError(t, err)
		assert.Equal(t, "cached", out)
	}
	assert.Equal(t, 1, p.calls)

	_, err := s.Complete(ctx, Call{Capability: "intent", Prompt: "1 banana"})
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestCompleteTimeout(t *testing.T) {
	p := &fakeProvider{delay: time.Second}
	s := NewService(p, nil, 20*time.Millisecond)

	_, err := s.Complete(context.Background(), Call{Capability: "intent", Prompt: "slow"})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestCompleteProviderError(t *testing.T) {
	boom := errors.New("boom")
	s := NewService(&fakeProvider{err: boom}, nil, time.Second)

	_, err := s.Complete(context.Background(), Call{Capability: "lookup", Prompt: "x", Cacheable: true})
	assert.ErrorIs(t, err, boom)

	_, err = s.Complete(context.Background(), Call{Capability: "lookup", Prompt: "  "})
	assert.Error(t, err)
}
