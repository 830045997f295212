// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package clients

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tryextra/extra-oidc/pkg/directory"
	"github.com/tryextra/extra-oidc/pkg/directory/mocks"
)

type countingObserver struct {
	hits, misses, invalidations atomic.Int32
}

func (o *countingObserver) ClientCacheHit()         { o.hits.Add(1) }
func (o *countingObserver) ClientCacheMiss()        { o.misses.Add(1) }
func (o *countingObserver) ClientCacheInvalidated() { o.invalidations.Add(1) }

func testClient(id string) *directory.Client {
	return &directory.Client{
		ID:           id,
		Name:         "Intranet",
		Secret:       "s3cret",
		Trusted:      true,
		RedirectURIs: []string{"https://app.example.com/cb"},
		Session: directory.ClientSession{
			PostLogoutRedirectURIs: []string{"https://app.example.com/"},
			FrontchannelLogoutURI:  "https://app.example.com/logout",
		},
	}
}

func TestResolver_ResolveCachesRecord(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	dir := mocks.NewMockClients(ctrl)
	dir.EXPECT().Get(gomock.Any(), "c1").Return(testClient("c1"), nil).Times(1)

	obs := &countingObserver{}
	r := NewResolver(dir, WithObserver(obs))

	first, err := r.Resolve(context.Background(), "c1")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "c1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "Intranet", first.Name)
	assert.True(t, first.Trusted)
	assert.Equal(t, "web", first.ApplicationType)
	assert.Equal(t, []string{"https://app.example.com/"}, first.PostLogoutRedirectURIs)
	assert.Equal(t, int32(1), obs.misses.Load())
	assert.Equal(t, int32(1), obs.hits.Load())
}

func TestResolver_NotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		id     string
		result *directory.Client
		err    error
	}{
		{name: "absent", id: "c1", err: &directory.APIError{Name: "NotFound", Code: 404}},
		{name: "malformed id", id: "%%", err: &directory.APIError{Name: "BadRequest", Code: 400}},
		{name: "record without id", id: "c2", result: &directory.Client{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			dir := mocks.NewMockClients(ctrl)
			dir.EXPECT().Get(gomock.Any(), tt.id).Return(tt.result, tt.err)

			r := NewResolver(dir)
			_, err := r.Resolve(context.Background(), tt.id)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Zero(t, r.Len(), "misses must not be cached")
		})
	}
}

func TestResolver_EmptyIDSkipsDirectory(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	r := NewResolver(mocks.NewMockClients(ctrl))

	_, err := r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolver_UpstreamFailurePropagates(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	dir := mocks.NewMockClients(ctrl)
	boom := &directory.APIError{Name: "GeneralError", Code: 500}
	dir.EXPECT().Get(gomock.Any(), "c1").Return(nil, boom)

	r := NewResolver(dir)
	_, err := r.Resolve(context.Background(), "c1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, boom)
}

func TestResolver_CancelledCallerDoesNotFailSharedLookup(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	dir := mocks.NewMockClients(ctrl)

	started := make(chan struct{})
	release := make(chan struct{})
	dir.EXPECT().Get(gomock.Any(), "c1").DoAndReturn(
		func(ctx context.Context, id string) (*directory.Client, error) {
			close(started)
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return testClient(id), nil
		}).Times(1)

	r := NewResolver(dir)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctxA, "c1")
		errA <- err
	}()
	<-started

	type result struct {
		rec *Record
		err error
	}
	resB := make(chan result, 1)
	go func() {
		rec, err := r.Resolve(context.Background(), "c1")
		resB <- result{rec, err}
	}()

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	got := <-resB
	require.NoError(t, got.err)
	assert.Equal(t, "c1", got.rec.ID)
	assert.Equal(t, 1, r.Len())
}

func TestResolver_FetchTimeout(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	dir := mocks.NewMockClients(ctrl)
	dir.EXPECT().Get(gomock.Any(), "c1").DoAndReturn(
		func(ctx context.Context, _ string) (*directory.Client, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	r := NewResolver(dir, WithFetchTimeout(10*time.Millisecond))
	_, err := r.Resolve(context.Background(), "c1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestResolver_HandleChange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		change      directory.Change
		invalidates bool
	}{
		{"updated", directory.Change{Event: "updated", Service: "clients", ID: "c1"}, true},
		{"patched", directory.Change{Event: "patched", ID: "c1"}, true},
		{"removed", directory.Change{Event: "removed", Service: "clients", ID: "c1"}, true},
		{"created is ignored", directory.Change{Event: "created", Service: "clients", ID: "c1"}, false},
		{"other service is ignored", directory.Change{Event: "patched", Service: "users", ID: "c1"}, false},
		{"other id is ignored", directory.Change{Event: "patched", Service: "clients", ID: "c2"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			dir := mocks.NewMockClients(ctrl)
			calls := 1
			if tt.invalidates {
				calls = 2
			}
			dir.EXPECT().Get(gomock.Any(), "c1").Return(testClient("c1"), nil).Times(calls)

			r := NewResolver(dir)
			_, err := r.Resolve(context.Background(), "c1")
			require.NoError(t, err)

			r.HandleChange(tt.change)

			_, err = r.Resolve(context.Background(), "c1")
			require.NoError(t, err)
		})
	}
}

type staticSource []directory.Change

func (s staticSource) Deliver(_ context.Context, fn func(directory.Change)) {
	for _, c := range s {
		fn(c)
	}
}

func TestResolver_Watch(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	dir := mocks.NewMockClients(ctrl)
	dir.EXPECT().Get(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, id string) (*directory.Client, error) {
			return testClient(id), nil
		}).Times(2)

	obs := &countingObserver{}
	r := NewResolver(dir, WithObserver(obs))
	_, err := r.Resolve(context.Background(), "c1")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "c2")
	require.NoError(t, err)
	require.Equal(t, 2, r.Len())

	r.Watch(context.Background(), staticSource{{Event: "removed", Service: "clients", ID: "c1"}})

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, int32(1), obs.invalidations.Load())
}

func TestResolver_InvalidateDuringFetchDoesNotCacheStaleRecord(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	dir := mocks.NewMockClients(ctrl)

	var r *Resolver
	dir.EXPECT().Get(gomock.Any(), "c1").DoAndReturn(
		func(_ context.Context, id string) (*directory.Client, error) {
			// The record changes while the first read is in flight.
			r.Invalidate(id)
			return testClient(id), nil
		})
	dir.EXPECT().Get(gomock.Any(), "c1").Return(testClient("c1"), nil)

	r = NewResolver(dir)

	_, err := r.Resolve(context.Background(), "c1")
	require.NoError(t, err)
	assert.Zero(t, r.Len())

	_, err = r.Resolve(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestResolver_ConcurrentReadsAndInvalidation(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	dir := mocks.NewMockClients(ctrl)
	dir.EXPECT().Get(gomock.Any(), "c1").Return(testClient("c1"), nil).MinTimes(1)

	r := NewResolver(dir)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%8 == 0 {
				r.Invalidate("c1")
				return
			}
			if _, err := r.Resolve(context.Background(), "c1"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRecord_EngineClient(t *testing.T) {
	t.Parallel()

	rec, err := NewRecord(testClient("c1"))
	require.NoError(t, err)

	c := rec.EngineClient([]string{"openid", "email"}, []string{"https://api.example.com"})
	assert.Equal(t, "c1", c.GetID())
	assert.False(t, c.IsPublic())
	assert.Equal(t, "client_secret_basic", c.GetTokenEndpointAuthMethod())
	assert.ElementsMatch(t, []string{"implicit", "authorization_code", "refresh_token", "client_credentials"}, []string(c.GetGrantTypes()))
	assert.Contains(t, []string(c.GetResponseTypes()), "code id_token")
	assert.Equal(t, []string{"https://app.example.com/cb"}, c.GetRedirectURIs())
	assert.Same(t, rec, c.Record)

	public, err := NewRecord(&directory.Client{ID: "spa", Type: "native"})
	require.NoError(t, err)
	pc := public.EngineClient(nil, nil)
	assert.True(t, pc.IsPublic())
	assert.Equal(t, "none", pc.GetTokenEndpointAuthMethod())
	assert.True(t, public.IsNative())
}

func TestRequestsInteractiveResponse(t *testing.T) {
	t.Parallel()

	assert.False(t, RequestsInteractiveResponse([]string{"code"}))
	assert.True(t, RequestsInteractiveResponse([]string{"code", "id_token"}))
	assert.True(t, RequestsInteractiveResponse([]string{"token"}))
	assert.False(t, RequestsInteractiveResponse(nil))
}

func TestRecord_AllowsPostLogoutRedirect(t *testing.T) {
	t.Parallel()

	rec, err := NewRecord(testClient("c1"))
	require.NoError(t, err)
	assert.True(t, rec.AllowsPostLogoutRedirect("https://app.example.com/"))
	assert.False(t, rec.AllowsPostLogoutRedirect("https://evil.example.com/"))
}
