package rest

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-returnless/pkg/clients"
	"github.com/ajitpratap0/tap-returnless/pkg/errors"
	"github.com/ajitpratap0/tap-returnless/pkg/models"
	"github.com/ajitpratap0/tap-returnless/pkg/testutil"
)

// fakeFetcher serves bodies keyed by path and the page query parameter.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]map[string]string
	fail  map[string]error
	calls []string
}

func (f *fakeFetcher) GetJSON(_ context.Context, path string, params url.Values) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := path
	if q := params.Encode(); q != "" {
		call += "?" + q
	}
	f.calls = append(f.calls, call)

	if err, ok := f.fail[path]; ok {
		return nil, err
	}
	byPage, ok := f.pages[path]
	if !ok {
		return nil, errors.FromHTTPStatus(404, nil)
	}
	body, ok := byPage[params.Get("page")]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "no page %q for %s", params.Get("page"), path)
	}
	return []byte(body), nil
}

type emitted struct {
	stream string
	id     string
}

type recordingSink struct {
	records   []emitted
	completed []string
	failOn    string
}

func (s *recordingSink) WriteRecord(_ context.Context, def *StreamDefinition, rec *models.Record) error {
	if def.Name == s.failOn {
		return errors.New(errors.ErrorTypeFile, "disk full")
	}
	id, _ := rec.Lookup("id")
	s.records = append(s.records, emitted{stream: def.Name, id: id})
	return nil
}

func (s *recordingSink) StreamCompleted(_ context.Context, def *StreamDefinition) error {
	s.completed = append(s.completed, def.Name)
	return nil
}

type countingProgress struct {
	emitted, filtered map[string]int
}

func newCountingProgress() *countingProgress {
	return &countingProgress{emitted: map[string]int{}, filtered: map[string]int{}}
}

func (p *countingProgress) RecordEmitted(stream string)  { p.emitted[stream]++ }
func (p *countingProgress) RecordFiltered(stream string) { p.filtered[stream]++ }

func mustCatalog(t *testing.T, defs []*StreamDefinition) *Catalog {
	t.Helper()
	c, err := NewCatalog(defs)
	require.NoError(t, err)
	return c
}

func TestOrchestratorFollowsNextLinks(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]map[string]string{
		"/tags": {
			"":  `{"data":[{"id":1,"name":"a"},{"id":2,"name":"b"}],"links":{"next":"https://api-v2.returnless.com/2023-01/tags?page=2"}}`,
			"2": `{"data":[{"id":3,"name":"c"}],"links":{"next":null}}`,
		},
	}}
	sink := &recordingSink{}
	catalog := mustCatalog(t, []*StreamDefinition{{Name: "tags", Path: "/tags", PrimaryKeys: []string{"id"}}})

	o, err := NewOrchestrator(catalog, fetcher, sink, WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, []emitted{{"tags", "1"}, {"tags", "2"}, {"tags", "3"}}, sink.records)
	assert.Equal(t, []string{"/tags", "/tags?page=2"}, fetcher.calls)
	assert.Equal(t, []string{"tags"}, sink.completed)
}

func TestOrchestratorRerunEmitsSameRecords(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]map[string]string{
		"/categories": {"": `{"data":[{"id":"c1"}]}`},
		"/forms": {
			"":  `{"data":[{"id":10}],"links":{"next":"https://x/forms?page=2"}}`,
			"2": `{"data":[{"id":20}]}`,
		},
		"/forms/10/return-reasons":   {"": `{"data":[{"id":"r1"},{"id":"r2"}]}`},
		"/forms/10/shipping-methods": {"": `{"data":[{"id":"s1"}]}`},
		"/forms/20/return-reasons":   {"": `{"data":[]}`},
		"/forms/20/shipping-methods": {"": `{"data":[{"id":"s2"}]}`},
		"/tags":                      {"": `{"data":[{"id":"t1","updated_at":"2024-06-01T00:00:00Z"},{"id":"t2","updated_at":"2025-02-01T00:00:00Z"}]}`},
	}}
	catalog := mustCatalog(t, formsCatalogDefs())
	watermark := NewWatermarkFilter(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), true)

	run := func() ([]emitted, []string) {
		sink := &recordingSink{}
		o, err := NewOrchestrator(catalog, fetcher, sink, WithWatermark(watermark))
		require.NoError(t, err)
		require.NoError(t, o.Run(context.Background()))
		return sink.records, sink.completed
	}

	firstRecords, firstCompleted := run()
	firstCalls := append([]string(nil), fetcher.calls...)
	fetcher.calls = nil
	secondRecords, secondCompleted := run()

	require.Len(t, firstRecords, 8)
	assert.Contains(t, firstRecords, emitted{"tags", "t2"})
	assert.NotContains(t, firstRecords, emitted{"tags", "t1"})
	assert.Equal(t, firstRecords, secondRecords)
	assert.Equal(t, firstCompleted, secondCompleted)
	assert.Equal(t, firstCalls, fetcher.calls)
}

func TestOrchestratorRunTwice(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]map[string]string{
		"/tags": {
			"":  `{"data":[{"id":1},{"id":2}],"links":{"next":"https://x/tags?page=2"}}`,
			"2": `{"data":[{"id":3}]}`,
		},
	}}
	sink := &recordingSink{}
	catalog := mustCatalog(t, []*StreamDefinition{{Name: "tags", Path: "/tags", PrimaryKeys: []string{"id"}}})

	o, err := NewOrchestrator(catalog, fetcher, sink)
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))
	require.NoError(t, o.Run(context.Background()))

	require.Len(t, sink.records, 6)
	assert.Equal(t, sink.records[:3], sink.records[3:])
	assert.Equal(t, []string{"/tags", "/tags?page=2", "/tags", "/tags?page=2"}, fetcher.calls)
}

func TestOrchestratorSendsStaticParamsOnEveryPage(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]map[string]string{
		"/shipments": {
			"":  `{"data":[{"id":1}],"links":{"next":"/2023-01/shipments?page=2&include=customer_address%2Creturn_address"}}`,
			"2": `{"data":[],"links":{}}`,
		},
	}}
	catalog := mustCatalog(t, []*StreamDefinition{{
		Name:        "shipments",
		Path:        "/shipments",
		PrimaryKeys: []string{"id"},
		Params:      url.Values{"include": {"customer_address,return_address"}},
	}})

	o, err := NewOrchestrator(catalog, fetcher, &recordingSink{})
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, []string{
		"/shipments?include=customer_address%2Creturn_address",
		"/shipments?include=customer_address%2Creturn_address&page=2",
	}, fetcher.calls)
}

func TestOrchestratorRunsChildrenDepthFirst(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]map[string]string{
		"/categories": {"": `{"data":[{"id":"c1"}]}`},
		"/forms": {
			"":  `{"data":[{"id":10}],"links":{"next":"https://x/forms?page=2"}}`,
			"2": `{"data":[{"id":20}]}`,
		},
		"/forms/10/return-reasons":   {"": `{"data":[{"id":"r1"},{"id":"r2"}]}`},
		"/forms/10/shipping-methods": {"": `{"data":[{"id":"s1"}]}`},
		"/forms/20/return-reasons":   {"": `{"data":[]}`},
		"/forms/20/shipping-methods": {"": `{"data":[{"id":"s2"}]}`},
		"/tags":                      {"": `{"data":[{"id":"t1"}]}`},
	}}
	sink := &recordingSink{}

	o, err := NewOrchestrator(mustCatalog(t, formsCatalogDefs()), fetcher, sink)
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, []string{
		"/categories",
		"/forms",
		"/forms/10/return-reasons",
		"/forms/10/shipping-methods",
		"/forms?page=2",
		"/forms/20/return-reasons",
		"/forms/20/shipping-methods",
		"/tags",
	}, fetcher.calls)
	assert.Equal(t, []emitted{
		{"categories", "c1"},
		{"forms", "10"},
		{"form_return_reasons", "r1"},
		{"form_return_reasons", "r2"},
		{"form_shipping_methods", "s1"},
		{"forms", "20"},
		{"form_shipping_methods", "s2"},
		{"tags", "t1"},
	}, sink.records)
	assert.Equal(t, []string{"categories", "forms", "tags"}, sink.completed)
}

func TestOrchestratorSelectionRunsParentWithoutEmitting(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]map[string]string{
		"/forms":                   {"": `{"data":[{"id":42}]}`},
		"/forms/42/return-reasons": {"": `{"data":[{"id":"r1"}]}`},
	}}
	sink := &recordingSink{}
	catalog := mustCatalog(t, formsCatalogDefs())
	sel, err := catalog.Select([]string{"form_return_reasons"})
	require.NoError(t, err)

	o, err := NewOrchestrator(catalog, fetcher, sink, WithSelection(sel))
	require.NoError(t, err)
	require.Len(t, o.Streams(), 1)
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, []string{"/forms", "/forms/42/return-reasons"}, fetcher.calls)
	assert.Equal(t, []emitted{{"form_return_reasons", "r1"}}, sink.records)
	assert.Equal(t, []string{"forms"}, sink.completed)
}

func TestOrchestratorWatermark(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]map[string]string{
		"/return-orders": {"": `{"data":[
			{"id":1,"updated_at":"2024-12-31T23:59:59Z"},
			{"id":2,"updated_at":"2025-01-01T00:00:00Z"},
			{"id":3},
			{"id":4,"updated_at":"2025-06-01T12:00:00+02:00"}
		]}`},
	}}
	sink := &recordingSink{}
	progress := newCountingProgress()
	catalog := mustCatalog(t, []*StreamDefinition{{
		Name: "return_orders", Path: "/return-orders", PrimaryKeys: []string{"id"}, ReplicationKey: "updated_at",
	}})
	wm := NewWatermarkFilter(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), true)

	o, err := NewOrchestrator(catalog, fetcher, sink, WithWatermark(wm), WithProgress(progress))
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, []emitted{{"return_orders", "2"}, {"return_orders", "3"}, {"return_orders", "4"}}, sink.records)
	assert.Equal(t, 3, progress.emitted["return_orders"])
	assert.Equal(t, 1, progress.filtered["return_orders"])
}

func TestOrchestratorStreamPostProcess(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]map[string]string{
		"/notes": {"": `{"data":[{"id":1,"internal":true},{"id":2,"internal":false}]}`},
	}}
	sink := &recordingSink{}
	catalog := mustCatalog(t, []*StreamDefinition{{
		Name: "notes", Path: "/notes", PrimaryKeys: []string{"id"},
		PostProcess: PostProcessFunc(func(rec *models.Record, _ Context) (*models.Record, bool, error) {
			v, _ := rec.Get("internal")
			return rec, v != true, nil
		}),
	}})

	o, err := NewOrchestrator(catalog, fetcher, sink)
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, []emitted{{"notes", "2"}}, sink.records)
}

func TestOrchestratorPageShapes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     int
		wantType errors.ErrorType
	}{
		{name: "missing data", body: `{"links":{}}`},
		{name: "null data", body: `{"data":null}`},
		{name: "empty data", body: `{"data":[]}`},
		{name: "data is object", body: `{"data":{"id":1}}`, wantType: errors.ErrorTypeData},
		{name: "record not object", body: `{"data":[1,2]}`, wantType: errors.ErrorTypeData},
		{name: "missing primary key", body: `{"data":[{"name":"x"}]}`, wantType: errors.ErrorTypeData},
		{name: "null primary key", body: `{"data":[{"id":null}]}`, wantType: errors.ErrorTypeData},
		{name: "invalid json", body: `{"data":[`, wantType: errors.ErrorTypeData},
		{name: "two records", body: `{"data":[{"id":1},{"id":2}]}`, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{pages: map[string]map[string]string{"/tags": {"": tt.body}}}
			sink := &recordingSink{}
			catalog := mustCatalog(t, []*StreamDefinition{{Name: "tags", Path: "/tags", PrimaryKeys: []string{"id"}}})
			o, err := NewOrchestrator(catalog, fetcher, sink)
			require.NoError(t, err)

			err = o.Run(context.Background())
			if tt.wantType != "" {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, tt.wantType), err.Error())
				assertStream(t, err, "tags")
				assert.Empty(t, sink.completed)
				return
			}
			require.NoError(t, err)
			assert.Len(t, sink.records, tt.want)
		})
	}
}

func TestOrchestratorChildFailureNamesChild(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[string]map[string]string{
			"/forms": {"": `{"data":[{"id":42}]}`},
		},
		fail: map[string]error{
			"/forms/42/return-reasons": errors.FromHTTPStatus(403, []byte(`{"message":"forbidden"}`)),
		},
	}
	catalog := mustCatalog(t, formsCatalogDefs()[1:3])

	o, err := NewOrchestrator(catalog, fetcher, &recordingSink{})
	require.NoError(t, err)
	err = o.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePermission))
	assertStream(t, err, "form_return_reasons")
}

func TestOrchestratorSinkFailure(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]map[string]string{"/tags": {"": `{"data":[{"id":1}]}`}}}
	catalog := mustCatalog(t, []*StreamDefinition{{Name: "tags", Path: "/tags", PrimaryKeys: []string{"id"}}})

	o, err := NewOrchestrator(catalog, fetcher, &recordingSink{failOn: "tags"})
	require.NoError(t, err)
	err = o.Run(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
	assertStream(t, err, "tags")
}

func TestOrchestratorCancelled(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]map[string]string{"/tags": {"": `{"data":[]}`}}}
	catalog := mustCatalog(t, []*StreamDefinition{{Name: "tags", Path: "/tags", PrimaryKeys: []string{"id"}}})
	o, err := NewOrchestrator(catalog, fetcher, &recordingSink{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = o.Run(ctx)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
	assert.Empty(t, fetcher.calls)
}

func TestNewOrchestratorRequiresCollaborators(t *testing.T) {
	catalog := mustCatalog(t, formsCatalogDefs())
	_, err := NewOrchestrator(nil, &fakeFetcher{}, &recordingSink{})
	assert.Error(t, err)
	_, err = NewOrchestrator(catalog, nil, &recordingSink{})
	assert.Error(t, err)
	_, err = NewOrchestrator(catalog, &fakeFetcher{}, nil)
	assert.Error(t, err)
}

func assertStream(t *testing.T, err error, stream string) {
	t.Helper()
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	got, ok := e.Detail(errors.DetailStream)
	require.True(t, ok, "error carries no stream detail")
	assert.Equal(t, stream, got)
}

func newHTTPFetcher(t *testing.T, server *testutil.APIServer, token string) *clients.HTTPClient {
	t.Helper()
	cfg := clients.DefaultHTTPConfig()
	cfg.BaseURL = server.URL + "/2023-01"
	cfg.AuthToken = token
	cfg.RateLimit = 0
	cfg.CircuitBreakerEnabled = false
	cfg.EnableHTTP2 = false
	cfg.Retry = &clients.RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	client, err := clients.NewHTTPClient(cfg, testutil.TestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestOrchestratorWithHTTPClient(t *testing.T) {
	server := testutil.NewAPIServer(t, map[string][]testutil.Response{
		"/2023-01/tags": {
			{Body: `{"data":[{"id":1},{"id":2}],"links":{"next":"https://api-v2.returnless.com/2023-01/tags?page=2"}}`},
			{Status: 503, Body: `{"message":"try again"}`},
			{Body: `{"data":[{"id":3}],"links":{"next":null}}`},
		},
	})
	sink := &recordingSink{}
	catalog := mustCatalog(t, []*StreamDefinition{{Name: "tags", Path: "/tags", PrimaryKeys: []string{"id"}}})

	o, err := NewOrchestrator(catalog, newHTTPFetcher(t, server, "secret"), sink)
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, []emitted{{"tags", "1"}, {"tags", "2"}, {"tags", "3"}}, sink.records)

	reqs := server.Requests()
	require.Len(t, reqs, 3)
	assert.Empty(t, reqs[0].Query.Get("page"))
	assert.Equal(t, "2", reqs[1].Query.Get("page"))
	assert.Equal(t, "2", reqs[2].Query.Get("page"))
	for _, r := range reqs {
		assert.Equal(t, "Bearer secret", r.Authorization)
	}
}

func TestOrchestratorUnauthorizedIsFatal(t *testing.T) {
	server := testutil.NewAPIServer(t, map[string][]testutil.Response{
		"/2023-01/categories": {{Body: `{"data":[{"id":1}]}`}},
		"/2023-01/tags":       {{Status: 401, Body: `{"message":"Unauthenticated."}`}},
	})
	sink := &recordingSink{}
	catalog := mustCatalog(t, []*StreamDefinition{
		{Name: "categories", Path: "/categories", PrimaryKeys: []string{"id"}},
		{Name: "tags", Path: "/tags", PrimaryKeys: []string{"id"}},
		{Name: "notes", Path: "/notes", PrimaryKeys: []string{"id"}},
	})

	o, err := NewOrchestrator(catalog, newHTTPFetcher(t, server, "bad"), sink)
	require.NoError(t, err)
	err = o.Run(context.Background())
	require.Error(t, err)

	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, 1, strings.Count(err.Error(), "authentication:"), err.Error())
	assertStream(t, err, "tags")
	assert.Equal(t, []string{"/2023-01/categories", "/2023-01/tags"}, server.RequestPaths())
	assert.Equal(t, []emitted{{"categories", "1"}}, sink.records)
	assert.Equal(t, []string{"categories"}, sink.completed)
}
