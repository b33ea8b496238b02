// internal/core/services/enrichment_test.go
package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/merchkit/cartd/internal/core/services"
	"github.com/merchkit/cartd/test/helpers"
	"github.com/merchkit/cartd/test/mocks"
)

func TestEnrichmentResolver_Resolve_SettlesAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockProductCatalog(ctrl)

	catalog.EXPECT().FindByID(gomock.Any(), "prod-001").Return(knownProduct("prod-001", 10, 5), nil)
	catalog.EXPECT().FindByID(gomock.Any(), "prod-002").Return(nil, assertableErr("lookup failed"))
	catalog.EXPECT().FindByID(gomock.Any(), "prod-003").Return(nil, nil)
	catalog.EXPECT().FindByID(gomock.Any(), "prod-004").Return(knownProduct("prod-004", 20, 1), nil)

	r := services.NewEnrichmentResolver(catalog, 2, helpers.TestLogger())
	results := r.Resolve(context.Background(), []string{"prod-001", "prod-002", "prod-003", "prod-004"})

	require.Len(t, results, 2, "one failing lookup does not abort the others")
	assert.Contains(t, results, "prod-001")
	assert.Contains(t, results, "prod-004")
	assert.NotContains(t, results, "prod-002")
	assert.NotContains(t, results, "prod-003", "unknown products are absent, not nil entries")
}

func TestEnrichmentResolver_Resolve_EmptyInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockProductCatalog(ctrl)

	r := services.NewEnrichmentResolver(catalog, 4, helpers.TestLogger())
	assert.Empty(t, r.Resolve(context.Background(), nil))
}

func TestEnrichmentResolver_NilCatalog(t *testing.T) {
	r := services.NewEnrichmentResolver(nil, 4, helpers.TestLogger())

	assert.Nil(t, r.Peek("prod-001"))
	assert.Empty(t, r.Resolve(context.Background(), []string{"prod-001"}))
	r.WarmUp(context.Background(), []string{"prod-001"})
}

func TestEnrichmentResolver_WarmUpErrorSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockProductCatalog(ctrl)
	catalog.EXPECT().WarmUp(gomock.Any(), []string{"prod-001"}).Return(assertableErr("queue full"))

	r := services.NewEnrichmentResolver(catalog, 1, helpers.TestLogger())
	r.WarmUp(context.Background(), []string{"prod-001"})
}

func TestAction_Valid(t *testing.T) {
	tests := []struct {
		name   string
		action services.Action
		want   bool
	}{
		{name: "add_with_id", action: services.Action{Type: services.ActionAdd, ID: "x"}, want: true},
		{name: "add_without_id", action: services.Action{Type: services.ActionAdd}, want: false},
		{name: "include_all_needs_no_id", action: services.Action{Type: services.ActionIncludeAll}, want: true},
		{name: "whitespace_id", action: services.Action{Type: services.ActionRemove, ID: " \t"}, want: false},
		{name: "unknown_type", action: services.Action{Type: "NOPE", ID: "x"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.action.Valid())
		})
	}
}
