package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative-realty/leadbot/internal/agent/model"
)

func TestBuildSearchQuery_Residential(t *testing.T) {
	sql, args, err := buildSearchQuery(model.TableResidentialRent, model.Filters{
		Location:     model.Ptr("Bugis"),
		PropertyType: model.Ptr("Condo"),
		Bedrooms:     model.Ptr(2),
		BudgetMax:    model.Ptr(5000),
	}, 3).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM properties")
	assert.Contains(t, sql, "price <= ?")
	assert.Contains(t, sql, "bedrooms = ?")
	assert.Contains(t, sql, "LIMIT 3")
	assert.Contains(t, args, "%bugis%")
	assert.Contains(t, args, "%condo%")
	assert.NotContains(t, sql, "LOWER(gender_preference)")
}

func TestBuildSearchQuery_FlexibleLocationHasNoAreaClause(t *testing.T) {
	sql, _, err := buildSearchQuery(model.TableResidentialRent, model.Filters{Location: model.Ptr("no preference")}, 10).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "LOWER(area)")
}

func TestBuildSearchQuery_RoomIgnoresBedrooms(t *testing.T) {
	sql, _, err := buildSearchQuery(model.TableColiving, model.Filters{
		Bedrooms:     model.Ptr(2),
		TenantGender: model.Ptr("female"),
	}, 10).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "bedrooms = ?")
	assert.Contains(t, sql, "LOWER(gender_preference)")
}

func TestCleanLocation(t *testing.T) {
	assert.Equal(t, "Bugis", cleanLocation("near Bugis MRT station"))
	assert.Equal(t, "Tiong Bahru", cleanLocation("Tiong Bahru area"))
}
