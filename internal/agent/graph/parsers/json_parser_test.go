package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative-realty/leadbot/internal/agent/model"
)

func TestParseClassification(t *testing.T) {
	c, err := ParseClassification("```json\n{\"intent\": \"property_search\", \"target_table\": \"residential_properties_for_rent\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, model.IntentPropertySearch, c.Intent)
	assert.Equal(t, model.TableResidentialRent, c.TargetTable)
}

func TestParseClassification_UnknownValuesDegrade(t *testing.T) {
	c, err := ParseClassification(`{"intent": "book_flight", "target_table": "castles"}`)
	require.NoError(t, err)
	assert.Equal(t, model.IntentGeneralChat, c.Intent)
	assert.Empty(t, c.TargetTable)
}

func TestParseClassification_NoJSON(t *testing.T) {
	c, err := ParseClassification("I think the user wants to search")
	assert.ErrorIs(t, err, ErrNoJSON)
	assert.Equal(t, model.IntentGeneralChat, c.Intent)
}

func TestParseFilters_Coercion(t *testing.T) {
	p, err := ParseFilters(`Here you go: {
		"location": "Bugis",
		"transaction": "rental",
		"property_type": "condo",
		"bedrooms": 2,
		"budget_max": "$5.5k",
		"tenant_gender": "F",
		"needs_ensuite": "yes",
		"furnishing": null,
		"bathrooms": "lots"
	}`)
	require.NoError(t, err)

	require.NotNil(t, p.Location)
	assert.Equal(t, "Bugis", *p.Location)
	require.NotNil(t, p.Transaction)
	assert.Equal(t, model.TransactionRent, *p.Transaction)
	assert.Equal(t, 2, *p.Bedrooms)
	assert.Equal(t, 5500, *p.BudgetMax)
	assert.Equal(t, "female", *p.TenantGender)
	assert.True(t, *p.NeedsEnsuite)
	assert.Nil(t, p.Furnishing)
	assert.Nil(t, p.Bathrooms)
}

func TestParseFilters_Empty(t *testing.T) {
	p, err := ParseFilters(`{}`)
	require.NoError(t, err)
	assert.True(t, model.Filters(p).IsEmpty())
}

func TestParseLeadFields(t *testing.T) {
	p, err := ParseLeadFields(`{"name": "Alex Lim", "phone": "9123 4567", "lease_months": "12", "pass_type": "", "viewing_type": "virtual", "time_preference": "Saturday morning"}`)
	require.NoError(t, err)
	assert.Equal(t, "Alex Lim", *p.Name)
	assert.Equal(t, "virtual", *p.ViewingType)
	assert.Equal(t, "Saturday morning", *p.TimePreference)
	assert.Equal(t, "9123 4567", *p.Phone)
	assert.Equal(t, 12, *p.LeaseMonths)
	assert.Nil(t, p.PassType)
}

func TestParseLeadFields_Malformed(t *testing.T) {
	_, err := ParseLeadFields(`{"name": "Alex"`)
	assert.Error(t, err)
}
