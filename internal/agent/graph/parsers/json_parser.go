package parsers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/chative-realty/leadbot/internal/agent/model"
	errx "github.com/chative-realty/leadbot/internal/core/error"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

// basic safety limits to avoid pathological model output
const (
	maxContentLen = 64 * 1024
	maxFieldLen   = 512
	maxErrSnippet = 200
)

// ErrNoJSON is returned when the model answer holds no JSON object.
var ErrNoJSON = fmt.Errorf("no json object in model output")

// extractObject returns the outermost JSON object in content, skipping code
// fences and any prose the model put around it.
func extractObject(content string) (string, error) {
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "json_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, "")
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return content[start : end+1], nil
}

func decodeObject(content string) (map[string]any, error) {
	raw, err := extractObject(content)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decode model json %q: %w", safeSnippet(raw), err)
	}
	return m, nil
}

func guard(component string, err *error) {
	if r := recover(); r != nil {
		logx.Error().Str("component", component).Msgf("panic recovered: %v", r)
		*err = errx.New(fmt.Errorf("%s panic", component), http.StatusInternalServerError, errx.SystemErrorMessage)
	}
}

// ParseClassification reads {"intent","target_table","clarification"}.
// Unknown intents become general chat and unknown tables are dropped.
func ParseClassification(content string) (c model.Classification, err error) {
	defer guard("classification_parser", &err)

	m, err := decodeObject(content)
	if err != nil {
		return model.Classification{Intent: model.IntentGeneralChat}, err
	}

	intent, ok := model.ParseIntent(asString(m["intent"]))
	if !ok {
		logx.Warn().Str("intent", safeSnippet(asString(m["intent"]))).Msg("unknown intent label, using general chat")
	}
	c.Intent = intent
	if t, ok := model.ParseListingTable(asString(m["target_table"])); ok {
		c.TargetTable = t
	}
	c.Clarification = asString(m["clarification"])
	return c, nil
}

// ParseFilters reads a filters object. Values the model could not type
// correctly are dropped rather than failing the whole answer.
func ParseFilters(content string) (p model.PartialFilters, err error) {
	defer guard("filters_parser", &err)

	m, err := decodeObject(content)
	if err != nil {
		return model.PartialFilters{}, err
	}

	p.Location = optString(m["location"])
	p.PropertyType = optString(m["property_type"])
	p.MoveInDate = optString(m["move_in_date"])
	p.TenantGender = optGender(m["tenant_gender"])
	p.TenantNationality = optString(m["tenant_nationality"])
	p.RoomType = optString(m["room_type"])
	p.Furnishing = optString(m["furnishing"])
	p.Environment = optString(m["environment"])
	p.Transaction = optTransaction(m["transaction"])

	p.Bedrooms = optInt(m["bedrooms"])
	p.Bathrooms = optInt(m["bathrooms"])
	p.BudgetMin = optInt(m["budget_min"])
	p.BudgetMax = optInt(m["budget_max"])
	p.LeaseMonths = optInt(m["lease_months"])

	p.NeedsEnsuite = optBool(m["needs_ensuite"])
	p.NeedsCooking = optBool(m["needs_cooking"])
	p.HasPets = optBool(m["has_pets"])
	p.NeedsAircon = optBool(m["needs_aircon"])
	return p, nil
}

// ParseLeadFields reads the contact details object.
func ParseLeadFields(content string) (p model.PartialLead, err error) {
	defer guard("lead_parser", &err)

	m, err := decodeObject(content)
	if err != nil {
		return model.PartialLead{}, err
	}
	p.Name = optString(m["name"])
	p.Nationality = optString(m["nationality"])
	p.PassType = optString(m["pass_type"])
	p.Phone = optString(m["phone"])
	p.LeaseMonths = optInt(m["lease_months"])
	p.ViewingType = optString(m["viewing_type"])
	p.TimePreference = optString(m["time_preference"])
	return p, nil
}

// --- coercion helpers ---

func asString(v any) string {
	switch vv := v.(type) {
	case string:
		return strings.TrimSpace(vv)
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	}
	return ""
}

func optString(v any) *string {
	s := asString(v)
	switch strings.ToLower(s) {
	case "", "null", "none", "n/a", "unknown":
		return nil
	}
	if len(s) > maxFieldLen {
		s = s[:maxFieldLen]
	}
	return &s
}

func optInt(v any) *int {
	switch vv := v.(type) {
	case float64:
		if math.IsNaN(vv) || math.IsInf(vv, 0) {
			return nil
		}
		n := int(math.Round(vv))
		return &n
	case string:
		return parseAmount(vv)
	}
	return nil
}

// parseAmount accepts "5000", "$5,000", "5k" and "2.5k".
func parseAmount(s string) *int {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("$", "", ",", "", "sgd", "", " ", "").Replace(s)
	mult := 1.0
	if strings.HasSuffix(s, "k") {
		mult = 1000
		s = strings.TrimSuffix(s, "k")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n := int(math.Round(f * mult))
	return &n
}

func optBool(v any) *bool {
	var b bool
	switch vv := v.(type) {
	case bool:
		b = vv
	case string:
		switch strings.ToLower(strings.TrimSpace(vv)) {
		case "true", "yes", "y":
			b = true
		case "false", "no", "n":
			b = false
		default:
			return nil
		}
	default:
		return nil
	}
	return &b
}

func optTransaction(v any) *model.Transaction {
	var t model.Transaction
	switch strings.ToLower(asString(v)) {
	case "rent", "rental", "lease", "let":
		t = model.TransactionRent
	case "sale", "sell", "buy", "purchase", "resale":
		t = model.TransactionSale
	default:
		return nil
	}
	return &t
}

func optGender(v any) *string {
	var g string
	switch strings.ToLower(asString(v)) {
	case "male", "m", "man", "men":
		g = "male"
	case "female", "f", "woman", "women", "lady", "ladies":
		g = "female"
	case "any", "mixed", "either", "no preference":
		g = "any"
	default:
		return nil
	}
	return &g
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
