package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/chative-realty/leadbot/internal/agent/model"
	errx "github.com/chative-realty/leadbot/internal/core/error"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

const ddl = `
CREATE TABLE IF NOT EXISTS agents (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	company            TEXT NOT NULL DEFAULT '',
	bot_name           TEXT NOT NULL DEFAULT '',
	bio                TEXT NOT NULL DEFAULT '',
	notification_email TEXT NOT NULL DEFAULT '',
	chatbot_enabled    INTEGER NOT NULL DEFAULT 1,
	enabled_tables     TEXT NOT NULL DEFAULT '',
	updated_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS kb_documents (
	id       TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	title    TEXT NOT NULL DEFAULT '',
	content  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_kb_documents_agent ON kb_documents(agent_id);

CREATE TABLE IF NOT EXISTS properties (
	id                TEXT PRIMARY KEY,
	listing_table     TEXT NOT NULL,
	agent_id          TEXT NOT NULL DEFAULT '',
	name              TEXT NOT NULL,
	property_type     TEXT NOT NULL DEFAULT '',
	address           TEXT NOT NULL DEFAULT '',
	area              TEXT NOT NULL DEFAULT '',
	nearest_mrt       TEXT NOT NULL DEFAULT '',
	bedrooms          INTEGER NOT NULL DEFAULT 0,
	bathrooms         INTEGER NOT NULL DEFAULT 0,
	price             INTEGER NOT NULL DEFAULT 0,
	furnishing        TEXT NOT NULL DEFAULT '',
	gender_preference TEXT NOT NULL DEFAULT '',
	environment       TEXT NOT NULL DEFAULT '',
	allows_cooking    INTEGER NOT NULL DEFAULT 0,
	allows_pets       INTEGER NOT NULL DEFAULT 0,
	has_ensuite       INTEGER NOT NULL DEFAULT 0,
	available_from    TEXT,
	description       TEXT NOT NULL DEFAULT '',
	url               TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'available'
);
CREATE INDEX IF NOT EXISTS idx_properties_table ON properties(listing_table, status, price);

CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	flow_id      TEXT NOT NULL UNIQUE,
	session_id   TEXT NOT NULL,
	agent_id     TEXT NOT NULL DEFAULT '',
	property_id  TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	name         TEXT NOT NULL DEFAULT '',
	nationality  TEXT NOT NULL DEFAULT '',
	pass_type    TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	lease_months INTEGER NOT NULL DEFAULT 0,
	viewing_type TEXT NOT NULL DEFAULT '',
	time_preference TEXT NOT NULL DEFAULT '',
	summary      TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leads_email ON leads(email, created_at);

CREATE TABLE IF NOT EXISTS prospects (
	email           TEXT PRIMARY KEY,
	agent_id        TEXT NOT NULL DEFAULT '',
	name            TEXT NOT NULL DEFAULT '',
	gender          TEXT NOT NULL DEFAULT '',
	nationality     TEXT NOT NULL DEFAULT '',
	pass_type       TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	last_session_id TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);
`

// addedColumns are created on databases that predate them.
var addedColumns = []struct{ table, column, decl string }{
	{"leads", "viewing_type", "TEXT NOT NULL DEFAULT ''"},
	{"leads", "time_preference", "TEXT NOT NULL DEFAULT ''"},
}

// SQLStore is the relational store for agents, listings, knowledge base documents and leads.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLStore wraps db and creates the schema if needed.
func NewSQLStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	s := &SQLStore{db: db, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	for _, c := range addedColumns {
		var n int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, c.table, c.column).Scan(&n)
		if err != nil {
			return fmt.Errorf("inspect %s.%s: %w", c.table, c.column, err)
		}
		if n > 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.column, c.decl)); err != nil {
			return fmt.Errorf("add column %s.%s: %w", c.table, c.column, err)
		}
		logx.Info().Str("table", c.table).Str("column", c.column).Msg("schema column added")
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return errx.WrapSQL(s.db.PingContext(ctx))
}

// ================ Agents ================

func (s *SQLStore) GetAgent(ctx context.Context, agentID string) (*model.AgentConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, company, bot_name, bio, notification_email, chatbot_enabled, enabled_tables
		FROM agents WHERE id = ?`, agentID)

	var (
		a       model.AgentConfig
		enabled bool
		tables  string
	)
	err := row.Scan(&a.ID, &a.Name, &a.Company, &a.BotName, &a.Bio, &a.NotificationEmail, &enabled, &tables)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errx.NotFound("agent", agentID)
	}
	if err != nil {
		logx.Error().Err(err).Str("agent_id", agentID).Msg("failed to load agent")
		return nil, errx.WrapSQL(err)
	}
	a.ChatbotEnabled = enabled
	a.EnabledTables = decodeTables(agentID, tables)

	docs, err := s.listDocuments(ctx, agentID)
	if err != nil {
		return nil, err
	}
	a.KBDocuments = docs
	return &a, nil
}

// UpsertAgent inserts or replaces an agent and its documents.
func (s *SQLStore) UpsertAgent(ctx context.Context, a model.AgentConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, company, bot_name, bio, notification_email, chatbot_enabled, enabled_tables, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			company = excluded.company,
			bot_name = excluded.bot_name,
			bio = excluded.bio,
			notification_email = excluded.notification_email,
			chatbot_enabled = excluded.chatbot_enabled,
			enabled_tables = excluded.enabled_tables,
			updated_at = excluded.updated_at`,
		a.ID, a.Name, a.Company, a.BotName, a.Bio, a.NotificationEmail, a.ChatbotEnabled, encodeTables(a.EnabledTables), s.now().UTC())
	if err != nil {
		return errx.WrapSQL(fmt.Errorf("upsert agent %s: %w", a.ID, err))
	}
	for _, d := range a.KBDocuments {
		d.AgentID = a.ID
		if err := s.UpsertDocument(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func encodeTables(tables []model.ListingTable) string {
	parts := make([]string, 0, len(tables))
	for _, t := range tables {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ",")
}

func decodeTables(agentID, raw string) []model.ListingTable {
	var out []model.ListingTable
	for _, p := range strings.Split(raw, ",") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		t, ok := model.ParseListingTable(p)
		if !ok {
			logx.Warn().Str("agent_id", agentID).Str("table", p).Msg("ignoring unknown listing table")
			continue
		}
		out = append(out, t)
	}
	return out
}

// ================ Knowledge base ================

func (s *SQLStore) UpsertDocument(ctx context.Context, d model.KBDocument) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kb_documents (id, agent_id, title, content) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET agent_id = excluded.agent_id, title = excluded.title, content = excluded.content`,
		d.ID, d.AgentID, d.Title, d.Content)
	if err != nil {
		return errx.WrapSQL(fmt.Errorf("upsert document %s: %w", d.ID, err))
	}
	return nil
}

func (s *SQLStore) listDocuments(ctx context.Context, agentID string) ([]model.KBDocument, error) {
	return s.queryDocuments(ctx, sq.Select("id", "agent_id", "title", "content").
		From("kb_documents").
		Where(sq.Eq{"agent_id": agentID}).
		OrderBy("title"))
}

// SearchDocuments returns the agent's documents mentioning any meaningful word of query.
func (s *SQLStore) SearchDocuments(ctx context.Context, agentID, query string, limit int) ([]model.KBDocument, error) {
	if limit <= 0 {
		limit = 3
	}
	q := sq.Select("id", "agent_id", "title", "content").
		From("kb_documents").
		Where(sq.Eq{"agent_id": agentID})

	var match sq.Or
	for _, term := range searchTerms(query) {
		arg := likeArg(term)
		match = append(match, sq.Like{"LOWER(title)": arg}, sq.Like{"LOWER(content)": arg})
	}
	if len(match) > 0 {
		q = q.Where(match)
	}
	return s.queryDocuments(ctx, q.OrderBy("title").Limit(uint64(limit)))
}

func (s *SQLStore) queryDocuments(ctx context.Context, q sq.SelectBuilder) ([]model.KBDocument, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build document query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errx.WrapSQL(err)
	}
	defer rows.Close()

	var docs []model.KBDocument
	for rows.Next() {
		var d model.KBDocument
		if err := rows.Scan(&d.ID, &d.AgentID, &d.Title, &d.Content); err != nil {
			return nil, errx.WrapSQL(err)
		}
		docs = append(docs, d)
	}
	return docs, errx.WrapSQL(rows.Err())
}

func searchTerms(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool)
	var out []string
	for _, w := range words {
		if len(w) < 4 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == 8 {
			break
		}
	}
	return out
}

// ================ Listings ================

func (s *SQLStore) UpsertProperty(ctx context.Context, p model.Property) error {
	if p.Status == "" {
		p.Status = statusAvailable
	}
	var available any
	if p.AvailableFrom != nil {
		available = p.AvailableFrom.Format(model.DateLayout)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO properties (id, listing_table, agent_id, name, property_type, address, area, nearest_mrt,
			bedrooms, bathrooms, price, furnishing, gender_preference, environment,
			allows_cooking, allows_pets, has_ensuite, available_from, description, url, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			listing_table = excluded.listing_table, agent_id = excluded.agent_id, name = excluded.name,
			property_type = excluded.property_type, address = excluded.address, area = excluded.area,
			nearest_mrt = excluded.nearest_mrt, bedrooms = excluded.bedrooms, bathrooms = excluded.bathrooms,
			price = excluded.price, furnishing = excluded.furnishing, gender_preference = excluded.gender_preference,
			environment = excluded.environment, allows_cooking = excluded.allows_cooking,
			allows_pets = excluded.allows_pets, has_ensuite = excluded.has_ensuite,
			available_from = excluded.available_from, description = excluded.description,
			url = excluded.url, status = excluded.status`,
		p.ID, string(p.Table), p.AgentID, p.Name, p.PropertyType, p.Address, p.Area, p.NearestMRT,
		p.Bedrooms, p.Bathrooms, p.Price, p.Furnishing, p.GenderPreference, p.Environment,
		p.AllowsCooking, p.AllowsPets, p.HasEnsuite, available, p.Description, p.URL, p.Status)
	if err != nil {
		return errx.WrapSQL(fmt.Errorf("upsert property %s: %w", p.ID, err))
	}
	return nil
}

// Search runs the bounded listing query for table and filters.
func (s *SQLStore) Search(ctx context.Context, table model.ListingTable, filters model.Filters, limit int) ([]model.Property, error) {
	query, args, err := buildSearchQuery(table, filters, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}
	logx.Debug().Str("table", string(table)).Str("sql", query).Interface("args", args).Msg("listing search")
	return s.queryProperties(ctx, query, args)
}

// GetProperties loads listings by id, preserving the order of ids.
func (s *SQLStore) GetProperties(ctx context.Context, ids []string) ([]model.Property, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sq.Select(propertyColumns...).From("properties").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build property query: %w", err)
	}
	found, err := s.queryProperties(ctx, query, args)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Property, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]model.Property, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *SQLStore) queryProperties(ctx context.Context, query string, args []any) ([]model.Property, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logx.Error().Err(err).Msg("listing query failed")
		return nil, errx.WrapSQL(err)
	}
	defer rows.Close()

	var out []model.Property
	for rows.Next() {
		var (
			p         model.Property
			table     string
			available sql.NullString
		)
		if err := rows.Scan(&p.ID, &table, &p.AgentID, &p.Name, &p.PropertyType, &p.Address, &p.Area, &p.NearestMRT,
			&p.Bedrooms, &p.Bathrooms, &p.Price, &p.Furnishing, &p.GenderPreference, &p.Environment,
			&p.AllowsCooking, &p.AllowsPets, &p.HasEnsuite, &available, &p.Description, &p.URL, &p.Status); err != nil {
			return nil, errx.WrapSQL(err)
		}
		p.Table = model.ListingTable(table)
		if available.Valid {
			if d, err := time.Parse(model.DateLayout, available.String); err == nil {
				p.AvailableFrom = &d
			}
		}
		out = append(out, p)
	}
	return out, errx.WrapSQL(rows.Err())
}

// ================ Leads ================

// SaveLead inserts the lead once per flow id. A repeat returns the stored id with created=false.
func (s *SQLStore) SaveLead(ctx context.Context, lead model.LeadRecord) (string, bool, error) {
	if lead.FlowID == "" {
		return "", false, errx.Validation("lead flow id is required")
	}
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	lead.Email = strings.ToLower(strings.TrimSpace(lead.Email))
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = s.now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO leads (id, flow_id, session_id, agent_id, property_id, email, name, nationality, pass_type,
			phone, lease_months, viewing_type, time_preference, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(flow_id) DO NOTHING`,
		lead.ID, lead.FlowID, lead.SessionID, lead.AgentID, lead.PropertyID, lead.Email, lead.Name,
		lead.Nationality, lead.PassType, lead.Phone, lead.LeaseMonths, string(lead.ViewingType), lead.TimePreference,
		lead.Summary, lead.CreatedAt)
	if err != nil {
		logx.Error().Err(err).Str("flow_id", lead.FlowID).Msg("failed to insert lead")
		return "", false, errx.WrapSQL(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return lead.ID, true, nil
	}

	var existing string
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM leads WHERE flow_id = ?`, lead.FlowID).Scan(&existing); err != nil {
		return "", false, errx.WrapSQL(fmt.Errorf("load existing lead for flow %s: %w", lead.FlowID, err))
	}
	logx.Info().Str("flow_id", lead.FlowID).Str("lead_id", existing).Msg("lead already saved for flow")
	return existing, false, nil
}

// FindLatestLeadByEmail returns the newest lead for email, or nil when there is none.
func (s *SQLStore) FindLatestLeadByEmail(ctx context.Context, email string) (*model.LeadRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, flow_id, session_id, agent_id, property_id, email, name, nationality, pass_type,
			phone, lease_months, viewing_type, time_preference, summary, created_at
		FROM leads WHERE email = ? ORDER BY created_at DESC LIMIT 1`, strings.ToLower(strings.TrimSpace(email)))

	var (
		l       model.LeadRecord
		viewing string
	)
	err := row.Scan(&l.ID, &l.FlowID, &l.SessionID, &l.AgentID, &l.PropertyID, &l.Email, &l.Name,
		&l.Nationality, &l.PassType, &l.Phone, &l.LeaseMonths, &viewing, &l.TimePreference, &l.Summary, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errx.WrapSQL(err)
	}
	l.ViewingType = model.ViewingType(viewing)
	return &l, nil
}

// ================ Prospects ================

// UpsertProspect creates or refreshes the prospect keyed by email. Blank
// fields keep what is already stored.
func (s *SQLStore) UpsertProspect(ctx context.Context, p model.Prospect) error {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.Email == "" {
		return errx.Validation("prospect email is required")
	}
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prospects (email, agent_id, name, gender, nationality, pass_type, phone, last_session_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			agent_id = COALESCE(NULLIF(excluded.agent_id, ''), prospects.agent_id),
			name = COALESCE(NULLIF(excluded.name, ''), prospects.name),
			gender = COALESCE(NULLIF(excluded.gender, ''), prospects.gender),
			nationality = COALESCE(NULLIF(excluded.nationality, ''), prospects.nationality),
			pass_type = COALESCE(NULLIF(excluded.pass_type, ''), prospects.pass_type),
			phone = COALESCE(NULLIF(excluded.phone, ''), prospects.phone),
			last_session_id = COALESCE(NULLIF(excluded.last_session_id, ''), prospects.last_session_id),
			updated_at = excluded.updated_at`,
		p.Email, p.AgentID, p.Name, p.Gender, p.Nationality, p.PassType, p.Phone, p.LastSessionID, now, now)
	if err != nil {
		logx.Error().Err(err).Str("email", p.Email).Msg("failed to upsert prospect")
		return errx.WrapSQL(err)
	}
	return nil
}

// GetProspect returns the prospect for email, or nil when there is none.
func (s *SQLStore) GetProspect(ctx context.Context, email string) (*model.Prospect, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT email, agent_id, name, gender, nationality, pass_type, phone, last_session_id, updated_at
		FROM prospects WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))

	var p model.Prospect
	err := row.Scan(&p.Email, &p.AgentID, &p.Name, &p.Gender, &p.Nationality, &p.PassType, &p.Phone, &p.LastSessionID, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errx.WrapSQL(err)
	}
	return &p, nil
}

var (
	_ model.AgentResolver = (*SQLStore)(nil)
	_ model.QueryService  = (*SQLStore)(nil)
	_ model.KnowledgeBase = (*SQLStore)(nil)
	_ model.LeadStore     = (*SQLStore)(nil)
	_ model.ProspectStore = (*SQLStore)(nil)
)
