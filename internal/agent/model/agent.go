package model

import "time"

// AgentConfig is the listing agent a chatbot session belongs to.
type AgentConfig struct {
	ID                string         `json:"id" yaml:"id"`
	Name              string         `json:"name" yaml:"name"`
	Company           string         `json:"company,omitempty" yaml:"company"`
	BotName           string         `json:"bot_name,omitempty" yaml:"bot_name"`
	Bio               string         `json:"bio,omitempty" yaml:"bio"`
	NotificationEmail string         `json:"notification_email,omitempty" yaml:"notification_email"`
	ChatbotEnabled    bool           `json:"chatbot_enabled" yaml:"chatbot_enabled"`
	EnabledTables     []ListingTable `json:"enabled_tables" yaml:"enabled_tables"`
	KBDocuments       []KBDocument   `json:"kb_documents,omitempty" yaml:"kb_documents"`
}

// CommonAgentID is used when a chat arrives without an agent.
const CommonAgentID = ""

// CommonAgent serves every table and has nobody to notify.
func CommonAgent(botName string) AgentConfig {
	return AgentConfig{
		ID:             CommonAgentID,
		Name:           botName,
		BotName:        botName,
		ChatbotEnabled: true,
		EnabledTables:  AllListingTables(),
	}
}

// Enables reports whether the agent serves table. Unknown tables are allowed.
func (a AgentConfig) Enables(t ListingTable) bool {
	if !t.Known() {
		return true
	}
	for _, e := range a.EnabledTables {
		if e == t {
			return true
		}
	}
	return false
}

// EnabledServices lists display names of the agent's tables in display order.
func (a AgentConfig) EnabledServices() []string {
	var out []string
	for _, t := range AllListingTables() {
		if a.Enables(t) {
			out = append(out, t.DisplayName())
		}
	}
	return out
}

// DisplayName is how the bot introduces itself.
func (a AgentConfig) DisplayName() string {
	if a.BotName != "" {
		return a.BotName
	}
	return a.Name
}

// KBDocument is an agent-authored knowledge base entry.
type KBDocument struct {
	ID      string `json:"id" yaml:"id"`
	AgentID string `json:"agent_id" yaml:"agent_id"`
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
}

// Property is one listing row.
type Property struct {
	ID                string       `json:"id" yaml:"id"`
	Table             ListingTable `json:"table" yaml:"table"`
	AgentID           string       `json:"agent_id" yaml:"agent_id"`
	Name              string       `json:"name" yaml:"name"`
	PropertyType      string       `json:"property_type" yaml:"property_type"`
	Address           string       `json:"address,omitempty" yaml:"address"`
	Area              string       `json:"area,omitempty" yaml:"area"`
	NearestMRT        string       `json:"nearest_mrt,omitempty" yaml:"nearest_mrt"`
	Bedrooms          int          `json:"bedrooms,omitempty" yaml:"bedrooms"`
	Bathrooms         int          `json:"bathrooms,omitempty" yaml:"bathrooms"`
	Price             int          `json:"price" yaml:"price"`
	Furnishing        string       `json:"furnishing,omitempty" yaml:"furnishing"`
	GenderPreference  string       `json:"gender_preference,omitempty" yaml:"gender_preference"`
	Environment       string       `json:"environment,omitempty" yaml:"environment"`
	AllowsCooking     bool         `json:"allows_cooking,omitempty" yaml:"allows_cooking"`
	AllowsPets        bool         `json:"allows_pets,omitempty" yaml:"allows_pets"`
	HasEnsuite        bool         `json:"has_ensuite,omitempty" yaml:"has_ensuite"`
	AvailableFrom     *time.Time   `json:"available_from,omitempty" yaml:"available_from"`
	Description       string       `json:"description,omitempty" yaml:"description"`
	URL               string       `json:"url,omitempty" yaml:"url"`
	Status            string       `json:"status,omitempty" yaml:"status"`
}
