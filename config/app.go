package config

import (
	"os"
	"strconv"
	"sync"
	"time"
)

// AppConfig holds global application configuration
var AppConfig *Config
var once sync.Once

type Config struct {
	// ikas credentials
	StoreName    string
	ClientID     string
	ClientSecret string
	MCPToken     string

	// Remote call behavior
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	TokenRetries   int

	// Catalog defaults
	GoogleTaxonomyID string
	CatalogRoot      string
	RulesPath        string

	// AI description generation
	AIDescriptionEnabled bool
	AIDescriptionModel   string
	OpenAIKey            string
	GeminiKey            string

	// Output
	ReportDir string
	Debug     bool
}

// LoadAppConfig initializes the global AppConfig variable
func LoadAppConfig() {
	once.Do(func() {
		AppConfig = &Config{
			StoreName:            os.Getenv("IKAS_STORE_NAME"),
			ClientID:             os.Getenv("IKAS_CLIENT_ID"),
			ClientSecret:         os.Getenv("IKAS_CLIENT_SECRET"),
			MCPToken:             os.Getenv("IKAS_MCP_TOKEN"),
			ConnectTimeout:       envDuration("REQUEST_TIMEOUT_CONNECT", 10*time.Second),
			ReadTimeout:          envDuration("REQUEST_TIMEOUT_READ", 120*time.Second),
			TokenRetries:         envInt("REQUEST_RETRIES", 2),
			GoogleTaxonomyID:     envString("IKAS_GOOGLE_TAXONOMY_ID", "178"),
			CatalogRoot:          os.Getenv("IKAS_CATALOG_ROOT"),
			RulesPath:            os.Getenv("IKAS_PRICE_RULES"),
			AIDescriptionEnabled: envBool("IKAS_AI_DESCRIPTION", true),
			AIDescriptionModel:   envString("IKAS_DESCRIPTION_MODEL", "gpt-4o-mini"),
			OpenAIKey:            os.Getenv("OPENAI_API_KEY"),
			GeminiKey:            os.Getenv("GEMINI_API_KEY"),
			ReportDir:            envString("REPORT_DIR", "reports"),
			Debug:                os.Getenv("DEBUG") == "true",
		}
	})
}

// HasOAuthCredentials reports whether the client-credentials path is usable.
func (c *Config) HasOAuthCredentials() bool {
	return c.StoreName != "" && c.ClientID != "" && c.ClientSecret != ""
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "true" || v == "1"
}

// envDuration reads a timeout expressed in whole seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
