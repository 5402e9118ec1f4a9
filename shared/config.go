package shared

import (
	"encoding/json"
	"log"
	"os"

	"github.com/tailscale/hujson"
)

const (
	configVarName  = "CONFIG"                // If set, will load config.json from this path and not from devConfigPath
	secretsVarName = "SECRETS"               // If set, will load secrets.json from this path and not from devSecretsPath
	devConfigPath  = "dev/config.dev.jsonc"  // Path to config.json in development environment
	devSecretsPath = "dev/secrets.dev.jsonc" // Path to config.json in development environment
)

type Config struct {
	Secrets     Secrets      `json:"-"`
	LogFile     string       `json:"log_file"`
	LogLevel    string       `json:"log_level"`
	ServicePort uint         `json:"service_port"`
	Host        string       `json:"host"`
	DbFile      string       `json:"db_file"`
	PageSize    int          `json:"page_size"`
	Nodes       []NodeConfig `json:"nodes"`
}

// NodeConfig describes a remote federation server we exchange objects with.
// Username and password are the credentials WE use, as a client, to
// authenticate on that node; the inbox pair is what THAT node must present
// when delivering into our inboxes.
type NodeConfig struct {
	Name          string `json:"name"`
	HostUrl       string `json:"host_url"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	InboxUsername string `json:"inbox_username"`
	InboxPassword string `json:"inbox_password"`
}

type Secrets struct {
	TokenSigningKey string `json:"token_signing_key"`
	MetricsAuth     string `json:"metrics_auth"`
}

func LoadConfig() *Config {

	// Where are our config and secrets files?
	cfgPath := os.Getenv(configVarName)
	if len(cfgPath) == 0 {
		cfgPath = devConfigPath
	}
	secretsPath := os.Getenv(secretsVarName)
	if len(secretsPath) == 0 {
		secretsPath = devSecretsPath
	}

	// Read config file
	var config Config
	mustDeserializeFile(cfgPath, &config)
	// Read secrets member from secrets file
	mustDeserializeFile(secretsPath, &config.Secrets)

	if config.PageSize == 0 {
		config.PageSize = 20
	}

	return &config
}

func mustDeserializeFile[T any](fileName string, obj *T) {
	var err error
	var cfgJson []byte
	cfgJson, err = os.ReadFile(fileName)
	if err != nil {
		log.Fatal(err)
	}
	// JSONC => JSON
	cfgJson, err = standardizeJSON(cfgJson)
	if err != nil {
		log.Fatal(err)
	}
	// Parse
	if err := json.Unmarshal(cfgJson, obj); err != nil {
		log.Fatal(err)
	}
}

func standardizeJSON(b []byte) ([]byte, error) {
	ast, err := hujson.Parse(b)
	if err != nil {
		return b, err
	}
	ast.Standardize()
	return ast.Pack(), nil
}
