package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugAddress              string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		MaxUploadSize             int64
		SessionCacheSize          int
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	StorageConfig struct {
		Backend          string // supabase | filesystem
		ProjectURL       string
		ServiceKey       string
		Root             string
		PublicBaseURL    string
		CacheControl     string
		VerifyContent    bool
		ProvisionOnStart bool
		AuditGrace       time.Duration // objects younger than this are never reported as orphaned
	}

	ChatConfig struct {
		Provider      string // deepseek | openai | gemini | console
		APIKey        string
		BaseURL       string
		Model         string
		SystemPrompt  string
		Timeout       time.Duration
		FallbackReply string
		CacheSize     int
		IdleTTL       time.Duration
	}

	Config struct {
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail string
		OpsEmail         string
		SendgridAPIKey   string
		RollbarToken     string
		WorkDir          string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Chat     ChatConfig
	}
)

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Aula")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("opsEmail", "")
	v.SetDefault("sendgridAPIKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.maxUploadSize", int64(50<<20))
	v.SetDefault("server.sessionCacheSize", 10000)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "aula")
	v.SetDefault("database.user", "aula")
	v.SetDefault("database.password", "aula")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("storage.backend", "filesystem")
	v.SetDefault("storage.projectURL", "")
	v.SetDefault("storage.serviceKey", "")
	v.SetDefault("storage.root", "./data/objects")
	v.SetDefault("storage.publicBaseURL", "http://localhost:8000/media")
	v.SetDefault("storage.cacheControl", "3600")
	v.SetDefault("storage.verifyContent", false)
	v.SetDefault("storage.provisionOnStart", false)
	v.SetDefault("storage.auditGrace", time.Hour)

	v.SetDefault("chat.provider", "console")
	v.SetDefault("chat.apiKey", "")
	v.SetDefault("chat.baseURL", "") // provider default
	v.SetDefault("chat.model", "")   // provider default
	v.SetDefault("chat.systemPrompt", "You are a teaching assistant helping professors with course design, teaching materials, student assessment and pedagogy.")
	v.SetDefault("chat.timeout", 60*time.Second)
	v.SetDefault("chat.fallbackReply", "Sorry, an error occurred while processing your message.")
	v.SetDefault("chat.cacheSize", 1000)
	v.SetDefault("chat.idleTTL", 2*time.Hour)
}

// NewConfig loads the configuration of the current ENV (DEV, TEST, QA, PROD).
// Values come from defaults, then config/.env.<env> (if any), then the environment,
// e.g. DEV_DATABASE_HOST overrides database.host in DEV.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := workDir()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		OpsEmail:         v.GetString("opsEmail"),
		SendgridAPIKey:   v.GetString("sendgridAPIKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		WorkDir:          wd,
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugAddress:              v.GetString("server.debugAddress"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			MaxUploadSize:             v.GetInt64("server.maxUploadSize"),
			SessionCacheSize:          v.GetInt("server.sessionCacheSize"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Storage: StorageConfig{
			Backend:          v.GetString("storage.backend"),
			ProjectURL:       v.GetString("storage.projectURL"),
			ServiceKey:       v.GetString("storage.serviceKey"),
			Root:             v.GetString("storage.root"),
			PublicBaseURL:    v.GetString("storage.publicBaseURL"),
			CacheControl:     v.GetString("storage.cacheControl"),
			VerifyContent:    v.GetBool("storage.verifyContent"),
			ProvisionOnStart: v.GetBool("storage.provisionOnStart"),
			AuditGrace:       v.GetDuration("storage.auditGrace"),
		},
		Chat: ChatConfig{
			Provider:      v.GetString("chat.provider"),
			APIKey:        v.GetString("chat.apiKey"),
			BaseURL:       v.GetString("chat.baseURL"),
			Model:         v.GetString("chat.model"),
			SystemPrompt:  v.GetString("chat.systemPrompt"),
			Timeout:       v.GetDuration("chat.timeout"),
			FallbackReply: v.GetString("chat.fallbackReply"),
			CacheSize:     v.GetInt("chat.cacheSize"),
			IdleTTL:       v.GetDuration("chat.idleTTL"),
		},
	}
}

// workDir walks up from the current directory to the module root (the directory holding go.mod).
// go test runs in the package directory, so config files must not be looked up relative to it.
func workDir() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd // not in a source tree (e.g. deployed binary)
		}
		currDir = newDir
	}
}
