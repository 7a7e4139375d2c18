package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	AWS        AWSConfig
	GCS        GCSConfig
	Store      StoreConfig
	Gemini     GeminiConfig
	LocalModel LocalModelConfig
	Scripts    ScriptsConfig
	Whisper    WhisperConfig
	Pipeline   PipelineConfig
	Upload     UploadConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              string
	ReadHeaderTimeout int
	// ReadTimeout bounds whole requests on ordinary routes.
	ReadTimeout  int
	WriteTimeout int
	// UploadTimeout bounds the request body on upload and transcription routes.
	UploadTimeout      int
	CORSAllowedOrigins string
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// RedisConfig holds Redis settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// JWTConfig holds JWT settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
	// AdminEmails get the admin role when they register.
	AdminEmails []string
}

// AWSConfig holds the S3 media store settings.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	MediaBucket          string
	Endpoint             string
	PresignExpireMinutes int
}

// GCSConfig holds the Google Cloud Storage media store settings.
type GCSConfig struct {
	Bucket          string
	CredentialsFile string
}

// StoreConfig selects where lecture records live.
type StoreConfig struct {
	// Backend is postgres, firestore or memory.
	Backend             string
	FirestoreProject    string
	FirestoreCollection string
}

// GeminiConfig holds the hosted model settings. An empty key list disables Gemini.
type GeminiConfig struct {
	APIKeys []string
	Model   string
}

// LocalModelConfig holds the local model server settings.
type LocalModelConfig struct {
	URL        string
	Device     string
	Autostart  bool
	Port       int
	TimeoutSec int
}

// ScriptsConfig holds the helper script paths.
type ScriptsConfig struct {
	Python         string
	Dir            string
	CaptionsScript string
	DownloadScript string
	InfoScript     string
	WhisperScript  string
	TimeoutSec     int
	TempDir        string
}

// WhisperConfig holds the speech recognition defaults. Empty fields keep the built-in defaults.
type WhisperConfig struct {
	ModelSize string
	Language  string
	Device    string
}

// PipelineConfig holds the worker settings.
type PipelineConfig struct {
	WorkerConcurrency int
	// InlineWorker runs the lecture worker inside the API process.
	InlineWorker     bool
	CancelTTLMinutes int
	RunTTLMinutes    int
}

// UploadConfig holds export settings for uploaded lectures.
type UploadConfig struct {
	// PDFFontPath is a TTF used for non-Latin text in PDF exports.
	PDFFontPath string
}

// DSN returns PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// PresignExpiry is the lifetime of media download URLs.
func (a AWSConfig) PresignExpiry() time.Duration {
	return time.Duration(a.PresignExpireMinutes) * time.Minute
}

// ScriptTimeout bounds a single helper script run.
func (s ScriptsConfig) ScriptTimeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// Script resolves a script name against the scripts directory.
func (s ScriptsConfig) Script(name string) string {
	if s.Dir == "" || strings.HasPrefix(name, "/") {
		return name
	}
	return strings.TrimSuffix(s.Dir, "/") + "/" + name
}

// Load reads configuration from environment. Loads .env or env file from current directory if present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load("env")

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("SERVER_PORT", "8080"),
			ReadHeaderTimeout:  getEnvInt("SERVER_READ_HEADER_TIMEOUT", 10),
			ReadTimeout:        getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout:       getEnvInt("SERVER_WRITE_TIMEOUT", 660),
			UploadTimeout:      getEnvInt("SERVER_UPLOAD_TIMEOUT", 600),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "lecturemate"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 20),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 72),
			AdminEmails: splitTrim(getEnv("ADMIN_EMAILS", ""), ","),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			MediaBucket:          getEnv("AWS_S3_MEDIA_BUCKET", ""),
			Endpoint:             getEnv("AWS_S3_ENDPOINT", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
		Store: StoreConfig{
			Backend:             strings.ToLower(getEnv("STORE_BACKEND", "postgres")),
			FirestoreProject:    getEnv("FIRESTORE_PROJECT_ID", ""),
			FirestoreCollection: getEnv("FIRESTORE_COLLECTION", "lectures"),
		},
		Gemini: GeminiConfig{
			APIKeys: geminiKeys(),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		LocalModel: LocalModelConfig{
			URL:        getEnv("LOCAL_MODEL_URL", "http://localhost:8765"),
			Device:     getEnv("LOCAL_MODEL_DEVICE", "cpu"),
			Autostart:  getEnvBool("LOCAL_MODEL_AUTOSTART", false),
			Port:       getEnvInt("LOCAL_MODEL_PORT", 8765),
			TimeoutSec: getEnvInt("LOCAL_MODEL_TIMEOUT_SEC", 600),
		},
		Scripts: ScriptsConfig{
			Python:         getEnv("PYTHON_BIN", "python3"),
			Dir:            getEnv("SCRIPTS_DIR", "scripts"),
			CaptionsScript: getEnv("CAPTIONS_SCRIPT", "get_transcript.py"),
			DownloadScript: getEnv("DOWNLOAD_SCRIPT", "download_audio.py"),
			InfoScript:     getEnv("INFO_SCRIPT", "video_info.py"),
			WhisperScript:  getEnv("WHISPER_SCRIPT", "transcribe_audio.py"),
			TimeoutSec:     getEnvInt("SCRIPT_TIMEOUT_SEC", 600),
			TempDir:        getEnv("TEMP_DIR", os.TempDir()),
		},
		Whisper: WhisperConfig{
			ModelSize: getEnv("WHISPER_MODEL_SIZE", ""),
			Language:  getEnv("WHISPER_LANGUAGE", ""),
			Device:    getEnv("WHISPER_DEVICE", ""),
		},
		Pipeline: PipelineConfig{
			WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),
			InlineWorker:      getEnvBool("INLINE_WORKER", true),
			CancelTTLMinutes:  getEnvInt("CANCEL_TTL_MINUTES", 60),
			RunTTLMinutes:     getEnvInt("RUN_TTL_MINUTES", 120),
		},
		Upload: UploadConfig{
			PDFFontPath: getEnv("PDF_FONT_PATH", ""),
		},
	}
	switch cfg.Store.Backend {
	case "postgres", "firestore", "memory":
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: want postgres, firestore or memory", cfg.Store.Backend)
	}
	if cfg.Store.Backend == "firestore" && cfg.Store.FirestoreProject == "" {
		return nil, fmt.Errorf("FIRESTORE_PROJECT_ID is required when STORE_BACKEND=firestore")
	}
	return cfg, nil
}

// geminiKeys reads GEMINI_API_KEYS, falling back to the single GEMINI_API_KEY.
func geminiKeys() []string {
	if keys := splitTrim(getEnv("GEMINI_API_KEYS", ""), ","); len(keys) > 0 {
		return keys
	}
	return splitTrim(getEnv("GEMINI_API_KEY", ""), ",")
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func splitTrim(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
