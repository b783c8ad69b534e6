package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string
	HTTPPort         int
	APIKey           string
	QuotePollSecs    int

	Universe       []string
	PolicyTable    string
	QuoteCacheSecs int

	InitialCapital    float64
	MaxPositionWeight float64
	StopLossRatio     float64
	TakeProfitRatio   float64
	MaxDrawdownLimit  float64
	MaxPositionCount  int
	RiskPerTrade      float64
	LotSize           int64

	StrongBuyThreshold float64
	BuyThreshold       float64
	HoldThreshold      float64
	SellThreshold      float64

	AnomalyEnabled   bool
	AnomalyThreshold float64
	MLEnabled        bool

	OpenAIAPIKey string
	OpenAIModel  string

	SSHPort        int
	SSHHost        string
	SSHHostKeyPath string
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, bot disabled")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.HTTPPort = envInt("HTTP_PORT", 8080)
	cfg.APIKey = strings.TrimSpace(os.Getenv("API_KEY"))
	if cfg.APIKey == "" {
		log.Println("Warning: API_KEY not set, API endpoints are unauthenticated")
	}
	cfg.QuotePollSecs = envInt("QUOTE_POLL_SECS", 60)
	cfg.QuoteCacheSecs = envInt("QUOTE_CACHE_SECS", 30)

	if v := strings.TrimSpace(os.Getenv("UNIVERSE")); v != "" {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Universe = append(cfg.Universe, s)
			}
		}
	}

	cfg.PolicyTable = strings.TrimSpace(os.Getenv("POLICY_TABLE"))
	if cfg.PolicyTable == "" {
		cfg.PolicyTable = "configs/policy.yaml"
	}

	cfg.InitialCapital = envFloat("INITIAL_CAPITAL", 100_000, func(n float64) bool { return n > 0 })
	cfg.MaxPositionWeight = envRatio("MAX_POSITION_WEIGHT", 0.30)
	cfg.StopLossRatio = envRatio("STOP_LOSS_RATIO", 0.10)
	cfg.TakeProfitRatio = envRatio("TAKE_PROFIT_RATIO", 0.20)
	cfg.MaxDrawdownLimit = envRatio("MAX_DRAWDOWN_LIMIT", 0.15)
	cfg.MaxPositionCount = envInt("MAX_POSITION_COUNT", 5)
	cfg.RiskPerTrade = envRatio("RISK_PER_TRADE", 0.02)
	cfg.LotSize = int64(envInt("LOT_SIZE", 100))

	cfg.StrongBuyThreshold = envScore("STRONG_BUY_THRESHOLD", 80)
	cfg.BuyThreshold = envScore("BUY_THRESHOLD", 65)
	cfg.HoldThreshold = envScore("HOLD_THRESHOLD", 45)
	cfg.SellThreshold = envScore("SELL_THRESHOLD", 30)

	cfg.AnomalyEnabled = envBool("ANOMALY_ENABLED")
	cfg.AnomalyThreshold = envFloat("ANOMALY_THRESHOLD", 0, func(n float64) bool { return n > 0 && n < 1 })
	cfg.MLEnabled = envBool("ML_ENABLED")

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, advisor will use the template fallback")
	}
	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}

	cfg.SSHPort = envInt("SSH_PORT", 23234)
	cfg.SSHHost = strings.TrimSpace(os.Getenv("SSH_HOST"))
	if cfg.SSHHost == "" {
		cfg.SSHHost = "0.0.0.0"
	}
	cfg.SSHHostKeyPath = strings.TrimSpace(os.Getenv("SSH_HOST_KEY_PATH"))
	if cfg.SSHHostKeyPath == "" {
		cfg.SSHHostKeyPath = ".ssh/quant_host_key"
	}

	return cfg
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using %d", key, v, def)
	}
	return def
}

func envFloat(key string, def float64, valid func(float64) bool) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && valid(n) {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using %g", key, v, def)
	}
	return def
}

func envRatio(key string, def float64) float64 {
	return envFloat(key, def, func(n float64) bool { return n > 0 && n < 1 })
}

func envScore(key string, def float64) float64 {
	return envFloat(key, def, func(n float64) bool { return n >= 0 && n <= 100 })
}

func envBool(key string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), "true")
}
