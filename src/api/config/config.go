package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	MySQLDSN  string
	RedisURL  string
	JWTSecret string
	RPCURL    string
	OCRURL    string
	Port      string

	ExtractTimeout  time.Duration
	StoreTimeout    time.Duration
	TemplateTimeout time.Duration
	LedgerTimeout   time.Duration

	MatchThreshold    float64
	VerifiedThreshold int
	RateLimit         int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		if def == "" {
			log.Fatalf("missing env %s", key)
		}
		return def
	}
	return v
}

func getseconds(key string, def int) time.Duration {
	n, err := strconv.Atoi(getenv(key, strconv.Itoa(def)))
	if err != nil || n <= 0 {
		n = def
	}
	return time.Duration(n) * time.Second
}

func Load() Config {
	match, _ := strconv.ParseFloat(getenv("MATCH_THRESHOLD", "0.6"), 64)
	verified, _ := strconv.Atoi(getenv("VERIFIED_THRESHOLD", "60"))
	rate, _ := strconv.Atoi(getenv("RATE_LIMIT", "30"))
	return Config{
		MySQLDSN:  getenv("MYSQL_DSN", "navs:navs@tcp(127.0.0.1:3306)/navs?parseTime=true"),
		RedisURL:  getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		JWTSecret: getenv("JWT_SECRET", ""),
		RPCURL:    getenv("RPC_URL", "wss://rpc.polkadot.io"),
		OCRURL:    getenv("OCR_URL", "http://127.0.0.1:5000"),
		Port:      getenv("PORT", "4000"),

		ExtractTimeout:  getseconds("EXTRACT_TIMEOUT", 30),
		StoreTimeout:    getseconds("STORE_TIMEOUT", 5),
		TemplateTimeout: getseconds("TEMPLATE_TIMEOUT", 5),
		LedgerTimeout:   getseconds("LEDGER_TIMEOUT", 10),

		MatchThreshold:    match,
		VerifiedThreshold: verified,
		RateLimit:         rate,
	}
}
