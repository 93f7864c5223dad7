package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration so main stays lean. Everything
// comes from the environment, matching how the deployment injects secrets.
type Server struct {
	Addr string

	// DatabaseURL enables the postgres stores when set; otherwise the
	// in-memory stores back the service (dev and test profile).
	DatabaseURL string

	// RedisURL enables the coverage report cache when set.
	RedisURL string

	// KafkaBrokers enables the audit relay when non-empty.
	KafkaBrokers []string
	AuditTopic   string

	// JWTSigningKey verifies operator bearer tokens.
	JWTSigningKey string

	// OverdueGraceMonths is added to the scheduled age before a dose counts
	// as overdue. The observed clinical default is one month.
	OverdueGraceMonths int
}

// CoverageCacheTTL bounds staleness of cached coverage reports.
var CoverageCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("VAXTRACK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("AUDIT_TOPIC")
	if topic == "" {
		topic = "vaxtrack.audit"
	}

	grace := 1
	if raw := os.Getenv("OVERDUE_GRACE_MONTHS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			grace = parsed
		}
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Server{
		Addr:               addr,
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		KafkaBrokers:       brokers,
		AuditTopic:         topic,
		JWTSigningKey:      jwtSigningKey,
		OverdueGraceMonths: grace,
	}
}
