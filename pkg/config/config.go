package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type WorkerConfig struct {
	RMQURL        string
	RMQVHost      string
	Queue         string
	MgmtURL       string
	MgmtUser      string
	MgmtPassword  string
	ContentAPIURL string
	UserAPIURL    string
	DispatchURL   string
	DispatchKey   string
	TemplateName  string
	FromEmail     string
	FromName      string
	SiteURL       string
	BatchSize     int
	MaxCampaigns  int
	PollInterval  time.Duration
	AdminAddr     string
}

var Worker WorkerConfig

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("env %s: not an integer: %q", k, v)
	}
	return n
}

func getenvDur(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("env %s: not a duration: %q", k, v)
	}
	return d
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("required env %s is not set", k)
	}
	return v
}

func MustLoadWorker() {
	_ = godotenv.Load()

	Worker = WorkerConfig{
		RMQURL:        mustEnv("RMQ_URL"),
		RMQVHost:      getenv("RMQ_VHOST", "/"),
		Queue:         getenv("QUEUE", "user_digest"),
		MgmtURL:       mustEnv("RMQ_MGMT_URL"),
		MgmtUser:      getenv("RMQ_MGMT_USER", "guest"),
		MgmtPassword:  getenv("RMQ_MGMT_PASSWORD", "guest"),
		ContentAPIURL: mustEnv("CONTENT_API_URL"),
		UserAPIURL:    mustEnv("USER_API_URL"),
		DispatchURL:   mustEnv("DISPATCH_URL"),
		DispatchKey:   mustEnv("DISPATCH_KEY"),
		TemplateName:  getenv("DISPATCH_TEMPLATE", "digest-v1"),
		FromEmail:     getenv("FROM_EMAIL", "noreply@example.org"),
		FromName:      getenv("FROM_NAME", "The Campaign Team"),
		SiteURL:       getenv("SITE_URL", "https://www.example.org"),
		BatchSize:     getenvInt("BATCH_SIZE", 500),
		MaxCampaigns:  getenvInt("MAX_CAMPAIGNS", 5),
		PollInterval:  getenvDur("POLL_INTERVAL", 30*time.Second),
		AdminAddr:     getenv("ADMIN_ADDR", ":8081"),
	}
}
