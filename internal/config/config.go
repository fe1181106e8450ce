package config

import (
	"flag"
	"os"
	"time"

	handlerConfig "github.com/iurnickita/bookstore/internal/handler/config"
	loggerConfig "github.com/iurnickita/bookstore/internal/logger/config"
	serviceConfig "github.com/iurnickita/bookstore/internal/service/config"
	storeConfig "github.com/iurnickita/bookstore/internal/store/config"
)

type Config struct {
	Handler handlerConfig.Config
	Service serviceConfig.Config
	Store   storeConfig.Config
	Logger  loggerConfig.Config
}

const kakaopayReadyURL = "https://open-api.kakaopay.com/online/v1/payment/ready"

func GetConfig() Config {
	var cfg Config

	flag.StringVar(&cfg.Handler.ServerAddr, "a", "localhost:8080", "server address")
	flag.StringVar(&cfg.Store.DBDsn, "d", "", "database dsn")
	flag.StringVar(&cfg.Logger.LogLevel, "l", "info", "log level")
	flag.StringVar(&cfg.Service.KakaoPay.CID, "cid", "TC0ONETIME", "kakaopay merchant id")
	flag.StringVar(&cfg.Service.KakaoPay.AdminKey, "adminkey", "", "kakaopay secret key")
	flag.Parse()

	// переменные окружения имеют приоритет над флагами
	if addr := os.Getenv("RUN_ADDRESS"); addr != "" {
		cfg.Handler.ServerAddr = addr
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.Store.DBDsn = dsn
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Logger.LogLevel = lvl
	}
	if cid := os.Getenv("KAKAOPAY_CID"); cid != "" {
		cfg.Service.KakaoPay.CID = cid
	}
	if key := os.Getenv("KAKAOPAY_ADMIN_KEY"); key != "" {
		cfg.Service.KakaoPay.AdminKey = key
	}

	cfg.Service.KakaoPay.ReadyURL = kakaopayReadyURL
	if url := os.Getenv("KAKAOPAY_READY_URL"); url != "" {
		cfg.Service.KakaoPay.ReadyURL = url
	}
	cfg.Service.KakaoPay.CallbackBase = "http://" + cfg.Handler.ServerAddr
	cfg.Service.KakaoPay.Timeout = 10 * time.Second

	return cfg
}
