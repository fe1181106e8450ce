package config

import (
	kakaopayConfig "github.com/iurnickita/bookstore/internal/service/kakaopay/config"
)

type Config struct {
	KakaoPay kakaopayConfig.Config
}
