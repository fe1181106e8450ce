package config

import "time"

type Config struct {
	ReadyURL     string
	CID          string
	AdminKey     string
	CallbackBase string
	Timeout      time.Duration
}
