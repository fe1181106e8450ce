package main

import (
	"log"

	"github.com/iurnickita/bookstore/internal/auth"
	"github.com/iurnickita/bookstore/internal/config"
	"github.com/iurnickita/bookstore/internal/handler"
	"github.com/iurnickita/bookstore/internal/logger"
	"github.com/iurnickita/bookstore/internal/service"
	"github.com/iurnickita/bookstore/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.GetConfig()

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}

	store, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}

	auth := auth.NewAuth(store)
	service, err := service.NewService(cfg.Service, store, zaplog)
	if err != nil {
		return err
	}

	return handler.Serve(cfg.Handler, auth, service, zaplog)
}
