package main

import (
	"github.com/vignan/diaries/config"
	"github.com/vignan/diaries/models"
	"github.com/vignan/diaries/realtime"
	"github.com/vignan/diaries/routes"
	"github.com/vignan/diaries/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(&models.User{}, &models.Post{}, &models.Comment{})
	// connect eagerly so a bad Redis address shows up at boot
	utils.GetRedis()

	hub := realtime.NewHub()
	r := routes.SetupRouter(db, hub, utils.NewMailer(cfg))

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r, hub.Close, utils.CloseRedis); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
